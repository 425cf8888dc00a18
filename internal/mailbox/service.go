// Package mailbox is the mail synchronization and transport engine. It
// opens transient IMAP and SMTP sessions against a user's external
// mailbox, resolves logical folder names across provider dialects,
// lists and loads messages, performs copy+flag+expunge mutations, and
// composes and delivers outgoing mail.
package mailbox

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/corvomail/corvo/internal/attachments"
	"github.com/corvomail/corvo/internal/provider"
)

const defaultConnectTimeout = 5 * time.Second

// SentRecorder receives a local record of every successfully delivered
// message. Recording is best-effort; implementations must not block
// indefinitely.
type SentRecorder interface {
	RecordSent(ctx context.Context, to, subject string, sentAt time.Time) error
}

// Service exposes every mailbox operation. Each method opens its own
// session for one logical operation and closes it before returning;
// a Service is safe for concurrent use.
type Service struct {
	attachments    *attachments.Store
	connectTimeout time.Duration
	logger         *logrus.Logger
	sentLog        SentRecorder
}

func NewService(store *attachments.Store, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		attachments:    store,
		connectTimeout: defaultConnectTimeout,
		logger:         logger,
	}
}

// SetConnectTimeout bounds the dial phase of every session.
func (s *Service) SetConnectTimeout(d time.Duration) {
	if d > 0 {
		s.connectTimeout = d
	}
}

// SetSentRecorder wires an optional local send-log.
func (s *Service) SetSentRecorder(r SentRecorder) {
	s.sentLog = r
}

func (s *Service) accountLogger(account provider.Account) *logrus.Entry {
	return s.logger.WithField("account", account.Email)
}
