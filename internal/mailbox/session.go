package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"github.com/corvomail/corvo/internal/provider"
)

// session is a transient, single-operation IMAP connection. Every
// exported operation opens its own session and closes it on all exit
// paths; nothing is pooled or shared.
type session struct {
	client *client.Client
	logger *logrus.Entry
}

// openSession dials the account's IMAP endpoint and authenticates.
// The dial phase is bounded by timeout and by ctx's deadline,
// whichever is shorter.
func openSession(ctx context.Context, account provider.Account, timeout time.Duration, logger *logrus.Entry) (*session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	c, err := dial(ctx, account.IMAP, timeout)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to IMAP server")
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if err := c.Login(account.Email, account.Password); err != nil {
		_ = c.Logout()
		logger.WithError(err).Warn("IMAP login rejected")
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	return &session{client: c, logger: logger}, nil
}

// dial connects to an IMAP endpoint, with or without implicit TLS.
// Non-TLS endpoints exist for tests against in-memory servers.
func dial(ctx context.Context, endpoint provider.Endpoint, timeout time.Duration) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: timeout}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			dialer.Timeout = remaining
		}
	}

	if endpoint.TLS {
		c, err := client.DialWithDialerTLS(dialer, endpoint.Addr(), &tls.Config{
			ServerName: endpoint.Host,
			MinVersion: tls.VersionTLS12,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s with TLS: %w", endpoint.Addr(), err)
		}
		return c, nil
	}

	c, err := client.DialWithDialer(dialer, endpoint.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint.Addr(), err)
	}
	return c, nil
}

// close logs out, dropping the connection. Safe to defer.
func (s *session) close() {
	if err := s.client.Logout(); err != nil {
		s.logger.WithError(err).Debug("IMAP logout failed")
	}
}
