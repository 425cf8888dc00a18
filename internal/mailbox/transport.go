package mailbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"mime"
	"net"
	"net/mail"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"

	"github.com/corvomail/corvo/internal/provider"
)

// MessageRef identifies a stored message for reply and forward flows.
type MessageRef struct {
	Folder string
	UID    uint32
}

// OutgoingAttachment is a caller-provided file to attach to an
// outgoing message.
type OutgoingAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// SendRequest describes one outgoing message. InReplyTo, when set,
// causes the original message's attachments to be reattached from
// local storage.
type SendRequest struct {
	To         string
	Subject    string
	BodyHTML   string
	Attachment *OutgoingAttachment
	InReplyTo  *MessageRef
}

// recipientDelimiters splits a recipient string on commas, semicolons,
// full-width commas, and whitespace runs.
var recipientDelimiters = regexp.MustCompile(`[,;，\s]+`)

// textPolicy strips all markup to derive the plain-text alternative of
// an outgoing HTML body.
var textPolicy = bluemonday.StrictPolicy()

// SplitRecipients breaks a user-entered recipient string into
// individual addresses.
func SplitRecipients(to string) []string {
	fields := recipientDelimiters.Split(to, -1)
	recipients := make([]string, 0, len(fields))
	for _, field := range fields {
		if field != "" {
			recipients = append(recipients, field)
		}
	}
	return recipients
}

// Send composes and delivers a new or reply message, then best-effort
// archives a copy into the account's sent folder. Delivery failures
// are returned; archive failures are only logged.
func (s *Service) Send(ctx context.Context, account provider.Account, req SendRequest) error {
	logger := s.accountLogger(account)

	recipients := SplitRecipients(req.To)
	if len(recipients) == 0 {
		return fmt.Errorf("%w: no recipients", ErrDelivery)
	}

	builder := s.newBuilder(account, recipients, req.Subject, req.BodyHTML)

	if req.Attachment != nil {
		builder = builder.AddAttachment(req.Attachment.Content, attachmentContentType(req.Attachment.ContentType, req.Attachment.Filename), req.Attachment.Filename)
	}

	if req.InReplyTo != nil {
		original, err := s.Load(ctx, account, req.InReplyTo.Folder, req.InReplyTo.UID)
		if err != nil {
			return fmt.Errorf("failed to load original message for reply: %w", err)
		}
		builder = s.reattach(builder, original.Attachments, logger)
	}

	raw, err := encodeMessage(builder)
	if err != nil {
		return err
	}

	if err := s.deliver(ctx, account, recipients, raw); err != nil {
		return err
	}

	s.archiveToSent(ctx, account, raw)
	s.recordSent(ctx, req.To, req.Subject, logger)
	return nil
}

// Forward reloads a stored message, prepends the commenter's note and
// a quoted header block, reattaches every original attachment still on
// disk, and delivers the result.
func (s *Service) Forward(ctx context.Context, account provider.Account, folder string, uid uint32, to, comment string) error {
	logger := s.accountLogger(account).WithField("folder", folder).WithField("uid", uid)

	recipients := SplitRecipients(to)
	if len(recipients) == 0 {
		return fmt.Errorf("%w: no recipients", ErrDelivery)
	}

	original, err := s.Load(ctx, account, folder, uid)
	if err != nil {
		return fmt.Errorf("failed to load original message for forward: %w", err)
	}

	subject := "Fwd: " + original.Subject
	body := forwardBody(comment, original.Sender, original.SentAt, original.Recipients, original.Subject, original.BodyHTML)

	builder := s.newBuilder(account, recipients, subject, body)
	builder = s.reattach(builder, original.Attachments, logger)

	raw, err := encodeMessage(builder)
	if err != nil {
		return err
	}

	if err := s.deliver(ctx, account, recipients, raw); err != nil {
		return err
	}

	s.archiveToSent(ctx, account, raw)
	s.recordSent(ctx, to, subject, logger)
	return nil
}

func (s *Service) newBuilder(account provider.Account, recipients []string, subject, bodyHTML string) enmime.MailBuilder {
	addrs := make([]mail.Address, 0, len(recipients))
	for _, recipient := range recipients {
		addrs = append(addrs, mail.Address{Address: recipient})
	}

	return enmime.Builder().
		From("", account.Email).
		ToAddrs(addrs).
		Subject(subject).
		HTML([]byte(bodyHTML)).
		Text([]byte(textPolicy.Sanitize(bodyHTML))).
		Header("Message-ID", messageID(account.Email))
}

// reattach adds every named attachment that still exists in local
// storage. A missing file is logged and skipped; it never aborts the
// remaining attachments.
func (s *Service) reattach(builder enmime.MailBuilder, names []string, logger *logrus.Entry) enmime.MailBuilder {
	for _, name := range names {
		content, err := s.attachments.Read(name)
		if err != nil {
			logger.WithError(err).WithField("filename", name).Warn("Skipping attachment missing from local storage")
			continue
		}
		builder = builder.AddAttachment(content, attachmentContentType("", name), name)
	}
	return builder
}

func encodeMessage(builder enmime.MailBuilder) ([]byte, error) {
	root, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to compose message: %w", err)
	}

	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// deliver submits the raw message over the account's SMTP endpoint.
func (s *Service) deliver(ctx context.Context, account provider.Account, recipients []string, raw []byte) error {
	logger := s.accountLogger(account)

	dialer := &net.Dialer{Timeout: s.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", account.SMTP.Addr())
	if err != nil {
		logger.WithError(err).Error("Failed to connect to SMTP server")
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if account.SMTP.TLS {
		conn = tls.Client(conn, &tls.Config{
			ServerName: account.SMTP.Host,
			MinVersion: tls.VersionTLS12,
		})
	}

	c := smtp.NewClient(conn)
	defer func() { _ = c.Close() }()

	if err := c.Auth(sasl.NewPlainClient("", account.Email, account.Password)); err != nil {
		logger.WithError(err).Warn("SMTP authentication rejected")
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	if err := c.Mail(account.Email, nil); err != nil {
		return fmt.Errorf("%w: sender rejected: %v", ErrDelivery, err)
	}
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			return fmt.Errorf("%w: recipient %q rejected: %v", ErrDelivery, recipient, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	if err := c.Quit(); err != nil {
		logger.WithError(err).Debug("SMTP quit failed after accepted delivery")
	}
	return nil
}

// archiveToSent appends the raw message to the account's sent folder.
// Delivery already succeeded when this runs, so every failure here is
// swallowed after logging.
func (s *Service) archiveToSent(ctx context.Context, account provider.Account, raw []byte) {
	logger := s.accountLogger(account)

	sess, err := openSession(ctx, account, s.connectTimeout, logger)
	if err != nil {
		logger.WithError(err).Warn("Skipping sent-folder archive, could not open session")
		return
	}
	defer sess.close()

	flags := []string{imap.SeenFlag}
	now := time.Now()
	for _, candidate := range fallbackCandidates(Resolve(account.Provider, FolderSent)) {
		if err := sess.client.Append(candidate, flags, now, bytes.NewBuffer(raw)); err == nil {
			return
		}
	}
	logger.Warn("Failed to archive message to sent folder")
}

func (s *Service) recordSent(ctx context.Context, to, subject string, logger *logrus.Entry) {
	if s.sentLog == nil {
		return
	}
	if err := s.sentLog.RecordSent(ctx, to, subject, time.Now()); err != nil {
		logger.WithError(err).Warn("Failed to record send log entry")
	}
}

// messageID generates a unique Message-ID header under the sender's
// domain.
func messageID(from string) string {
	domain := "localhost"
	if idx := strings.LastIndex(from, "@"); idx >= 0 && idx < len(from)-1 {
		domain = from[idx+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// forwardBody assembles the forwarded HTML body: the user's comment,
// a quoted header block describing the original, then the original
// body. Header fields are HTML-escaped.
func forwardBody(comment, sender, date, recipients, subject, originalBody string) string {
	var b strings.Builder
	if comment != "" {
		b.WriteString(`<div style="white-space: pre-wrap;">`)
		b.WriteString(html.EscapeString(comment))
		b.WriteString(`</div>`)
	}
	b.WriteString(`<br><div style="border-top: 1px solid #ccc; padding-top: 8px;">`)
	b.WriteString(`<b>-------- 转发的邮件 --------</b><br>`)
	b.WriteString(`发件人: ` + html.EscapeString(sender) + `<br>`)
	b.WriteString(`日期: ` + html.EscapeString(date) + `<br>`)
	b.WriteString(`收件人: ` + html.EscapeString(recipients) + `<br>`)
	b.WriteString(`主题: ` + html.EscapeString(subject) + `<br>`)
	b.WriteString(`</div><br>`)
	b.WriteString(originalBody)
	return b.String()
}

// attachmentContentType picks a MIME type for an outgoing attachment,
// falling back to the extension lookup, then octet-stream.
func attachmentContentType(explicit, filename string) string {
	if explicit != "" {
		return explicit
	}
	if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

// IsAuthFailure reports whether err is a credential rejection rather
// than a transport fault, letting the boundary layer prompt for
// re-entry instead of showing a generic failure.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAuthentication)
}
