package mailbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/microcosm-cc/bluemonday"

	"github.com/corvomail/corvo/internal/models"
	"github.com/corvomail/corvo/internal/provider"
)

// detailPolicy sanitizes reconstructed message bodies before they are
// handed to the caller. It extends the UGC policy to keep the
// whitespace-preserving wrapper used for plain-text parts.
var detailPolicy = func() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("style").OnElements("div")
	policy.AllowStyles("white-space").OnElements("div")
	return policy
}()

// Load fetches one complete message by UID: decoded headers, the full
// semicolon-joined recipient list, the sanitized HTML body, and the
// filenames of attachments extracted to local storage.
//
// A UID that no longer resolves returns ErrMessageNotFound; callers
// treat this as "message no longer present", not a fault.
func (s *Service) Load(ctx context.Context, account provider.Account, folder string, uid uint32) (*models.MessageDetail, error) {
	logger := s.accountLogger(account).WithField("folder", folder).WithField("uid", uid)

	sess, err := openSession(ctx, account, s.connectTimeout, logger)
	if err != nil {
		return nil, err
	}
	defer sess.close()

	_, resolved, err := sess.selectFolder(ctx, account.Provider, folder, true)
	if err != nil {
		logger.WithError(err).Warn("Failed to open folder for message load")
		return nil, err
	}

	msg, err := sess.fetchFullMessage(uid)
	if err != nil {
		logger.WithError(err).Error("Full message fetch failed")
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if msg == nil {
		logger.Debug("Message UID no longer present")
		return nil, fmt.Errorf("%w: uid %d", ErrMessageNotFound, uid)
	}

	sentView := isSentFolder(account.Provider, folder, resolved)
	detail := &models.MessageDetail{
		MessageSummary: summaryFromEnvelope(msg, sentView),
		Recipients:     formatRecipients(msg.Envelope),
	}

	body := msg.GetBody(&imap.BodySectionName{})
	if body == nil {
		logger.Warn("Server returned no body section")
		return detail, nil
	}

	rawHTML, saved, err := parseContent(body, s.attachments, logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to parse message body")
		return detail, nil
	}

	detail.BodyHTML = detailPolicy.Sanitize(rawHTML)
	detail.Attachments = saved
	return detail, nil
}

// formatRecipients joins every To recipient with semicolons, using
// "Name <address>" where a display name exists.
func formatRecipients(env *imap.Envelope) string {
	if env == nil || len(env.To) == 0 {
		return unknownRecipient
	}

	parts := make([]string, 0, len(env.To))
	for _, addr := range env.To {
		address := addr.Address()
		if name := decodeHeader(addr.PersonalName); name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", name, address))
		} else if address != "" {
			parts = append(parts, address)
		}
	}
	if len(parts) == 0 {
		return unknownRecipient
	}
	return strings.Join(parts, "; ")
}
