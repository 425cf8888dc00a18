package mailbox

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"

	"github.com/corvomail/corvo/internal/provider"
	"github.com/corvomail/corvo/internal/testutil"
)

func TestSplitRecipients(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{"semicolons and commas", "a@x.com; b@y.com, c@z.com", []string{"a@x.com", "b@y.com", "c@z.com"}},
		{"full-width comma", "a@x.com，b@y.com", []string{"a@x.com", "b@y.com"}},
		{"whitespace run", "a@x.com   b@y.com", []string{"a@x.com", "b@y.com"}},
		{"single recipient", "a@x.com", []string{"a@x.com"}},
		{"trailing delimiters", "a@x.com;; ", []string{"a@x.com"}},
		{"empty", "", []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SplitRecipients(tc.input))
		})
	}
}

// transportFixture wires a service against in-memory IMAP and SMTP
// servers.
func transportFixture(t *testing.T) (*Service, *testutil.TestIMAPServer, *testutil.TestSMTPServer, provider.Account) {
	t.Helper()

	imapServer := testutil.NewTestIMAPServer(t)
	t.Cleanup(imapServer.Close)
	smtpServer := testutil.NewTestSMTPServer(t)
	t.Cleanup(smtpServer.Close)

	account := imapServer.Account(t, provider.QQ)
	account.SMTP = smtpServer.Endpoint(t)

	return newTestService(t), imapServer, smtpServer, account
}

func TestSend(t *testing.T) {
	service, imapServer, smtpServer, account := transportFixture(t)
	imapServer.CreateFolder(t, "Sent Messages")

	err := service.Send(context.Background(), account, SendRequest{
		To:       "rcpt@example.com",
		Subject:  "Greetings",
		BodyHTML: "<p>Hello there</p>",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	messages := smtpServer.GetMessages()
	if !assert.Len(t, messages, 1) {
		return
	}
	assert.Equal(t, account.Email, messages[0].From)
	assert.Equal(t, []string{"rcpt@example.com"}, messages[0].To)

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(messages[0].Data))
	if err != nil {
		t.Fatalf("Failed to parse delivered message: %v", err)
	}
	assert.Equal(t, "Greetings", envelope.GetHeader("Subject"))
	assert.Contains(t, envelope.HTML, "Hello there")
	assert.NotEmpty(t, envelope.GetHeader("Message-ID"))

	// Delivery succeeded, so a copy must land in the sent folder.
	assert.Equal(t, uint32(1), imapServer.MessageCount(t, "Sent Messages"))
}

func TestSendMultipleRecipients(t *testing.T) {
	service, _, smtpServer, account := transportFixture(t)

	err := service.Send(context.Background(), account, SendRequest{
		To:       "a@x.com; b@y.com, c@z.com",
		Subject:  "Fan out",
		BodyHTML: "<p>hi</p>",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	messages := smtpServer.GetMessages()
	if assert.Len(t, messages, 1) {
		assert.Equal(t, []string{"a@x.com", "b@y.com", "c@z.com"}, messages[0].To)
	}
}

func TestSendNoRecipients(t *testing.T) {
	service, _, _, account := transportFixture(t)

	err := service.Send(context.Background(), account, SendRequest{
		To:       " ; , ",
		Subject:  "Nobody home",
		BodyHTML: "<p>hi</p>",
	})
	if !errors.Is(err, ErrDelivery) {
		t.Errorf("Expected ErrDelivery, got %v", err)
	}
}

func TestSendWithAttachment(t *testing.T) {
	service, _, smtpServer, account := transportFixture(t)

	err := service.Send(context.Background(), account, SendRequest{
		To:       "rcpt@example.com",
		Subject:  "With file",
		BodyHTML: "<p>see attached</p>",
		Attachment: &OutgoingAttachment{
			Filename: "notes.txt",
			Content:  []byte("meeting notes"),
		},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	messages := smtpServer.GetMessages()
	if !assert.Len(t, messages, 1) {
		return
	}
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(messages[0].Data))
	if err != nil {
		t.Fatalf("Failed to parse delivered message: %v", err)
	}
	if assert.Len(t, envelope.Attachments, 1) {
		assert.Equal(t, "notes.txt", envelope.Attachments[0].FileName)
		assert.Equal(t, "meeting notes", string(envelope.Attachments[0].Content))
	}
}

func TestSendReplyReattachesOriginalAttachments(t *testing.T) {
	service, imapServer, smtpServer, account := transportFixture(t)

	original := "Message-ID: <orig-1@example.com>\r\n" +
		"Date: Wed, 01 May 2024 09:00:00 +0000\r\n" +
		"From: alice@example.com\r\n" +
		"To: username@example.com\r\n" +
		"Subject: Original\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=MIX\r\n" +
		"\r\n" +
		"--MIX\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"original body\r\n" +
		"--MIX\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Disposition: attachment; filename=\"first.txt\"\r\n" +
		"\r\n" +
		"first\r\n" +
		"--MIX\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Disposition: attachment; filename=\"second.txt\"\r\n" +
		"\r\n" +
		"second\r\n" +
		"--MIX--\r\n"

	imapServer.ClearFolder(t, "INBOX")
	uid := imapServer.AddRawMessage(t, "INBOX", "<orig-1@example.com>", original)

	err := service.Send(context.Background(), account, SendRequest{
		To:        "alice@example.com",
		Subject:   "Re: Original",
		BodyHTML:  "<p>replying</p>",
		InReplyTo: &MessageRef{Folder: FolderInbox, UID: uid},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	messages := smtpServer.GetMessages()
	if !assert.Len(t, messages, 1) {
		return
	}
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(messages[0].Data))
	if err != nil {
		t.Fatalf("Failed to parse delivered message: %v", err)
	}

	names := make([]string, 0, len(envelope.Attachments))
	for _, attachment := range envelope.Attachments {
		names = append(names, attachment.FileName)
	}
	assert.ElementsMatch(t, []string{"first.txt", "second.txt"}, names)
}

func TestReattachSkipsMissingFiles(t *testing.T) {
	service, _, _, account := transportFixture(t)

	if _, err := service.attachments.Save("exists.txt", []byte("here")); err != nil {
		t.Fatalf("Failed to seed attachment: %v", err)
	}

	builder := service.newBuilder(account, []string{"rcpt@example.com"}, "subject", "<p>hi</p>")
	builder = service.reattach(builder, []string{"exists.txt", "missing.txt"}, service.accountLogger(account))

	raw, err := encodeMessage(builder)
	if err != nil {
		t.Fatalf("Failed to encode message: %v", err)
	}

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Failed to parse message: %v", err)
	}
	if assert.Len(t, envelope.Attachments, 1) {
		assert.Equal(t, "exists.txt", envelope.Attachments[0].FileName)
	}
}

func TestForward(t *testing.T) {
	service, imapServer, smtpServer, account := transportFixture(t)

	original := "Message-ID: <fwd-1@example.com>\r\n" +
		"Date: Wed, 01 May 2024 09:00:00 +0000\r\n" +
		"From: Alice <alice@example.com>\r\n" +
		"To: username@example.com\r\n" +
		"Subject: Plans & ideas\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=MIX\r\n" +
		"\r\n" +
		"--MIX\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>original content</p>\r\n" +
		"--MIX\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Disposition: attachment; filename=\"plan.txt\"\r\n" +
		"\r\n" +
		"the plan\r\n" +
		"--MIX--\r\n"

	imapServer.ClearFolder(t, "INBOX")
	uid := imapServer.AddRawMessage(t, "INBOX", "<fwd-1@example.com>", original)

	err := service.Forward(context.Background(), account, FolderInbox, uid, "bob@example.com", "have a look")
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	messages := smtpServer.GetMessages()
	if !assert.Len(t, messages, 1) {
		return
	}
	assert.Equal(t, []string{"bob@example.com"}, messages[0].To)

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(messages[0].Data))
	if err != nil {
		t.Fatalf("Failed to parse delivered message: %v", err)
	}
	assert.Equal(t, "Fwd: Plans & ideas", envelope.GetHeader("Subject"))
	assert.Contains(t, envelope.HTML, "have a look")
	assert.Contains(t, envelope.HTML, "Plans &amp; ideas")
	assert.Contains(t, envelope.HTML, "original content")
	assert.Contains(t, envelope.HTML, "发件人: Alice")
	assert.Contains(t, envelope.HTML, "username@example.com")

	if assert.Len(t, envelope.Attachments, 1) {
		assert.Equal(t, "plan.txt", envelope.Attachments[0].FileName)
	}
}

func TestForwardMissingOriginal(t *testing.T) {
	service, imapServer, _, account := transportFixture(t)
	imapServer.ClearFolder(t, "INBOX")

	err := service.Forward(context.Background(), account, FolderInbox, 9999, "bob@example.com", "")
	if !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("Expected ErrMessageNotFound, got %v", err)
	}
}

func TestSendUnreachableSMTPServer(t *testing.T) {
	service, imapServer, _, _ := transportFixture(t)

	account := imapServer.Account(t, provider.QQ)
	account.SMTP = provider.Endpoint{Host: "127.0.0.1", Port: 1, TLS: false}

	err := service.Send(context.Background(), account, SendRequest{
		To:       "rcpt@example.com",
		Subject:  "Doomed",
		BodyHTML: "<p>hi</p>",
	})
	if !errors.Is(err, ErrConnection) {
		t.Errorf("Expected ErrConnection, got %v", err)
	}
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *fakeRecorder) RecordSent(ctx context.Context, to, subject string, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, to+"|"+subject)
	return nil
}

func TestSendRecordsSentLog(t *testing.T) {
	service, _, _, account := transportFixture(t)

	recorder := &fakeRecorder{}
	service.SetSentRecorder(recorder)

	err := service.Send(context.Background(), account, SendRequest{
		To:       "rcpt@example.com",
		Subject:  "Logged",
		BodyHTML: "<p>hi</p>",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	assert.Equal(t, []string{"rcpt@example.com|Logged"}, recorder.entries)
}

func TestForwardBodyEscapesHeaderFields(t *testing.T) {
	body := forwardBody("note <b>bold</b>", "Alice <alice@example.com>", "2024-05-01 09:00",
		"bob@example.com", "Plans & ideas", "<p>original</p>")

	assert.Contains(t, body, "note &lt;b&gt;bold&lt;/b&gt;")
	assert.Contains(t, body, "Alice &lt;alice@example.com&gt;")
	assert.Contains(t, body, "Plans &amp; ideas")
	assert.Contains(t, body, "<p>original</p>")
}
