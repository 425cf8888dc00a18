package provider

import (
	"errors"
	"testing"
)

func TestNewAccount(t *testing.T) {
	testCases := []struct {
		name     string
		provider Provider
		imapHost string
		smtpHost string
	}{
		{"qq", QQ, "imap.qq.com", "smtp.qq.com"},
		{"163", NetEase, "imap.163.com", "smtp.163.com"},
		{"hust", HUST, "mail.hust.edu.cn", "mail.hust.edu.cn"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			account, err := NewAccount("user@example.com", "authcode", tc.provider)
			if err != nil {
				t.Fatalf("NewAccount failed: %v", err)
			}

			if account.Email != "user@example.com" {
				t.Errorf("Expected email to be preserved, got %q", account.Email)
			}
			if account.IMAP.Host != tc.imapHost {
				t.Errorf("Expected IMAP host %q, got %q", tc.imapHost, account.IMAP.Host)
			}
			if account.IMAP.Port != 993 || !account.IMAP.TLS {
				t.Errorf("Expected IMAP 993/TLS, got %d/%v", account.IMAP.Port, account.IMAP.TLS)
			}
			if account.SMTP.Host != tc.smtpHost {
				t.Errorf("Expected SMTP host %q, got %q", tc.smtpHost, account.SMTP.Host)
			}
			if account.SMTP.Port != 465 || !account.SMTP.TLS {
				t.Errorf("Expected SMTP 465/TLS, got %d/%v", account.SMTP.Port, account.SMTP.TLS)
			}
		})
	}
}

func TestNewAccountUnknownProvider(t *testing.T) {
	_, err := NewAccount("user@example.com", "authcode", Provider("gmail"))
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("Expected ErrUnknownProvider, got %v", err)
	}
}

func TestEndpointAddr(t *testing.T) {
	e := Endpoint{Host: "imap.qq.com", Port: 993}
	if got := e.Addr(); got != "imap.qq.com:993" {
		t.Errorf("Expected 'imap.qq.com:993', got %q", got)
	}
}

func TestKnown(t *testing.T) {
	if !Known(QQ) {
		t.Error("Expected qq to be known")
	}
	if Known(Provider("outlook")) {
		t.Error("Expected outlook to be unknown")
	}
}
