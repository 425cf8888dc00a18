// Package provider maps supported mail providers to their server
// endpoints and credentials.
package provider

import (
	"fmt"
	"net"
	"strconv"
)

// Provider identifies a supported mail provider dialect.
type Provider string

const (
	QQ      Provider = "qq"
	NetEase Provider = "163"
	HUST    Provider = "hust"
)

// ErrUnknownProvider is returned when an account references a provider
// tag with no known server configuration.
var ErrUnknownProvider = fmt.Errorf("unknown mail provider")

// Endpoint is a single mail server address.
type Endpoint struct {
	Host string
	Port int
	TLS  bool
}

// Addr returns the host:port form accepted by net dialers.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Account carries everything needed to open IMAP and SMTP sessions for
// one mailbox. Password is the provider authorization code, not the
// user's login password.
type Account struct {
	Email    string
	Password string
	Provider Provider
	IMAP     Endpoint
	SMTP     Endpoint
}

var endpoints = map[Provider]struct {
	imapHost string
	smtpHost string
}{
	QQ:      {imapHost: "imap.qq.com", smtpHost: "smtp.qq.com"},
	NetEase: {imapHost: "imap.163.com", smtpHost: "smtp.163.com"},
	HUST:    {imapHost: "mail.hust.edu.cn", smtpHost: "mail.hust.edu.cn"},
}

// NewAccount derives the server endpoints for the given provider tag.
func NewAccount(email, password string, p Provider) (Account, error) {
	hosts, ok := endpoints[p]
	if !ok {
		return Account{}, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}

	return Account{
		Email:    email,
		Password: password,
		Provider: p,
		IMAP:     Endpoint{Host: hosts.imapHost, Port: 993, TLS: true},
		SMTP:     Endpoint{Host: hosts.smtpHost, Port: 465, TLS: true},
	}, nil
}

// Known reports whether p has a server configuration.
func Known(p Provider) bool {
	_, ok := endpoints[p]
	return ok
}
