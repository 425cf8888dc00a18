package models

import "time"

// MessageSummary is one row of a folder listing. Display fields are
// already formatted: SentAt is "YYYY-MM-DD HH:mm" and Sender/Address
// fall back to placeholder strings when the header is absent.
type MessageSummary struct {
	UID     uint32 `json:"uid"`
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
	Address string `json:"address"`
	SentAt  string `json:"sent_at"`
}

// MessageDetail is a fully parsed message.
type MessageDetail struct {
	MessageSummary
	Recipients  string   `json:"recipients"`
	BodyHTML    string   `json:"body_html"`
	Attachments []string `json:"attachments,omitempty"`
}

type BoundAccount struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Email     string    `json:"email"`
	Provider  string    `json:"provider"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Contact struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Remark    string    `json:"remark,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Draft struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SentLog struct {
	ID      string    `json:"id"`
	OwnerID string    `json:"owner_id"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	SentAt  time.Time `json:"sent_at"`
}
