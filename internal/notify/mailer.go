package notify

import "context"

// Attachment is a file sent along with an email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is a provider independent email.
type Message struct {
	From        string
	To          []string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Mailer delivers a Message through some transport.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}
