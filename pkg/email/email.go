// Package email sends transactional mail through a configured provider.
package email

import "context"

// Message is a single-recipient mail.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}
