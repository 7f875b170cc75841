package email

import (
	"context"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"
)

// MailerSend sends through the MailerSend API.
type MailerSend struct {
	ms       *mailersend.Mailersend
	fromName string
	from     string
}

func NewMailerSend(apiKey, fromName, from string) *MailerSend {
	return &MailerSend{ms: mailersend.NewMailersend(apiKey), fromName: fromName, from: from}
}

func (m *MailerSend) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	message := m.ms.Email.NewMessage()
	message.SetFrom(mailersend.From{Name: m.fromName, Email: m.from})
	message.SetRecipients([]mailersend.Recipient{{Email: msg.To}})
	message.SetSubject(msg.Subject)
	message.SetText(msg.Text)
	if msg.HTML != "" {
		message.SetHTML(msg.HTML)
	}

	if _, err := m.ms.Email.Send(ctx, message); err != nil {
		return fmt.Errorf("email.MailerSend: %w", err)
	}
	return nil
}
