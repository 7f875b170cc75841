package notification

import (
	"context"
	"errors"
	"fmt"

	"quickclean/internal/models"
	"quickclean/pkg/email"
	"quickclean/pkg/sms"

	"go.uber.org/zap"
)

// Notifier records and delivers one notification per classified event.
type Notifier struct {
	repo        RepositoryInterface
	sms         sms.Sender
	mail        email.Sender
	feedbackURL string
	log         *zap.Logger
}

// NewNotifier builds the notifier. Nil senders skip delivery but still record.
func NewNotifier(repo RepositoryInterface, smsSender sms.Sender, mail email.Sender, feedbackURL string, log *zap.Logger) *Notifier {
	return &Notifier{repo: repo, sms: smsSender, mail: mail, feedbackURL: feedbackURL, log: log}
}

// Publish lets the notifier stand in for the message bus when none is configured.
func (n *Notifier) Publish(ctx context.Context, ev models.RequestEvent) error {
	return n.Handle(ctx, ev)
}

// Handle processes one event. Only store failures are returned; delivery
// failures are logged so they never hold up the request lifecycle.
func (n *Notifier) Handle(ctx context.Context, ev models.RequestEvent) error {
	var channel models.Channel
	var text string
	switch ev.Type {
	case models.EventWorkerAssigned:
		channel = models.ChannelSMS
		text = fmt.Sprintf("QuickClean: A worker (ID: %s) has been assigned to your request %s. They will arrive shortly!",
			ev.WorkerID, ev.RequestID)
	case models.EventRequestCompleted:
		channel = models.ChannelEmail
		text = fmt.Sprintf("Your request %s has been completed. Please rate our service: %s/feedback?id=%s",
			ev.RequestID, n.feedbackURL, ev.RequestID)
	default:
		n.log.Debug("event has no notification", zap.String("type", string(ev.Type)))
		return nil
	}

	record := &models.Notification{
		UserID:    ev.UserID,
		RequestID: ev.RequestID,
		Event:     ev.Type,
		Type:      channel,
		Message:   text,
	}
	created, err := n.repo.Record(ctx, record)
	if err != nil {
		return fmt.Errorf("notifier.Handle: %w", err)
	}
	if !created {
		n.log.Debug("notification already sent",
			zap.String("request_id", ev.RequestID), zap.String("event", string(ev.Type)))
		return nil
	}

	if err := n.deliver(ctx, channel, ev, text); err != nil {
		n.log.Error("notification delivery failed",
			zap.String("request_id", ev.RequestID),
			zap.String("event", string(ev.Type)),
			zap.Error(err))
		return nil
	}
	n.log.Info("notification sent",
		zap.String("request_id", ev.RequestID),
		zap.String("event", string(ev.Type)),
		zap.String("channel", string(channel)))
	return nil
}

func (n *Notifier) deliver(ctx context.Context, channel models.Channel, ev models.RequestEvent, text string) error {
	to, err := n.repo.Recipient(ctx, ev.RequestID)
	if err != nil {
		return err
	}
	switch channel {
	case models.ChannelSMS:
		if n.sms == nil {
			return errors.New("no sms sender configured")
		}
		return n.sms.Send(ctx, to.Phone, text)
	case models.ChannelEmail:
		if n.mail == nil {
			return errors.New("no email sender configured")
		}
		return n.mail.Send(ctx, email.Message{
			To:      to.Email,
			Subject: "Your QuickClean pickup is complete",
			Text:    fmt.Sprintf("Hi %s,\n\n%s\n", to.Name, text),
		})
	}
	return fmt.Errorf("unknown channel %s", channel)
}
