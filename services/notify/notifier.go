package notify

import (
	"context"
	"fmt"

	"triaright-platform/logger"
	"triaright-platform/services/kafka"
)

// Sender is what services depend on to send email.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// Notifier queues emails on the bus. Without a bus it sends directly in the
// background so callers never block on SMTP.
type Notifier struct {
	pub    kafka.Publisher
	mailer Mailer
	queued bool
}

// New returns a notifier. queued selects the bus path over direct delivery.
func New(pub kafka.Publisher, mailer Mailer, queued bool) *Notifier {
	return &Notifier{pub: pub, mailer: mailer, queued: queued}
}

// Send queues e for delivery.
func (n *Notifier) Send(ctx context.Context, e Email) error {
	if err := e.validate(); err != nil {
		return err
	}
	if !n.queued {
		go func() {
			if err := n.mailer.Send(context.Background(), e); err != nil {
				logger.Error("[EMAIL] direct send to %s failed: %v", e.To, err)
			}
		}()
		return nil
	}
	if err := n.pub.PublishEvent(ctx, kafka.TopicEmails, "email-"+e.To, kafka.EventEmailSend, e); err != nil {
		return fmt.Errorf("failed to queue email: %w", err)
	}
	logger.Info("[EMAIL] queued for %s", e.To)
	return nil
}

// Register installs the email.send handler that performs delivery.
func Register(c *kafka.Consumer, mailer Mailer) {
	c.Handle(kafka.EventEmailSend, func(ctx context.Context, evt kafka.Event) error {
		var e Email
		if err := evt.Decode(&e); err != nil {
			return err
		}
		if err := e.validate(); err != nil {
			return err
		}
		return mailer.Send(ctx, e)
	})
}
