package payment

import (
	"context"
	"encoding/json"

	"triaright-platform/errors"
	"triaright-platform/logger"
	"triaright-platform/models"
	"triaright-platform/services/kafka"
)

// Webhook events
const (
	WebhookPaymentCaptured = "payment.captured"
	WebhookOrderPaid       = "order.paid"
	WebhookPaymentFailed   = "payment.failed"
)

// WebhookPayload is the envelope Razorpay posts.
type WebhookPayload struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Amount           int64  `json:"amount"`
				Status           string `json:"status"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// WebhookResult is what the handler acknowledges with.
type WebhookResult struct {
	Status    string `json:"status"`
	Event     string `json:"event"`
	OrderID   string `json:"order_id,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
}

// HandleWebhook verifies and applies a gateway notification. Unsigned or
// mis-signed bodies are rejected.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	valid := VerifySignature(body, s.cfg.WebhookSecret, signature)

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		if !valid {
			return nil, errors.E(errors.Unauthorized, "invalid webhook signature")
		}
		return nil, errors.E(errors.Invalid, "invalid payload format", err)
	}

	orderID := payload.Payload.Payment.Entity.OrderID
	if orderID == "" {
		orderID = payload.Payload.Order.Entity.ID
	}
	paymentID := payload.Payload.Payment.Entity.ID
	logger.Info("[WEBHOOK] received %s for order %s (signature valid=%v)", payload.Event, orderID, valid)

	if !valid {
		s.logWebhook(ctx, payload, orderID, false, "REJECTED", "invalid signature")
		return nil, errors.E(errors.Unauthorized, "invalid webhook signature")
	}

	res := &WebhookResult{Status: "processed", Event: payload.Event, OrderID: orderID, PaymentID: paymentID}
	var err error
	switch payload.Event {
	case WebhookPaymentCaptured, WebhookOrderPaid:
		err = s.webhookPaid(ctx, orderID, paymentID)
	case WebhookPaymentFailed:
		err = s.webhookFailed(ctx, orderID, payload.Payload.Payment.Entity.ErrorDescription)
	default:
		logger.Info("[WEBHOOK] unhandled event type %s, acknowledging", payload.Event)
		res.Status = "acknowledged"
	}

	if err != nil {
		if errors.IsKind(err, errors.NotFound) {
			// orders created elsewhere on the same account
			logger.Warn("[WEBHOOK] unknown order %s, ignoring", orderID)
			s.logWebhook(ctx, payload, orderID, true, "IGNORED", err.Error())
			res.Status = "ignored"
			return res, nil
		}
		s.logWebhook(ctx, payload, orderID, true, "FAILED", err.Error())
		return nil, err
	}
	s.logWebhook(ctx, payload, orderID, true, "COMPLETED", "")
	return res, nil
}

func (s *Service) webhookPaid(ctx context.Context, orderID, paymentID string) error {
	if orderID == "" {
		return errors.E(errors.Invalid, "missing order_id")
	}
	p, err := s.store.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	_, err = s.complete(ctx, p, paymentID, "webhook")
	return err
}

func (s *Service) webhookFailed(ctx context.Context, orderID, reason string) error {
	if orderID == "" {
		return errors.E(errors.Invalid, "missing order_id")
	}
	p, err := s.store.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = "payment failed at gateway"
	}
	if err := s.store.MarkPaymentFailed(ctx, orderID, reason); err != nil {
		return err
	}
	if p.Status == models.PaymentPending {
		s.publish(ctx, kafka.EventPaymentFailed, p, map[string]interface{}{"reason": reason})
	}
	return nil
}

func (s *Service) logWebhook(ctx context.Context, p WebhookPayload, orderID string, valid bool, status, msg string) {
	if err := s.store.LogWebhook(ctx, p.ID, p.Event, orderID, valid, status, msg); err != nil {
		logger.Warn("[WEBHOOK] could not log event %s: %v", p.Event, err)
	}
}
