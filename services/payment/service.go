// Package payment runs the two-phase checkout: create a gateway order, then
// verify the signed result and enroll.
package payment

import (
	"context"
	"fmt"
	"math"
	"strings"

	"triaright-platform/clock"
	"triaright-platform/errors"
	"triaright-platform/logger"
	"triaright-platform/models"
	"triaright-platform/services/kafka"
	"triaright-platform/services/notify"
	"triaright-platform/services/pricing"

	"github.com/google/uuid"
)

// Store is the persistence the payment flow needs.
type Store interface {
	GetCourse(ctx context.Context, id int) (*models.Course, error)
	GetPack(ctx context.Context, id int) (*models.Pack365, error)
	ListCoursesByStream(ctx context.Context, stream string) ([]models.Course, error)
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	IsEnrolled(ctx context.Context, userID, courseID int) (bool, error)
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	// MarkPaymentFailed only moves PENDING payments.
	MarkPaymentFailed(ctx context.Context, orderID, reason string) error
	// CompletePayment marks an unpaid payment PAID, creates the enrollments
	// and counts the coupon use in one transaction. It reports alreadyPaid
	// instead of failing when the payment was PAID before.
	CompletePayment(ctx context.Context, orderID, paymentID, signature string, enrollments []models.Enrollment) (ids []int, alreadyPaid bool, err error)
	LogWebhook(ctx context.Context, eventID, event, orderID string, valid bool, status, errMsg string) error
}

// UserLookup resolves receipt recipients.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

// Config holds gateway credentials and tax settings.
type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
	GSTRate       float64
	BusinessName  string
}

// OrderRequest selects what is being bought.
type OrderRequest struct {
	Product    string `json:"product"`
	CourseID   *int   `json:"course_id,omitempty"`
	PackID     *int   `json:"pack_id,omitempty"`
	CouponCode string `json:"coupon_code,omitempty"`
}

// item is a resolved OrderRequest.
type item struct {
	name     string
	base     float64
	courseID *int
	pack     *models.Pack365
	gstRate  float64
}

type Service struct {
	store   Store
	gateway Gateway
	users   UserLookup
	events  kafka.Publisher
	mail    notify.Sender
	clock   clock.Clock
	cfg     Config
}

func NewService(cfg Config, store Store, gateway Gateway, users UserLookup, events kafka.Publisher, mail notify.Sender, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real()
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.BusinessName == "" {
		cfg.BusinessName = "TriaRight"
	}
	return &Service{store: store, gateway: gateway, users: users, events: events, mail: mail, clock: clk, cfg: cfg}
}

func (s *Service) resolve(ctx context.Context, req OrderRequest) (*item, error) {
	switch req.Product {
	case models.ProductCourse:
		if req.CourseID == nil {
			return nil, errors.E(errors.Invalid, "course_id is required")
		}
		c, err := s.store.GetCourse(ctx, *req.CourseID)
		if err != nil {
			return nil, err
		}
		if !c.IsActive {
			return nil, errors.E(errors.Invalid, "course is not available")
		}
		if !c.IsPaid() {
			return nil, errors.E(errors.Invalid, "course is free; enroll directly")
		}
		return &item{name: c.Name, base: c.Price, courseID: &c.ID}, nil
	case models.ProductPack365:
		if req.PackID == nil {
			return nil, errors.E(errors.Invalid, "pack_id is required")
		}
		p, err := s.store.GetPack(ctx, *req.PackID)
		if err != nil {
			return nil, err
		}
		return &item{name: p.Name, base: p.Price, pack: p, gstRate: s.cfg.GSTRate}, nil
	}
	return nil, errors.E(errors.Invalid, "product must be course or pack365")
}

func (s *Service) coupon(ctx context.Context, code string, it *item) (*models.Coupon, error) {
	code = pricing.NormalizeCode(code)
	if code == "" {
		return nil, nil
	}
	c, err := s.store.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.IsKind(err, errors.NotFound) {
			return nil, errors.E(errors.Invalid, "invalid coupon code")
		}
		return nil, err
	}
	if err := pricing.ValidateCoupon(c, it.courseID, it.base, s.clock.Now()); err != nil {
		return nil, err
	}
	return c, nil
}

// Preview prices a request without creating anything. It backs coupon
// validation in the checkout form.
func (s *Service) Preview(ctx context.Context, req OrderRequest) (*models.PriceQuote, error) {
	it, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	c, err := s.coupon(ctx, req.CouponCode, it)
	if err != nil {
		return nil, err
	}
	q := pricing.Quote(it.base, c, it.gstRate)
	return &q, nil
}

// enrollmentsFor lists the enrollments a paid request grants.
func (s *Service) enrollmentsFor(ctx context.Context, p *models.Payment) ([]models.Enrollment, error) {
	now := s.clock.Now().UTC()
	if p.Product == models.ProductCourse {
		return []models.Enrollment{{
			UserID:         p.UserID,
			CourseID:       *p.CourseID,
			Status:         models.EnrollmentActive,
			PaymentOrderID: p.OrderID,
		}}, nil
	}

	pack, err := s.store.GetPack(ctx, *p.PackID)
	if err != nil {
		return nil, err
	}
	courses, err := s.store.ListCoursesByStream(ctx, pack.Stream)
	if err != nil {
		return nil, err
	}
	expires := now.AddDate(0, 0, pack.ValidityDays)
	out := make([]models.Enrollment, 0, len(courses))
	for _, c := range courses {
		out = append(out, models.Enrollment{
			UserID:         p.UserID,
			CourseID:       c.ID,
			PackID:         &pack.ID,
			Status:         models.EnrollmentActive,
			PaymentOrderID: p.OrderID,
			ExpiresAt:      &expires,
		})
	}
	return out, nil
}

// CreateOrder prices the request, opens a gateway order and records a
// PENDING payment. Orders that cost nothing complete immediately.
func (s *Service) CreateOrder(ctx context.Context, user *models.User, req OrderRequest) (*models.CheckoutOrder, error) {
	it, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if it.courseID != nil {
		enrolled, err := s.store.IsEnrolled(ctx, user.ID, *it.courseID)
		if err != nil {
			return nil, err
		}
		if enrolled {
			return nil, errors.E(errors.Conflict, "already enrolled in this course")
		}
	}
	if it.pack != nil {
		courses, err := s.store.ListCoursesByStream(ctx, it.pack.Stream)
		if err != nil {
			return nil, err
		}
		if len(courses) == 0 {
			return nil, errors.E(errors.Invalid, "pack has no courses yet")
		}
	}
	c, err := s.coupon(ctx, req.CouponCode, it)
	if err != nil {
		return nil, err
	}
	quote := pricing.Quote(it.base, c, it.gstRate)

	now := s.clock.Now()
	receipt := fmt.Sprintf("rcpt_%d_%d", user.ID, now.UnixMilli())
	amount := int64(math.Round(quote.Total * 100))

	p := &models.Payment{
		UserID:     user.ID,
		Product:    req.Product,
		CourseID:   it.courseID,
		CouponCode: quote.CouponCode,
		BaseAmount: quote.BaseAmount,
		Discount:   quote.Discount,
		GST:        quote.GST,
		Amount:     quote.Total,
		Currency:   s.cfg.Currency,
		Status:     models.PaymentPending,
	}
	if it.pack != nil {
		p.PackID = &it.pack.ID
	}

	if amount == 0 {
		p.OrderID = "free_" + uuid.NewString()
	} else {
		p.OrderID, err = s.gateway.CreateOrder(ctx, amount, s.cfg.Currency, receipt, map[string]interface{}{
			"user_id": user.ID,
			"product": req.Product,
		})
		if err != nil {
			logger.Error("[PAYMENT] gateway order for user %d failed: %v", user.ID, err)
			return nil, errors.E(errors.Internal, "could not create payment order", err)
		}
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}
	logger.Info("[PAYMENT] order %s created for user %d: %s %.2f", p.OrderID, user.ID, p.Currency, p.Amount)

	order := &models.CheckoutOrder{
		KeyID:       s.cfg.KeyID,
		OrderID:     p.OrderID,
		Amount:      amount,
		Currency:    s.cfg.Currency,
		Name:        s.cfg.BusinessName,
		Description: it.name,
		Receipt:     receipt,
		Prefill:     models.CheckoutPrefill{Name: user.Name, Email: user.Email},
		Quote:       quote,
	}

	if amount == 0 {
		if _, err := s.complete(ctx, p, "", "free"); err != nil {
			return nil, err
		}
		order.KeyID = ""
		order.Completed = true
		return order, nil
	}

	s.publish(ctx, kafka.EventPaymentInitiated, p, nil)
	return order, nil
}

// Verify checks the checkout signature and, when valid, completes the payment.
func (s *Service) Verify(ctx context.Context, userID int, orderID, paymentID, signature string) (*models.PaymentVerification, error) {
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, errors.E(errors.Invalid, "order_id, payment_id and signature are required")
	}
	p, err := s.store.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, errors.E(errors.Forbidden, "payment belongs to another user")
	}

	if !VerifySignature(CheckoutPayload(orderID, paymentID), s.cfg.KeySecret, signature) {
		logger.Warn("[PAYMENT] signature mismatch for order %s", orderID)
		if err := s.store.MarkPaymentFailed(ctx, orderID, "signature verification failed"); err != nil {
			logger.Error("[PAYMENT] could not mark order %s failed: %v", orderID, err)
		}
		if p.Status == models.PaymentPending {
			s.publish(ctx, kafka.EventPaymentFailed, p, map[string]interface{}{"reason": "signature verification failed"})
		}
		return nil, errors.E(errors.Unauthorized, "payment signature verification failed")
	}
	return s.complete(ctx, p, paymentID, signature)
}

func (s *Service) complete(ctx context.Context, p *models.Payment, paymentID, signature string) (*models.PaymentVerification, error) {
	enrollments, err := s.enrollmentsFor(ctx, p)
	if err != nil {
		return nil, err
	}
	ids, alreadyPaid, err := s.store.CompletePayment(ctx, p.OrderID, paymentID, signature, enrollments)
	if err != nil {
		logger.Error("[PAYMENT] completing order %s failed: %v", p.OrderID, err)
		return nil, err
	}

	res := &models.PaymentVerification{
		OrderID:       p.OrderID,
		Status:        models.PaymentPaid,
		EnrollmentIDs: ids,
		AlreadyPaid:   alreadyPaid,
	}
	if alreadyPaid {
		logger.Info("[PAYMENT] order %s was already paid", p.OrderID)
		return res, nil
	}
	logger.Info("[PAYMENT] order %s paid, %d enrollments", p.OrderID, len(ids))

	s.publish(ctx, kafka.EventPaymentVerified, p, map[string]interface{}{
		"payment_id":     paymentID,
		"enrollment_ids": ids,
	})
	if err := s.events.PublishEvent(ctx, kafka.TopicEnrollments, fmt.Sprintf("user-%d", p.UserID), kafka.EventEnrollmentCreated, map[string]interface{}{
		"user_id":        p.UserID,
		"order_id":       p.OrderID,
		"enrollment_ids": ids,
	}); err != nil {
		logger.Warn("[PAYMENT] could not publish enrollments for %s: %v", p.OrderID, err)
	}

	if u, err := s.users.GetUserByID(ctx, p.UserID); err == nil {
		desc := strings.ToUpper(p.Product)
		if p.CourseID != nil {
			if c, err := s.store.GetCourse(ctx, *p.CourseID); err == nil {
				desc = c.Name
			}
		} else if p.PackID != nil {
			if pk, err := s.store.GetPack(ctx, *p.PackID); err == nil {
				desc = pk.Name
			}
		}
		if err := s.mail.Send(ctx, notify.PaymentReceipt(u.Email, u.Name, desc, p.OrderID, p.Amount, p.Currency)); err != nil {
			logger.Warn("[PAYMENT] could not queue receipt for %s: %v", p.OrderID, err)
		}
	}
	return res, nil
}

func (s *Service) publish(ctx context.Context, eventType string, p *models.Payment, extra map[string]interface{}) {
	data := map[string]interface{}{
		"order_id": p.OrderID,
		"user_id":  p.UserID,
		"product":  p.Product,
		"amount":   p.Amount,
		"currency": p.Currency,
	}
	for k, v := range extra {
		data[k] = v
	}
	if err := s.events.PublishEvent(ctx, kafka.TopicPayments, p.OrderID, eventType, data); err != nil {
		logger.Warn("[PAYMENT] could not publish %s for %s: %v", eventType, p.OrderID, err)
	}
}
