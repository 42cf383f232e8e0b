package repository

import (
	"context"
	"database/sql"

	"triaright-platform/errors"
	"triaright-platform/logger"
	"triaright-platform/models"
)

func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO payments (user_id, product, course_id, pack_id, coupon_code, base_amount, discount, gst,
		                       amount, currency, status, order_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at, updated_at`,
		p.UserID, p.Product, p.CourseID, p.PackID, nullString(p.CouponCode), p.BaseAmount, p.Discount, p.GST,
		p.Amount, p.Currency, p.Status, p.OrderID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapErr(err, "payment")
}

func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, product, course_id, pack_id, COALESCE(coupon_code, ''), base_amount, discount, gst,
		        amount, currency, status, order_id, COALESCE(payment_id, ''), COALESCE(razorpay_sign, ''),
		        COALESCE(failure_reason, ''), created_at, updated_at
		 FROM payments WHERE order_id = $1`, orderID,
	).Scan(&p.ID, &p.UserID, &p.Product, &p.CourseID, &p.PackID, &p.CouponCode, &p.BaseAmount, &p.Discount, &p.GST,
		&p.Amount, &p.Currency, &p.Status, &p.OrderID, &p.PaymentID, &p.Signature,
		&p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err, "payment")
	}
	return &p, nil
}

func (s *Store) MarkPaymentFailed(ctx context.Context, orderID, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, failure_reason = $2, updated_at = CURRENT_TIMESTAMP
		 WHERE order_id = $3 AND status = $4`,
		models.PaymentFailed, reason, orderID, models.PaymentPending)
	return mapErr(err, "payment")
}

// CompletePayment locks the payment row so concurrent verify and webhook
// calls enroll at most once.
func (s *Store) CompletePayment(ctx context.Context, orderID, paymentID, signature string, enrollments []models.Enrollment) ([]int, bool, error) {
	var ids []int
	alreadyPaid := false
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var status, coupon string
		err := tx.QueryRowContext(ctx,
			`SELECT status, COALESCE(coupon_code, '') FROM payments WHERE order_id = $1 FOR UPDATE`, orderID,
		).Scan(&status, &coupon)
		if err != nil {
			return mapErr(err, "payment")
		}
		if status == models.PaymentPaid {
			alreadyPaid = true
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE payments SET status = $1, payment_id = $2, razorpay_sign = $3, failure_reason = NULL,
			        updated_at = CURRENT_TIMESTAMP
			 WHERE order_id = $4`,
			models.PaymentPaid, nullString(paymentID), nullString(signature), orderID); err != nil {
			return mapErr(err, "payment")
		}

		for _, e := range enrollments {
			var id int
			// A direct enrollment never expires; a pack renewal extends expiry.
			err := tx.QueryRowContext(ctx,
				`INSERT INTO enrollments (user_id, course_id, pack_id, status, payment_order_id, expires_at)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (user_id, course_id) DO UPDATE SET
				   pack_id = CASE WHEN enrollments.expires_at IS NULL OR EXCLUDED.expires_at IS NULL THEN NULL
				                  ELSE EXCLUDED.pack_id END,
				   expires_at = CASE WHEN enrollments.expires_at IS NULL OR EXCLUDED.expires_at IS NULL THEN NULL
				                     ELSE GREATEST(enrollments.expires_at, EXCLUDED.expires_at) END,
				   payment_order_id = EXCLUDED.payment_order_id
				 RETURNING id`,
				e.UserID, e.CourseID, e.PackID, e.Status, orderID, e.ExpiresAt,
			).Scan(&id)
			if err != nil {
				return mapErr(err, "enrollment")
			}
			ids = append(ids, id)
		}

		if coupon != "" {
			return redeemCoupon(ctx, tx, coupon, orderID)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return ids, alreadyPaid, nil
}

const redeemCouponSQL = `UPDATE coupons SET used_count = used_count + 1
	 WHERE code = $1 AND (usage_limit = 0 OR used_count < usage_limit)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// redeemCoupon never pushes used_count past usage_limit. A coupon that ran
// out between quote and capture is logged; the captured payment still stands.
func redeemCoupon(ctx context.Context, tx execer, code, orderID string) error {
	res, err := tx.ExecContext(ctx, redeemCouponSQL, code)
	if err != nil {
		return mapErr(err, "coupon")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		logger.Warn("[PAYMENT] coupon %s exhausted before order %s was captured; usage not counted", code, orderID)
	}
	return nil
}

func (s *Store) LogWebhook(ctx context.Context, eventID, event, orderID string, valid bool, status, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_events (event_id, event, order_id, signature_valid, processing_status, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		nullString(eventID), event, nullString(orderID), valid, status, nullString(errMsg))
	if err != nil {
		logger.Warn("[DB] could not record webhook %s: %v", event, err)
		return errors.E(errors.Internal, "could not record webhook", err)
	}
	return nil
}
