package models

import "time"

// Payment statuses
const (
	PaymentPending = "PENDING"
	PaymentPaid    = "PAID"
	PaymentFailed  = "FAILED"
)

// Products that can be bought
const (
	ProductCourse  = "course"
	ProductPack365 = "pack365"
)

type Payment struct {
	ID            int       `json:"id"`
	UserID        int       `json:"user_id"`
	Product       string    `json:"product"`
	CourseID      *int      `json:"course_id,omitempty"`
	PackID        *int      `json:"pack_id,omitempty"`
	CouponCode    string    `json:"coupon_code,omitempty"`
	BaseAmount    float64   `json:"base_amount"`
	Discount      float64   `json:"discount"`
	GST           float64   `json:"gst"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	OrderID       string    `json:"order_id"`
	PaymentID     string    `json:"payment_id,omitempty"`
	Signature     string    `json:"-"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CheckoutPrefill pre-populates the checkout form.
type CheckoutPrefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CheckoutOrder is the configuration object handed to the checkout widget.
type CheckoutOrder struct {
	KeyID       string          `json:"key"`
	OrderID     string          `json:"order_id"`
	Amount      int64           `json:"amount"` // paise
	Currency    string          `json:"currency"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Receipt     string          `json:"receipt"`
	Prefill     CheckoutPrefill `json:"prefill"`
	Quote       PriceQuote      `json:"quote"`
	// Completed is set when nothing was owed and enrollment already happened.
	Completed bool `json:"completed"`
}

// PaymentVerification is the outcome of a signature check.
type PaymentVerification struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	EnrollmentIDs []int  `json:"enrollment_ids"`
	AlreadyPaid   bool   `json:"already_paid"`
}
