package models

import "time"

// Discount types
const (
	DiscountFlat       = "flat"
	DiscountPercentage = "percentage"
)

type Coupon struct {
	ID            int        `json:"id"`
	Code          string     `json:"code"`
	DiscountType  string     `json:"discount_type"`
	DiscountValue float64    `json:"discount_value"`
	MinPrice      float64    `json:"min_price"`
	MaxDiscount   float64    `json:"max_discount"` // 0 = uncapped
	UsageLimit    int        `json:"usage_limit"`  // 0 = unlimited
	UsedCount     int        `json:"used_count"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CourseID      *int       `json:"course_id,omitempty"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
}

// PriceQuote is the breakdown shown before checkout.
type PriceQuote struct {
	BaseAmount float64 `json:"base_amount"`
	Discount   float64 `json:"discount"`
	Billable   float64 `json:"billable"`
	GST        float64 `json:"gst"`
	Total      float64 `json:"total"`
	CouponCode string  `json:"coupon_code,omitempty"`
}
