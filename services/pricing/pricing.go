// Package pricing computes coupon discounts, GST and payable totals.
package pricing

import (
	"math"
	"strings"
	"time"

	"triaright-platform/errors"
	"triaright-platform/models"
)

// DefaultGSTRate is applied on the Pack365 checkout path.
const DefaultGSTRate = 0.18

// Round2 rounds to paise.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Discount returns the amount taken off base. Percentage discounts are capped
// by maxDiscount when it is positive; flat discounts never exceed base.
func Discount(base float64, discountType string, value, maxDiscount float64) float64 {
	if base <= 0 || value <= 0 {
		return 0
	}
	var d float64
	switch discountType {
	case models.DiscountPercentage:
		d = base * value / 100
		if maxDiscount > 0 && d > maxDiscount {
			d = maxDiscount
		}
	case models.DiscountFlat:
		d = math.Min(value, base)
	}
	return Round2(math.Min(d, base))
}

// Billable is what remains after the discount, never negative.
func Billable(base, discount float64) float64 {
	return Round2(math.Max(0, base-discount))
}

// WithGST adds GST at rate to amount.
func WithGST(amount, rate float64) float64 {
	return Round2(amount * (1 + rate))
}

// Quote prices base with an optional coupon. gstRate is zero when no GST applies.
func Quote(base float64, coupon *models.Coupon, gstRate float64) models.PriceQuote {
	q := models.PriceQuote{BaseAmount: Round2(base)}
	if coupon != nil {
		q.Discount = Discount(base, coupon.DiscountType, coupon.DiscountValue, coupon.MaxDiscount)
		q.CouponCode = coupon.Code
	}
	q.Billable = Billable(base, q.Discount)
	if gstRate > 0 {
		q.GST = Round2(q.Billable * gstRate)
	}
	q.Total = Round2(q.Billable + q.GST)
	return q
}

// NormalizeCode makes coupon lookups case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCoupon checks that c can be applied to courseID at price base.
// courseID is nil for pack purchases.
func ValidateCoupon(c *models.Coupon, courseID *int, base float64, now time.Time) error {
	switch {
	case c == nil:
		return errors.E(errors.NotFound, "coupon not found")
	case !c.IsActive:
		return errors.E(errors.Invalid, "coupon is not active")
	case c.ExpiresAt != nil && !now.Before(*c.ExpiresAt):
		return errors.E(errors.Invalid, "coupon has expired")
	case c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit:
		return errors.E(errors.Invalid, "coupon usage limit reached")
	case base < c.MinPrice:
		return errors.E(errors.Invalid, "order amount is below the coupon minimum")
	case c.CourseID != nil && (courseID == nil || *courseID != *c.CourseID):
		return errors.E(errors.Invalid, "coupon is not applicable to this course")
	}
	return nil
}

// ValidateDefinition checks a coupon before it is stored.
func ValidateDefinition(c *models.Coupon) error {
	switch {
	case NormalizeCode(c.Code) == "":
		return errors.E(errors.Invalid, "coupon code is required")
	case c.DiscountType != models.DiscountFlat && c.DiscountType != models.DiscountPercentage:
		return errors.E(errors.Invalid, "discount type must be flat or percentage")
	case c.DiscountValue <= 0:
		return errors.E(errors.Invalid, "discount value must be positive")
	case c.DiscountType == models.DiscountPercentage && c.DiscountValue > 100:
		return errors.E(errors.Invalid, "percentage discount cannot exceed 100")
	case c.MaxDiscount < 0 || c.MinPrice < 0 || c.UsageLimit < 0:
		return errors.E(errors.Invalid, "limits cannot be negative")
	}
	return nil
}
