package pricing

import (
	"testing"
	"time"

	"triaright-platform/errors"
	"triaright-platform/models"
)

func TestDiscount(t *testing.T) {
	tests := []struct {
		name        string
		base        float64
		kind        string
		value       float64
		maxDiscount float64
		want        float64
	}{
		{"percentage capped", 999, models.DiscountPercentage, 20, 150, 150},
		{"percentage under cap", 500, models.DiscountPercentage, 20, 150, 100},
		{"percentage uncapped", 999, models.DiscountPercentage, 20, 0, 199.8},
		{"flat", 999, models.DiscountFlat, 300, 0, 300},
		{"flat larger than base", 250, models.DiscountFlat, 300, 0, 250},
		{"zero base", 0, models.DiscountFlat, 300, 0, 0},
		{"unknown type", 999, "bogus", 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Discount(tt.base, tt.kind, tt.value, tt.maxDiscount); got != tt.want {
				t.Errorf("Expected %.2f, got %.2f", tt.want, got)
			}
		})
	}
}

func TestCappedDiscountWithGST(t *testing.T) {
	d := Discount(999, models.DiscountPercentage, 20, 150)
	if d != 150 {
		t.Fatalf("Expected discount 150, got %.2f", d)
	}
	if got := WithGST(d, DefaultGSTRate); got != 177 {
		t.Errorf("Expected 177, got %.2f", got)
	}
}

func TestBillableNeverNegative(t *testing.T) {
	if got := Billable(100, 250); got != 0 {
		t.Errorf("Expected 0, got %.2f", got)
	}
	if got := Billable(999, 150); got != 849 {
		t.Errorf("Expected 849, got %.2f", got)
	}
}

func TestQuote(t *testing.T) {
	c := &models.Coupon{Code: "SAVE20", DiscountType: models.DiscountPercentage, DiscountValue: 20, MaxDiscount: 150}

	q := Quote(999, c, DefaultGSTRate)
	if q.Discount != 150 || q.Billable != 849 {
		t.Errorf("Expected discount 150 billable 849, got %+v", q)
	}
	if q.GST != 152.82 || q.Total != 1001.82 {
		t.Errorf("Expected gst 152.82 total 1001.82, got %+v", q)
	}
	if q.CouponCode != "SAVE20" {
		t.Errorf("Expected coupon code on quote, got %q", q.CouponCode)
	}

	plain := Quote(999, c, 0)
	if plain.GST != 0 || plain.Total != 849 {
		t.Errorf("Expected no GST on course path, got %+v", plain)
	}

	free := Quote(100, &models.Coupon{DiscountType: models.DiscountFlat, DiscountValue: 500}, DefaultGSTRate)
	if free.Total != 0 {
		t.Errorf("Expected zero total, got %+v", free)
	}
}

func TestValidateCoupon(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	courseA, courseB := 1, 2

	base := func() models.Coupon {
		return models.Coupon{Code: "X", DiscountType: models.DiscountFlat, DiscountValue: 10, IsActive: true}
	}

	tests := []struct {
		name     string
		mutate   func(c *models.Coupon)
		courseID *int
		price    float64
		wantKind errors.Kind
	}{
		{"valid", func(c *models.Coupon) {}, &courseA, 100, 0},
		{"inactive", func(c *models.Coupon) { c.IsActive = false }, &courseA, 100, errors.Invalid},
		{"expired", func(c *models.Coupon) { c.ExpiresAt = &past }, &courseA, 100, errors.Invalid},
		{"not yet expired", func(c *models.Coupon) { c.ExpiresAt = &future }, &courseA, 100, 0},
		{"usage exhausted", func(c *models.Coupon) { c.UsageLimit = 5; c.UsedCount = 5 }, &courseA, 100, errors.Invalid},
		{"below min price", func(c *models.Coupon) { c.MinPrice = 500 }, &courseA, 100, errors.Invalid},
		{"other course", func(c *models.Coupon) { c.CourseID = &courseB }, &courseA, 100, errors.Invalid},
		{"course coupon on pack", func(c *models.Coupon) { c.CourseID = &courseA }, nil, 100, errors.Invalid},
		{"matching course", func(c *models.Coupon) { c.CourseID = &courseA }, &courseA, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := ValidateCoupon(&c, tt.courseID, tt.price, now)
			if tt.wantKind == 0 {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if got := errors.KindOf(err); got != tt.wantKind {
				t.Errorf("Expected kind %v, got %v (%v)", tt.wantKind, got, err)
			}
		})
	}

	if errors.KindOf(ValidateCoupon(nil, nil, 1, now)) != errors.NotFound {
		t.Error("Expected NotFound for missing coupon")
	}
}

func TestValidateDefinition(t *testing.T) {
	ok := models.Coupon{Code: "new10", DiscountType: models.DiscountPercentage, DiscountValue: 10}
	if err := ValidateDefinition(&ok); err != nil {
		t.Fatalf("Expected valid coupon, got %v", err)
	}
	bad := ok
	bad.DiscountValue = 120
	if err := ValidateDefinition(&bad); err == nil {
		t.Error("Expected error for percentage above 100")
	}
	if NormalizeCode(" new10 ") != "NEW10" {
		t.Error("Expected normalized code NEW10")
	}
}
