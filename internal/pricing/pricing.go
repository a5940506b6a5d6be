package pricing

import (
	"fmt"
	"math"

	"ms-bookworks/internal/models"
)

// FinalPrice applies a coupon to the template price. A nil coupon returns
// the price unchanged. A misconfigured discount (fixed amount <= 0, percent
// outside (0,100]) is a hard error, never silently defaulted.
func FinalPrice(price float64, coupon *models.Coupon) (float64, error) {
	if coupon == nil {
		return round2(price), nil
	}

	switch coupon.DiscountType {
	case models.DiscountFixed:
		if coupon.Amount <= 0 {
			return 0, fmt.Errorf("coupon %s: fixed discount amount must be positive, got %.2f", coupon.Code, coupon.Amount)
		}
		return math.Max(0, round2(price-coupon.Amount)), nil

	case models.DiscountPercent:
		if coupon.Amount <= 0 || coupon.Amount > 100 {
			return 0, fmt.Errorf("coupon %s: percent discount must be in (0,100], got %.2f", coupon.Code, coupon.Amount)
		}
		return math.Max(0, round2(price*(1-coupon.Amount/100))), nil

	default:
		return 0, fmt.Errorf("coupon %s: unsupported discount type %q", coupon.Code, coupon.DiscountType)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
