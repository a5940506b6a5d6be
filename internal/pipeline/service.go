package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ms-bookworks/internal/models"
	"ms-bookworks/internal/pricing"
	"ms-bookworks/internal/store"
)

// ValidationError is a buyer-facing request problem: rejected before any
// side effect, surfaced as a 4xx with a machine-readable code.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(code, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CreateOrder validates the request, resolves the most recently published
// template and the coupon, and persists a new order in status created.
func (p *Pipeline) CreateOrder(req models.OrderRequest) (*models.Order, error) {
	if err := validateOrderRequest(req); err != nil {
		return nil, err
	}

	tpl, err := p.DB.LatestTemplate()
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalid("not_found", "no book template is published")
	}
	if err != nil {
		return nil, err
	}

	var coupon *models.Coupon
	if req.CouponCode != "" {
		coupon, err = p.DB.GetCouponByCode(req.CouponCode)
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalid("coupon_invalid", "coupon %q does not exist", req.CouponCode)
		}
		if err != nil {
			return nil, err
		}
	}

	finalPrice, err := pricing.FinalPrice(tpl.Price, coupon)
	if err != nil {
		return nil, invalid("coupon_invalid", "%v", err)
	}

	order := &models.Order{
		OrderID:      uuid.NewString(),
		Status:       models.StatusCreated,
		ChildName:    strings.TrimSpace(req.ChildName),
		ChildAge:     req.ChildAge,
		Gender:       req.Gender,
		SkinTone:     req.SkinTone,
		FacePhotoRef: req.FacePhotoRef,
		BuyerName:    strings.TrimSpace(req.BuyerName),
		BuyerEmail:   strings.TrimSpace(req.BuyerEmail),
		BuyerPhone:   strings.TrimSpace(req.BuyerPhone),
		CouponCode:   strings.ToLower(req.CouponCode),
		BookPrice:    tpl.Price,
		FinalPrice:   finalPrice,
		TemplateID:   tpl.TemplateID,
	}

	if err := p.DB.CreateOrder(order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	p.Logger.LogOrder("create", order.OrderID,
		fmt.Sprintf("template %s, price %.2f -> %.2f", tpl.TemplateID, tpl.Price, finalPrice))
	return order, nil
}

func validateOrderRequest(req models.OrderRequest) error {
	if strings.TrimSpace(req.ChildName) == "" {
		return invalid("invalid_request", "child_name is required")
	}
	if req.ChildAge <= 0 || req.ChildAge > 17 {
		return invalid("invalid_request", "child_age must be between 1 and 17")
	}
	if req.Gender != models.GenderBoy && req.Gender != models.GenderGirl {
		return invalid("invalid_request", "gender must be %q or %q", models.GenderBoy, models.GenderGirl)
	}
	if req.SkinTone != models.SkinToneLight && req.SkinTone != models.SkinToneDark {
		return invalid("invalid_request", "skin_tone must be %q or %q", models.SkinToneLight, models.SkinToneDark)
	}
	if strings.TrimSpace(req.BuyerEmail) == "" {
		return invalid("invalid_request", "buyer_email is required")
	}
	return nil
}

// CheckCoupon previews the final price for a coupon against the current
// template price.
func (p *Pipeline) CheckCoupon(code string) (bookPrice, finalPrice float64, err error) {
	if strings.TrimSpace(code) == "" {
		return 0, 0, invalid("invalid_request", "coupon code is required")
	}

	tpl, err := p.DB.LatestTemplate()
	if errors.Is(err, store.ErrNotFound) {
		return 0, 0, invalid("not_found", "no book template is published")
	}
	if err != nil {
		return 0, 0, err
	}

	coupon, err := p.DB.GetCouponByCode(code)
	if errors.Is(err, store.ErrNotFound) {
		return 0, 0, invalid("coupon_invalid", "coupon %q does not exist", code)
	}
	if err != nil {
		return 0, 0, err
	}

	final, err := pricing.FinalPrice(tpl.Price, coupon)
	if err != nil {
		return 0, 0, invalid("coupon_invalid", "%v", err)
	}
	return tpl.Price, final, nil
}
