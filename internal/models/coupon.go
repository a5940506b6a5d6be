package models

import (
	"github.com/uptrace/bun"
)

type DiscountType string

const (
	DiscountFixed   DiscountType = "fixed"
	DiscountPercent DiscountType = "percent"
)

// Coupon codes are matched case-insensitively; Code is stored lowercase.
type Coupon struct {
	bun.BaseModel `bun:"table:coupons"`

	Code         string       `bun:"code,pk" json:"code"`
	DiscountType DiscountType `bun:"discount_type,notnull" json:"discount_type"`
	Amount       float64      `bun:"amount,notnull" json:"amount"`
}
