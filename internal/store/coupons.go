package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"ms-bookworks/internal/models"
)

func (d *DB) CreateCoupon(coupon *models.Coupon) error {
	coupon.Code = strings.ToLower(coupon.Code)
	_, err := d.Bun.NewInsert().Model(coupon).Exec(context.Background())
	return err
}

// GetCouponByCode resolves a coupon by case-insensitive exact match.
func (d *DB) GetCouponByCode(code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := d.Bun.NewSelect().
		Model(&coupon).
		Where("code = ?", strings.ToLower(code)).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}
