package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-bookworks/internal/models"
)

// Migrate creates the schema if it does not exist yet.
func Migrate(db *bun.DB) error {
	ctx := context.Background()

	tables := []interface{}{
		(*models.Order)(nil),
		(*models.GeneratedPage)(nil),
		(*models.BookTemplate)(nil),
		(*models.TemplatePage)(nil),
		(*models.Coupon)(nil),
		(*models.AuditEntry)(nil),
	}

	for _, model := range tables {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		if err != nil {
			return fmt.Errorf("create table for %T failed: %w", model, err)
		}
	}
	return nil
}
