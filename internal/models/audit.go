package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AuditEntry records one status transition performed by a step runner.
type AuditEntry struct {
	bun.BaseModel `bun:"table:order_audit"`

	ID         int64       `bun:"id,pk,autoincrement" json:"id"`
	OrderID    string      `bun:"order_id,notnull" json:"order_id"`
	FromStatus OrderStatus `bun:"from_status,notnull" json:"from_status"`
	ToStatus   OrderStatus `bun:"to_status,notnull" json:"to_status"`
	Runner     string      `bun:"runner,notnull" json:"runner"`
	Message    string      `bun:"message" json:"message"`
	CreatedAt  time.Time   `bun:"created_at,notnull" json:"created_at"`
}
