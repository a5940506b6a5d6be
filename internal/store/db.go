package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-bookworks/internal/models"
)

var ErrNotFound = errors.New("record not found")

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

func (d *DB) CreateOrder(order *models.Order) error {
	now := time.Now()
	order.CreatedAt = now
	order.StatusChangedAt = now
	_, err := d.Bun.NewInsert().Model(order).Exec(context.Background())
	return err
}

func (d *DB) GetOrderByID(id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	pages, err := d.GetPagesByOrder(id)
	if err != nil {
		return nil, err
	}
	order.Pages = pages
	return &order, nil
}

// UpdateOrder persists mutable order fields. The status column is not
// touched here; transitions go through UpdateOrderStatus so that the audit
// trail and status_changed_at stay consistent.
func (d *DB) UpdateOrder(order *models.Order) error {
	order.UpdatedAt = time.Now()
	_, err := d.Bun.NewUpdate().
		Model(order).
		Column("child_name", "child_age", "gender", "skin_tone", "face_photo_ref",
			"buyer_name", "buyer_email", "buyer_phone",
			"coupon_code", "book_price", "final_price", "transaction_id", "paid_at",
			"personalization_initiated", "document_ref", "document_url", "updated_at").
		Where("order_id = ?", order.OrderID).
		Exec(context.Background())
	return err
}

// UpdateOrderStatus advances the order's status and appends an audit entry.
func (d *DB) UpdateOrderStatus(order *models.Order, from models.OrderStatus, runner, message string) error {
	now := time.Now()
	order.StatusChangedAt = now
	order.UpdatedAt = now

	return d.Bun.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewUpdate().
			Model(order).
			Column("status", "status_changed_at", "updated_at").
			Where("order_id = ?", order.OrderID).
			Exec(ctx)
		if err != nil {
			return err
		}

		entry := &models.AuditEntry{
			OrderID:    order.OrderID,
			FromStatus: from,
			ToStatus:   order.Status,
			Runner:     runner,
			Message:    message,
			CreatedAt:  now,
		}
		_, err = tx.NewInsert().Model(entry).Exec(ctx)
		return err
	})
}

// FindOrdersByStatus is the "work to do" query every step runner starts from.
func (d *DB) FindOrdersByStatus(status models.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("status = ?", status).
		Order("created_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *DB) FindOrdersByStatusAndFlag(status models.OrderStatus, initiated bool) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("status = ?", status).
		Where("personalization_initiated = ?", initiated).
		Order("created_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// FindOrdersByStatusOlderThan returns orders sitting in a status since before
// the cutoff. Used by the time-based sweep; only status_changed_at counts,
// unrelated edits must not re-arm the timer.
func (d *DB) FindOrdersByStatusOlderThan(status models.OrderStatus, cutoff time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("status = ?", status).
		Where("status_changed_at < ?", cutoff).
		Order("created_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ---------------- PAGES ----------------

func (d *DB) CreatePage(page *models.GeneratedPage) error {
	_, err := d.Bun.NewInsert().Model(page).Exec(context.Background())
	return err
}

func (d *DB) SavePage(page *models.GeneratedPage) error {
	_, err := d.Bun.NewUpdate().
		Model(page).
		Column("text", "task_handle", "illustration_ref", "skip_personalization",
			"final_image_ref", "failure_count").
		Where("order_id = ?", page.OrderID).
		Where("page_index = ?", page.PageIndex).
		Exec(context.Background())
	return err
}

func (d *DB) GetPagesByOrder(orderID string) ([]models.GeneratedPage, error) {
	var pages []models.GeneratedPage
	err := d.Bun.NewSelect().
		Model(&pages).
		Where("order_id = ?", orderID).
		Order("page_index ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// ---------------- AUDIT ----------------

func (d *DB) GetAuditByOrder(orderID string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return entries, nil
}
