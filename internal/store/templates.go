package store

import (
	"context"
	"database/sql"
	"errors"

	"ms-bookworks/internal/models"
)

// CreateTemplate publishes a template together with its pages.
func (d *DB) CreateTemplate(tpl *models.BookTemplate) error {
	ctx := context.Background()
	_, err := d.Bun.NewInsert().Model(tpl).Exec(ctx)
	if err != nil {
		return err
	}
	for i := range tpl.Pages {
		tpl.Pages[i].TemplateID = tpl.TemplateID
		tpl.Pages[i].PageIndex = i
		if _, err := d.Bun.NewInsert().Model(&tpl.Pages[i]).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) GetTemplateByID(id string) (*models.BookTemplate, error) {
	var tpl models.BookTemplate
	err := d.Bun.NewSelect().
		Model(&tpl).
		Where("template_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var pages []models.TemplatePage
	err = d.Bun.NewSelect().
		Model(&pages).
		Where("template_id = ?", id).
		Order("page_index ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	tpl.Pages = pages
	return &tpl, nil
}

// LatestTemplate returns the most recently published template. Orders resolve
// their template exactly once, at creation.
func (d *DB) LatestTemplate() (*models.BookTemplate, error) {
	var tpl models.BookTemplate
	err := d.Bun.NewSelect().
		Model(&tpl).
		Order("published_at DESC").
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d.GetTemplateByID(tpl.TemplateID)
}
