package pipeline

import (
	"context"
	"errors"
	"fmt"

	"ms-bookworks/internal/models"
	"ms-bookworks/internal/store"
)

// RunTextGeneration creates the page rows for thanked orders and fills in
// personalized text. Pages that already carry text are never regenerated, so
// a partially failed pass resumes where it stopped.
func (p *Pipeline) RunTextGeneration() RunResult {
	orders, err := p.DB.FindOrdersByStatus(models.StatusThanked)
	if err != nil {
		return RunResult{Message: "generate-text: query failed", Errors: []string{err.Error()}}
	}

	return p.runBatch("generate-text", orders, func(order *models.Order) error {
		tpl, err := p.DB.GetTemplateByID(order.TemplateID)
		if errors.Is(err, store.ErrNotFound) {
			return p.failOrder(order, "generate-text", fmt.Sprintf("template %s does not exist", order.TemplateID))
		}
		if err != nil {
			return fmt.Errorf("template %s: %v", order.TemplateID, err)
		}
		if len(tpl.Pages) == 0 {
			return p.failOrder(order, "generate-text", fmt.Sprintf("template %s has no pages", tpl.TemplateID))
		}

		pages, err := p.ensurePages(order, tpl)
		if err != nil {
			return err
		}

		var failed []error
		for i := range pages {
			page := &pages[i]
			if page.Text != "" {
				continue
			}
			// A page without base text (cover, picture-only spread) stays textless.
			if tpl.Pages[page.PageIndex].BaseText(order.Gender) == "" {
				continue
			}

			prompt := buildTextPrompt(order, &tpl.Pages[page.PageIndex])
			text, err := p.TextGen.Generate(context.Background(), prompt)
			if err != nil {
				failed = append(failed, fmt.Errorf("page %d: %v", page.PageIndex, err))
				continue
			}

			page.Text = text
			if err := p.DB.SavePage(page); err != nil {
				failed = append(failed, fmt.Errorf("page %d: failed to persist text: %v", page.PageIndex, err))
			}
		}

		if len(failed) > 0 {
			// Stay in thanked; the next invocation retries the missing pages.
			return fmt.Errorf("%d of %d pages failed, first: %v", len(failed), len(pages), failed[0])
		}

		return p.advance(order, models.StatusAssetsText, "generate-text",
			fmt.Sprintf("generated text for %d pages", len(pages)))
	})
}

// ensurePages creates missing page rows so that len(pages) always equals the
// template's page count, index-aligned.
func (p *Pipeline) ensurePages(order *models.Order, tpl *models.BookTemplate) ([]models.GeneratedPage, error) {
	pages := order.Pages

	existing := make(map[int]bool, len(pages))
	for _, page := range pages {
		existing[page.PageIndex] = true
	}

	for i := range tpl.Pages {
		if existing[i] {
			continue
		}
		page := models.GeneratedPage{
			OrderID:             order.OrderID,
			PageIndex:           i,
			SkipPersonalization: tpl.Pages[i].SkipPersonalization,
		}
		if err := p.DB.CreatePage(&page); err != nil {
			return nil, fmt.Errorf("failed to create page %d: %v", i, err)
		}
	}

	pages, err := p.DB.GetPagesByOrder(order.OrderID)
	if err != nil {
		return nil, err
	}
	if len(pages) != len(tpl.Pages) {
		return nil, fmt.Errorf("order has %d pages, template %d", len(pages), len(tpl.Pages))
	}
	order.Pages = pages
	return pages, nil
}

func buildTextPrompt(order *models.Order, tplPage *models.TemplatePage) string {
	base := tplPage.BaseText(order.Gender)
	return fmt.Sprintf(
		"Rewrite the following page of a children's picture book for a %d-year-old %s named %s. "+
			"Keep the length similar, keep it warm and simple, and answer with the page text only.\n\n%s",
		order.ChildAge, order.Gender, order.ChildName, base)
}
