package pipeline

import (
	"errors"
	"fmt"

	"ms-bookworks/internal/compose"
	"ms-bookworks/internal/models"
	"ms-bookworks/internal/store"
)

// RunMerge composites each page's personalized text onto its illustration.
// Pages already carrying a final image are skipped, so a rerun after a
// partial failure only redoes the missing pages.
func (p *Pipeline) RunMerge() RunResult {
	orders, err := p.DB.FindOrdersByStatus(models.StatusAssetsIllustration)
	if err != nil {
		return RunResult{Message: "merge: query failed", Errors: []string{err.Error()}}
	}

	return p.runBatch("merge", orders, func(order *models.Order) error {
		tpl, err := p.DB.GetTemplateByID(order.TemplateID)
		if errors.Is(err, store.ErrNotFound) {
			return p.failOrder(order, "merge", fmt.Sprintf("template %s does not exist", order.TemplateID))
		}
		if err != nil {
			return fmt.Errorf("template %s: %v", order.TemplateID, err)
		}
		if len(order.Pages) != len(tpl.Pages) {
			return p.failOrder(order, "merge",
				fmt.Sprintf("order has %d pages, template %d", len(order.Pages), len(tpl.Pages)))
		}

		var failures []error
		for i := range order.Pages {
			page := &order.Pages[i]
			if page.FinalImageRef != "" {
				continue
			}
			if err := p.mergePage(order, &tpl.Pages[page.PageIndex], page); err != nil {
				page.FailureCount++
				_ = p.DB.SavePage(page)
				p.alert(order.OrderID, page.PageIndex, "merge", err.Error())
				failures = append(failures, fmt.Errorf("page %d: %v", page.PageIndex, err))
			}
		}
		if len(failures) > 0 {
			return fmt.Errorf("%d of %d pages failed to merge, first: %v", len(failures), len(order.Pages), failures[0])
		}

		return p.advance(order, models.StatusAssetsMerge, "merge", "all pages composited")
	})
}

func (p *Pipeline) mergePage(order *models.Order, tplPage *models.TemplatePage, page *models.GeneratedPage) error {
	if page.IllustrationRef == "" {
		return errors.New("page has no illustration")
	}

	data, err := p.Media.Load(page.IllustrationRef)
	if err != nil {
		return fmt.Errorf("failed to load illustration %s: %v", page.IllustrationRef, err)
	}
	img, err := compose.DecodeImage(data)
	if err != nil {
		return fmt.Errorf("failed to decode illustration %s: %v", page.IllustrationRef, err)
	}

	merged := img
	if page.Text != "" {
		merged, err = p.Composer.Render(img, page.Text, tplPage.TextPosition, tplPage.FontSize)
		if err != nil {
			return fmt.Errorf("failed to render text: %v", err)
		}
	}

	out, err := compose.EncodePNG(merged)
	if err != nil {
		return fmt.Errorf("failed to encode page: %v", err)
	}

	ref := fmt.Sprintf("orders/%s/pages/page_%02d.png", order.OrderID, page.PageIndex)
	if err := p.Media.Save(ref, out); err != nil {
		return fmt.Errorf("failed to store page: %v", err)
	}

	page.FinalImageRef = ref
	if err := p.DB.SavePage(page); err != nil {
		return fmt.Errorf("failed to link page: %v", err)
	}
	p.Logger.LogCompose(order.OrderID, page.PageIndex, "composited")
	return nil
}
