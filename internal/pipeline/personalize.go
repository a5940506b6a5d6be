package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"ms-bookworks/internal/models"
	"ms-bookworks/internal/providers"
	"ms-bookworks/internal/store"
)

// RunPersonalizationInit dispatches face-personalization requests for orders
// whose text is ready and whose requests have not been sent yet. Pages with
// the skip flag copy the matching base illustration instead; no provider
// call is made for them.
func (p *Pipeline) RunPersonalizationInit() RunResult {
	orders, err := p.DB.FindOrdersByStatusAndFlag(models.StatusAssetsText, false)
	if err != nil {
		return RunResult{Message: "personalize-init: query failed", Errors: []string{err.Error()}}
	}

	return p.runBatch("personalize-init", orders, func(order *models.Order) error {
		tpl, err := p.DB.GetTemplateByID(order.TemplateID)
		if errors.Is(err, store.ErrNotFound) {
			return p.failOrder(order, "personalize-init", fmt.Sprintf("template %s does not exist", order.TemplateID))
		}
		if err != nil {
			return fmt.Errorf("template %s: %v", order.TemplateID, err)
		}
		if len(order.Pages) != len(tpl.Pages) {
			return p.failOrder(order, "personalize-init",
				fmt.Sprintf("order has %d pages, template %d", len(order.Pages), len(tpl.Pages)))
		}

		var failed []error
		for i := range order.Pages {
			page := &order.Pages[i]
			if err := p.dispatchPage(order, tpl, page); err != nil {
				failed = append(failed, fmt.Errorf("page %d: %v", page.PageIndex, err))
			}
		}

		if len(failed) > 0 {
			return fmt.Errorf("%d of %d pages failed to dispatch, first: %v", len(failed), len(order.Pages), failed[0])
		}

		order.PersonalizationInitiated = true
		if err := p.DB.UpdateOrder(order); err != nil {
			return fmt.Errorf("failed to set personalization flag: %v", err)
		}
		p.Logger.LogOrder("personalize-init", order.OrderID, "all pages dispatched or skipped")
		return nil
	})
}

// dispatchPage ensures a page either owns a task handle or, for skip pages,
// already carries its illustration. Pages that already have a result or an
// outstanding handle are left alone.
func (p *Pipeline) dispatchPage(order *models.Order, tpl *models.BookTemplate, page *models.GeneratedPage) error {
	if page.IllustrationRef != "" || page.TaskHandle != "" {
		return nil
	}

	base := tpl.Pages[page.PageIndex].BaseIllustration(order.Gender, order.SkinTone)
	if base == "" {
		p.alert(order.OrderID, page.PageIndex, "personalize",
			fmt.Sprintf("no base illustration for (%s, %s)", order.Gender, order.SkinTone))
		return fmt.Errorf("no base illustration for (%s, %s)", order.Gender, order.SkinTone)
	}

	if page.SkipPersonalization {
		page.IllustrationRef = base
		return p.DB.SavePage(page)
	}

	if order.FacePhotoRef == "" {
		return fmt.Errorf("order has no face photo")
	}

	handle, err := p.Face.Submit(context.Background(), p.Media.URL(order.FacePhotoRef), p.Media.URL(base))
	if err != nil {
		page.FailureCount++
		_ = p.DB.SavePage(page)
		p.alert(order.OrderID, page.PageIndex, "personalize", fmt.Sprintf("submit failed: %v", err))
		return err
	}

	page.TaskHandle = handle
	if err := p.DB.SavePage(page); err != nil {
		return fmt.Errorf("failed to store task handle %s: %v", handle, err)
	}
	p.Logger.LogProvider(p.Face.Name(), order.OrderID,
		fmt.Sprintf("page %d dispatched, handle %s", page.PageIndex, handle))
	return nil
}

// RunPersonalizationCheck reconciles outstanding tasks by polling. A fixed
// delay between consecutive status checks respects the provider rate limit.
// When every page carries its illustration, the order advances.
func (p *Pipeline) RunPersonalizationCheck() RunResult {
	orders, err := p.DB.FindOrdersByStatusAndFlag(models.StatusAssetsText, true)
	if err != nil {
		return RunResult{Message: "personalize-check: query failed", Errors: []string{err.Error()}}
	}

	return p.runBatch("personalize-check", orders, func(order *models.Order) error {
		tpl, err := p.DB.GetTemplateByID(order.TemplateID)
		if errors.Is(err, store.ErrNotFound) {
			return p.failOrder(order, "personalize-check", fmt.Sprintf("template %s does not exist", order.TemplateID))
		}
		if err != nil {
			return fmt.Errorf("template %s: %v", order.TemplateID, err)
		}

		var failures []error
		polled := false
		for i := range order.Pages {
			page := &order.Pages[i]
			if page.IllustrationRef != "" {
				continue
			}

			// A page whose task failed earlier has no handle; resubmit it.
			if page.TaskHandle == "" {
				if err := p.dispatchPage(order, tpl, page); err != nil {
					failures = append(failures, fmt.Errorf("page %d: %v", page.PageIndex, err))
				}
				continue
			}

			if polled && p.PollDelay > 0 {
				time.Sleep(p.PollDelay)
			}
			polled = true

			state, resultURL, err := p.Face.PollStatus(context.Background(), page.TaskHandle)
			if err != nil {
				failures = append(failures, fmt.Errorf("page %d: %v", page.PageIndex, err))
				continue
			}

			switch state {
			case providers.TaskCompleted:
				if err := p.storeResult(order, page, resultURL); err != nil {
					failures = append(failures, fmt.Errorf("page %d: %v", page.PageIndex, err))
				}
			case providers.TaskFailed:
				page.FailureCount++
				page.TaskHandle = ""
				_ = p.DB.SavePage(page)
				p.alert(order.OrderID, page.PageIndex, "personalize", "provider reported task failure")
				failures = append(failures, fmt.Errorf("page %d: task failed", page.PageIndex))
			default:
				// Still pending; the next invocation checks again.
			}
		}

		if len(failures) > 0 {
			return fmt.Errorf("%d pages not resolved, first: %v", len(failures), failures[0])
		}
		if !allPagesIllustrated(order.Pages) {
			p.Logger.LogOrder("personalize-check", order.OrderID, "pages still pending")
			return nil
		}

		return p.advance(order, models.StatusAssetsIllustration, "personalize-check", "all pages personalized")
	})
}

// HandlePersonalizationCallback applies a pushed completion payload. The
// task handle is resolved by scanning orders with outstanding requests; a
// handle that already has a result is acknowledged without a second
// download or write.
func (p *Pipeline) HandlePersonalizationCallback(payload []byte) RunResult {
	handle, resultURL, cbErr := p.Face.HandleCallback(payload)
	if handle == "" {
		return RunResult{Message: "personalize-callback: rejected", Errors: []string{cbErr.Error()}}
	}

	orders, err := p.DB.FindOrdersByStatusAndFlag(models.StatusAssetsText, true)
	if err != nil {
		return RunResult{Message: "personalize-callback: query failed", Errors: []string{err.Error()}}
	}

	for i := range orders {
		pages, err := p.DB.GetPagesByOrder(orders[i].OrderID)
		if err != nil {
			return RunResult{Message: "personalize-callback: query failed", Total: 1, Errors: []string{err.Error()}}
		}

		for j := range pages {
			if pages[j].TaskHandle != handle {
				continue
			}
			return p.applyCallback(orders[i].OrderID, &pages[j], resultURL, cbErr)
		}
	}

	p.Logger.Warn("PIPELINE", fmt.Sprintf("[personalize-callback] no outstanding page for handle %s", handle))
	return RunResult{Message: "personalize-callback: unknown task handle", Total: 1, Errors: []string{}}
}

func (p *Pipeline) applyCallback(orderID string, page *models.GeneratedPage, resultURL string, cbErr error) RunResult {
	result := RunResult{Total: 1, Errors: []string{}}

	processed, err := p.processLocked("personalize-callback", orderID, func(order *models.Order) error {
		current := &order.Pages[page.PageIndex]
		if current.IllustrationRef != "" {
			p.Logger.LogOrder("personalize-callback", orderID,
				fmt.Sprintf("page %d already has result, ignoring duplicate callback", page.PageIndex))
			return nil
		}

		if cbErr != nil {
			current.FailureCount++
			current.TaskHandle = ""
			_ = p.DB.SavePage(current)
			p.alert(orderID, page.PageIndex, "personalize", cbErr.Error())
			return cbErr
		}

		if err := p.storeResult(order, current, resultURL); err != nil {
			return fmt.Errorf("page %d: %v", page.PageIndex, err)
		}

		// Last pending page: advance directly instead of waiting for the
		// next poll cycle.
		if allPagesIllustrated(order.Pages) {
			return p.advance(order, models.StatusAssetsIllustration, "personalize-callback", "all pages personalized")
		}
		return nil
	})
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Message = "personalize-callback: failed"
		return result
	}
	if processed {
		result.Processed = 1
	}
	result.Message = "personalize-callback: applied"
	return result
}

// storeResult downloads the personalization artifact and links it to the
// page. A persistence failure after the artifact exists remotely is flagged
// for manual remediation.
func (p *Pipeline) storeResult(order *models.Order, page *models.GeneratedPage, resultURL string) error {
	data, err := p.download(resultURL)
	if err != nil {
		return err
	}

	ref := fmt.Sprintf("orders/%s/illustrations/page_%02d%s", order.OrderID, page.PageIndex, artifactExt(resultURL))
	if err := p.Media.Save(ref, data); err != nil {
		p.alert(order.OrderID, page.PageIndex, "personalize",
			fmt.Sprintf("artifact fetched from %s but not persisted, manual remediation needed: %v", resultURL, err))
		return fmt.Errorf("failed to store artifact: %v", err)
	}

	page.IllustrationRef = ref
	page.TaskHandle = ""
	if err := p.DB.SavePage(page); err != nil {
		p.alert(order.OrderID, page.PageIndex, "personalize",
			fmt.Sprintf("artifact stored at %s but not linked, manual remediation needed: %v", ref, err))
		return fmt.Errorf("failed to link artifact: %v", err)
	}
	return nil
}

func (p *Pipeline) download(url string) ([]byte, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s returned status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", url, err)
	}
	return data, nil
}

func artifactExt(url string) string {
	ext := strings.ToLower(path.Ext(strings.SplitN(url, "?", 2)[0]))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
		return ext
	default:
		return ".png"
	}
}

func allPagesIllustrated(pages []models.GeneratedPage) bool {
	for i := range pages {
		if pages[i].IllustrationRef == "" {
			return false
		}
	}
	return len(pages) > 0
}
