package pipeline

import (
	"fmt"

	"ms-bookworks/internal/models"
)

// RunPDF binds the composited pages of each merged order into one document
// and records where the buyer can fetch it.
func (p *Pipeline) RunPDF() RunResult {
	orders, err := p.DB.FindOrdersByStatus(models.StatusAssetsMerge)
	if err != nil {
		return RunResult{Message: "pdf: query failed", Errors: []string{err.Error()}}
	}

	return p.runBatch("pdf", orders, func(order *models.Order) error {
		refs := make([]string, 0, len(order.Pages))
		for i := range order.Pages {
			if order.Pages[i].FinalImageRef == "" {
				return fmt.Errorf("page %d has no composited image", order.Pages[i].PageIndex)
			}
			refs = append(refs, order.Pages[i].FinalImageRef)
		}
		if len(refs) == 0 {
			return fmt.Errorf("order has no pages")
		}

		doc, err := p.Assembler.Assemble(order.OrderID, refs)
		if err != nil {
			return fmt.Errorf("failed to assemble document: %v", err)
		}

		ref := fmt.Sprintf("orders/%s/book.pdf", order.OrderID)
		if err := p.Media.Save(ref, doc); err != nil {
			return fmt.Errorf("failed to store document: %v", err)
		}

		order.DocumentRef = ref
		order.DocumentURL = p.Media.URL(ref)
		if err := p.DB.UpdateOrder(order); err != nil {
			return fmt.Errorf("failed to record document ref: %v", err)
		}

		return p.advance(order, models.StatusReadyForDelivery, "pdf", fmt.Sprintf("document assembled, %d pages", len(refs)))
	})
}
