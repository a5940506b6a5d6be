package pipeline

import (
	"errors"
	"fmt"
	"time"

	"ms-bookworks/internal/models"
)

// RunDelivery hands each ready order to the delivery channel. The order only
// advances once the handoff succeeded, so a failed send is retried on the
// next invocation.
func (p *Pipeline) RunDelivery() RunResult {
	orders, err := p.DB.FindOrdersByStatus(models.StatusReadyForDelivery)
	if err != nil {
		return RunResult{Message: "deliver: query failed", Errors: []string{err.Error()}}
	}

	return p.runBatch("deliver", orders, func(order *models.Order) error {
		if order.DocumentURL == "" {
			return errors.New("order has no document url")
		}
		if err := p.Delivery.Deliver(order); err != nil {
			p.alert(order.OrderID, -1, "deliver", err.Error())
			return fmt.Errorf("delivery failed: %v", err)
		}
		return p.advance(order, models.StatusDelivered, "deliver", "book delivered to buyer")
	})
}

// RunSweep applies the time-based transitions: unpaid orders are canceled
// after the payment window lapses and delivered orders settle to completed
// after the grace period.
func (p *Pipeline) RunSweep() RunResult {
	now := time.Now()

	stale, err := p.DB.FindOrdersByStatusOlderThan(models.StatusAwaitingPayment, now.Add(-p.CancelAfter))
	if err != nil {
		return RunResult{Message: "sweep: query failed", Errors: []string{err.Error()}}
	}
	canceled := p.runBatch("sweep", stale, func(order *models.Order) error {
		return p.advance(order, models.StatusCanceled, "sweep",
			fmt.Sprintf("no payment within %s", p.CancelAfter))
	})

	settled, err := p.DB.FindOrdersByStatusOlderThan(models.StatusDelivered, now.Add(-p.CompleteAfter))
	if err != nil {
		canceled.Errors = append(canceled.Errors, err.Error())
		canceled.Message = "sweep: query failed"
		return canceled
	}
	completed := p.runBatch("sweep", settled, func(order *models.Order) error {
		return p.advance(order, models.StatusCompleted, "sweep",
			fmt.Sprintf("settled %s after delivery", p.CompleteAfter))
	})

	return RunResult{
		Message:   "sweep finished",
		Processed: canceled.Processed + completed.Processed,
		Total:     canceled.Total + completed.Total,
		Errors:    append(canceled.Errors, completed.Errors...),
	}
}
