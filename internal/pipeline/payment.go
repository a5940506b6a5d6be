package pipeline

import (
	"errors"
	"fmt"
	"time"

	"ms-bookworks/internal/models"
	"ms-bookworks/internal/providers"
	"ms-bookworks/internal/store"
)

// InitiatePayment creates the charge for a single order and moves it to
// awaiting_payment. Re-invocation on an order already awaiting payment
// returns the stored intent reference without creating a second charge.
// The order's advisory lock is held throughout, the same lock every batch
// runner takes.
func (p *Pipeline) InitiatePayment(orderID string) (*providers.PaymentIntent, error) {
	var intent *providers.PaymentIntent

	processed, err := p.processLocked("payment-init", orderID, func(order *models.Order) error {
		if order.Status == models.StatusAwaitingPayment && order.TransactionID != "" {
			intent = &providers.PaymentIntent{ID: order.TransactionID}
			return nil
		}
		if order.Status != models.StatusCreated {
			return invalid("wrong_status", "order %s is %s, expected %s", orderID, order.Status, models.StatusCreated)
		}

		customerID, err := p.Payment.CreateCustomer(order.BuyerName, order.BuyerEmail)
		if err != nil {
			return fmt.Errorf("payment customer: %w", err)
		}

		created, err := p.Payment.CreateCharge(order.OrderID, order.FinalPrice, customerID)
		if err != nil {
			return fmt.Errorf("payment charge: %w", err)
		}

		order.TransactionID = created.ID
		if err := p.DB.UpdateOrder(order); err != nil {
			return fmt.Errorf("failed to store payment intent: %w", err)
		}

		if err := p.advance(order, models.StatusAwaitingPayment, "payment-init", "payment intent "+created.ID); err != nil {
			return err
		}
		intent = created
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalid("not_found", "order %s does not exist", orderID)
	}
	if err != nil {
		return nil, err
	}
	if !processed {
		return nil, invalid("locked", "order %s is being processed, retry shortly", orderID)
	}
	return intent, nil
}

// ConfirmPayment applies an inbound payment webhook. Events for orders
// already past awaiting_payment are acknowledged without reprocessing. A
// held lock errors out so the payment provider retries the webhook.
func (p *Pipeline) ConfirmPayment(event *providers.PaymentEvent) error {
	processed, err := p.processLocked("payment-confirm", event.OrderID, func(order *models.Order) error {
		if order.Status != models.StatusAwaitingPayment {
			p.Logger.LogOrder("payment-confirm", order.OrderID,
				fmt.Sprintf("webhook for order in status %s ignored", order.Status))
			return nil
		}

		if !event.Succeeded {
			p.alert(order.OrderID, -1, "payment", "payment failed, order held in awaiting_payment")
			return nil
		}

		order.TransactionID = event.TransactionID
		order.PaidAt = time.Now()
		if err := p.DB.UpdateOrder(order); err != nil {
			return fmt.Errorf("failed to store payment result: %w", err)
		}

		return p.advance(order, models.StatusPaid, "payment-confirm", "payment "+event.TransactionID+" confirmed")
	})
	if errors.Is(err, store.ErrNotFound) {
		return invalid("not_found", "order %s does not exist", event.OrderID)
	}
	if err != nil {
		return err
	}
	if !processed {
		return fmt.Errorf("order %s is locked by another pass, webhook must be retried", event.OrderID)
	}
	return nil
}

// RunThankYou sends the post-payment email for all paid orders.
func (p *Pipeline) RunThankYou() RunResult {
	orders, err := p.DB.FindOrdersByStatus(models.StatusPaid)
	if err != nil {
		return RunResult{Message: "thank-you: query failed", Errors: []string{err.Error()}}
	}

	return p.runBatch("thank-you", orders, func(order *models.Order) error {
		if order.BuyerEmail == "" {
			return fmt.Errorf("buyer email is missing")
		}

		subject := "Thank you for your order!"
		body := fmt.Sprintf(
			"Hi %s,\n\nThank you for ordering a personalized book for %s! "+
				"We are now creating the story and illustrations. "+
				"You will receive another email as soon as the book is ready.\n\n"+
				"Order reference: %s\nAmount paid: %.2f\n",
			order.BuyerName, order.ChildName, order.OrderID, order.FinalPrice)

		if err := p.Notifier.Send(order.BuyerEmail, subject, body); err != nil {
			return fmt.Errorf("thank-you email: %v", err)
		}

		return p.advance(order, models.StatusThanked, "thank-you", "thank-you email sent to "+order.BuyerEmail)
	})
}
