package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"

	"ms-bookworks/internal/config"
	"ms-bookworks/internal/logger"
)

// StripePayment implements PaymentProvider against the Stripe API.
type StripePayment struct {
	webhookSecret string
	currency      string
	logger        *logger.Logger
}

func NewStripePayment(cfg config.PaymentConfig, log *logger.Logger) *StripePayment {
	stripe.Key = cfg.StripeSecretKey
	return &StripePayment{
		webhookSecret: cfg.StripeWebhookSecret,
		currency:      cfg.Currency,
		logger:        log,
	}
}

func (s *StripePayment) CreateCustomer(name, email string) (string, error) {
	params := &stripe.CustomerParams{
		Name:  stripe.String(name),
		Email: stripe.String(email),
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}
	return cust.ID, nil
}

func (s *StripePayment) CreateCharge(orderID string, amount float64, customerID string) (*PaymentIntent, error) {
	amountInCents := int64(amount * 100)

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountInCents),
		Currency: stripe.String(s.currency),
		Customer: stripe.String(customerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", orderID)

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	s.logger.LogProvider("stripe", orderID,
		fmt.Sprintf("created payment intent %s (%.2f %s)", intent.ID, amount, s.currency))
	return &PaymentIntent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// ParseWebhook verifies the signature and extracts the order outcome.
// Unhandled event types return (nil, nil).
func (s *StripePayment) ParseWebhook(r *http.Request) (*PaymentEvent, error) {
	if s.webhookSecret == "" {
		return nil, fmt.Errorf("stripe webhook secret is not configured")
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook payload: %w", err)
	}

	opts := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), s.webhookSecret, opts)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment intent: %w", err)
		}
		orderID, exists := intent.Metadata["order_id"]
		if !exists {
			return nil, fmt.Errorf("payment intent %s has no order_id in metadata", intent.ID)
		}
		return &PaymentEvent{
			OrderID:       orderID,
			TransactionID: intent.ID,
			Succeeded:     event.Type == "payment_intent.succeeded",
		}, nil
	default:
		s.logger.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
		return nil, nil
	}
}
