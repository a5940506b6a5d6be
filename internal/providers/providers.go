package providers

import (
	"context"
	"net/http"
)

// TaskState is the provider-reported state of an outstanding
// personalization task.
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskCompleted TaskState = "COMPLETED"
	TaskFailed    TaskState = "FAILED"
)

// TextGenerator produces personalized page text from a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PersonalizationProvider blends a buyer-submitted face photo into a base
// illustration. Two interchangeable strategies exist: a polling backend and
// a callback backend; the pipeline is provider-agnostic.
type PersonalizationProvider interface {
	Name() string
	// Submit dispatches a personalization request and returns an opaque
	// task handle.
	Submit(ctx context.Context, faceURL, illustrationURL string) (string, error)
	// PollStatus queries the state of an outstanding task. resultURL is
	// set only on TaskCompleted.
	PollStatus(ctx context.Context, handle string) (TaskState, string, error)
	// HandleCallback parses an inbound completion payload into its task
	// handle and result URL.
	HandleCallback(payload []byte) (handle string, resultURL string, err error)
}

// PaymentIntent is the charge created for an order.
type PaymentIntent struct {
	ID           string
	ClientSecret string
}

// PaymentEvent is a parsed payment webhook.
type PaymentEvent struct {
	OrderID       string
	TransactionID string
	Succeeded     bool
}

// PaymentProvider fronts the payment gateway.
type PaymentProvider interface {
	CreateCustomer(name, email string) (string, error)
	CreateCharge(orderID string, amount float64, customerID string) (*PaymentIntent, error)
	ParseWebhook(r *http.Request) (*PaymentEvent, error)
}

// Notifier delivers buyer-facing messages.
type Notifier interface {
	Send(to, subject, body string) error
}
