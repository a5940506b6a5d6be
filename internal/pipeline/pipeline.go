package pipeline

import (
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"ms-bookworks/internal/logger"
	"ms-bookworks/internal/models"
	"ms-bookworks/internal/providers"
)

// Store is the record-store surface the pipeline needs.
type Store interface {
	CreateOrder(order *models.Order) error
	GetOrderByID(id string) (*models.Order, error)
	UpdateOrder(order *models.Order) error
	UpdateOrderStatus(order *models.Order, from models.OrderStatus, runner, message string) error
	FindOrdersByStatus(status models.OrderStatus) ([]models.Order, error)
	FindOrdersByStatusAndFlag(status models.OrderStatus, initiated bool) ([]models.Order, error)
	FindOrdersByStatusOlderThan(status models.OrderStatus, cutoff time.Time) ([]models.Order, error)
	CreatePage(page *models.GeneratedPage) error
	SavePage(page *models.GeneratedPage) error
	GetPagesByOrder(orderID string) ([]models.GeneratedPage, error)
	GetAuditByOrder(orderID string) ([]models.AuditEntry, error)
	GetTemplateByID(id string) (*models.BookTemplate, error)
	LatestTemplate() (*models.BookTemplate, error)
	GetCouponByCode(code string) (*models.Coupon, error)
}

// Media is the blob-store surface for images and documents.
type Media interface {
	Save(ref string, data []byte) error
	Load(ref string) ([]byte, error)
	Exists(ref string) bool
	URL(ref string) string
}

// Locker guards one order against concurrent runner passes.
type Locker interface {
	AcquireOrder(orderID, owner string) (bool, error)
	ReleaseOrder(orderID, owner string) error
}

// Events streams pipeline transitions and operational alerts.
type Events interface {
	PublishStatusChanged(order *models.Order, from models.OrderStatus, runner string) error
	PublishOpsAlert(orderID string, pageIndex int, stage, message string) error
}

// Composer renders page text onto an illustration.
type Composer interface {
	Render(illustration image.Image, text, position, sizeClass string) (image.Image, error)
}

// Documents assembles final page images into one document.
type Documents interface {
	Assemble(orderID string, pageRefs []string) ([]byte, error)
}

// Deliverer sends the completed book to the buyer.
type Deliverer interface {
	Deliver(order *models.Order) error
}

// PipelineError locates a failure within one order's processing so the
// aggregate runner response can report it precisely. PageIndex is -1 when
// the failure is not scoped to a single page.
type PipelineError struct {
	OrderID   string
	PageIndex int
	Stage     string
	Err       error
}

func (e *PipelineError) Error() string {
	if e.PageIndex >= 0 {
		return fmt.Sprintf("order %s page %d [%s]: %v", e.OrderID, e.PageIndex, e.Stage, e.Err)
	}
	return fmt.Sprintf("order %s [%s]: %v", e.OrderID, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// RunResult is the aggregate response of one batch-runner invocation.
type RunResult struct {
	Message   string   `json:"message"`
	Processed int      `json:"processed"`
	Total     int      `json:"total"`
	Errors    []string `json:"errors"`
}

// Pipeline wires the step runners to their collaborators. Each Run* method
// is a stateless batch job: it queries orders in its precondition state and
// advances the ones that qualify.
type Pipeline struct {
	DB        Store
	Media     Media
	Lock      Locker
	Events    Events
	TextGen   providers.TextGenerator
	Face      providers.PersonalizationProvider
	Payment   providers.PaymentProvider
	Notifier  providers.Notifier
	Composer  Composer
	Assembler Documents
	Delivery  Deliverer
	Logger    *logger.Logger
	Client    *http.Client

	PollDelay     time.Duration
	CancelAfter   time.Duration
	CompleteAfter time.Duration
}

// runBatch applies perOrder to every order, isolating failures: one failing
// order never aborts the rest of the batch.
func (p *Pipeline) runBatch(runner string, orders []models.Order, perOrder func(order *models.Order) error) RunResult {
	result := RunResult{Total: len(orders), Errors: []string{}}

	for i := range orders {
		orderID := orders[i].OrderID

		processed, err := p.processLocked(runner, orderID, perOrder)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if processed {
			result.Processed++
		}
	}

	result.Message = fmt.Sprintf("%s: processed %d of %d", runner, result.Processed, result.Total)
	p.Logger.LogPipeline(runner, result.Message)
	return result
}

// processLocked runs perOrder under the order's advisory lock, catching
// panics so an unexpected failure is reported instead of killing the batch.
func (p *Pipeline) processLocked(runner, orderID string, perOrder func(order *models.Order) error) (processed bool, err error) {
	ok, lockErr := p.Lock.AcquireOrder(orderID, runner)
	if lockErr != nil {
		return false, &PipelineError{OrderID: orderID, PageIndex: -1, Stage: runner, Err: lockErr}
	}
	if !ok {
		p.Logger.Warn("PIPELINE", fmt.Sprintf("[%s] order %s is locked by another pass, skipping", runner, orderID))
		return false, nil
	}
	defer func() {
		if releaseErr := p.Lock.ReleaseOrder(orderID, runner); releaseErr != nil {
			p.Logger.Error("LOCK", fmt.Sprintf("failed to release order %s: %v", orderID, releaseErr))
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			processed = false
			err = &PipelineError{OrderID: orderID, PageIndex: -1, Stage: runner, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	// Re-fetch inside the lock so we work on current state and pages.
	order, err := p.DB.GetOrderByID(orderID)
	if err != nil {
		return false, &PipelineError{OrderID: orderID, PageIndex: -1, Stage: runner, Err: err}
	}

	if err := perOrder(order); err != nil {
		return false, &PipelineError{OrderID: orderID, PageIndex: -1, Stage: runner, Err: err}
	}
	return true, nil
}

// advance moves an order one step forward (or out a side exit), appending
// the audit entry and streaming the transition event.
func (p *Pipeline) advance(order *models.Order, to models.OrderStatus, runner, message string) error {
	from := order.Status
	if !models.CanTransition(from, to) {
		return fmt.Errorf("illegal transition %s -> %s", from, to)
	}

	order.Status = to
	if err := p.DB.UpdateOrderStatus(order, from, runner, message); err != nil {
		order.Status = from
		return fmt.Errorf("failed to persist transition %s -> %s: %w", from, to, err)
	}

	if p.Events != nil {
		if err := p.Events.PublishStatusChanged(order, from, runner); err != nil {
			p.Logger.Warn("KAFKA", fmt.Sprintf("status event for order %s not published: %v", order.OrderID, err))
		}
	}

	p.Logger.LogOrder(runner, order.OrderID, fmt.Sprintf("%s -> %s", from, to))
	return nil
}

// failOrder takes an order out the error side exit for failures no rerun can
// repair, such as a template that no longer exists. The reason lands in the
// audit trail, the ops topic and the aggregate response; a failed order is
// never requeried by any runner.
func (p *Pipeline) failOrder(order *models.Order, runner, reason string) error {
	p.alert(order.OrderID, -1, runner, reason)
	if err := p.advance(order, models.StatusError, runner, reason); err != nil {
		return err
	}
	return errors.New(reason)
}

// alert pushes an operational alert, falling back to the log when the event
// channel is unavailable.
func (p *Pipeline) alert(orderID string, pageIndex int, stage, message string) {
	if p.Events != nil {
		if err := p.Events.PublishOpsAlert(orderID, pageIndex, stage, message); err == nil {
			return
		}
	}
	p.Logger.Error("ALERT", fmt.Sprintf("order %s page %d [%s]: %s", orderID, pageIndex, stage, message))
}
