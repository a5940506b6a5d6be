package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-bookworks/internal/logger"
	"ms-bookworks/internal/models"
	"ms-bookworks/internal/pipeline"
	"ms-bookworks/internal/store"
)

type Handler struct {
	Pipeline *pipeline.Pipeline
	Logger   *logger.Logger
}

func NewHandler(p *pipeline.Pipeline, log *logger.Logger) *Handler {
	return &Handler{Pipeline: p, Logger: log}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	var verr *pipeline.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, http.StatusBadRequest, ValidationResponse(verr.Code, verr.Message))
		return
	}
	h.writeJSON(w, http.StatusInternalServerError, ErrorResponse(message, err.Error()))
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to decode request body: %v", err))
		h.writeJSON(w, http.StatusBadRequest, ValidationResponse("bad_json", "invalid request body: "+err.Error()))
		return
	}

	order, err := h.Pipeline.CreateOrder(req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: %v", err))
		h.writeError(w, "could not create order", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CreateOrder: order %s created", order.OrderID))
	h.writeJSON(w, http.StatusCreated, SuccessResponse("order created", order))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	order, err := h.Pipeline.DB.GetOrderByID(orderID)
	if errors.Is(err, store.ErrNotFound) {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse("order not found", orderID))
		return
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrder: %v", err))
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse("could not load order", err.Error()))
		return
	}

	history, err := h.Pipeline.DB.GetAuditByOrder(orderID)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("GetOrder: audit for order %s unavailable: %v", orderID, err))
	}

	h.writeJSON(w, http.StatusOK, SuccessResponse("order", map[string]interface{}{
		"order":   order,
		"history": history,
	}))
}

func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	intent, err := h.Pipeline.InitiatePayment(orderID)
	if errors.Is(err, store.ErrNotFound) {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse("order not found", orderID))
		return
	}
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("InitiatePayment: order %s: %v", orderID, err))
		h.writeError(w, "could not initiate payment", err)
		return
	}

	h.writeJSON(w, http.StatusOK, SuccessResponse("payment initiated", intent))
}

func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	event, err := h.Pipeline.Payment.ParseWebhook(r)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("PaymentWebhook: rejected: %v", err))
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse("invalid webhook", err.Error()))
		return
	}
	if event == nil {
		// Event type we do not act on; acknowledge so the provider stops retrying.
		h.writeJSON(w, http.StatusOK, SuccessResponse("ignored", nil))
		return
	}

	if err := h.Pipeline.ConfirmPayment(event); err != nil {
		h.Logger.Error("API", fmt.Sprintf("PaymentWebhook: order %s: %v", event.OrderID, err))
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse("could not apply payment event", err.Error()))
		return
	}

	h.writeJSON(w, http.StatusOK, SuccessResponse("payment event applied", nil))
}

func (h *Handler) CheckCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ValidationResponse("bad_json", "invalid request body: "+err.Error()))
		return
	}

	bookPrice, finalPrice, err := h.Pipeline.CheckCoupon(req.Code)
	if err != nil {
		h.writeError(w, "could not check coupon", err)
		return
	}

	h.writeJSON(w, http.StatusOK, SuccessResponse("coupon valid", map[string]float64{
		"book_price":  bookPrice,
		"final_price": finalPrice,
	}))
}

// runnerHandler exposes one batch step runner. The invocation always answers
// with the aggregate result; any per-order error turns the status into 500 so
// the external scheduler notices and fires its alert.
func (h *Handler) runnerHandler(run func() pipeline.RunResult) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := run()
		status := http.StatusOK
		if len(result.Errors) > 0 {
			status = http.StatusInternalServerError
		}
		h.writeJSON(w, status, result)
	}
}

func (h *Handler) PersonalizationCallback(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse("could not read callback body", err.Error()))
		return
	}

	result := h.Pipeline.HandlePersonalizationCallback(payload)
	status := http.StatusOK
	if len(result.Errors) > 0 {
		status = http.StatusInternalServerError
	}
	h.writeJSON(w, status, result)
}
