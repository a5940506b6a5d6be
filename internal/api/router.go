package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the public order endpoints and the runner endpoints the
// external scheduler hits.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/orders", h.CreateOrder)
		r.Get("/orders/{orderId}", h.GetOrder)
		r.Post("/orders/{orderId}/payment", h.InitiatePayment)
		r.Post("/payments/webhook", h.PaymentWebhook)
		r.Post("/coupons/check", h.CheckCoupon)

		r.Route("/pipeline", func(r chi.Router) {
			r.Get("/thank-you", h.runnerHandler(h.Pipeline.RunThankYou))
			r.Get("/text", h.runnerHandler(h.Pipeline.RunTextGeneration))
			r.Get("/personalize/init", h.runnerHandler(h.Pipeline.RunPersonalizationInit))
			r.Get("/personalize/check", h.runnerHandler(h.Pipeline.RunPersonalizationCheck))
			r.Post("/personalize/callback", h.PersonalizationCallback)
			r.Get("/merge", h.runnerHandler(h.Pipeline.RunMerge))
			r.Get("/pdf", h.runnerHandler(h.Pipeline.RunPDF))
			r.Get("/deliver", h.runnerHandler(h.Pipeline.RunDelivery))
			r.Post("/deliver", h.runnerHandler(h.Pipeline.RunDelivery))
			r.Get("/sweep", h.runnerHandler(h.Pipeline.RunSweep))
		})
	})

	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.Logger.LogAPI(r.Method, r.URL.Path,
			fmt.Sprintf("%d", ww.Status()), time.Since(start).String())
	})
}
