package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	ChiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Maycon01282/bot2/internal/api/middleware"
)

const indexText = "Bot está funcionando!"

func NewRouter(h *Handlers, maxBodyBytes int64, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(ChiMiddleware.RequestID)
	r.Use(ChiMiddleware.Logger)
	r.Use(ChiMiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(indexText))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BodyLimit(maxBodyBytes))

		r.Post("/webhook/telegram", h.ChatWebhook)
		r.Post("/webhook-telegram", h.ChatWebhook)
		r.Post("/webhook/mercadopago", h.PaymentWebhook)
		r.Post("/webhook", h.PaymentWebhook)
	})

	r.Handle("/metrics", promhttp.Handler())

	logger.Info("registered routes",
		"routes", []string{"POST /webhook/telegram", "POST /webhook/mercadopago", "GET /health", "GET /metrics"})

	return r
}
