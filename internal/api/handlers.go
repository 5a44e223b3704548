package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Maycon01282/bot2/internal/domain/event"
	"github.com/Maycon01282/bot2/internal/gateway"
	"github.com/Maycon01282/bot2/internal/router"
)

// Ack statuses returned in the JSON body of every webhook response.
const (
	AckOK         = "ok"
	AckDuplicate  = "duplicate"
	AckIgnored    = "ignored"
	AckUnroutable = "unroutable"
	AckRejected   = "rejected"
	AckError      = "error"
)

var webhookResponses = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relay_webhook_responses_total",
	Help: "Webhook responses by source and ack status",
}, []string{"source", "status"})

// Ingester turns raw callbacks into events.
type Ingester interface {
	IngestChatUpdate(body []byte, header http.Header) (*event.Event, error)
	IngestPaymentNotification(body []byte, header http.Header) (*event.Event, error)
}

// EventRouter hands an event to its handler at most once.
type EventRouter interface {
	Route(ctx context.Context, ev event.Event) (router.Outcome, error)
}

type Handlers struct {
	ingester Ingester
	router   EventRouter
	logger   *slog.Logger
}

func NewHandlers(ingester Ingester, r EventRouter, logger *slog.Logger) *Handlers {
	return &Handlers{
		ingester: ingester,
		router:   r,
		logger:   logger,
	}
}

type ack struct {
	Status string `json:"status"`
}

// ChatWebhook always answers 200 unless the secret token is wrong. Telegram
// redelivers non-2xx updates, and redelivering a bad or failed update does
// not help.
func (h *Handlers) ChatWebhook(w http.ResponseWriter, r *http.Request) {
	status, code := h.handle(r, event.SourceChat, h.ingester.IngestChatUpdate)
	if code != http.StatusUnauthorized {
		code = http.StatusOK
	}
	h.respond(w, event.SourceChat, code, status)
}

// PaymentWebhook answers 5xx on handler failure so the provider redelivers.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	status, code := h.handle(r, event.SourcePayment, h.ingester.IngestPaymentNotification)
	h.respond(w, event.SourcePayment, code, status)
}

func (h *Handlers) handle(r *http.Request, source event.Source, ingest func([]byte, http.Header) (*event.Event, error)) (string, int) {
	log := h.logger.With("source", source, "request_id", middleware.GetReqID(r.Context()))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Warn("failed to read webhook body", "error", err)
		return AckRejected, http.StatusBadRequest
	}

	ev, err := ingest(body, r.Header)
	switch {
	case errors.Is(err, gateway.ErrUnauthenticated):
		log.Warn("webhook rejected", "error", err)
		return AckRejected, http.StatusUnauthorized
	case errors.Is(err, gateway.ErrMalformedPayload):
		log.Warn("webhook rejected", "error", err)
		return AckRejected, http.StatusBadRequest
	case err != nil:
		log.Error("webhook ingestion failed", "error", err)
		return AckError, http.StatusInternalServerError
	case ev == nil:
		return AckIgnored, http.StatusOK
	}

	outcome, err := h.router.Route(r.Context(), *ev)
	switch outcome {
	case router.OutcomeCompleted:
		return AckOK, http.StatusOK
	case router.OutcomeDeduped:
		return AckDuplicate, http.StatusOK
	case router.OutcomeUnroutable:
		return AckUnroutable, http.StatusOK
	}
	if err == nil {
		err = errors.New("unknown outcome " + string(outcome))
	}
	log.Error("webhook processing failed", "event_id", ev.ID, "error", err)
	return AckError, http.StatusInternalServerError
}

func (h *Handlers) respond(w http.ResponseWriter, source event.Source, code int, status string) {
	webhookResponses.WithLabelValues(string(source), status).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ack{Status: status}); err != nil {
		h.logger.Warn("failed to write webhook ack", "error", err)
	}
}
