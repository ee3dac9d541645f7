package handler

import (
	"errors"
	"io"
	"net/http"

	"pitchside/internal/billing"
	"pitchside/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const maxWebhookBody = 64 << 10

type WebhookHandler struct {
	webhooks service.WebhookService
	logger   zerolog.Logger
}

func NewWebhookHandler(webhooks service.WebhookService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, logger: logger.With().Str("handler", "webhook").Logger()}
}

// RegisterRoutes mounts the provider webhook. It is authenticated by its
// signature, not by a session.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/webhook", h.Receive)
}

// Receive answers 2xx only once the event is applied or known to be
// unprocessable, so the provider redelivers everything else.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to read webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return
	}

	err = h.webhooks.HandleEvent(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, billing.ErrInvalidSignature):
		http.Error(w, "signature verification failed", http.StatusBadRequest)
	default:
		http.Error(w, "processing failed", http.StatusInternalServerError)
	}
}
