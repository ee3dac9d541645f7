package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"pitchside/internal/api/v1/dto"
	"pitchside/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type DLQHandler struct {
	service service.DLQService
	logger  zerolog.Logger
}

func NewDLQHandler(s service.DLQService, l zerolog.Logger) *DLQHandler {
	return &DLQHandler{service: s, logger: l.With().Str("handler", "dlq").Logger()}
}

// RegisterRoutes mounts the Pub/Sub push endpoint behind the OIDC middleware.
func (h *DLQHandler) RegisterRoutes(r chi.Router, pushAuthMw func(http.Handler) http.Handler) {
	r.With(pushAuthMw).Post("/dlq/record", h.RecordDLQ)
}

func (h *DLQHandler) RecordDLQ(w http.ResponseWriter, r *http.Request) {
	var req dto.PubSubPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid Pub/Sub push payload", http.StatusBadRequest)
		return
	}
	if req.Message.MessageID == "" {
		http.Error(w, "Invalid Pub/Sub message format: missing message ID", http.StatusBadRequest)
		return
	}

	log := h.logger.Info().
		Str("messageId", req.Message.MessageID).
		Str("subscription", req.Subscription).
		Str("event_type", req.Message.EventType())
	if req.DeliveryAttempt != nil {
		log = log.Int("delivery_attempt", *req.DeliveryAttempt)
	}
	log.Msg("Processing dead-letter queue message")

	err := h.service.ProcessAndSave(r.Context(), &req)
	if errors.Is(err, service.ErrInvalidDeadLetter) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		// Acked anyway: the message is already dead-lettered and redelivery would loop.
		h.logger.Error().Err(err).Str("messageId", req.Message.MessageID).Msg("Failed to save DLQ message to database")
	}
	w.WriteHeader(http.StatusNoContent)
}
