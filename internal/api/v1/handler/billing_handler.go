package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"pitchside/internal/api/v1/dto"
	"pitchside/internal/billing"
	"pitchside/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// BillingHandler serves checkout creation, confirmation and the customer portal.
type BillingHandler struct {
	checkout service.CheckoutService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewBillingHandler(checkout service.CheckoutService, v *validator.Validate, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{checkout: checkout, validate: v, logger: logger.With().Str("handler", "billing").Logger()}
}

func (h *BillingHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.With(authMw).Post("/billing/checkout", h.Checkout)
	r.With(authMw).Post("/billing/confirm", h.Confirm)
	r.With(authMw).Post("/billing/portal", h.Portal)
}

// Checkout returns the hosted checkout URL for a plan.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req dto.CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	url, err := h.checkout.CreateCheckout(r.Context(), userID, req.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound), errors.Is(err, service.ErrPlanNotPurchasable):
			http.Error(w, "plan is not available", http.StatusBadRequest)
		case errors.Is(err, service.ErrUserNotFound):
			http.Error(w, "profile not found", http.StatusNotFound)
		case service.IsRetryable(err):
			http.Error(w, "try again", http.StatusServiceUnavailable)
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create checkout session")
			http.Error(w, "failed to create checkout session", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.RedirectResponseDTO{URL: url}, h.logger)
}

// Confirm reconciles the session the success page was redirected with.
func (h *BillingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	var req dto.ConfirmRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ConfirmResponseDTO{Message: "invalid request"}, h.logger)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ConfirmResponseDTO{Message: "invalid session id"}, h.logger)
		return
	}

	outcome, err := h.checkout.ConfirmSession(r.Context(), req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrNotFound):
			writeJSON(w, http.StatusNotFound, dto.ConfirmResponseDTO{Message: "session not found"}, h.logger)
		case service.IsRetryable(err):
			h.logger.Warn().Err(err).Str("session_id", req.SessionID).Msg("confirmation hit a transient failure")
			writeJSON(w, http.StatusServiceUnavailable, dto.ConfirmResponseDTO{Message: "try again"}, h.logger)
		default:
			h.logger.Error().Err(err).Str("session_id", req.SessionID).Msg("confirmation failed")
			writeJSON(w, http.StatusInternalServerError, dto.ConfirmResponseDTO{Message: "try again"}, h.logger)
		}
		return
	}

	switch outcome.Result {
	case service.ConfirmGranted:
		writeJSON(w, http.StatusOK, dto.ConfirmResponseDTO{OK: true, Status: "active"}, h.logger)
	case service.ConfirmPendingReview:
		writeJSON(w, http.StatusOK, dto.ConfirmResponseDTO{Message: "payment received, activation pending", Status: outcome.PaymentStatus}, h.logger)
	default:
		writeJSON(w, http.StatusOK, dto.ConfirmResponseDTO{Message: "payment not completed", Status: outcome.PaymentStatus}, h.logger)
	}
}

// Portal returns a customer portal URL.
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	url, err := h.checkout.CreatePortal(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoBillingCustomer):
			http.Error(w, "no billing account", http.StatusNotFound)
		case service.IsRetryable(err):
			http.Error(w, "try again", http.StatusServiceUnavailable)
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create portal session")
			http.Error(w, "failed to create portal session", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.RedirectResponseDTO{URL: url}, h.logger)
}
