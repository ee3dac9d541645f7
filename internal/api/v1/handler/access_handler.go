package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"pitchside/internal/api/v1/dto"
	"pitchside/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type AccessHandler struct {
	access   service.AccessService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewAccessHandler(access service.AccessService, v *validator.Validate, logger zerolog.Logger) *AccessHandler {
	return &AccessHandler{access: access, validate: v, logger: logger.With().Str("handler", "access").Logger()}
}

func (h *AccessHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.With(authMw).Post("/access/check", h.Check)
	r.With(authMw).Get("/access/status", h.Status)
	r.With(authMw).Post("/access-codes/redeem", h.Redeem)
}

// Check answers {ok} for the given player. Anything unexpected is a denial.
func (h *AccessHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req dto.AccessCheckRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, dto.AccessCheckResponseDTO{OK: false}, h.logger)
		return
	}
	allowed := h.access.CanAccessPlayer(r.Context(), userID, req.PlayerID)
	writeJSON(w, http.StatusOK, dto.AccessCheckResponseDTO{OK: allowed}, h.logger)
}

func (h *AccessHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	st, err := h.access.Status(r.Context(), userID, r.URL.Query().Get("playerId"))
	if err != nil {
		if errors.Is(err, service.ErrPlayerNotFound) {
			http.Error(w, "player not found", http.StatusNotFound)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to read access status")
		http.Error(w, "failed to read access status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.AccessStatusResponseDTO{
		PlayerID:     st.PlayerID,
		State:        string(st.State),
		AccessEndsAt: st.AccessEndsAt,
	}, h.logger)
}

func (h *AccessHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req dto.RedeemCodeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	grant, err := h.access.RedeemCode(r.Context(), userID, req.PlayerID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlayerNotFound):
			http.Error(w, "player not found", http.StatusNotFound)
		case errors.Is(err, service.ErrCodeInvalid):
			http.Error(w, "code is invalid or expired", http.StatusBadRequest)
		case errors.Is(err, service.ErrCodeAlreadyRedeemed):
			http.Error(w, "code already redeemed", http.StatusConflict)
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to redeem access code")
			http.Error(w, "failed to redeem code", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.GrantResponseDTO{
		ID:       grant.ID,
		PlayerID: grant.PlayerID,
		PlanID:   grant.PlanID,
		Source:   grant.Source,
		StartsAt: grant.StartsAt,
		EndsAt:   grant.EndsAt,
	}, h.logger)
}
