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

// PlayerHandler serves players and the guarded player mutations.
type PlayerHandler struct {
	players  service.PlayerService
	matches  service.MatchService
	media    service.MediaService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewPlayerHandler(
	players service.PlayerService,
	matches service.MatchService,
	media service.MediaService,
	v *validator.Validate,
	logger zerolog.Logger,
) *PlayerHandler {
	return &PlayerHandler{
		players:  players,
		matches:  matches,
		media:    media,
		validate: v,
		logger:   logger.With().Str("handler", "player").Logger(),
	}
}

func (h *PlayerHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Route("/players", func(r chi.Router) {
		r.Use(authMw)
		r.Post("/", h.createPlayer)
		r.Get("/", h.listPlayers)
		r.Post("/{playerId}/matches", h.createMatch)
		r.Post("/{playerId}/media/upload-url", h.createUploadURL)
	})
}

func (h *PlayerHandler) createPlayer(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req dto.PlayerCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.players.Create(r.Context(), userID, req.Name, req.BirthYear)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			http.Error(w, "create your profile first", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create player", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PlayerResponseDTO{ID: p.ID, Name: p.Name, BirthYear: p.BirthYear, CreatedAt: p.CreatedAt}, h.logger)
}

func (h *PlayerHandler) listPlayers(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	players, err := h.players.List(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list players")
		http.Error(w, "failed to list players", http.StatusInternalServerError)
		return
	}
	out := make([]dto.PlayerResponseDTO, 0, len(players))
	for _, p := range players {
		out = append(out, dto.PlayerResponseDTO{ID: p.ID, Name: p.Name, BirthYear: p.BirthYear, CreatedAt: p.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out, h.logger)
}

func (h *PlayerHandler) createMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req dto.MatchCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	m, err := h.matches.Create(r.Context(), userID, chi.URLParam(r, "playerId"), service.MatchInput{
		Opponent: req.Opponent,
		PlayedAt: req.PlayedAt,
		Goals:    req.Goals,
		Assists:  req.Assists,
		Notes:    req.Notes,
	})
	if err != nil {
		if errors.Is(err, service.ErrAccessDenied) {
			writeJSON(w, http.StatusForbidden, dto.AccessCheckResponseDTO{OK: false}, h.logger)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create match")
		http.Error(w, "failed to create match", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, dto.MatchResponseDTO{
		ID:        m.ID,
		PlayerID:  m.PlayerID,
		Opponent:  m.Opponent,
		PlayedAt:  m.PlayedAt,
		Goals:     m.Goals,
		Assists:   m.Assists,
		Notes:     m.Notes,
		CreatedAt: m.CreatedAt,
	}, h.logger)
}

func (h *PlayerHandler) createUploadURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req dto.MediaUploadRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	up, err := h.media.CreateUploadURL(r.Context(), userID, chi.URLParam(r, "playerId"), req.ContentType)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccessDenied):
			writeJSON(w, http.StatusForbidden, dto.AccessCheckResponseDTO{OK: false}, h.logger)
		case errors.Is(err, service.ErrUnsupportedMedia):
			http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		default:
			http.Error(w, "failed to create upload URL", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.MediaUploadResponseDTO{ObjectKey: up.ObjectKey, UploadURL: up.UploadURL, ExpiresAt: up.ExpiresAt}, h.logger)
}
