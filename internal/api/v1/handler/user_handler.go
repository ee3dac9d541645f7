package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"pitchside/internal/api/v1/dto"
	"pitchside/internal/model"
	"pitchside/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type UserHandler struct {
	userService service.UserService
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewUserHandler(userService service.UserService, v *validator.Validate, logger zerolog.Logger) *UserHandler {
	return &UserHandler{userService: userService, validate: v, logger: logger.With().Str("handler", "user").Logger()}
}

// RegisterRoutes mounts v1 user routes
func (h *UserHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.With(authMw).Post("/users/me", h.createUser)
	r.With(authMw).Get("/users/me", h.getUser)
}

func (h *UserHandler) createUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.UserCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.userService.Create(r.Context(), &model.User{
		UserID:    userID,
		Name:      req.Name,
		Email:     req.Email,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create user")
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(created), h.logger)
}

func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	user, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to fetch user")
			http.Error(w, "Failed to fetch user", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(user), h.logger)
}

func toUserDTO(u *model.User) dto.UserResponseDTO {
	_, linked := u.BillingCustomer()
	return dto.UserResponseDTO{
		UserID:        u.UserID,
		Name:          u.Name,
		Email:         u.Email,
		AvatarURL:     u.AvatarURL,
		BillingLinked: linked,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}
