package handler

import (
	"net/http"

	"pitchside/internal/api/v1/dto"
	"pitchside/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type PlanHandler struct {
	plans  service.PlanService
	logger zerolog.Logger
}

func NewPlanHandler(plans service.PlanService, logger zerolog.Logger) *PlanHandler {
	return &PlanHandler{plans: plans, logger: logger.With().Str("handler", "plan").Logger()}
}

// RegisterRoutes mounts the public plan catalog.
func (h *PlanHandler) RegisterRoutes(r chi.Router) {
	r.Get("/plans", h.list)
}

func (h *PlanHandler) list(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListPlans(r.Context())
	if err != nil {
		http.Error(w, "failed to list plans", http.StatusInternalServerError)
		return
	}
	out := make([]dto.PlanResponseDTO, 0, len(plans))
	for _, p := range plans {
		out = append(out, dto.PlanResponseDTO{
			ID:          p.ID,
			Name:        p.Name,
			Days:        p.Days,
			AmountCents: p.AmountCents,
			Currency:    p.Currency,
			Recurring:   p.Recurring,
		})
	}
	writeJSON(w, http.StatusOK, out, h.logger)
}
