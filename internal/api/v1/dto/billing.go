package dto

// CheckoutRequestDTO starts a hosted checkout for a plan.
type CheckoutRequestDTO struct {
	PlanID string `json:"plan_id" validate:"required,max=64"`
}

type RedirectResponseDTO struct {
	URL string `json:"url"`
}

// ConfirmRequestDTO is sent by the success page with the session id the
// provider appended to the redirect.
type ConfirmRequestDTO struct {
	SessionID string `json:"session_id" validate:"required,startswith=cs_,max=255"`
}

// ConfirmResponseDTO reports the outcome of a confirmation. Status is
// "active" once access is granted, otherwise the provider payment status.
type ConfirmResponseDTO struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}

type PlanResponseDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Days        int    `json:"days"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Recurring   bool   `json:"recurring"`
}
