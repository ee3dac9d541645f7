package dto

import "time"

type PlayerCreateDTO struct {
	Name      string `json:"name" validate:"required,min=1,max=100"`
	BirthYear *int   `json:"birth_year,omitempty" validate:"omitempty,min=1950,max=2100"`
}

type PlayerResponseDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BirthYear *int      `json:"birth_year,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type MatchCreateDTO struct {
	Opponent string    `json:"opponent" validate:"required,max=100"`
	PlayedAt time.Time `json:"played_at" validate:"required"`
	Goals    int       `json:"goals" validate:"min=0,max=99"`
	Assists  int       `json:"assists" validate:"min=0,max=99"`
	Notes    string    `json:"notes" validate:"max=2000"`
}

type MatchResponseDTO struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"player_id"`
	Opponent  string    `json:"opponent"`
	PlayedAt  time.Time `json:"played_at"`
	Goals     int       `json:"goals"`
	Assists   int       `json:"assists"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// MediaUploadRequestDTO asks for a presigned upload URL.
type MediaUploadRequestDTO struct {
	ContentType string `json:"content_type" validate:"required"`
}

type MediaUploadResponseDTO struct {
	ObjectKey string    `json:"object_key"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}
