package domain

import "time"

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// GenerationOptions are the caller-supplied hints passed to the model.
// MaxTitleLength is advisory; the model is instructed, not constrained.
type GenerationOptions struct {
	Language       string `json:"language"`
	Tone           string `json:"tone"`
	MaxTitleLength int    `json:"maxTitleLength"`
}

// Metadata is the structured result extracted from a model reply.
type Metadata struct {
	Title           string `json:"title"`
	MetaDescription string `json:"meta_description"`
}

// SeoRecord is the durable history entry for one completed job.
// Owned by the user that submitted it; anonymous jobs leave no record.
type SeoRecord struct {
	ID              string            `json:"id"`
	UserID          string            `json:"-"`
	Title           string            `json:"title"`
	MetaDescription string            `json:"meta_description"`
	PDFURL          string            `json:"pdf_url"`
	DocxURL         string            `json:"docx_url"`
	Options         GenerationOptions `json:"options"`
	CreatedAt       time.Time         `json:"created_at"`
}
