package store

import (
	"time"

	"gorm.io/datatypes"
)

// UserModel is the GORM mapping for accounts.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SeoRecordModel is the GORM mapping for generation history entries.
type SeoRecordModel struct {
	ID              string `gorm:"primaryKey"`
	UserID          string `gorm:"not null;index"`
	Title           string `gorm:"not null"`
	MetaDescription string `gorm:"type:text;not null"`
	PDFURL          string
	DocxURL         string
	Options         datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt       time.Time      `gorm:"not null;index"`
}
