package store

import "seogen/pkg/domain"

// Store defines persistence operations for users and history records.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// history
	SaveRecord(domain.SeoRecord) error
	ListRecordsByUser(userID string) ([]domain.SeoRecord, error)
}

// SessionStore issues and resolves bearer tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	SubjectFromToken(token string) (string, error)
}
