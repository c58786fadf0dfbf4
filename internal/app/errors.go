package app

import "errors"

// Validation and lookup errors surfaced to the HTTP layer.
var (
	ErrEmailAndPasswordRequired = errors.New("email and password are required")
	ErrInvalidEmail             = errors.New("invalid email address")
	ErrEmailAlreadyExists       = errors.New("email already registered")
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrUnknownSubject           = errors.New("unknown session subject")

	ErrSourceRequired   = errors.New("provide either a file or a url")
	ErrLanguageRequired = errors.New("language is required")
	ErrToneRequired     = errors.New("tone is required")
	ErrInvalidLength    = errors.New("length must be a positive number")
	ErrJobNotFound      = errors.New("job not found")
)
