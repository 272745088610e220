package service

import "errors"

// Terminal, user-visible outcomes. Nothing here is retried; storage-level
// transient failures propagate untranslated to the caller.
var (
	// ErrInvalidCredentials covers wrong email, wrong password and bad or
	// expired tokens alike, so responses never reveal which check failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated is the refresh-path analogue: unknown, expired and
	// superseded refresh tokens are indistinguishable to the caller.
	ErrUnauthenticated = errors.New("unauthenticated")

	ErrConflict  = errors.New("already exists")
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("insufficient permissions")
)
