package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrUnauthenticated    = errors.New("unauthenticated")

	// ErrExpired marks a session or key past its window. Callers report it as absent.
	ErrExpired = errors.New("expired")

	// ErrSelfDeletion also matches ErrForbidden.
	ErrSelfDeletion = fmt.Errorf("%w: you cannot delete your own account", ErrForbidden)
)

// PublicMessage renders err as text that is safe to show to the caller.
// Unknown errors collapse into a generic message.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid email or password"
	case errors.Is(err, ErrSelfDeletion):
		return "you cannot delete your own account"
	case errors.Is(err, ErrForbidden):
		return "access denied"
	case errors.Is(err, ErrUnauthenticated):
		return "not authenticated"
	case errors.Is(err, ErrValidation):
		return detail(err, ErrValidation)
	case errors.Is(err, ErrNotFound):
		return detail(err, ErrNotFound)
	case errors.Is(err, ErrConflict):
		return detail(err, ErrConflict)
	default:
		return "internal error"
	}
}

// detail strips the sentinel prefix added by fmt.Errorf("%w: ...").
func detail(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}
