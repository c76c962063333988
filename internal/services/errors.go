package services

import (
	"errors"

	"github.com/worldview-app/apiserver/internal/store"
)

var (
	// ErrValidation is returned when a required input is empty.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password. Both cases return this same error.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrNotFound = store.ErrNotFound
	ErrConflict = store.ErrConflict
)
