package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness conflict.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidSnapshot is returned when a persisted cart record fails validation.
	ErrInvalidSnapshot = errors.New("invalid cart snapshot")
	// ErrQuotaExceeded is returned by size-limited stores when a write does not fit.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrStorageUnavailable indicates a store could not be initialised.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrInvalidTransition is returned for disallowed negotiation status changes.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrEmptyCart is returned when checking out a cart without entries.
	ErrEmptyCart = errors.New("cart is empty")
)
