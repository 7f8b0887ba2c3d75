package service

import "errors"

var (
	// ErrValidation rejects bad input before anything is persisted.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound reports an id with no stored row behind it, including the
	// derived ids of in-memory projections.
	ErrNotFound = errors.New("not found")
)
