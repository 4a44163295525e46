package storage

import "errors"

// Storage errors.
var (
	// ErrStorage wraps every failure reported by the database.
	ErrStorage = errors.New("storage error")

	// ErrDuplicateKey is returned when a unique constraint outside the
	// expected conflict targets is violated.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidQuery is returned when read parameters cannot be turned into a query,
	// such as an unknown sort column or an inverted date range.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
