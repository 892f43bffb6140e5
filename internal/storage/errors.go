package storage

import "errors"

// Journal errors.
var (
	// ErrNotFound is returned when a requested attempt does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an attempt id is recorded twice.
	// Journal rows are write-once.
	ErrDuplicateKey = errors.New("duplicate key: journal rows are write-once")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
