// Package apperr holds the sentinel errors shared across the service layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnknownTable  = errors.New("unknown table")
	ErrInvalidInput  = errors.New("invalid input")
)
