package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("invalid request")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrMaxEditsReached     = errors.New("maximum edits reached")
	ErrSourceNotReady      = errors.New("source job is not ready")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrDuplicateOperation  = errors.New("duplicate operation")
)
