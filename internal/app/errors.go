package app

import "errors"

// ErrUnhandledEvent and related errors describe controller failures.
var (
	ErrUnhandledEvent  = errors.New("unhandled event")
	ErrNilCollaborator = errors.New("model and view are required")
	ErrNilRepository   = errors.New("repository is required")
)
