// Package apperr holds sentinel errors shared across service boundaries.
package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrAlreadyExists  = errors.New("already exists")
	ErrSyncInProgress = errors.New("sync already running for this project")
	ErrPathNotFound   = errors.New("project path does not exist on filesystem")
	ErrValidation     = errors.New("validation error")
)
