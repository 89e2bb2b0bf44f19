// Package apperr defines the sentinel errors shared across cardsmith packages.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid input")

	// ErrBusy is returned when an export is requested while another one runs.
	ErrBusy = errors.New("export already in progress")
	// ErrCapture marks a card that could not be rasterized (e.g. a tainted source).
	ErrCapture = errors.New("capture failed")
	// ErrEncode marks a failure while quantizing or encoding the artifact.
	ErrEncode = errors.New("encode failed")
)
