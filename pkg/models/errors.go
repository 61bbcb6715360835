package models

import "errors"

// Error kinds shared across the calibration packages. Callers match them
// with errors.Is; producers wrap them with context via fmt.Errorf("%w: ...").
var (
	// ErrIndexOutOfRange is returned for positional access past the end of a
	// map or for a parameter dimension outside [0, NumParameters()).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrMissingFactor is returned when the evaluator cannot find a factor
	// the scheme declares.
	ErrMissingFactor = errors.New("missing factor")

	// ErrParseFailure is returned when a scheme document is malformed or unreadable.
	ErrParseFailure = errors.New("parse failure")

	// ErrInvalidConfiguration is returned for optimizer or calibration options
	// that cannot produce a valid run.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNoActivation is returned when no rule fires for an input.
	ErrNoActivation = errors.New("no rule activated")

	// ErrNonFinite is returned for a NaN or infinite factor value or fitness.
	ErrNonFinite = errors.New("non-finite value")

	ErrRunNotFound  = errors.New("run not found")
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")

	ErrSchemeNotFound = errors.New("scheme not found")
)
