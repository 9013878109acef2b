package weather

import "errors"

var (
	// ErrValidation is returned for bad or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a referenced id or city does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a location for the same city and country already exists.
	ErrConflict = errors.New("already exists")
	// ErrUpstream is returned when the provider call failed or returned unusable data.
	ErrUpstream = errors.New("weather provider error")
	// ErrInvalidCoordinates is returned for latitude/longitude outside the valid range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrInvalidDate is returned for historical timestamps outside the supported range.
	ErrInvalidDate = errors.New("invalid date")
)
