package domain

import "errors"

var (
	// ErrInvalidArgument is returned when a required query parameter is missing or malformed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRetrieval wraps any failure of the property store.
	ErrRetrieval = errors.New("retrieval failure")
)
