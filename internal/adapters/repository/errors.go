package repository

import "errors"

// Sentinel kinds for history errors.
var (
	ErrEmpty           = errors.New("no death records")
	ErrInvalidCapacity = errors.New("invalid history capacity")
)
