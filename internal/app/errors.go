package service

import "errors"

var (
	// ErrInvalidConfig is returned for a configuration change that would
	// leave the settings out of range. Nothing is applied.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStopped is returned when a message is enqueued while the service
	// is not running.
	ErrStopped = errors.New("service is not running")

	// ErrBackpressure is returned when the dispatch queue is full.
	ErrBackpressure = errors.New("dispatch queue is full")

	// ErrUnknownMessage is returned by Dispatch for a malformed message.
	ErrUnknownMessage = errors.New("unknown message")
)
