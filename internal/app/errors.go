package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrNotStarted      = errors.New("service not started")
)
