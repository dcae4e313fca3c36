package queue

import "errors"

// Sentinel kinds for enqueue failures.
var (
	ErrQueueFull   = errors.New("sync queue full")
	ErrQueueClosed = errors.New("sync queue closed")
)
