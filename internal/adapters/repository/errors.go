package repository

import "errors"

// Sentinel kinds for snapshot lookups.
var (
	ErrNotFound = errors.New("no sync snapshot for user")
)
