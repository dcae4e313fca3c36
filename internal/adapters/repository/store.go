// Package repository keeps the latest sync outcome per username in process
// memory, for callers that want a recent result without triggering a sync.
package repository

import (
	"context"
	"time"

	"github.com/okian/kata/internal/domain/model"
)

// Failure is the last failed sync of a username.
type Failure struct {
	Username string    `json:"username"`
	Kind     string    `json:"kind"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// Store provides read/write access to sync snapshots.
type Store interface {
	// Save records a successful sync and clears any earlier failure.
	Save(ctx context.Context, res model.SyncResult) error
	// Fail records a failed sync. The last good result is kept.
	Fail(ctx context.Context, f Failure) error
	// Latest returns the most recent successful sync or ErrNotFound.
	Latest(ctx context.Context, username string) (model.SyncResult, error)
	// LastFailure returns the failure recorded after the latest success.
	LastFailure(ctx context.Context, username string) (Failure, bool)
	// Count returns how many usernames have a successful snapshot.
	Count(ctx context.Context) int
}
