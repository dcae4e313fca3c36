// Package source defines the boundary between provider clients and the rest
// of the sync pipeline: provider identities, operations, the tagged raw
// payload and the client contract.
package source

import (
	"context"

	"github.com/okian/kata/internal/domain/model"
)

// ID identifies an external statistics provider.
type ID string

// Known providers.
const (
	Alfa  ID = "alfa"
	Stats ID = "stats"
)

// Op names a logical fetch.
type Op string

// Operations.
const (
	OpProfile     Op = "profile"
	OpSolved      Op = "solved"
	OpSubmissions Op = "submissions"
	OpCalendar    Op = "calendar"
	OpContest     Op = "contest"
	OpDaily       Op = "daily"
	OpProblems    Op = "problems"
)

// Raw is a provider-native response body tagged with where it came from.
// Normalization dispatches on Provider, never on the body's shape.
type Raw struct {
	Provider ID
	Op       Op
	// Subject is the username the request was made for, empty for
	// user-independent operations.
	Subject string
	Body    []byte
}

// Client fetches raw data from one provider.
type Client interface {
	ID() ID
	Profile(ctx context.Context, username string) (Raw, error)
	Solved(ctx context.Context, username string) (Raw, error)
	Submissions(ctx context.Context, username string, limit int) (Raw, error)
	Calendar(ctx context.Context, username string) (Raw, error)
	Contest(ctx context.Context, username string) (Raw, error)
	Daily(ctx context.Context) (Raw, error)
	Problems(ctx context.Context, q model.ProblemQuery) (Raw, error)
}
