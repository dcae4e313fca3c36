package provider

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/okian/kata/internal/domain/model"
	"github.com/okian/kata/internal/domain/source"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

// StatsClient talks to the single-document stats API. Profile, solved
// counts, submissions and calendar are all carved from GET /{user}; the
// document is reused for a short TTL so one sync costs one download.
// Concurrent requests for the same user share a single download.
type StatsClient struct {
	d   *doer
	ttl time.Duration
	now func() time.Time

	group singleflight.Group

	mu   sync.Mutex
	docs map[string]cachedDoc
}

type cachedDoc struct {
	body    []byte
	expires time.Time
}

// StatsRateLimitMarker is the message the stats API answers with when it
// throttles a caller.
const StatsRateLimitMarker = "Too many requests"

var _ source.Client = (*StatsClient)(nil)

// NewStats creates a stats client rooted at baseURL.
func NewStats(baseURL string, opts ...Option) (*StatsClient, error) {
	o := defaultOptions()
	o.markers = []string{StatsRateLimitMarker}
	for _, opt := range opts {
		opt(&o)
	}
	d, err := newDoer(source.Stats, baseURL, o)
	if err != nil {
		return nil, err
	}
	return &StatsClient{
		d:    d,
		ttl:  o.documentTTL,
		now:  time.Now,
		docs: make(map[string]cachedDoc),
	}, nil
}

// ID implements source.Client.
func (s *StatsClient) ID() source.ID { return source.Stats }

// Profile implements source.Client.
func (s *StatsClient) Profile(ctx context.Context, username string) (source.Raw, error) {
	return s.document(ctx, source.OpProfile, username)
}

// Solved implements source.Client.
func (s *StatsClient) Solved(ctx context.Context, username string) (source.Raw, error) {
	return s.document(ctx, source.OpSolved, username)
}

// Submissions implements source.Client. The document carries a fixed set of
// recent submissions; truncation happens during normalization.
func (s *StatsClient) Submissions(ctx context.Context, username string, _ int) (source.Raw, error) {
	return s.document(ctx, source.OpSubmissions, username)
}

// Calendar implements source.Client.
func (s *StatsClient) Calendar(ctx context.Context, username string) (source.Raw, error) {
	return s.document(ctx, source.OpCalendar, username)
}

// Supports reports which operations the single document can answer.
func (s *StatsClient) Supports(op source.Op) bool {
	switch op {
	case source.OpProfile, source.OpSolved, source.OpSubmissions, source.OpCalendar:
		return true
	default:
		return false
	}
}

// Contest is not offered by this provider.
func (s *StatsClient) Contest(context.Context, string) (source.Raw, error) {
	return source.Raw{}, source.NewError(source.Stats, source.OpContest, source.ErrUnsupported, nil)
}

// Daily is not offered by this provider.
func (s *StatsClient) Daily(context.Context) (source.Raw, error) {
	return source.Raw{}, source.NewError(source.Stats, source.OpDaily, source.ErrUnsupported, nil)
}

// Problems is not offered by this provider.
func (s *StatsClient) Problems(context.Context, model.ProblemQuery) (source.Raw, error) {
	return source.Raw{}, source.NewError(source.Stats, source.OpProblems, source.ErrUnsupported, nil)
}

func (s *StatsClient) document(ctx context.Context, op source.Op, username string) (source.Raw, error) {
	if err := ctx.Err(); err != nil {
		return source.Raw{}, err
	}
	if body, ok := s.cached(username); ok {
		return source.Raw{Provider: source.Stats, Op: op, Subject: username, Body: body}, nil
	}
	// The shared download outlives any single caller; the client timeout bounds it.
	ch := s.group.DoChan(username, func() (any, error) {
		return s.download(context.WithoutCancel(ctx), op, username)
	})
	select {
	case <-ctx.Done():
		return source.Raw{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return source.Raw{}, retag(r.Err, op)
		}
		return source.Raw{Provider: source.Stats, Op: op, Subject: username, Body: r.Val.([]byte)}, nil
	}
}

func (s *StatsClient) download(ctx context.Context, op source.Op, username string) ([]byte, error) {
	body, err := s.d.get(ctx, op, s.d.endpoint(nil, username))
	if err != nil {
		return nil, err
	}
	if err := statsBodyError(op, body); err != nil {
		return nil, err
	}
	s.store(username, body)
	return body, nil
}

// retag reports a shared download failure under the caller's operation.
func retag(err error, op source.Op) error {
	var se *source.Error
	if errors.As(err, &se) && se.Op != op {
		c := *se
		c.Op = op
		return &c
	}
	return err
}

func (s *StatsClient) cached(username string) ([]byte, bool) {
	if s.ttl <= 0 {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[username]
	if !ok {
		return nil, false
	}
	if !s.now().Before(doc.expires) {
		delete(s.docs, username)
		return nil, false
	}
	return doc.body, true
}

func (s *StatsClient) store(username string, body []byte) {
	if s.ttl <= 0 {
		return
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, doc := range s.docs {
		if !now.Before(doc.expires) {
			delete(s.docs, k)
		}
	}
	s.docs[username] = cachedDoc{body: body, expires: now.Add(s.ttl)}
}

// statsBodyError maps {"status":"error","message":...} envelopes.
func statsBodyError(op source.Op, body []byte) error {
	r := gjson.GetManyBytes(body, "status", "message")
	if !strings.EqualFold(r[0].String(), "error") {
		return nil
	}
	msg := r[1].String()
	if strings.Contains(strings.ToLower(msg), "does not exist") ||
		strings.Contains(strings.ToLower(msg), "not found") {
		return source.NewError(source.Stats, op, source.ErrNotFound, nil)
	}
	return source.NewError(source.Stats, op, source.ErrUnavailable, errors.New(msg))
}
