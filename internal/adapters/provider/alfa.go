package provider

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/okian/kata/internal/domain/model"
	"github.com/okian/kata/internal/domain/source"
	"github.com/tidwall/gjson"
)

// AlfaRateLimitMarker is the body alfa serves with HTTP 200 when throttled.
const AlfaRateLimitMarker = "Too many request from this IP"

// Alfa talks to the multi-endpoint alfa API.
type Alfa struct {
	d *doer
}

var _ source.Client = (*Alfa)(nil)

// NewAlfa creates an alfa client rooted at baseURL.
func NewAlfa(baseURL string, opts ...Option) (*Alfa, error) {
	o := defaultOptions()
	o.markers = []string{AlfaRateLimitMarker}
	for _, opt := range opts {
		opt(&o)
	}
	d, err := newDoer(source.Alfa, baseURL, o)
	if err != nil {
		return nil, err
	}
	return &Alfa{d: d}, nil
}

// ID implements source.Client.
func (a *Alfa) ID() source.ID { return source.Alfa }

// Profile implements source.Client.
func (a *Alfa) Profile(ctx context.Context, username string) (source.Raw, error) {
	return a.user(ctx, source.OpProfile, username, nil)
}

// Solved implements source.Client.
func (a *Alfa) Solved(ctx context.Context, username string) (source.Raw, error) {
	return a.user(ctx, source.OpSolved, username, nil, "solved")
}

// Submissions implements source.Client.
func (a *Alfa) Submissions(ctx context.Context, username string, limit int) (source.Raw, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return a.user(ctx, source.OpSubmissions, username, q, "submission")
}

// Calendar implements source.Client.
func (a *Alfa) Calendar(ctx context.Context, username string) (source.Raw, error) {
	return a.user(ctx, source.OpCalendar, username, nil, "calendar")
}

// Contest implements source.Client.
func (a *Alfa) Contest(ctx context.Context, username string) (source.Raw, error) {
	return a.user(ctx, source.OpContest, username, nil, "contest")
}

// Daily implements source.Client.
func (a *Alfa) Daily(ctx context.Context) (source.Raw, error) {
	body, err := a.d.get(ctx, source.OpDaily, a.d.endpoint(nil, "daily"))
	if err != nil {
		return source.Raw{}, err
	}
	return source.Raw{Provider: source.Alfa, Op: source.OpDaily, Body: body}, nil
}

// Problems implements source.Client. Tags are joined with '+' and the
// difficulty is sent upper-cased, as alfa expects.
func (a *Alfa) Problems(ctx context.Context, pq model.ProblemQuery) (source.Raw, error) {
	q := url.Values{}
	if pq.Limit > 0 {
		q.Set("limit", strconv.Itoa(pq.Limit))
	}
	if pq.Skip > 0 {
		q.Set("skip", strconv.Itoa(pq.Skip))
	}
	if len(pq.Tags) > 0 {
		q.Set("tags", strings.Join(pq.Tags, "+"))
	}
	if pq.Difficulty != "" {
		q.Set("difficulty", strings.ToUpper(pq.Difficulty))
	}
	body, err := a.d.get(ctx, source.OpProblems, a.d.endpoint(q, "problems"))
	if err != nil {
		return source.Raw{}, err
	}
	return source.Raw{Provider: source.Alfa, Op: source.OpProblems, Body: body}, nil
}

func (a *Alfa) user(ctx context.Context, op source.Op, username string, q url.Values, suffix ...string) (source.Raw, error) {
	segments := append([]string{username}, suffix...)
	body, err := a.d.get(ctx, op, a.d.endpoint(q, segments...))
	if err != nil {
		return source.Raw{}, err
	}
	if err := alfaBodyError(op, body); err != nil {
		return source.Raw{}, err
	}
	return source.Raw{Provider: source.Alfa, Op: op, Subject: username, Body: body}, nil
}

// alfaBodyError inspects the GraphQL-style errors array alfa forwards on 200.
func alfaBodyError(op source.Op, body []byte) error {
	msgs := gjson.GetBytes(body, "errors.#.message")
	if !msgs.Exists() || len(msgs.Array()) == 0 {
		return nil
	}
	for _, m := range msgs.Array() {
		if strings.Contains(strings.ToLower(m.String()), "does not exist") {
			return source.NewError(source.Alfa, op, source.ErrNotFound, nil)
		}
	}
	parts := make([]string, 0, len(msgs.Array()))
	for _, m := range msgs.Array() {
		parts = append(parts, m.String())
	}
	return source.NewError(source.Alfa, op, source.ErrMalformedResponse, errors.New(strings.Join(parts, "; ")))
}
