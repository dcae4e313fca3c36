package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/kata/internal/adapters/ratelimit"
	"github.com/okian/kata/internal/adapters/repository"
	service "github.com/okian/kata/internal/app"
	"github.com/okian/kata/internal/app/failover"
	"github.com/okian/kata/internal/domain/model"
	"github.com/okian/kata/internal/domain/source"
	"github.com/okian/kata/pkg/logger"
)

// fixedNow is 2024-03-10 12:00 UTC.
var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type stubResponse struct {
	body string
	err  error
}

// stubClient answers each operation from a table. A missing entry is an
// unavailable provider.
type stubClient struct {
	id source.ID

	mu        sync.Mutex
	responses map[source.Op]stubResponse
	calls     map[source.Op]int
	queries   []model.ProblemQuery
	release   chan struct{}
}

func newStub(id source.ID) *stubClient {
	return &stubClient{
		id:        id,
		responses: make(map[source.Op]stubResponse),
		calls:     make(map[source.Op]int),
	}
}

func (c *stubClient) set(op source.Op, body string) *stubClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[op] = stubResponse{body: body}
	return c
}

func (c *stubClient) fail(op source.Op, kind error) *stubClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[op] = stubResponse{err: source.NewError(c.id, op, kind, nil)}
	return c
}

func (c *stubClient) callCount(op source.Op) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func (c *stubClient) respond(ctx context.Context, op source.Op, subject string) (source.Raw, error) {
	c.mu.Lock()
	c.calls[op]++
	resp, ok := c.responses[op]
	release := c.release
	c.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return source.Raw{}, ctx.Err()
		}
	}
	if !ok {
		return source.Raw{}, source.NewError(c.id, op, source.ErrUnavailable, nil)
	}
	if resp.err != nil {
		return source.Raw{}, resp.err
	}
	return source.Raw{Provider: c.id, Op: op, Subject: subject, Body: []byte(resp.body)}, nil
}

func (c *stubClient) ID() source.ID { return c.id }

func (c *stubClient) Profile(ctx context.Context, u string) (source.Raw, error) {
	return c.respond(ctx, source.OpProfile, u)
}

func (c *stubClient) Solved(ctx context.Context, u string) (source.Raw, error) {
	return c.respond(ctx, source.OpSolved, u)
}

func (c *stubClient) Submissions(ctx context.Context, u string, _ int) (source.Raw, error) {
	return c.respond(ctx, source.OpSubmissions, u)
}

func (c *stubClient) Calendar(ctx context.Context, u string) (source.Raw, error) {
	return c.respond(ctx, source.OpCalendar, u)
}

func (c *stubClient) Contest(ctx context.Context, u string) (source.Raw, error) {
	return c.respond(ctx, source.OpContest, u)
}

func (c *stubClient) Daily(ctx context.Context) (source.Raw, error) {
	return c.respond(ctx, source.OpDaily, "")
}

func (c *stubClient) Problems(ctx context.Context, q model.ProblemQuery) (source.Raw, error) {
	c.mu.Lock()
	c.queries = append(c.queries, q)
	c.mu.Unlock()
	return c.respond(ctx, source.OpProblems, "")
}

// calendarBody encodes activity on the given days before fixedNow the way
// alfa does, as a JSON object inside a string.
func calendarBody(daysAgo ...int) string {
	today := model.EpochDay(fixedNow)
	inner := "{"
	for i, d := range daysAgo {
		if i > 0 {
			inner += ","
		}
		sec := (today-int64(d))*model.SecondsPerDay + 3600
		inner += fmt.Sprintf(`\"%d\": 2`, sec)
	}
	inner += "}"
	return fmt.Sprintf(`{"submissionCalendar": "%s"}`, inner)
}

// healthyAlfa answers every user operation for alice.
func healthyAlfa() *stubClient {
	return newStub(source.Alfa).
		set(source.OpProfile, `{"username":"alice","name":"Alice","ranking":1500,"reputation":3}`).
		set(source.OpSolved, `{"solvedProblem":120,"easySolved":60,"mediumSolved":50,"hardSolved":10,
			"totalSubmissionNum":[{"difficulty":"All","submissions":300}],
			"acSubmissionNum":[{"difficulty":"All","submissions":180}]}`).
		set(source.OpSubmissions, `{"submission":[
			{"title":"A","titleSlug":"a","timestamp":"1710000000","statusDisplay":"Accepted","lang":"go"},
			{"title":"B","titleSlug":"b","timestamp":"1710050000","statusDisplay":"Wrong Answer","lang":"go"}]}`).
		set(source.OpCalendar, calendarBody(0, 1, 2, 5)).
		set(source.OpContest, `{"contestAttend":3,"contestRating":1580.2,"contestGlobalRanking":90000,
			"totalParticipants":400000,"contestTopPercentage":22.5}`).
		set(source.OpDaily, `{"date":"2024-03-10","questionTitle":"Two Sum","titleSlug":"two-sum","difficulty":"Easy"}`).
		set(source.OpProblems, `{"totalQuestions":2,"problemsetQuestionList":[
			{"questionFrontendId":"1","title":"Two Sum","titleSlug":"two-sum","difficulty":"Easy"},
			{"questionFrontendId":"2","title":"Add Two Numbers","titleSlug":"add-two-numbers","difficulty":"Medium"}]}`)
}

func newService(t *testing.T, clients []source.Client, opts ...service.Option) *service.Service {
	t.Helper()
	r, err := failover.New(ratelimit.New(0), clients)
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	opts = append([]service.Option{service.WithClock(func() time.Time { return fixedNow })}, opts...)
	svc, err := service.New(r, opts...)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc
}

// recordingLogger keeps error messages so tests can assert on them.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Info(context.Context, string, ...logger.Field)  {}
func (l *recordingLogger) Debug(context.Context, string, ...logger.Field) {}
func (l *recordingLogger) Warn(context.Context, string, ...logger.Field)  {}

func (l *recordingLogger) Error(_ context.Context, msg string, _ ...logger.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Named(string) logger.Logger        { return l }
func (l *recordingLogger) With(...logger.Field) logger.Logger { return l }

func (l *recordingLogger) logged(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.errors {
		if m == msg {
			return true
		}
	}
	return false
}

// brokenStore accepts reads but refuses every write.
type brokenStore struct{}

var errStoreDown = errors.New("store unavailable")

func (brokenStore) Save(context.Context, model.SyncResult) error   { return errStoreDown }
func (brokenStore) Fail(context.Context, repository.Failure) error { return errStoreDown }
func (brokenStore) Latest(context.Context, string) (model.SyncResult, error) {
	return model.SyncResult{}, repository.ErrNotFound
}
func (brokenStore) LastFailure(context.Context, string) (repository.Failure, bool) {
	return repository.Failure{}, false
}
func (brokenStore) Count(context.Context) int { return 0 }
