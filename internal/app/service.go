// Package service aggregates provider data into comprehensive user syncs
// and runs background syncs for the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/kata/internal/adapters/mq/queue"
	"github.com/okian/kata/internal/adapters/mq/worker"
	"github.com/okian/kata/internal/adapters/repository"
	"github.com/okian/kata/internal/app/failover"
	"github.com/okian/kata/internal/domain/dedupe"
	"github.com/okian/kata/internal/domain/model"
	"github.com/okian/kata/internal/domain/normalize"
	"github.com/okian/kata/internal/domain/skill"
	"github.com/okian/kata/internal/domain/source"
	"github.com/okian/kata/internal/domain/streak"
	"github.com/okian/kata/pkg/logger"
	"github.com/okian/kata/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Defaults.
const (
	DefaultSubmissionLimit = 10
	DefaultProblemLimit    = 20
	MaxProblemLimit        = 100

	defaultQueueSize  = 1000
	defaultDedupeSize = 10000
	defaultJobTimeout = 2 * time.Minute
	maxUsernameLength = 64

	tracerName = "github.com/okian/kata/internal/app"
)

// Service answers verify, sync, daily and problem-list queries through the
// failover router, and owns the background sync pipeline.
type Service struct {
	mu sync.RWMutex

	router *failover.Router
	store  repository.Store

	// Background sync, built by Start.
	deduper dedupe.Deduper
	queue   queue.Queue
	pool    *worker.Pool

	submissionLimit int
	workerCount     int
	queueSize       int
	dedupeSize      int
	jobTimeout      time.Duration

	now     func() time.Time
	started bool
	logger  logger.Logger
	tracer  trace.Tracer
}

// New constructs a Service over router.
func New(router *failover.Router, opts ...Option) (*Service, error) {
	if router == nil {
		return nil, errors.New("service: router is required")
	}
	s := &Service{
		router:          router,
		submissionLimit: DefaultSubmissionLimit,
		workerCount:     runtime.NumCPU(),
		queueSize:       defaultQueueSize,
		dedupeSize:      defaultDedupeSize,
		jobTimeout:      defaultJobTimeout,
		now:             time.Now,
		logger:          logger.Nop(),
		tracer:          otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	return s, nil
}

// Start builds and starts the background sync workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s, &storeSink{store: s.store, log: s.logger},
		worker.WithReleaser(inFlight{s.deduper}),
		worker.WithLogger(s.logger),
		worker.WithJobTimeout(s.jobTimeout))
	// Workers outlive the request that started them; Stop ends them.
	s.pool.Start(context.WithoutCancel(ctx))
	s.started = true

	s.logger.Info(ctx, "sync service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Any("providers", s.router.Order()))
	return nil
}

// Stop drains queued syncs and stops the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false
	if err := s.pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop workers: %w", err)
	}
	s.logger.Info(ctx, "sync service stopped")
	return nil
}

func cleanUsername(username string) (string, error) {
	u := strings.TrimSpace(username)
	if u == "" || len(u) > maxUsernameLength || strings.ContainsAny(u, "/?#") {
		return "", fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	return u, nil
}

// VerifyUsername reports whether any provider knows username. It never
// fails: every error, not-found included, yields false.
func (s *Service) VerifyUsername(ctx context.Context, username string) bool {
	u, err := cleanUsername(username)
	if err != nil {
		return false
	}
	p, err := failover.Do(ctx, s.router, source.OpProfile,
		func(ctx context.Context, c source.Client) (source.Raw, error) { return c.Profile(ctx, u) },
		normalize.Profile)
	if err != nil {
		s.logger.Debug(ctx, "username verification failed",
			logger.String("username", u),
			logger.String("kind", source.KindOf(err)),
			logger.Error(err))
		return false
	}
	return p.Username != ""
}

// GetComprehensiveUserData fetches profile, solved counts, submissions and
// calendar concurrently. Any of those failing fails the sync with the
// underlying error. Contest history is best-effort: a failure leaves
// ContestInfo nil and marks the result degraded.
func (s *Service) GetComprehensiveUserData(ctx context.Context, username string) (model.SyncResult, error) {
	u, err := cleanUsername(username)
	if err != nil {
		return model.SyncResult{}, err
	}
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "sync.comprehensive", trace.WithAttributes(attribute.String("user.name", u)))
	defer span.End()

	res, err := s.sync(ctx, u)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, source.KindOf(err))
	case len(res.Degraded) > 0:
		outcome = "degraded"
	}
	metrics.RecordSync(outcome, s.now().Sub(start))
	if err != nil {
		s.logger.Warn(ctx, "sync failed",
			logger.String("username", u),
			logger.String("kind", source.KindOf(err)),
			logger.Error(err))
		return model.SyncResult{}, err
	}
	s.logger.Info(ctx, "sync finished",
		logger.String("username", u),
		logger.Int("streak", res.Streak),
		logger.String("skill", string(res.SkillLevel)),
		logger.Any("degraded", res.Degraded))
	return res, nil
}

func (s *Service) sync(ctx context.Context, u string) (model.SyncResult, error) {
	var (
		profile model.Profile
		solved  model.SolvedStats
		subs    []model.Submission
		cal     model.Calendar
	)
	limit := s.submissionLimit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		profile, err = failover.Do(gctx, s.router, source.OpProfile,
			func(ctx context.Context, c source.Client) (source.Raw, error) { return c.Profile(ctx, u) },
			normalize.Profile)
		return err
	})
	g.Go(func() (err error) {
		solved, err = failover.Do(gctx, s.router, source.OpSolved,
			func(ctx context.Context, c source.Client) (source.Raw, error) { return c.Solved(ctx, u) },
			normalize.Solved)
		return err
	})
	g.Go(func() (err error) {
		subs, err = failover.Do(gctx, s.router, source.OpSubmissions,
			func(ctx context.Context, c source.Client) (source.Raw, error) { return c.Submissions(ctx, u, limit) },
			func(raw source.Raw) ([]model.Submission, error) { return normalize.Submissions(raw, limit) })
		return err
	})
	g.Go(func() (err error) {
		cal, err = failover.Do(gctx, s.router, source.OpCalendar,
			func(ctx context.Context, c source.Client) (source.Raw, error) { return c.Calendar(ctx, u) },
			normalize.Calendar)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.SyncResult{}, err
	}

	res := model.SyncResult{
		ID:          uuid.New(),
		Username:    profile.Username,
		Profile:     profile,
		SolvedStats: solved,
		Submissions: subs,
		Calendar:    cal,
	}

	contest, err := failover.Do(ctx, s.router, source.OpContest,
		func(ctx context.Context, c source.Client) (source.Raw, error) { return c.Contest(ctx, u) },
		normalize.Contest)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.SyncResult{}, ctxErr
		}
		res.Degraded = append(res.Degraded, model.FragmentContest)
		metrics.RecordDegraded(model.FragmentContest)
		s.logger.Warn(ctx, "contest fetch failed, continuing without it",
			logger.String("username", u),
			logger.String("kind", source.KindOf(err)),
			logger.Error(err))
	}
	res.ContestInfo = contest

	if !solved.Consistent() {
		metrics.RecordStatsMismatch()
		s.logger.Warn(ctx, "solved total disagrees with per-difficulty counts",
			logger.String("username", u),
			logger.Int("total", solved.TotalSolved),
			logger.Int("easy", solved.EasySolved),
			logger.Int("medium", solved.MediumSolved),
			logger.Int("hard", solved.HardSolved))
	}

	now := s.now()
	res.Streak = streak.Compute(cal, streak.Today(now))
	res.SkillLevel = skill.Classify(solved)
	res.FetchedAt = now.UTC()
	metrics.RecordSkillLevel(string(res.SkillLevel))
	return res, nil
}

// GetDailyProblem returns today's featured problem.
func (s *Service) GetDailyProblem(ctx context.Context) (model.DailyProblem, error) {
	return failover.Do(ctx, s.router, source.OpDaily,
		func(ctx context.Context, c source.Client) (source.Raw, error) { return c.Daily(ctx) },
		normalize.Daily)
}

// GetProblems returns one page of the problem list. The limit defaults to
// DefaultProblemLimit and is capped at MaxProblemLimit.
func (s *Service) GetProblems(ctx context.Context, q model.ProblemQuery) (model.ProblemPage, error) {
	q = ClampProblemQuery(q)
	return failover.Do(ctx, s.router, source.OpProblems,
		func(ctx context.Context, c source.Client) (source.Raw, error) { return c.Problems(ctx, q) },
		normalize.Problems)
}

// ClampProblemQuery applies the problem-list defaults and bounds.
func ClampProblemQuery(q model.ProblemQuery) model.ProblemQuery {
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultProblemLimit
	case q.Limit > MaxProblemLimit:
		q.Limit = MaxProblemLimit
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	q.Difficulty = strings.ToLower(strings.TrimSpace(q.Difficulty))
	tags := q.Tags[:0:0]
	for _, t := range q.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	q.Tags = tags
	return q
}

// EnqueueSync schedules a background sync. duplicate is true when the
// username already has a sync queued or running; accepted is false when
// the queue refused the job.
func (s *Service) EnqueueSync(ctx context.Context, username string) (accepted, duplicate bool, err error) {
	u, err := cleanUsername(username)
	if err != nil {
		return false, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return false, false, ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, syncKey(u)) {
		metrics.RecordSyncJobDuplicate()
		return false, true, nil
	}
	if err := s.queue.Enqueue(ctx, queue.NewJob(u)); err != nil {
		// Never queued, so release it for the next request.
		s.deduper.Unrecord(ctx, syncKey(u))
		s.logger.Warn(ctx, "sync not queued", logger.String("username", u), logger.Error(err))
		if errors.Is(err, queue.ErrQueueFull) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, false, nil
}

// LatestSync returns the most recent background sync of username, or
// repository.ErrNotFound.
func (s *Service) LatestSync(ctx context.Context, username string) (model.SyncResult, error) {
	u, err := cleanUsername(username)
	if err != nil {
		return model.SyncResult{}, err
	}
	return s.store.Latest(ctx, u)
}

// LastSyncFailure returns the failure recorded after the latest successful
// background sync of username.
func (s *Service) LastSyncFailure(ctx context.Context, username string) (repository.Failure, bool) {
	u, err := cleanUsername(username)
	if err != nil {
		return repository.Failure{}, false
	}
	return s.store.LastFailure(ctx, u)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	providers := make([]string, 0, len(s.router.Order()))
	for _, id := range s.router.Order() {
		providers = append(providers, string(id))
	}
	stats := map[string]any{
		"started":         s.started,
		"providers":       providers,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"submissionLimit": s.submissionLimit,
		"snapshots":       s.store.Count(ctx),
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["inFlight"] = s.deduper.Size()
	}
	return stats
}

// syncKey identifies a user in the in-flight set. Usernames are matched
// case-insensitively, like the snapshot store.
func syncKey(username string) string {
	return strings.ToLower(username)
}

// inFlight releases finished jobs from the in-flight set under their sync key.
type inFlight struct {
	d dedupe.Deduper
}

func (f inFlight) Unrecord(ctx context.Context, username string) {
	f.d.Unrecord(ctx, syncKey(username))
}

// storeSink writes background sync outcomes to the snapshot store.
type storeSink struct {
	store repository.Store
	log   logger.Logger
}

func (k *storeSink) Succeeded(ctx context.Context, job queue.Job, res model.SyncResult) {
	if err := k.store.Save(ctx, res); err != nil {
		k.log.Error(ctx, "saving sync snapshot failed",
			logger.String("job_id", job.ID.String()),
			logger.String("username", job.Username),
			logger.Error(err))
	}
}

func (k *storeSink) Failed(ctx context.Context, job queue.Job, err error) {
	f := repository.Failure{
		Username: job.Username,
		Kind:     source.KindOf(err),
		Message:  err.Error(),
	}
	if serr := k.store.Fail(ctx, f); serr != nil {
		k.log.Error(ctx, "recording sync failure failed",
			logger.String("job_id", job.ID.String()),
			logger.String("username", job.Username),
			logger.String("kind", f.Kind),
			logger.Error(serr))
	}
}
