package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	service "github.com/okian/kata/internal/app"
	"github.com/okian/kata/internal/domain/model"
	"github.com/okian/kata/internal/domain/source"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService_New(t *testing.T) {
	Convey("Given no router", t, func() {
		svc, err := service.New(nil)

		Convey("Then construction fails", func() {
			So(err, ShouldNotBeNil)
			So(svc, ShouldBeNil)
		})
	})

	Convey("Given a service with custom options", t, func() {
		svc := newService(t, []source.Client{healthyAlfa()},
			service.WithWorkerCount(3),
			service.WithQueueSize(50),
			service.WithDedupeSize(25),
			service.WithSubmissionLimit(1),
		)

		Convey("Then the stats reflect them", func() {
			stats := svc.GetStats(context.Background())
			So(stats["started"], ShouldEqual, false)
			So(stats["workerCount"], ShouldEqual, 3)
			So(stats["queueSize"], ShouldEqual, 50)
			So(stats["submissionLimit"], ShouldEqual, 1)
			So(stats["providers"], ShouldResemble, []string{"alfa"})
		})
	})
}

func TestService_GetComprehensiveUserData(t *testing.T) {
	ctx := context.Background()

	Convey("Given healthy providers", t, func() {
		svc := newService(t, []source.Client{healthyAlfa(), newStub(source.Stats)})

		Convey("When syncing a user", func() {
			res, err := svc.GetComprehensiveUserData(ctx, "  alice ")

			Convey("Then every fragment is assembled and derived values computed", func() {
				So(err, ShouldBeNil)
				So(res.ID, ShouldNotEqual, uuid.Nil)
				So(res.Username, ShouldEqual, "alice")
				So(res.Profile.DisplayName, ShouldEqual, "Alice")
				So(res.SolvedStats.TotalSolved, ShouldEqual, 120)
				So(len(res.Submissions), ShouldEqual, 2)
				So(res.Submissions[0].Slug, ShouldEqual, "b")
				So(res.Calendar.ActiveDays(), ShouldEqual, 4)
				So(res.Streak, ShouldEqual, 3)
				So(res.SkillLevel, ShouldEqual, model.SkillIntermediate)
				So(res.ContestInfo, ShouldNotBeNil)
				So(res.ContestInfo.Attended, ShouldEqual, 3)
				So(res.Degraded, ShouldBeEmpty)
				So(res.FetchedAt, ShouldEqual, fixedNow)
			})
		})

		Convey("When the submission limit is one", func() {
			svc := newService(t, []source.Client{healthyAlfa()}, service.WithSubmissionLimit(1))
			res, err := svc.GetComprehensiveUserData(ctx, "alice")

			Convey("Then only the most recent submission is kept", func() {
				So(err, ShouldBeNil)
				So(len(res.Submissions), ShouldEqual, 1)
				So(res.Submissions[0].Slug, ShouldEqual, "b")
			})
		})
	})

	Convey("Given contest history that cannot be fetched", t, func() {
		alfa := healthyAlfa().fail(source.OpContest, source.ErrUnavailable)
		svc := newService(t, []source.Client{alfa, newStub(source.Stats).fail(source.OpContest, source.ErrUnsupported)})

		res, err := svc.GetComprehensiveUserData(ctx, "alice")

		Convey("Then the sync succeeds without it and is marked degraded", func() {
			So(err, ShouldBeNil)
			So(res.ContestInfo, ShouldBeNil)
			So(res.Degraded, ShouldResemble, []string{model.FragmentContest})
			So(res.IsDegraded(model.FragmentContest), ShouldBeTrue)
			So(res.Streak, ShouldEqual, 3)
		})
	})

	Convey("Given a user who never competed", t, func() {
		alfa := healthyAlfa().set(source.OpContest, `{"contestParticipation":[]}`)
		svc := newService(t, []source.Client{alfa})

		res, err := svc.GetComprehensiveUserData(ctx, "alice")

		Convey("Then contest info is absent but the result is not degraded", func() {
			So(err, ShouldBeNil)
			So(res.ContestInfo, ShouldBeNil)
			So(res.Degraded, ShouldBeEmpty)
		})
	})

	Convey("Given solved counts that every provider fails to serve", t, func() {
		alfa := healthyAlfa().fail(source.OpSolved, source.ErrRateLimited)
		stats := newStub(source.Stats).fail(source.OpSolved, source.ErrTimeout)
		svc := newService(t, []source.Client{alfa, stats})

		res, err := svc.GetComprehensiveUserData(ctx, "alice")

		Convey("Then the whole sync fails with exhaustion and no partial result", func() {
			So(errors.Is(err, source.ErrAllProvidersExhausted), ShouldBeTrue)
			So(errors.Is(err, source.ErrTimeout), ShouldBeTrue)
			So(res, ShouldResemble, model.SyncResult{})
		})
	})

	Convey("Given a username no provider knows", t, func() {
		alfa := healthyAlfa().fail(source.OpProfile, source.ErrNotFound)
		stats := newStub(source.Stats)
		svc := newService(t, []source.Client{alfa, stats})

		_, err := svc.GetComprehensiveUserData(ctx, "ghost")

		Convey("Then not-found surfaces without trying the fallback profile", func() {
			So(errors.Is(err, source.ErrNotFound), ShouldBeTrue)
			So(errors.Is(err, source.ErrAllProvidersExhausted), ShouldBeFalse)
			So(stats.callCount(source.OpProfile), ShouldEqual, 0)
		})
	})

	Convey("Given a primary that is rate limited for the profile", t, func() {
		alfa := healthyAlfa().fail(source.OpProfile, source.ErrRateLimited)
		stats := newStub(source.Stats).set(source.OpProfile, `{"totalSolved":120,"ranking":1500,"reputation":3}`)
		svc := newService(t, []source.Client{alfa, stats})

		res, err := svc.GetComprehensiveUserData(ctx, "alice")

		Convey("Then the secondary fills that fragment", func() {
			So(err, ShouldBeNil)
			So(res.Profile.Username, ShouldEqual, "alice")
			So(*res.Profile.GlobalRank, ShouldEqual, 1500)
			So(stats.callCount(source.OpProfile), ShouldEqual, 1)
		})
	})

	Convey("Given an invalid username", t, func() {
		svc := newService(t, []source.Client{healthyAlfa()})

		for _, u := range []string{"", "   ", "a/b"} {
			_, err := svc.GetComprehensiveUserData(ctx, u)
			So(errors.Is(err, service.ErrInvalidUsername), ShouldBeTrue)
		}
	})

	Convey("Given a caller that cancels", t, func() {
		svc := newService(t, []source.Client{healthyAlfa()})
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := svc.GetComprehensiveUserData(cctx, "alice")
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}

func TestService_VerifyUsername(t *testing.T) {
	ctx := context.Background()

	Convey("Given provider answers", t, func() {
		Convey("When the profile exists", func() {
			svc := newService(t, []source.Client{healthyAlfa()})
			So(svc.VerifyUsername(ctx, "alice"), ShouldBeTrue)
		})

		Convey("When the user does not exist", func() {
			svc := newService(t, []source.Client{healthyAlfa().fail(source.OpProfile, source.ErrNotFound)})
			So(svc.VerifyUsername(ctx, "ghost"), ShouldBeFalse)
		})

		Convey("When every provider is throttled", func() {
			svc := newService(t, []source.Client{
				healthyAlfa().fail(source.OpProfile, source.ErrRateLimited),
				newStub(source.Stats).fail(source.OpProfile, source.ErrRateLimited),
			})
			So(svc.VerifyUsername(ctx, "alice"), ShouldBeFalse)
		})

		Convey("When the body is unusable", func() {
			svc := newService(t, []source.Client{healthyAlfa().set(source.OpProfile, `{"username":""}`)})
			So(svc.VerifyUsername(ctx, "alice"), ShouldBeFalse)
		})

		Convey("When the username is blank", func() {
			svc := newService(t, []source.Client{healthyAlfa()})
			So(svc.VerifyUsername(ctx, " "), ShouldBeFalse)
		})
	})
}

func TestService_Problems(t *testing.T) {
	ctx := context.Background()

	Convey("Given the problem list", t, func() {
		alfa := healthyAlfa()
		svc := newService(t, []source.Client{newStub(source.Stats).fail(source.OpProblems, source.ErrUnsupported), alfa})

		Convey("When no limit is given", func() {
			page, err := svc.GetProblems(ctx, model.ProblemQuery{Tags: []string{" array ", ""}, Difficulty: "EASY"})

			Convey("Then the default limit is sent and the page normalized", func() {
				So(err, ShouldBeNil)
				So(page.Total, ShouldEqual, 2)
				So(len(page.Problems), ShouldEqual, 2)
				So(alfa.queries[0].Limit, ShouldEqual, service.DefaultProblemLimit)
				So(alfa.queries[0].Tags, ShouldResemble, []string{"array"})
				So(alfa.queries[0].Difficulty, ShouldEqual, "easy")
			})
		})

		Convey("When the limit is too large", func() {
			_, err := svc.GetProblems(ctx, model.ProblemQuery{Limit: 1000, Skip: -4})

			Convey("Then it is capped", func() {
				So(err, ShouldBeNil)
				So(alfa.queries[0].Limit, ShouldEqual, service.MaxProblemLimit)
				So(alfa.queries[0].Skip, ShouldEqual, 0)
			})
		})
	})

	Convey("Given the daily problem", t, func() {
		svc := newService(t, []source.Client{healthyAlfa()})
		d, err := svc.GetDailyProblem(ctx)

		So(err, ShouldBeNil)
		So(d.Slug, ShouldEqual, "two-sum")
		So(d.Date, ShouldEqual, "2024-03-10")
	})
}

func TestService_BackgroundSync(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service that has not been started", t, func() {
		svc := newService(t, []source.Client{healthyAlfa()})
		_, _, err := svc.EnqueueSync(ctx, "alice")

		So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		So(svc.Stop(ctx), ShouldBeNil)
	})

	Convey("Given a started service", t, func() {
		alfa := healthyAlfa()
		svc := newService(t, []source.Client{alfa}, service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a sync is enqueued", func() {
			accepted, duplicate, err := svc.EnqueueSync(ctx, "alice")

			Convey("Then the snapshot becomes readable", func() {
				So(err, ShouldBeNil)
				So(accepted, ShouldBeTrue)
				So(duplicate, ShouldBeFalse)
				So(waitFor(func() bool {
					_, err := svc.LatestSync(ctx, "alice")
					return err == nil
				}), ShouldBeTrue)
				res, _ := svc.LatestSync(ctx, "ALICE")
				So(res.Streak, ShouldEqual, 3)
				So(svc.GetStats(ctx)["snapshots"], ShouldEqual, 1)
			})
		})

		Convey("When the same user is enqueued while in flight", func() {
			alfa.mu.Lock()
			alfa.release = make(chan struct{})
			alfa.mu.Unlock()

			first, _, _ := svc.EnqueueSync(ctx, "alice")
			_, duplicate, err := svc.EnqueueSync(ctx, "alice")

			Convey("Then the second request is reported as a duplicate", func() {
				So(first, ShouldBeTrue)
				So(err, ShouldBeNil)
				So(duplicate, ShouldBeTrue)
				close(alfa.release)
			})
		})

		Convey("When the same user is enqueued in another letter case", func() {
			alfa.mu.Lock()
			alfa.release = make(chan struct{})
			alfa.mu.Unlock()

			first, _, _ := svc.EnqueueSync(ctx, "alice")
			second, duplicate, err := svc.EnqueueSync(ctx, "ALICE")

			Convey("Then it is treated as the sync already in flight", func() {
				So(first, ShouldBeTrue)
				So(err, ShouldBeNil)
				So(second, ShouldBeFalse)
				So(duplicate, ShouldBeTrue)
				close(alfa.release)
				So(waitFor(func() bool { return svc.GetStats(ctx)["inFlight"] == int64(0) }), ShouldBeTrue)

				again, _, _ := svc.EnqueueSync(ctx, "Alice")
				So(again, ShouldBeTrue)
			})
		})

		Convey("When a background sync fails", func() {
			alfa.fail(source.OpProfile, source.ErrNotFound)
			accepted, _, _ := svc.EnqueueSync(ctx, "ghost")

			Convey("Then the failure kind is recorded", func() {
				So(accepted, ShouldBeTrue)
				So(waitFor(func() bool {
					_, ok := svc.LastSyncFailure(ctx, "ghost")
					return ok
				}), ShouldBeTrue)
				f, _ := svc.LastSyncFailure(ctx, "ghost")
				So(f.Kind, ShouldEqual, "not_found")
				_, err := svc.LatestSync(ctx, "ghost")
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestService_BackgroundSyncStoreErrors(t *testing.T) {
	ctx := context.Background()

	Convey("Given a snapshot store that refuses writes", t, func() {
		log := &recordingLogger{}
		alfa := healthyAlfa()
		svc := newService(t, []source.Client{alfa},
			service.WithWorkerCount(1),
			service.WithStore(brokenStore{}),
			service.WithLogger(log))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When a sync succeeds", func() {
			accepted, _, _ := svc.EnqueueSync(ctx, "alice")

			Convey("Then the lost snapshot is logged", func() {
				So(accepted, ShouldBeTrue)
				So(waitFor(func() bool { return log.logged("saving sync snapshot failed") }), ShouldBeTrue)
			})
		})

		Convey("When a sync fails", func() {
			alfa.fail(source.OpProfile, source.ErrNotFound)
			accepted, _, _ := svc.EnqueueSync(ctx, "ghost")

			Convey("Then the lost failure record is logged", func() {
				So(accepted, ShouldBeTrue)
				So(waitFor(func() bool { return log.logged("recording sync failure failed") }), ShouldBeTrue)
			})
		})
	})
}

func TestClampProblemQuery(t *testing.T) {
	Convey("Given problem queries", t, func() {
		So(service.ClampProblemQuery(model.ProblemQuery{}).Limit, ShouldEqual, 20)
		So(service.ClampProblemQuery(model.ProblemQuery{Limit: 100}).Limit, ShouldEqual, 100)
		So(service.ClampProblemQuery(model.ProblemQuery{Limit: 101}).Limit, ShouldEqual, 100)
		So(service.ClampProblemQuery(model.ProblemQuery{Limit: 7, Skip: 3}), ShouldResemble,
			model.ProblemQuery{Limit: 7, Skip: 3, Tags: nil})
	})
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
