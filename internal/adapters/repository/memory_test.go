package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/kata/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryStore(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		s := NewMemoryStore()

		Convey("When reading an unknown user", func() {
			_, err := s.Latest(ctx, "ghost")
			_, failed := s.LastFailure(ctx, "ghost")

			Convey("Then nothing is found", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				So(failed, ShouldBeFalse)
				So(s.Count(ctx), ShouldEqual, 0)
			})
		})

		Convey("When a sync is saved", func() {
			So(s.Save(ctx, model.SyncResult{Username: "Alice", Streak: 3}), ShouldBeNil)

			Convey("Then it is returned case-insensitively", func() {
				res, err := s.Latest(ctx, "alice")
				So(err, ShouldBeNil)
				So(res.Streak, ShouldEqual, 3)
				So(s.Count(ctx), ShouldEqual, 1)
			})

			Convey("And a later failure keeps the last good result", func() {
				So(s.Fail(ctx, Failure{Username: "alice", Kind: "exhausted", Message: "boom"}), ShouldBeNil)

				res, err := s.Latest(ctx, "alice")
				So(err, ShouldBeNil)
				So(res.Streak, ShouldEqual, 3)

				f, ok := s.LastFailure(ctx, "alice")
				So(ok, ShouldBeTrue)
				So(f.Kind, ShouldEqual, "exhausted")
				So(f.At.IsZero(), ShouldBeFalse)

				Convey("And the next success clears the failure", func() {
					So(s.Save(ctx, model.SyncResult{Username: "alice", Streak: 4}), ShouldBeNil)
					_, ok := s.LastFailure(ctx, "alice")
					So(ok, ShouldBeFalse)
				})
			})
		})

		Convey("When only a failure is recorded", func() {
			So(s.Fail(ctx, Failure{Username: "bob", Kind: "not_found"}), ShouldBeNil)

			Convey("Then there is no snapshot to count", func() {
				_, err := s.Latest(ctx, "bob")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				So(s.Count(ctx), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a store bounded to two users", t, func() {
		ctx := context.Background()
		s := NewMemoryStore(WithMaxEntries(2))
		clock := time.Unix(1700000000, 0)
		s.now = func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}

		_ = s.Save(ctx, model.SyncResult{Username: "a"})
		_ = s.Save(ctx, model.SyncResult{Username: "b"})
		_ = s.Save(ctx, model.SyncResult{Username: "a"})
		_ = s.Save(ctx, model.SyncResult{Username: "c"})

		Convey("Then the least recently written user is dropped", func() {
			So(s.Count(ctx), ShouldEqual, 2)
			_, err := s.Latest(ctx, "b")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			_, err = s.Latest(ctx, "a")
			So(err, ShouldBeNil)
		})
	})
}
