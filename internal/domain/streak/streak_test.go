package streak_test

import (
	"testing"
	"time"

	"github.com/okian/kata/internal/domain/model"
	"github.com/okian/kata/internal/domain/streak"
	. "github.com/smartystreets/goconvey/convey"
)

const asOf int64 = 20_000

func calendar(days ...int64) model.Calendar {
	c := model.Calendar{ActivityByDay: map[int64]int{}}
	for _, d := range days {
		c.ActivityByDay[d] = 1
	}
	return c
}

func run(from, to int64) []int64 {
	var out []int64
	for d := from; d <= to; d++ {
		out = append(out, d)
	}
	return out
}

func TestCompute(t *testing.T) {
	Convey("Given a streak computation", t, func() {
		Convey("When the calendar is empty", func() {
			So(streak.Compute(model.Calendar{}, asOf), ShouldEqual, 0)
			So(streak.Compute(calendar(), asOf), ShouldEqual, 0)
		})

		Convey("When only today is active", func() {
			So(streak.Compute(calendar(asOf), asOf), ShouldEqual, 1)
		})

		Convey("When every day in [asOf-N, asOf] is active", func() {
			for _, n := range []int64{0, 1, 6, 29, 364} {
				So(streak.Compute(calendar(run(asOf-n, asOf)...), asOf), ShouldEqual, n+1)
			}
		})

		Convey("When today has no data yet", func() {
			cal := calendar(run(asOf-4, asOf-1)...)

			Convey("Then the run ending yesterday still counts", func() {
				So(streak.Compute(cal, asOf), ShouldEqual, 4)
			})
		})

		Convey("When a single day is missing inside the run", func() {
			days := append(run(asOf-9, asOf-6), run(asOf-4, asOf)...)

			Convey("Then the streak counts through the gap", func() {
				So(streak.Compute(calendar(days...), asOf), ShouldEqual, 9)
			})
		})

		Convey("When two consecutive days are missing inside the run", func() {
			days := append(run(asOf-12, asOf-6), run(asOf-3, asOf)...)

			Convey("Then the streak stops at the boundary", func() {
				So(streak.Compute(calendar(days...), asOf), ShouldEqual, 4)
			})
		})

		Convey("When the last activity is two or more days old", func() {
			So(streak.Compute(calendar(run(asOf-10, asOf-2)...), asOf), ShouldEqual, 0)
		})

		Convey("When activity exists only after asOf", func() {
			So(streak.Compute(calendar(asOf+1, asOf+2), asOf), ShouldEqual, 0)
		})

		Convey("When zero counts are present", func() {
			cal := model.Calendar{ActivityByDay: map[int64]int{asOf: 0, asOf - 1: 0}}
			So(streak.Compute(cal, asOf), ShouldEqual, 0)
		})
	})
}

func TestToday(t *testing.T) {
	Convey("Given a wall clock time", t, func() {
		now := time.Date(2024, 3, 10, 23, 59, 0, 0, time.FixedZone("UTC-5", -5*60*60))

		Convey("Then today is the UTC epoch day", func() {
			So(streak.Today(now), ShouldEqual, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC).Unix()/model.SecondsPerDay)
		})
	})
}
