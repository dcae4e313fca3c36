package model_test

import (
	"testing"
	"time"

	"github.com/okian/kata/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEpochDay(t *testing.T) {
	Convey("Given epoch day conversion", t, func() {
		Convey("Then midnight starts a new day", func() {
			midnight := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
			So(model.EpochDay(midnight)-model.EpochDay(midnight.Add(-time.Second)), ShouldEqual, 1)
		})

		Convey("Then seconds and times agree", func() {
			ts := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
			So(model.EpochDayFromUnix(ts.Unix()), ShouldEqual, model.EpochDay(ts))
			So(model.EpochDayFromUnix(0), ShouldEqual, 0)
			So(model.EpochDayFromUnix(-1), ShouldEqual, -1)
		})
	})
}

func TestCalendar(t *testing.T) {
	Convey("Given a calendar", t, func() {
		cal := model.Calendar{ActivityByDay: map[int64]int{10: 2, 11: 0, 12: 1}}

		So(cal.Active(10), ShouldBeTrue)
		So(cal.Active(11), ShouldBeFalse)
		So(cal.Active(13), ShouldBeFalse)
		So(cal.ActiveDays(), ShouldEqual, 2)
	})
}

func TestParseStatus(t *testing.T) {
	Convey("Given provider verdicts", t, func() {
		So(model.ParseStatus("Accepted"), ShouldEqual, model.StatusAccepted)
		So(model.ParseStatus("Wrong Answer"), ShouldEqual, model.StatusWrongAnswer)
		So(model.ParseStatus("Time Limit Exceeded"), ShouldEqual, model.StatusOther)
		So(model.ParseStatus(""), ShouldEqual, model.StatusOther)
	})
}

func TestSolvedStatsConsistent(t *testing.T) {
	Convey("Given solved stats", t, func() {
		So(model.SolvedStats{TotalSolved: 6, EasySolved: 3, MediumSolved: 2, HardSolved: 1}.Consistent(), ShouldBeTrue)
		So(model.SolvedStats{TotalSolved: 7, EasySolved: 3, MediumSolved: 2, HardSolved: 1}.Consistent(), ShouldBeFalse)
	})
}

func TestSyncResultDegraded(t *testing.T) {
	Convey("Given a sync result", t, func() {
		r := model.SyncResult{Degraded: []string{model.FragmentContest}}
		So(r.IsDegraded(model.FragmentContest), ShouldBeTrue)
		So(model.SyncResult{}.IsDegraded(model.FragmentContest), ShouldBeFalse)
	})
}
