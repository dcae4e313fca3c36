// Package streak computes practice streaks from an activity calendar.
package streak

import (
	"time"

	"github.com/okian/kata/internal/domain/model"
)

// Compute returns the number of active days in the run ending at asOf.
//
// The cursor walks backward from asOf. Each active day counts once. A single
// absent day is tolerated (asOf itself may simply not have data yet); the walk
// ends at the first pair of consecutive absent days.
//
// asOf is an epoch day. Compute never reads the wall clock.
func Compute(cal model.Calendar, asOf int64) int {
	if len(cal.ActivityByDay) == 0 {
		return 0
	}

	count := 0
	for day := asOf; ; day-- {
		if cal.Active(day) {
			count++
			continue
		}
		if !cal.Active(day - 1) {
			break
		}
	}
	return count
}

// Today returns the UTC epoch day of now.
func Today(now time.Time) int64 {
	return model.EpochDay(now)
}
