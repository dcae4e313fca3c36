package model

import "time"

// SecondsPerDay converts between epoch seconds and epoch days.
const SecondsPerDay = 24 * 60 * 60

// Calendar maps a UTC epoch day (days since 1970-01-01) to the number of
// submissions made that day. Days without activity are absent.
type Calendar struct {
	ActivityByDay map[int64]int `json:"activity_by_day"`
}

// EpochDay returns the UTC epoch day containing t.
func EpochDay(t time.Time) int64 {
	return floorDiv(t.Unix(), SecondsPerDay)
}

// EpochDayFromUnix returns the UTC epoch day containing the given epoch second.
func EpochDayFromUnix(sec int64) int64 {
	return floorDiv(sec, SecondsPerDay)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Active reports whether day has recorded activity.
func (c Calendar) Active(day int64) bool {
	return c.ActivityByDay[day] > 0
}

// ActiveDays returns how many days carry activity.
func (c Calendar) ActiveDays() int {
	n := 0
	for _, v := range c.ActivityByDay {
		if v > 0 {
			n++
		}
	}
	return n
}

// SubmissionStatus is the coarse verdict of a submission.
type SubmissionStatus string

// Submission statuses.
const (
	StatusAccepted    SubmissionStatus = "Accepted"
	StatusWrongAnswer SubmissionStatus = "Wrong Answer"
	StatusOther       SubmissionStatus = "Other"
)

// ParseStatus maps a provider verdict string onto a SubmissionStatus.
func ParseStatus(s string) SubmissionStatus {
	switch s {
	case "Accepted", "AC", "accepted":
		return StatusAccepted
	case "Wrong Answer", "WA", "wrong answer":
		return StatusWrongAnswer
	default:
		return StatusOther
	}
}

// Submission is one recent submission, Timestamp in epoch seconds.
type Submission struct {
	Title     string           `json:"title"`
	Slug      string           `json:"slug"`
	Timestamp int64            `json:"timestamp"`
	Status    SubmissionStatus `json:"status"`
	Language  string           `json:"language"`
}
