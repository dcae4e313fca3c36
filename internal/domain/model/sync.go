package model

import (
	"time"

	"github.com/google/uuid"
)

// SkillLevel is a coarse classification derived from SolvedStats.
type SkillLevel string

// Skill levels.
const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
)

// FragmentContest names the best-effort contest fragment in SyncResult.Degraded.
const FragmentContest = "contest"

// SyncResult is the output of one comprehensive sync. It is built once and
// handed to the caller; nothing mutates it afterwards.
type SyncResult struct {
	ID          uuid.UUID    `json:"id"`
	Username    string       `json:"username"`
	Profile     Profile      `json:"profile"`
	SolvedStats SolvedStats  `json:"solved_stats"`
	Submissions []Submission `json:"submissions"`
	Calendar    Calendar     `json:"calendar"`
	Streak      int          `json:"streak"`
	SkillLevel  SkillLevel   `json:"skill_level"`
	ContestInfo *ContestInfo `json:"contest_info"`
	// Degraded lists best-effort fragments whose fetch failed. An absent
	// ContestInfo with an empty Degraded means the user has no contest data.
	Degraded  []string  `json:"degraded,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// IsDegraded reports whether fragment failed during the sync.
func (r SyncResult) IsDegraded(fragment string) bool {
	for _, d := range r.Degraded {
		if d == fragment {
			return true
		}
	}
	return false
}
