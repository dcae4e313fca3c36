// Package model contains the canonical shapes every provider response is
// normalized into. Values are snapshots built fresh on every fetch.
package model

// Profile is the canonical user profile.
type Profile struct {
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	AvatarURL   *string  `json:"avatar_url,omitempty"`
	GlobalRank  *int     `json:"global_rank,omitempty"`
	Reputation  *int     `json:"reputation,omitempty"`
	Country     *string  `json:"country,omitempty"`
	Company     *string  `json:"company,omitempty"`
	School      *string  `json:"school,omitempty"`
	Links       []string `json:"links"`
}

// SolvedStats holds solved-problem counts.
type SolvedStats struct {
	TotalSolved         int `json:"total_solved"`
	EasySolved          int `json:"easy_solved"`
	MediumSolved        int `json:"medium_solved"`
	HardSolved          int `json:"hard_solved"`
	TotalSubmissions    int `json:"total_submissions"`
	AcceptedSubmissions int `json:"accepted_submissions"`
}

// Consistent reports whether the total equals the per-difficulty sum.
// Providers are allowed to disagree; callers log rather than reject.
func (s SolvedStats) Consistent() bool {
	return s.TotalSolved == s.EasySolved+s.MediumSolved+s.HardSolved
}

// ContestInfo summarizes a user's contest history.
type ContestInfo struct {
	Attended          int     `json:"attended"`
	Rating            float64 `json:"rating"`
	GlobalRanking     int     `json:"global_ranking"`
	TotalParticipants int     `json:"total_participants"`
	TopPercentage     float64 `json:"top_percentage"`
	Badge             string  `json:"badge,omitempty"`
}
