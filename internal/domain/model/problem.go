package model

// DailyProblem is the featured problem of the day.
type DailyProblem struct {
	Date       string   `json:"date"`
	Title      string   `json:"title"`
	Slug       string   `json:"slug"`
	Link       string   `json:"link"`
	Difficulty string   `json:"difficulty"`
	Tags       []string `json:"tags"`
}

// Problem is one entry of the problem list.
type Problem struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Slug           string   `json:"slug"`
	Difficulty     string   `json:"difficulty"`
	AcceptanceRate float64  `json:"acceptance_rate"`
	PaidOnly       bool     `json:"paid_only"`
	Tags           []string `json:"tags"`
}

// ProblemPage is one page of the problem list.
type ProblemPage struct {
	Total    int       `json:"total"`
	Problems []Problem `json:"problems"`
}

// ProblemQuery filters the problem list.
type ProblemQuery struct {
	Limit      int
	Skip       int
	Tags       []string
	Difficulty string
}
