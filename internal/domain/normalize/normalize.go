// Package normalize turns provider-native bodies into canonical model values.
// Every function dispatches on the Raw provider tag; a body that is not valid
// JSON or lacks its provider's identifying fields is a malformed response.
package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/kata/internal/domain/model"
	"github.com/okian/kata/internal/domain/source"
	"github.com/tidwall/gjson"
)

// millisThreshold separates epoch seconds from epoch milliseconds.
const millisThreshold = 1_000_000_000_000

func malformed(raw source.Raw, format string, args ...any) error {
	return source.NewError(raw.Provider, raw.Op, source.ErrMalformedResponse, fmt.Errorf(format, args...))
}

func unknownProvider(raw source.Raw) error {
	return malformed(raw, "no normalizer for provider %q", raw.Provider)
}

// parse validates the body and requires at least one of the core paths.
func parse(raw source.Raw, core ...string) (gjson.Result, error) {
	if !gjson.ValidBytes(raw.Body) {
		return gjson.Result{}, malformed(raw, "invalid json")
	}
	doc := gjson.ParseBytes(raw.Body)
	if !doc.IsObject() {
		return gjson.Result{}, malformed(raw, "expected a json object")
	}
	for _, path := range core {
		if v := doc.Get(path); v.Exists() && v.Type != gjson.Null {
			return doc, nil
		}
	}
	return gjson.Result{}, malformed(raw, "missing %s", strings.Join(core, " or "))
}

// Profile normalizes a profile body.
func Profile(raw source.Raw) (model.Profile, error) {
	switch raw.Provider {
	case source.Alfa:
		doc, err := parse(raw, "username")
		if err != nil {
			return model.Profile{}, err
		}
		username := doc.Get("username").String()
		if username == "" {
			return model.Profile{}, malformed(raw, "empty username")
		}
		p := model.Profile{
			Username:    username,
			DisplayName: firstString(doc, "name", "realName"),
			AvatarURL:   optString(doc, "avatar", "userAvatar"),
			GlobalRank:  optInt(doc, "ranking", "globalRank"),
			Reputation:  optInt(doc, "reputation"),
			Country:     optString(doc, "country", "countryName"),
			Company:     optString(doc, "company"),
			School:      optString(doc, "school"),
			Links:       links(doc),
		}
		if p.DisplayName == "" {
			p.DisplayName = username
		}
		return p, nil
	case source.Stats:
		doc, err := parse(raw, "totalSolved")
		if err != nil {
			return model.Profile{}, err
		}
		if raw.Subject == "" {
			return model.Profile{}, malformed(raw, "no subject for stats profile")
		}
		return model.Profile{
			Username:    raw.Subject,
			DisplayName: raw.Subject,
			GlobalRank:  optInt(doc, "ranking", "globalRank"),
			Reputation:  optInt(doc, "reputation"),
			Links:       []string{},
		}, nil
	default:
		return model.Profile{}, unknownProvider(raw)
	}
}

// Solved normalizes solved-problem counts.
func Solved(raw source.Raw) (model.SolvedStats, error) {
	switch raw.Provider {
	case source.Alfa:
		doc, err := parse(raw, "solvedProblem")
		if err != nil {
			return model.SolvedStats{}, err
		}
		return model.SolvedStats{
			TotalSolved:         int(doc.Get("solvedProblem").Int()),
			EasySolved:          int(doc.Get("easySolved").Int()),
			MediumSolved:        int(doc.Get("mediumSolved").Int()),
			HardSolved:          int(doc.Get("hardSolved").Int()),
			TotalSubmissions:    allDifficulty(doc, "totalSubmissionNum"),
			AcceptedSubmissions: allDifficulty(doc, "acSubmissionNum"),
		}, nil
	case source.Stats:
		doc, err := parse(raw, "totalSolved")
		if err != nil {
			return model.SolvedStats{}, err
		}
		return model.SolvedStats{
			TotalSolved:         int(doc.Get("totalSolved").Int()),
			EasySolved:          int(doc.Get("easySolved").Int()),
			MediumSolved:        int(doc.Get("mediumSolved").Int()),
			HardSolved:          int(doc.Get("hardSolved").Int()),
			TotalSubmissions:    allDifficulty(doc, "totalSubmissions"),
			AcceptedSubmissions: allDifficulty(doc, "matchedUserStats.acSubmissionNum"),
		}, nil
	default:
		return model.SolvedStats{}, unknownProvider(raw)
	}
}

// Submissions normalizes recent submissions, most recent first, keeping at
// most limit entries. A non-positive limit keeps everything.
func Submissions(raw source.Raw, limit int) ([]model.Submission, error) {
	var list gjson.Result
	switch raw.Provider {
	case source.Alfa:
		doc, err := parse(raw, "submission")
		if err != nil {
			return nil, err
		}
		list = doc.Get("submission")
	case source.Stats:
		doc, err := parse(raw, "recentSubmissions", "totalSolved")
		if err != nil {
			return nil, err
		}
		list = doc.Get("recentSubmissions")
	default:
		return nil, unknownProvider(raw)
	}
	if list.Exists() && list.Type != gjson.Null && !list.IsArray() {
		return nil, malformed(raw, "submissions is not a list")
	}

	out := make([]model.Submission, 0, len(list.Array()))
	for _, s := range list.Array() {
		out = append(out, model.Submission{
			Title:     s.Get("title").String(),
			Slug:      s.Get("titleSlug").String(),
			Timestamp: epochSeconds(s.Get("timestamp")),
			Status:    model.ParseStatus(firstString(s, "statusDisplay", "status")),
			Language:  firstString(s, "lang", "language"),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Calendar normalizes the submission calendar. Epoch-second keys become UTC
// epoch days; counts landing on one day are summed and empty days dropped.
func Calendar(raw source.Raw) (model.Calendar, error) {
	var doc gjson.Result
	var err error
	switch raw.Provider {
	case source.Alfa, source.Stats:
		doc, err = parse(raw, "submissionCalendar")
	default:
		return model.Calendar{}, unknownProvider(raw)
	}
	if err != nil {
		return model.Calendar{}, err
	}

	cal := doc.Get("submissionCalendar")
	// alfa ships the calendar as a JSON object encoded inside a string.
	if cal.Type == gjson.String {
		if !gjson.Valid(cal.Str) {
			return model.Calendar{}, malformed(raw, "submissionCalendar string is not json")
		}
		cal = gjson.Parse(cal.Str)
	}
	if !cal.IsObject() {
		return model.Calendar{}, malformed(raw, "submissionCalendar is not an object")
	}

	byDay := make(map[int64]int)
	var bad error
	cal.ForEach(func(key, value gjson.Result) bool {
		sec := key.Int()
		if sec == 0 && key.String() != "0" {
			bad = malformed(raw, "calendar key %q is not an epoch second", key.String())
			return false
		}
		if n := int(value.Int()); n > 0 {
			byDay[model.EpochDayFromUnix(sec)] += n
		}
		return true
	})
	if bad != nil {
		return model.Calendar{}, bad
	}
	return model.Calendar{ActivityByDay: byDay}, nil
}

// Contest normalizes contest history. It returns nil when the user has never
// taken part in a contest.
func Contest(raw source.Raw) (*model.ContestInfo, error) {
	if raw.Provider != source.Alfa {
		return nil, unknownProvider(raw)
	}
	if !gjson.ValidBytes(raw.Body) {
		return nil, malformed(raw, "invalid json")
	}
	doc := gjson.ParseBytes(raw.Body)
	if !doc.IsObject() {
		return nil, malformed(raw, "expected a json object")
	}
	attended := int(doc.Get("contestAttend").Int())
	rating := doc.Get("contestRating")
	if attended == 0 && (!rating.Exists() || rating.Type == gjson.Null) {
		return nil, nil
	}
	return &model.ContestInfo{
		Attended:          attended,
		Rating:            rating.Float(),
		GlobalRanking:     int(doc.Get("contestGlobalRanking").Int()),
		TotalParticipants: int(doc.Get("totalParticipants").Int()),
		TopPercentage:     doc.Get("contestTopPercentage").Float(),
		Badge:             doc.Get("contestBadges.name").String(),
	}, nil
}

// Daily normalizes the daily problem.
func Daily(raw source.Raw) (model.DailyProblem, error) {
	if raw.Provider != source.Alfa {
		return model.DailyProblem{}, unknownProvider(raw)
	}
	doc, err := parse(raw, "titleSlug")
	if err != nil {
		return model.DailyProblem{}, err
	}
	return model.DailyProblem{
		Date:       doc.Get("date").String(),
		Title:      doc.Get("questionTitle").String(),
		Slug:       doc.Get("titleSlug").String(),
		Link:       doc.Get("questionLink").String(),
		Difficulty: doc.Get("difficulty").String(),
		Tags:       tagNames(doc.Get("topicTags")),
	}, nil
}

// Problems normalizes a page of the problem list.
func Problems(raw source.Raw) (model.ProblemPage, error) {
	if raw.Provider != source.Alfa {
		return model.ProblemPage{}, unknownProvider(raw)
	}
	doc, err := parse(raw, "problemsetQuestionList")
	if err != nil {
		return model.ProblemPage{}, err
	}
	list := doc.Get("problemsetQuestionList")
	if !list.IsArray() {
		return model.ProblemPage{}, malformed(raw, "problemsetQuestionList is not a list")
	}
	page := model.ProblemPage{
		Total:    int(doc.Get("totalQuestions").Int()),
		Problems: make([]model.Problem, 0, len(list.Array())),
	}
	for _, q := range list.Array() {
		page.Problems = append(page.Problems, model.Problem{
			ID:             firstString(q, "questionFrontendId", "questionId"),
			Title:          q.Get("title").String(),
			Slug:           q.Get("titleSlug").String(),
			Difficulty:     q.Get("difficulty").String(),
			AcceptanceRate: q.Get("acRate").Float(),
			PaidOnly:       q.Get("isPaidOnly").Bool(),
			Tags:           tagNames(q.Get("topicTags")),
		})
	}
	if page.Total == 0 {
		page.Total = len(page.Problems)
	}
	return page, nil
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() && v.Type != gjson.Null && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func optString(doc gjson.Result, paths ...string) *string {
	s := firstString(doc, paths...)
	if s == "" {
		return nil
	}
	return &s
}

func optInt(doc gjson.Result, paths ...string) *int {
	for _, p := range paths {
		v := doc.Get(p)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if v.Type == gjson.String && v.Str == "" {
			continue
		}
		n := int(v.Int())
		return &n
	}
	return nil
}

// allDifficulty reads the "All" row of a per-difficulty submission table.
func allDifficulty(doc gjson.Result, path string) int {
	return int(doc.Get(path + `.#(difficulty=="All").submissions`).Int())
}

// epochSeconds accepts numbers or numeric strings, in seconds or milliseconds.
func epochSeconds(v gjson.Result) int64 {
	ts := v.Int()
	if ts >= millisThreshold {
		ts /= 1000
	}
	return ts
}

func links(doc gjson.Result) []string {
	out := []string{}
	for _, p := range []string{"gitHub", "twitter", "linkedIN"} {
		if s := doc.Get(p).String(); s != "" {
			out = append(out, s)
		}
	}
	website := doc.Get("website")
	if website.IsArray() {
		for _, w := range website.Array() {
			if s := w.String(); s != "" {
				out = append(out, s)
			}
		}
	} else if s := website.String(); s != "" {
		out = append(out, s)
	}
	return out
}

func tagNames(tags gjson.Result) []string {
	out := []string{}
	for _, t := range tags.Array() {
		name := t.Get("name").String()
		if t.Type == gjson.String {
			name = t.Str
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}
