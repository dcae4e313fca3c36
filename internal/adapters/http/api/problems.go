package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/kata/internal/domain/model"
	"github.com/okian/kata/pkg/logger"
)

// ProblemsHandler serves the daily problem and the problem list.
type ProblemsHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewProblemsHandler creates a new problems handler.
func NewProblemsHandler(deps Dependencies, log logger.Logger) *ProblemsHandler {
	return &ProblemsHandler{deps: deps, log: log}
}

// HandleDaily handles GET /daily.
func (h *ProblemsHandler) HandleDaily(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.GetDailyProblem(r.Context())
	if err != nil {
		status, code := statusFor(err)
		h.log.Warn(r.Context(), "daily problem fetch failed", logger.String("code", code), logger.Error(err))
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleProblems handles GET /problems?limit=&skip=&tags=a,b&difficulty=.
func (h *ProblemsHandler) HandleProblems(w http.ResponseWriter, r *http.Request) {
	q, err := parseProblemQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	page, err := h.deps.GetProblems(r.Context(), q)
	if err != nil {
		status, code := statusFor(err)
		h.log.Warn(r.Context(), "problem list fetch failed", logger.String("code", code), logger.Error(err))
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func parseProblemQuery(r *http.Request) (model.ProblemQuery, error) {
	v := r.URL.Query()
	var q model.ProblemQuery
	var err error
	if s := v.Get("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil {
			return q, fmt.Errorf("%w: limit must be an integer", ErrBadRequest)
		}
	}
	if s := v.Get("skip"); s != "" {
		if q.Skip, err = strconv.Atoi(s); err != nil {
			return q, fmt.Errorf("%w: skip must be an integer", ErrBadRequest)
		}
	}
	if s := v.Get("tags"); s != "" {
		q.Tags = strings.Split(s, ",")
	}
	q.Difficulty = v.Get("difficulty")
	return q, nil
}
