package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/kata/pkg/logger"
)

// UsersHandler serves the per-user routes.
type UsersHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps Dependencies, log logger.Logger) *UsersHandler {
	return &UsersHandler{deps: deps, log: log}
}

type verifyResponse struct {
	Username string `json:"username"`
	Exists   bool   `json:"exists"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type failureResponse struct {
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	FailedAt time.Time `json:"failed_at"`
}

// HandleVerify handles GET /users/{username}/verify.
func (h *UsersHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	u := chi.URLParam(r, "username")
	writeJSON(w, http.StatusOK, verifyResponse{Username: u, Exists: h.deps.VerifyUsername(r.Context(), u)})
}

// HandleProfile handles GET /users/{username}/profile with a synchronous sync.
func (h *UsersHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	u := chi.URLParam(r, "username")
	res, err := h.deps.GetComprehensiveUserData(r.Context(), u)
	if err != nil {
		status, code := statusFor(err)
		if status >= statusInternalError {
			h.log.Warn(r.Context(), "profile sync failed",
				logger.String("username", u),
				logger.String("code", code),
				logger.Error(err))
		}
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleEnqueueSync handles POST /users/{username}/sync.
func (h *UsersHandler) HandleEnqueueSync(w http.ResponseWriter, r *http.Request) {
	u := chi.URLParam(r, "username")
	accepted, duplicate, err := h.deps.EnqueueSync(r.Context(), u)
	switch {
	case err != nil:
		status, code := statusFor(err)
		writeError(w, status, code, err)
	case duplicate:
		writeJSON(w, http.StatusOK, ackResponse{Status: "in_progress", Duplicate: true})
	case !accepted:
		writeError(w, http.StatusTooManyRequests, "backpressure", ErrBackpressure)
	default:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
	}
}

// HandleLatestSync handles GET /users/{username}/sync. When no sync has
// succeeded yet but one has failed, the failure is reported in the 404 body.
func (h *UsersHandler) HandleLatestSync(w http.ResponseWriter, r *http.Request) {
	u := chi.URLParam(r, "username")
	res, err := h.deps.LatestSync(r.Context(), u)
	if err == nil {
		writeJSON(w, http.StatusOK, res)
		return
	}
	status, code := statusFor(err)
	if status == statusNotFound {
		if f, ok := h.deps.LastSyncFailure(r.Context(), u); ok {
			writeJSON(w, status, failureResponse{Code: f.Kind, Message: f.Message, FailedAt: f.At})
			return
		}
	}
	writeError(w, status, code, err)
}
