package handler

import (
	"net/http"
	"time"

	"stickyboard-server/internal/middleware"
	"stickyboard-server/internal/session"
	"stickyboard-server/internal/view"
	"stickyboard-server/pkg/response"

	"go.uber.org/zap"
)

type PageHandler struct {
	sessions Sessions
	errors   errorWriter
}

func NewPageHandler(sessions Sessions, retryAfter time.Duration, logger *zap.Logger) *PageHandler {
	return &PageHandler{
		sessions: sessions,
		errors:   errorWriter{retryAfter: retryAfter, logger: logger},
	}
}

// Page renders the board page model of the caller's current board.
func (h *PageHandler) Page(w http.ResponseWriter, r *http.Request) {
	st, ok := sessionStore(h.sessions, h.errors, w, r)
	if !ok {
		return
	}
	response.Success(w, view.Render(st.Snapshot()))
}

// Home serves the board view to signed-in users and sends everyone else to
// the auth view.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	if h.redirect(w, r) {
		return
	}
	h.Page(w, r)
}

func (h *PageHandler) Auth(w http.ResponseWriter, r *http.Request) {
	if h.redirect(w, r) {
		return
	}
	response.Success(w, view.AuthPage())
}

func (h *PageHandler) redirect(w http.ResponseWriter, r *http.Request) bool {
	target, ok := session.Redirect(middleware.GetUserID(r) != "", r.URL.Path)
	if !ok {
		return false
	}
	http.Redirect(w, r, target, http.StatusFound)
	return true
}
