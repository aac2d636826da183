package handler

import (
	"net/http"

	"stickyboard-server/pkg/response"

	"github.com/sony/gobreaker"
)

type breakerState interface {
	State() gobreaker.State
}

type sessionCounter interface {
	Active() int
}

type HealthHandler struct {
	breaker  breakerState
	sessions sessionCounter
}

func NewHealthHandler(breaker breakerState, sessions sessionCounter) *HealthHandler {
	return &HealthHandler{breaker: breaker, sessions: sessions}
}

// Health reports "degraded" while the document store breaker is not closed.
// It always answers 200 so the process is not restarted for a store outage.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	store := gobreaker.StateClosed.String()
	if h.breaker != nil {
		if state := h.breaker.State(); state != gobreaker.StateClosed {
			status = "degraded"
			store = state.String()
		}
	}

	active := 0
	if h.sessions != nil {
		active = h.sessions.Active()
	}

	response.Success(w, map[string]interface{}{
		"status":          status,
		"service":         "stickyboard-server",
		"document_store":  store,
		"active_sessions": active,
	})
}
