package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"stickyboard-server/internal/repository"
	"stickyboard-server/internal/store"
	"stickyboard-server/pkg/response"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// errorWriter turns board store errors into HTTP responses.
type errorWriter struct {
	retryAfter time.Duration
	logger     *zap.Logger
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotSignedIn):
		response.Unauthorized(w, "Not signed in")
	case errors.Is(err, store.ErrNoBoardSelected):
		response.Conflict(w, "No board selected")
	case errors.Is(err, store.ErrBoardNotFound), errors.Is(err, repository.ErrBoardNotFound):
		response.NotFound(w, "Board not found")
	case errors.Is(err, store.ErrNoteNotFound):
		response.NotFound(w, "Note not found")
	case errors.Is(err, store.ErrTodoNotFound):
		response.NotFound(w, "Todo not found")
	case errors.Is(err, repository.ErrStoreUnavailable), errors.Is(err, repository.ErrRevisionRace):
		e.logger.Warn("board store unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		response.ServiceUnavailable(w, "Board store unavailable, retry shortly", e.retryAfter)
	default:
		e.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		response.InternalError(w, "Internal server error")
	}
}

// pathID reads a positive integer id from the route variables.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
