package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"stickyboard-server/internal/domain"
	"stickyboard-server/internal/middleware"
	"stickyboard-server/internal/store"
	"stickyboard-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Sessions hands out the board store of a signed-in user.
type Sessions interface {
	Store(ctx context.Context, userID string) (*store.Store, error)
	Reload(ctx context.Context, userID string) (*store.Store, error)
}

type BoardHandler struct {
	sessions  Sessions
	validator *validator.Validate
	errors    errorWriter
}

func NewBoardHandler(sessions Sessions, retryAfter time.Duration, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		sessions:  sessions,
		validator: validator.New(),
		errors:    errorWriter{retryAfter: retryAfter, logger: logger},
	}
}

func (h *BoardHandler) List(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store(w, r)
	if !ok {
		return
	}
	response.Success(w, boardsResponse(st))
}

func (h *BoardHandler) Create(w http.ResponseWriter, r *http.Request) {
	st, ok := h.store(w, r)
	if !ok {
		return
	}

	board, err := st.Create(r.Context())
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	response.Created(w, board)
}

func (h *BoardHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid board id")
		return
	}

	var req domain.RenameBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	st, ok := h.store(w, r)
	if !ok {
		return
	}

	board, err := st.Rename(r.Context(), id, req.Name)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	response.Success(w, board)
}

func (h *BoardHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req domain.SelectBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	st, ok := h.store(w, r)
	if !ok {
		return
	}

	if err := st.Select(req.ID); err != nil {
		h.errors.write(w, r, err)
		return
	}

	response.Success(w, boardsResponse(st))
}

// Reload refetches the boards from the document store. It is the retry
// clients use after a failed load.
func (h *BoardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	st, err := h.sessions.Reload(r.Context(), userID)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	response.Success(w, boardsResponse(st))
}

func (h *BoardHandler) store(w http.ResponseWriter, r *http.Request) (*store.Store, bool) {
	return sessionStore(h.sessions, h.errors, w, r)
}

func sessionStore(sessions Sessions, errs errorWriter, w http.ResponseWriter, r *http.Request) (*store.Store, bool) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return nil, false
	}

	st, err := sessions.Store(r.Context(), userID)
	if err != nil {
		errs.write(w, r, err)
		return nil, false
	}
	return st, true
}

func boardsResponse(st *store.Store) domain.BoardsResponse {
	snap := st.Snapshot()
	return domain.BoardsResponse{
		Boards:         snap.Boards,
		CurrentBoardID: snap.CurrentBoardID,
	}
}
