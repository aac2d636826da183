package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"stickyboard-server/internal/domain"
	"stickyboard-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// NoteHandler edits notes of the caller's current board.
type NoteHandler struct {
	sessions  Sessions
	validator *validator.Validate
	errors    errorWriter
}

func NewNoteHandler(sessions Sessions, retryAfter time.Duration, logger *zap.Logger) *NoteHandler {
	return &NoteHandler{
		sessions:  sessions,
		validator: validator.New(),
		errors:    errorWriter{retryAfter: retryAfter, logger: logger},
	}
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	st, ok := sessionStore(h.sessions, h.errors, w, r)
	if !ok {
		return
	}

	note, err := st.AddNote(r.Context())
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	response.Created(w, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid note id")
		return
	}

	var req domain.UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	st, ok := sessionStore(h.sessions, h.errors, w, r)
	if !ok {
		return
	}

	note, err := st.EditNote(r.Context(), id, req)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid note id")
		return
	}

	st, ok := sessionStore(h.sessions, h.errors, w, r)
	if !ok {
		return
	}

	board, err := st.DeleteNote(r.Context(), id)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	response.Success(w, board)
}

func (h *NoteHandler) AddTodo(w http.ResponseWriter, r *http.Request) {
	noteID, ok := pathID(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid note id")
		return
	}

	st, ok := sessionStore(h.sessions, h.errors, w, r)
	if !ok {
		return
	}

	todo, err := st.AddTodo(r.Context(), noteID)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	response.Created(w, todo)
}

func (h *NoteHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	noteID, ok := pathID(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid note id")
		return
	}
	todoID, ok := pathID(r, "todoId")
	if !ok {
		response.BadRequest(w, "Invalid todo id")
		return
	}

	var req domain.UpdateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	st, ok := sessionStore(h.sessions, h.errors, w, r)
	if !ok {
		return
	}

	note, err := st.UpdateTodo(r.Context(), noteID, todoID, req.Text, req.Completed)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	noteID, ok := pathID(r, "id")
	if !ok {
		response.BadRequest(w, "Invalid note id")
		return
	}
	todoID, ok := pathID(r, "todoId")
	if !ok {
		response.BadRequest(w, "Invalid todo id")
		return
	}

	st, ok := sessionStore(h.sessions, h.errors, w, r)
	if !ok {
		return
	}

	note, err := st.DeleteTodo(r.Context(), noteID, todoID)
	if err != nil {
		h.errors.write(w, r, err)
		return
	}

	response.Success(w, note)
}
