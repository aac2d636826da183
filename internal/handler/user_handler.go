package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"stickyboard-server/internal/domain"
	"stickyboard-server/internal/middleware"
	"stickyboard-server/internal/service"
	"stickyboard-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type UserHandler struct {
	userService *service.UserService
	validator   *validator.Validate
	errors      errorWriter
}

func NewUserHandler(userService *service.UserService, retryAfter time.Duration, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		validator:   validator.New(),
		errors:      errorWriter{retryAfter: retryAfter, logger: logger},
	}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Success(w, user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req domain.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	user, err := h.userService.UpdateUsername(r.Context(), userID, req.Username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Success(w, user)
}

func (h *UserHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(w, "User not found")
	case errors.Is(err, service.ErrUsernameTaken):
		response.Conflict(w, err.Error())
	default:
		h.errors.write(w, r, err)
	}
}
