package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"stickyboard-server/internal/domain"
	"stickyboard-server/internal/middleware"
	"stickyboard-server/internal/service"
	"stickyboard-server/pkg/hash"
	"stickyboard-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *service.AuthService
	validator   *validator.Validate
	errors      errorWriter
}

func NewAuthHandler(authService *service.AuthService, retryAfter time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator.New(),
		errors:      errorWriter{retryAfter: retryAfter, logger: logger},
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if err := h.authService.Register(r.Context(), &req); err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken), errors.Is(err, service.ErrUsernameTaken):
			response.Conflict(w, err.Error())
		case errors.Is(err, hash.ErrPasswordTooShort), errors.Is(err, hash.ErrPasswordTooLong):
			response.BadRequest(w, err.Error())
		default:
			h.errors.write(w, r, err)
		}
		return
	}

	response.Created(w, map[string]string{
		"message": "User registered successfully. Please login.",
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	loginResp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(w, err.Error())
			return
		}
		h.errors.write(w, r, err)
		return
	}

	response.Success(w, loginResp)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	tokenResp, err := h.authService.RefreshToken(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			response.Unauthorized(w, err.Error())
			return
		}
		h.errors.write(w, r, err)
		return
	}

	response.Success(w, tokenResp)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	if err := h.authService.Logout(r.Context(), userID, middleware.GetSessionID(r)); err != nil {
		h.errors.write(w, r, err)
		return
	}
	response.Message(w, "Logged out successfully")
}
