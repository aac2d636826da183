package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stickyboard-server/internal/domain"
	"stickyboard-server/internal/repository"
	"stickyboard-server/pkg/hash"
	"stickyboard-server/pkg/jwt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionObserver is told when a user signs in or out. The session manager
// implements it and loads or clears the user's boards in response.
type SessionObserver interface {
	SignIn(ctx context.Context, userID string) error
	SignOut(userID string)
}

type AuthService struct {
	userRepo          repository.UserRepository
	sessions          SessionObserver
	revocations       repository.SessionRevocations
	jwtSecret         string
	jwtExpiration     time.Duration
	refreshExpiration time.Duration
	logger            *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, sessions SessionObserver, revocations repository.SessionRevocations, jwtSecret string, jwtExp, refreshExp time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo:          userRepo,
		sessions:          sessions,
		revocations:       revocations,
		jwtSecret:         jwtSecret,
		jwtExpiration:     jwtExp,
		refreshExpiration: refreshExp,
		logger:            logger,
	}
}

func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) error {
	emailExists, err := s.userRepo.EmailExists(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("failed to check email existence: %w", err)
	}
	if emailExists {
		return ErrEmailTaken
	}

	usernameExists, err := s.userRepo.UsernameExists(ctx, req.Username)
	if err != nil {
		return fmt.Errorf("failed to check username existence: %w", err)
	}
	if usernameExists {
		return ErrUsernameTaken
	}

	hashedPassword, err := hash.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:        uuid.New().String(),
		Username:  req.Username,
		Email:     req.Email,
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return nil
}

// Login checks credentials, issues tokens and signs the user in. A board load
// failure does not fail the login; the first board request retries it.
func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := hash.Compare(user.Password, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	sessionID := uuid.New().String()
	accessToken, err := jwt.GenerateToken(user.ID, sessionID, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := jwt.GenerateRefreshToken(user.ID, sessionID, s.refreshExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	if err := s.sessions.SignIn(ctx, user.ID); err != nil {
		s.logger.Warn("board load on login failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	user.Password = ""

	return &domain.LoginResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtExpiration.Seconds()),
	}, nil
}

// Logout revokes the login session the token belongs to and drops the
// user's in-memory boards. Tokens from other logins stay valid.
func (s *AuthService) Logout(ctx context.Context, userID, sessionID string) error {
	if err := s.revocations.Revoke(ctx, sessionID, s.refreshExpiration); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.sessions.SignOut(userID)
	s.logger.Info("user logged out", zap.String("user_id", userID), zap.String("session_id", sessionID))
	return nil
}

func (s *AuthService) RefreshToken(ctx context.Context, req *domain.RefreshTokenRequest) (*domain.TokenResponse, error) {
	claims, err := jwt.ValidateRefreshToken(req.RefreshToken, s.jwtSecret)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if err := s.checkSession(ctx, claims.SessionID); err != nil {
		if errors.Is(err, ErrSessionEnded) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	accessToken, err := jwt.GenerateToken(claims.UserID, claims.SessionID, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &domain.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.jwtExpiration.Seconds()),
	}, nil
}

// Authenticate validates an access token and rejects tokens whose login
// session has been logged out.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := jwt.ValidateToken(token, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if err := s.checkSession(ctx, claims.SessionID); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *AuthService) checkSession(ctx context.Context, sessionID string) error {
	revoked, err := s.revocations.Revoked(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if revoked {
		return ErrSessionEnded
	}
	return nil
}
