package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stickyboard-server/internal/domain"
	"stickyboard-server/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Password = ""
	return user, nil
}

func (s *UserService) UpdateUsername(ctx context.Context, userID, newUsername string) (*domain.User, error) {
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Username == newUsername {
		user.Password = ""
		return user, nil
	}

	usernameExists, err := s.userRepo.UsernameExists(ctx, newUsername)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if usernameExists {
		return nil, ErrUsernameTaken
	}

	user.Username = newUsername
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	user.Password = ""
	return user, nil
}

func (s *UserService) find(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}
