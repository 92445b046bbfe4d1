package service

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/notifyhub/event-notifier/internal/domain"
	"github.com/notifyhub/event-notifier/internal/repository"
)

type UserService struct {
	repo repository.UserRepository
	cost int
}

// NewUserService uses bcrypt.DefaultCost when cost is zero.
func NewUserService(repo repository.UserRepository, cost int) *UserService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &UserService{repo: repo, cost: cost}
}

// Register hashes the password and stores the user. A taken username yields
// domain.ErrUsernameTaken.
func (s *UserService) Register(ctx context.Context, req domain.RegisterUserRequest) (*domain.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{Username: req.Username, PasswordHash: string(hash)}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	return s.repo.List(ctx)
}
