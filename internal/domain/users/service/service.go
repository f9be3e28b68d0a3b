package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/IT-Nick/assessbot/internal/domain/model"
)

// ErrNoToken пользователь еще не привязал токен бэкенда
var ErrNoToken = errors.New("api token is not set")

// UserRepository хранилище пользователей
type UserRepository interface {
	GetOrCreateUser(ctx context.Context, telegramID int64, username string) (*model.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	SetAPIToken(ctx context.Context, telegramID int64, token string) error
}

// UserService содержит логику бизнес-операций для пользователей
type UserService struct {
	userRepo UserRepository
}

// NewUserService создает новый экземпляр UserService
func NewUserService(userRepo UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetOrCreateUser возвращает пользователя, регистрируя его при первом обращении
func (s *UserService) GetOrCreateUser(ctx context.Context, telegramID int64, username string) (*model.User, error) {
	user, err := s.userRepo.GetOrCreateUser(ctx, telegramID, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create user: %w", err)
	}
	return user, nil
}

func (s *UserService) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.userRepo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetAPIToken сохраняет токен, пустой токен не принимается
func (s *UserService) SetAPIToken(ctx context.Context, telegramID int64, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrNoToken
	}
	if err := s.userRepo.SetAPIToken(ctx, telegramID, token); err != nil {
		return fmt.Errorf("failed to set api token: %w", err)
	}
	return nil
}

// TokenFor возвращает токен бэкенда пользователя или ErrNoToken
func (s *UserService) TokenFor(ctx context.Context, telegramID int64) (string, error) {
	user, err := s.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return "", err
	}
	if !user.HasToken() {
		return "", ErrNoToken
	}
	return *user.APIToken, nil
}
