package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/validation"
)

// RegisterUser регистрирует нового покупателя.
func (s *Service) RegisterUser(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		return nil, invalid("Name is required")
	}
	if !validation.IsValidEmail(email) {
		return nil, invalid("Valid email is required")
	}
	if !validation.IsValidPassword(password) {
		return nil, invalid(fmt.Sprintf("Password must be at least %d characters", validation.MinPasswordLength))
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	return s.repo.CreateUser(ctx, name, email, hashed)
}

// AuthenticateUser проверяет email и пароль и возвращает пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// EnsureAdmin создаёт администратора или повышает роль существующей учётной записи.
// Это единственный путь получения роли администратора.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (*model.User, bool, error) {
	if !validation.IsValidEmail(email) {
		return nil, false, invalid("Valid email is required")
	}
	if !validation.IsValidPassword(password) {
		return nil, false, invalid(fmt.Sprintf("Password must be at least %d characters", validation.MinPasswordLength))
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, false, err
	}

	return s.repo.UpsertAdmin(ctx, name, email, hashed)
}

func hashPassword(password string) ([]byte, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hashed, nil
}
