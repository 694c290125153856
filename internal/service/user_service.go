package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"biblioteca/internal/cache"
	apperrors "biblioteca/internal/errors"
	"biblioteca/internal/model"
	"biblioteca/internal/repository"
	"biblioteca/internal/validation"
)

const userCacheTTL = 5 * time.Minute

// AccountInput is the editable part of a user's own account.
type AccountInput struct {
	FirstName string `json:"first_name" form:"first_name" validate:"required,max=30"`
	LastName  string `json:"last_name" form:"last_name" validate:"required,max=30"`
	Email     string `json:"email" form:"email" validate:"required,email"`
}

// UserService exposes the caller's own account.
type UserService interface {
	GetUser(ctx context.Context, id uint) (*model.User, error)
	UpdateAccount(ctx context.Context, id uint, in AccountInput) (*model.User, error)
}

type userService struct {
	repo      repository.UserRepository
	cache     *cache.Client
	validator *validation.Validator
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client, validator *validation.Validator) UserService {
	return &userService{repo: repo, cache: cache, validator: validator}
}

func (s *userService) cacheKey(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

// GetUser returns the account with its profile, served from cache when fresh.
func (s *userService) GetUser(ctx context.Context, id uint) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, userCacheTTL)
	}
	return user, nil
}

// UpdateAccount saves name and email. The profile is saved alongside.
func (s *userService) UpdateAccount(ctx context.Context, id uint, in AccountInput) (*model.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validator.Struct(&in); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.Email = in.Email
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return user, nil
}
