package service

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/Payphone-Digital/storefront/internal/errors"
	"github.com/Payphone-Digital/storefront/internal/model"
	"github.com/Payphone-Digital/storefront/internal/repository"
	ctxutil "github.com/Payphone-Digital/storefront/pkg/context"
	"github.com/Payphone-Digital/storefront/pkg/logger"
)

// UserPatch is a partial update as received from a client. Password is
// plain text; an empty password counts as absent.
type UserPatch struct {
	Name     *string
	Email    *string
	Password *string
	IsAdmin  *bool
}

type UserService struct {
	users  repository.UserStore
	hasher *PasswordHasher
}

func NewUserService(users repository.UserStore, hasher *PasswordHasher) *UserService {
	return &UserService{users: users, hasher: hasher}
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "GetUser")

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		logger.ErrorWithContext(ctx, "Failed to get user by ID").String("target_id", id).Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	return user, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	return s.Get(ctx, userID)
}

// UpdateProfile lets a user change their own name, email and password.
// IsAdmin is never taken from a profile update.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, patch UserPatch) (*model.User, error) {
	patch.IsAdmin = nil
	return s.update(ctxutil.WithOperation(ctx, "service", "UpdateProfile"), userID, patch)
}

func (s *UserService) Update(ctx context.Context, id string, patch UserPatch) (*model.User, error) {
	return s.update(ctxutil.WithOperation(ctx, "service", "UpdateUser"), id, patch)
}

func (s *UserService) update(ctx context.Context, id string, patch UserPatch) (*model.User, error) {
	update := model.UserUpdate{IsAdmin: patch.IsAdmin}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		update.Name = &name
	}
	if patch.Email != nil {
		email := model.NormalizeEmail(*patch.Email)
		update.Email = &email
	}
	if patch.Password != nil && *patch.Password != "" {
		hashed, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			logger.ErrorWithContext(ctx, "Failed to hash password").Err(err).Log()
			return nil, apperrors.WrapError(apperrors.ErrInternal, err)
		}
		update.Password = &hashed
	}

	if update.IsEmpty() {
		return s.Get(ctx, id)
	}

	user, err := s.users.Update(ctx, id, update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.ErrUserNotFound
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperrors.ErrUserExists
		}
		logger.ErrorWithContext(ctx, "Failed to update user").String("target_id", id).Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "User updated").
		String("target_id", id).
		Bool("password_changed", update.Password != nil).
		Log()
	return user, nil
}

func (s *UserService) List(ctx context.Context, limit, offset int, search string) ([]model.User, int64, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "ListUsers")

	users, total, err := s.users.List(ctx, limit, offset, strings.TrimSpace(search))
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to list users").
			Int("limit", limit).
			Int("offset", offset).
			String("search", search).
			Err(err).
			Log()
		return nil, 0, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.DebugWithContext(ctx, "Users listed").
		Int64("total", total).
		Int("returned_count", len(users)).
		Log()
	return users, total, nil
}

// Delete removes a user. Admin accounts can never be deleted.
func (s *UserService) Delete(ctx context.Context, id string) error {
	ctx = ctxutil.WithOperation(ctx, "service", "DeleteUser")

	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.IsAdmin {
		logger.WarnWithContext(ctx, "Refused to delete admin user").String("target_id", id).Log()
		return apperrors.ErrAdminProtected
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ErrUserNotFound
		}
		logger.ErrorWithContext(ctx, "Failed to delete user").String("target_id", id).Err(err).Log()
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "User deleted").String("target_id", id).Log()
	return nil
}
