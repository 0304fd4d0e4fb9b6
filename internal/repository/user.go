package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Payphone-Digital/storefront/internal/model"
	ctxutil "github.com/Payphone-Digital/storefront/pkg/context"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func withRefreshTokens(db *gorm.DB) *gorm.DB {
	return db.Preload("RefreshTokens", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("created_at ASC").Order("id ASC")
	})
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "CreateUser")

	start := time.Now()
	err := r.db.WithContext(ctx).Omit("RefreshTokens").Create(user).Error
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		logger.ErrorWithContext(ctx, "Failed to create user").
			String("email", user.Email).
			Duration(duration).
			Err(err).
			Log()
		return err
	}

	logger.DebugWithContext(ctx, "User created").
		String("user_id", user.ID).
		Duration(duration).
		Log()
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctxutil.WithOperation(ctx, "repository", "FindByEmail"), "email = ?", email)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctxutil.WithOperation(ctx, "repository", "FindByID"), "id = ?", id)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	start := time.Now()
	var user model.User

	err := withRefreshTokens(r.db.WithContext(ctx)).Where(query, arg).First(&user).Error
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		logger.ErrorWithContext(ctx, "Failed to load user").
			Duration(duration).
			Err(err).
			Log()
		return nil, err
	}

	logger.DebugWithContext(ctx, "User loaded").
		String("user_id", user.ID).
		Int("refresh_tokens", len(user.RefreshTokens)).
		Duration(duration).
		Log()
	return &user, nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int, search string) ([]model.User, int64, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "ListUsers")

	start := time.Now()
	var users []model.User
	var total int64

	query := r.db.WithContext(ctx).Model(&model.User{})
	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("name ILIKE ? OR email ILIKE ?", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to count users").Err(err).Log()
		return nil, 0, err
	}

	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to fetch users").
			Int("limit", limit).
			Int("offset", offset).
			String("search", search).
			Duration(time.Since(start)).
			Err(err).
			Log()
		return nil, 0, err
	}

	logger.DebugWithContext(ctx, "Users listed").
		Int("count", len(users)).
		Int64("total", total).
		Duration(time.Since(start)).
		Log()
	return users, total, nil
}

func (r *UserRepository) Update(ctx context.Context, id string, update model.UserUpdate) (*model.User, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "UpdateUser")

	if update.IsEmpty() {
		return r.FindByID(ctx, id)
	}

	columns := map[string]interface{}{}
	if update.Name != nil {
		columns["name"] = *update.Name
	}
	if update.Email != nil {
		columns["email"] = *update.Email
	}
	if update.Password != nil {
		columns["password"] = *update.Password
	}
	if update.IsAdmin != nil {
		columns["is_admin"] = *update.IsAdmin
	}

	start := time.Now()
	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicate
		}
		logger.ErrorWithContext(ctx, "Failed to update user").
			String("user_id", id).
			Duration(time.Since(start)).
			Err(result.Error).
			Log()
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return r.FindByID(ctx, id)
}

// Delete removes the user and its refresh tokens
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "DeleteUser")

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&model.RefreshToken{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.User{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AppendRefreshToken inserts record and deletes all but the newest keep rows
// for the user. The user row is locked for the duration so concurrent logins
// for one account serialize and the trim cannot interleave.
func (r *UserRepository) AppendRefreshToken(ctx context.Context, userID string, record model.RefreshToken, keep int) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "AppendRefreshToken")
	start := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner model.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", userID).
			First(&owner).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		record.ID = 0
		record.UserID = userID
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		newest := tx.Model(&model.RefreshToken{}).
			Select("id").
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Order("id DESC").
			Limit(keep)

		return tx.Where("user_id = ? AND id NOT IN (?)", userID, newest).
			Delete(&model.RefreshToken{}).Error
	})

	if err != nil && !errors.Is(err, ErrNotFound) {
		logger.ErrorWithContext(ctx, "Failed to append refresh token").
			String("user_id", userID).
			Duration(time.Since(start)).
			Err(err).
			Log()
	}
	return err
}

func (r *UserRepository) RemoveRefreshToken(ctx context.Context, userID, token string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "RemoveRefreshToken")

	result := r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&model.RefreshToken{})
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to remove refresh token").
			String("user_id", userID).
			Err(result.Error).
			Log()
		return result.Error
	}

	logger.DebugWithContext(ctx, "Refresh token removed").
		String("user_id", userID).
		Int64("rows", result.RowsAffected).
		Log()
	return nil
}

func (r *UserRepository) ClearRefreshTokens(ctx context.Context, userID string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "ClearRefreshTokens")

	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.RefreshToken{})
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to clear refresh tokens").
			String("user_id", userID).
			Err(result.Error).
			Log()
		return result.Error
	}

	logger.InfoWithContext(ctx, "Refresh tokens cleared").
		String("user_id", userID).
		Int64("rows", result.RowsAffected).
		Log()
	return nil
}
