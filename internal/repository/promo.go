package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Payphone-Digital/storefront/internal/model"
	ctxutil "github.com/Payphone-Digital/storefront/pkg/context"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PromoRepository struct {
	db *gorm.DB
}

func NewPromoRepository(db *gorm.DB) *PromoRepository {
	return &PromoRepository{db: db}
}

func (r *PromoRepository) Create(ctx context.Context, promo *model.PromoCode) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "CreatePromo")

	if err := r.db.WithContext(ctx).Create(promo).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		logger.ErrorWithContext(ctx, "Failed to create promo code").
			String("code", promo.Code).
			Err(err).
			Log()
		return err
	}
	return nil
}

func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	return r.findOne(ctxutil.WithOperation(ctx, "repository", "FindPromoByCode"), "code = ?", code)
}

func (r *PromoRepository) FindByID(ctx context.Context, id string) (*model.PromoCode, error) {
	return r.findOne(ctxutil.WithOperation(ctx, "repository", "FindPromoByID"), "id = ?", id)
}

func (r *PromoRepository) findOne(ctx context.Context, query string, arg any) (*model.PromoCode, error) {
	var promo model.PromoCode
	if err := r.db.WithContext(ctx).Where(query, arg).First(&promo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		logger.ErrorWithContext(ctx, "Failed to load promo code").Err(err).Log()
		return nil, err
	}
	return &promo, nil
}

func (r *PromoRepository) List(ctx context.Context) ([]model.PromoCode, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "ListPromos")

	var promos []model.PromoCode
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&promos).Error; err != nil {
		logger.ErrorWithContext(ctx, "Failed to list promo codes").Err(err).Log()
		return nil, err
	}
	return promos, nil
}

// Update applies the provided fields. When MaxUses is set the write only
// matches while uses <= the new cap; ErrConflict reports the rejection.
func (r *PromoRepository) Update(ctx context.Context, id string, update model.PromoUpdate) (*model.PromoCode, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "UpdatePromo")

	if update.IsEmpty() {
		return r.FindByID(ctx, id)
	}

	columns := map[string]interface{}{}
	if update.Code != nil {
		columns["code"] = *update.Code
	}
	if update.Discount != nil {
		columns["discount"] = *update.Discount
	}
	if update.MaxUses != nil {
		columns["max_uses"] = *update.MaxUses
	}
	if update.ExpiresAt != nil {
		columns["expires_at"] = *update.ExpiresAt
	}
	if update.Users != nil {
		users := *update.Users
		if users == nil {
			users = []string{}
		}
		columns["users"] = datatypes.JSONSlice[string](users)
	}

	query := r.db.WithContext(ctx).Model(&model.PromoCode{}).Where("id = ?", id)
	if update.MaxUses != nil {
		query = query.Where("uses <= ?", *update.MaxUses)
	}

	result := query.Updates(columns)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicate
		}
		logger.ErrorWithContext(ctx, "Failed to update promo code").
			String("promo_id", id).
			Err(result.Error).
			Log()
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}

	return r.FindByID(ctx, id)
}

func (r *PromoRepository) Delete(ctx context.Context, id string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "DeletePromo")

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.PromoCode{})
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to delete promo code").
			String("promo_id", id).
			Err(result.Error).
			Log()
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Redeem increments uses in a single UPDATE whose WHERE clause carries the
// cap, expiry and eligibility checks, so two racing callers can never both
// take the last use.
func (r *PromoRepository) Redeem(ctx context.Context, code, userID string, now time.Time) (bool, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "RedeemPromo")

	member, err := json.Marshal([]string{userID})
	if err != nil {
		return false, err
	}

	start := time.Now()
	result := r.db.WithContext(ctx).Model(&model.PromoCode{}).
		Where("code = ?", code).
		Where("uses < max_uses").
		Where("expires_at > ?", now).
		Where("(jsonb_array_length(users) = 0 OR users @> ?::jsonb)", string(member)).
		Updates(map[string]interface{}{
			"uses":       gorm.Expr("uses + ?", 1),
			"updated_at": now,
		})
	duration := time.Since(start)

	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to redeem promo code").
			String("code", code).
			Duration(duration).
			Err(result.Error).
			Log()
		return false, result.Error
	}

	logger.DebugWithContext(ctx, "Promo redeem attempted").
		String("code", code).
		Bool("applied", result.RowsAffected == 1).
		Duration(duration).
		Log()
	return result.RowsAffected == 1, nil
}
