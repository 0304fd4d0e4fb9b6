package database

import (
	"context"
	"errors"
	"time"

	"github.com/Payphone-Digital/storefront/config"
	"github.com/Payphone-Digital/storefront/internal/constants"
	"github.com/Payphone-Digital/storefront/internal/model"
	"github.com/Payphone-Digital/storefront/internal/repository"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPromos are created on first seed
func DefaultPromos(now time.Time) []model.PromoCode {
	return []model.PromoCode{
		{Code: "WELCOME10", Discount: 10, MaxUses: 100, ExpiresAt: now.AddDate(0, 0, 30)},
		{Code: "SAVE20", Discount: 20, MaxUses: 50, ExpiresAt: now.AddDate(0, 0, 30)},
	}
}

// Seed creates the default admin and promo codes when they are missing.
// It works against any store, so mongo and postgres seed the same way.
func Seed(ctx context.Context, users repository.UserStore, promos repository.PromoStore, cfg config.SeedConfig) error {
	if err := SeedAdmin(ctx, users, cfg); err != nil {
		return err
	}
	return SeedPromos(ctx, promos, time.Now().UTC())
}

// SeedAdmin creates the default admin user if not exists
func SeedAdmin(ctx context.Context, users repository.UserStore, cfg config.SeedConfig) error {
	email := model.NormalizeEmail(cfg.AdminEmail)
	_, err := users.FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), constants.BcryptCost)
	if err != nil {
		return err
	}

	admin := &model.User{
		Name:     cfg.AdminName,
		Email:    email,
		Password: string(hashed),
		IsAdmin:  true,
	}
	if err := users.Create(ctx, admin); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return err
	}

	logger.GetLogger().Info("Seeded admin user", zap.String("email", email))
	return nil
}

// SeedPromos creates the default promo codes that do not exist yet
func SeedPromos(ctx context.Context, promos repository.PromoStore, now time.Time) error {
	for _, promo := range DefaultPromos(now) {
		_, err := promos.FindByCode(ctx, promo.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		p := promo
		if err := promos.Create(ctx, &p); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return err
		}
		logger.GetLogger().Info("Seeded promo code", zap.String("code", p.Code))
	}
	return nil
}
