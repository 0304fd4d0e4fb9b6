package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Payphone-Digital/storefront/internal/model"
)

var (
	// ErrNotFound is returned when the addressed record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field (email, promo code) is taken
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when a guarded update matched no row
	ErrConflict = errors.New("conditional update rejected")
)

// UserStore persists credential records and their refresh tokens.
// AppendRefreshToken must add the record and trim the list to the newest
// keep entries as one atomic step per user.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context, limit, offset int, search string) ([]model.User, int64, error)
	Update(ctx context.Context, id string, update model.UserUpdate) (*model.User, error)
	Delete(ctx context.Context, id string) error

	AppendRefreshToken(ctx context.Context, userID string, record model.RefreshToken, keep int) error
	RemoveRefreshToken(ctx context.Context, userID, token string) error
	ClearRefreshTokens(ctx context.Context, userID string) error
}

// PromoStore persists promo codes. Redeem must check the cap, the expiry and
// eligibility and increment uses in one conditional write; applied reports
// whether the increment happened.
type PromoStore interface {
	Create(ctx context.Context, promo *model.PromoCode) error
	FindByCode(ctx context.Context, code string) (*model.PromoCode, error)
	FindByID(ctx context.Context, id string) (*model.PromoCode, error)
	List(ctx context.Context) ([]model.PromoCode, error)
	Update(ctx context.Context, id string, update model.PromoUpdate) (*model.PromoCode, error)
	Delete(ctx context.Context, id string) error

	Redeem(ctx context.Context, code, userID string, now time.Time) (applied bool, err error)
}
