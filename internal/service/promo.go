package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/Payphone-Digital/storefront/internal/constants"
	apperrors "github.com/Payphone-Digital/storefront/internal/errors"
	"github.com/Payphone-Digital/storefront/internal/model"
	"github.com/Payphone-Digital/storefront/internal/repository"
	ctxutil "github.com/Payphone-Digital/storefront/pkg/context"
	"github.com/Payphone-Digital/storefront/pkg/events"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"github.com/Payphone-Digital/storefront/pkg/metrics"
	"gorm.io/datatypes"
)

var promoCodeRe = regexp.MustCompile(constants.PromoCodePattern)

// placeholder values for a freshly created promo, edited afterwards by an admin
const (
	placeholderCode     = "PROMO"
	placeholderMaxUses  = 100
	placeholderLifetime = 30 * 24 * time.Hour
)

// PromoLedger evaluates and redeems promo codes. Redemption is one
// conditional write in the store; Check is advisory only.
type PromoLedger struct {
	promos    repository.PromoStore
	publisher events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

type PromoOption func(*PromoLedger)

func WithPromoClock(now func() time.Time) PromoOption {
	return func(l *PromoLedger) { l.now = now }
}

func WithPromoPublisher(p events.Publisher) PromoOption {
	return func(l *PromoLedger) { l.publisher = p }
}

func WithPromoMetrics(m *metrics.Metrics) PromoOption {
	return func(l *PromoLedger) { l.metrics = m }
}

func NewPromoLedger(promos repository.PromoStore, opts ...PromoOption) *PromoLedger {
	l := &PromoLedger{
		promos:    promos,
		publisher: events.NoopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// evaluate applies the failure precedence: exhausted, expired, not eligible
func evaluate(p *model.PromoCode, userID string, now time.Time) error {
	switch {
	case p.Exhausted():
		return apperrors.ErrPromoExhausted
	case p.Expired(now):
		return apperrors.ErrPromoExpired
	case !p.EligibleFor(userID):
		return apperrors.ErrPromoNotEligible
	}
	return nil
}

func (l *PromoLedger) find(ctx context.Context, code string) (*model.PromoCode, error) {
	promo, err := l.promos.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrPromoNotFound
		}
		logger.ErrorWithContext(ctx, "Failed to load promo code").String("code", code).Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	return promo, nil
}

// Check reports the discount userID would get from code without consuming a use
func (l *PromoLedger) Check(ctx context.Context, code, userID string) (float64, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "CheckPromo")
	code = strings.TrimSpace(code)

	promo, err := l.find(ctx, code)
	if err != nil {
		l.metrics.PromoOutcome("check", outcomeOf(err))
		return 0, err
	}
	if err := evaluate(promo, userID, l.now()); err != nil {
		l.metrics.PromoOutcome("check", outcomeOf(err))
		return 0, err
	}

	l.metrics.PromoOutcome("check", "valid")
	return promo.Discount, nil
}

// Redeem consumes one use of code for userID
func (l *PromoLedger) Redeem(ctx context.Context, code, userID string) error {
	ctx = ctxutil.WithOperation(ctx, "service", "RedeemPromo")
	code = strings.TrimSpace(code)
	now := l.now()

	applied, err := l.promos.Redeem(ctx, code, userID, now)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to redeem promo code").String("code", code).Err(err).Log()
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if !applied {
		// re-read to report why the conditional write did not apply
		promo, err := l.find(ctx, code)
		if err != nil {
			l.metrics.PromoOutcome("redeem", outcomeOf(err))
			return err
		}
		reason := evaluate(promo, userID, now)
		if reason == nil {
			// a concurrent redeemer took the last use between the write and the read
			reason = apperrors.ErrPromoExhausted
		}
		logger.InfoWithContext(ctx, "Promo redemption refused").
			String("code", code).
			String("reason", reason.Error()).
			Log()
		l.metrics.PromoOutcome("redeem", outcomeOf(reason))
		return reason
	}

	publishEvent(ctx, l.publisher, events.NewEvent(constants.EventPromoRedeemed, map[string]any{
		"code":    code,
		"user_id": userID,
	}))

	logger.InfoWithContext(ctx, "Promo code redeemed").String("code", code).Log()
	l.metrics.PromoOutcome("redeem", "applied")
	return nil
}

// Create stores a placeholder promo for an admin to edit
func (l *PromoLedger) Create(ctx context.Context) (*model.PromoCode, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "CreatePromo")

	promo := &model.PromoCode{
		Code:      placeholderCode,
		Discount:  0,
		MaxUses:   placeholderMaxUses,
		ExpiresAt: l.now().Add(placeholderLifetime),
		Users:     datatypes.JSONSlice[string]{},
	}
	if err := l.promos.Create(ctx, promo); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.ErrPromoCodeExists
		}
		logger.ErrorWithContext(ctx, "Failed to create promo code").Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Promo code created").String("promo_id", promo.ID).Log()
	return promo, nil
}

func (l *PromoLedger) validateUpdate(update model.PromoUpdate) error {
	if update.Code != nil && !promoCodeRe.MatchString(*update.Code) {
		return apperrors.WrapError(apperrors.ErrInvalidInput, errors.New("promo code must be 3-20 alphanumeric characters"))
	}
	if update.Discount != nil && (*update.Discount < constants.MinDiscount || *update.Discount > constants.MaxDiscount) {
		return apperrors.WrapError(apperrors.ErrInvalidInput, errors.New("discount must be between 0 and 100"))
	}
	if update.MaxUses != nil && *update.MaxUses < 1 {
		return apperrors.WrapError(apperrors.ErrInvalidInput, errors.New("max uses must be at least 1"))
	}
	if update.ExpiresAt != nil && !update.ExpiresAt.After(l.now()) {
		return apperrors.WrapError(apperrors.ErrInvalidInput, errors.New("expiry date must be in the future"))
	}
	return nil
}

// Update applies the fields present in update. Lowering maxUses below the
// current uses is refused by the store in the same write.
func (l *PromoLedger) Update(ctx context.Context, id string, update model.PromoUpdate) (*model.PromoCode, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "UpdatePromo")

	if update.Code != nil {
		trimmed := strings.TrimSpace(*update.Code)
		update.Code = &trimmed
	}
	if err := l.validateUpdate(update); err != nil {
		return nil, err
	}

	promo, err := l.promos.Update(ctx, id, update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.ErrPromoNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, apperrors.ErrPromoMaxUsesTooLow
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperrors.ErrPromoCodeExists
		}
		logger.ErrorWithContext(ctx, "Failed to update promo code").String("promo_id", id).Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Promo code updated").String("promo_id", id).Log()
	return promo, nil
}

func (l *PromoLedger) Get(ctx context.Context, id string) (*model.PromoCode, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "GetPromo")

	promo, err := l.promos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrPromoNotFound
		}
		logger.ErrorWithContext(ctx, "Failed to load promo code").String("promo_id", id).Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	return promo, nil
}

func (l *PromoLedger) List(ctx context.Context) ([]model.PromoCode, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "ListPromos")

	promos, err := l.promos.List(ctx)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to list promo codes").Err(err).Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	return promos, nil
}

func (l *PromoLedger) Delete(ctx context.Context, id string) error {
	ctx = ctxutil.WithOperation(ctx, "service", "DeletePromo")

	if err := l.promos.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ErrPromoNotFound
		}
		logger.ErrorWithContext(ctx, "Failed to delete promo code").String("promo_id", id).Err(err).Log()
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Promo code deleted").String("promo_id", id).Log()
	return nil
}

func outcomeOf(err error) string {
	if d := apperrors.GetDomainError(err); d != nil {
		return strings.ToLower(d.Code)
	}
	return "error"
}
