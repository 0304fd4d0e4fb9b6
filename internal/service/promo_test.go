package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Payphone-Digital/storefront/internal/constants"
	apperrors "github.com/Payphone-Digital/storefront/internal/errors"
	"github.com/Payphone-Digital/storefront/internal/model"
	"github.com/Payphone-Digital/storefront/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type promoFixture struct {
	ledger    *PromoLedger
	store     *memory.PromoStore
	clock     *testClock
	publisher *recordingPublisher
}

func newPromoFixture(t *testing.T) *promoFixture {
	t.Helper()
	clock := newTestClock()
	store := memory.NewPromoStore()
	publisher := &recordingPublisher{}
	return &promoFixture{
		ledger:    NewPromoLedger(store, WithPromoClock(clock.Now), WithPromoPublisher(publisher)),
		store:     store,
		clock:     clock,
		publisher: publisher,
	}
}

func (f *promoFixture) seed(t *testing.T, p model.PromoCode) *model.PromoCode {
	t.Helper()
	if p.ExpiresAt.IsZero() {
		p.ExpiresAt = f.clock.Now().Add(24 * time.Hour)
	}
	require.NoError(t, f.store.Create(context.Background(), &p))
	return &p
}

func TestCheckThenRedeemUntilExhausted(t *testing.T) {
	f := newPromoFixture(t)
	ctx := context.Background()
	f.seed(t, model.PromoCode{Code: "SAVE10", Discount: 10, MaxUses: 1})

	discount, err := f.ledger.Check(ctx, "SAVE10", "anyone")
	require.NoError(t, err)
	assert.Equal(t, 10.0, discount)

	require.NoError(t, f.ledger.Redeem(ctx, "SAVE10", "anyone"))

	promo, err := f.store.FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, promo.Uses)

	assert.ErrorIs(t, f.ledger.Redeem(ctx, "SAVE10", "anyone"), apperrors.ErrPromoExhausted)
	_, err = f.ledger.Check(ctx, "SAVE10", "anyone")
	assert.ErrorIs(t, err, apperrors.ErrPromoExhausted)

	assert.Equal(t, []string{constants.EventPromoRedeemed}, f.publisher.Types())
}

func TestEligibility(t *testing.T) {
	f := newPromoFixture(t)
	ctx := context.Background()
	f.seed(t, model.PromoCode{Code: "VIP", Discount: 25, MaxUses: 10, Users: datatypes.JSONSlice[string]{"user-a"}})

	_, err := f.ledger.Check(ctx, "VIP", "user-b")
	assert.ErrorIs(t, err, apperrors.ErrPromoNotEligible)
	assert.ErrorIs(t, f.ledger.Redeem(ctx, "VIP", "user-b"), apperrors.ErrPromoNotEligible)

	discount, err := f.ledger.Check(ctx, "VIP", "user-a")
	require.NoError(t, err)
	assert.Equal(t, 25.0, discount)
	assert.NoError(t, f.ledger.Redeem(ctx, "VIP", "user-a"))
}

func TestFailurePrecedence(t *testing.T) {
	f := newPromoFixture(t)
	ctx := context.Background()
	past := f.clock.Now().Add(-time.Hour)

	f.seed(t, model.PromoCode{Code: "ALLBAD", MaxUses: 1, Uses: 1, ExpiresAt: past, Users: datatypes.JSONSlice[string]{"x"}})
	f.seed(t, model.PromoCode{Code: "OLDNOTYOU", MaxUses: 5, ExpiresAt: past, Users: datatypes.JSONSlice[string]{"x"}})
	f.seed(t, model.PromoCode{Code: "NOTYOU", MaxUses: 5, Users: datatypes.JSONSlice[string]{"x"}})

	tests := []struct {
		code string
		want error
	}{
		{"MISSING", apperrors.ErrPromoNotFound},
		{"ALLBAD", apperrors.ErrPromoExhausted},
		{"OLDNOTYOU", apperrors.ErrPromoExpired},
		{"NOTYOU", apperrors.ErrPromoNotEligible},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, err := f.ledger.Check(ctx, tt.code, "y")
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, f.ledger.Redeem(ctx, tt.code, "y"), tt.want)
		})
	}
}

func TestExpiryBoundary(t *testing.T) {
	f := newPromoFixture(t)
	ctx := context.Background()
	f.seed(t, model.PromoCode{Code: "EDGE", MaxUses: 5, ExpiresAt: f.clock.Now().Add(time.Minute)})

	_, err := f.ledger.Check(ctx, "EDGE", "u")
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.ledger.Check(ctx, "EDGE", "u")
	assert.ErrorIs(t, err, apperrors.ErrPromoExpired)
}

func TestConcurrentRedeemNeverOverspends(t *testing.T) {
	f := newPromoFixture(t)
	ctx := context.Background()
	f.seed(t, model.PromoCode{Code: "RUSH", Discount: 5, MaxUses: 10})

	var applied, exhausted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.ledger.Redeem(ctx, "RUSH", "u")
			switch {
			case err == nil:
				applied.Add(1)
			case assert.ErrorIs(t, err, apperrors.ErrPromoExhausted):
				exhausted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), applied.Load())
	assert.Equal(t, int32(40), exhausted.Load())

	promo, err := f.store.FindByCode(ctx, "RUSH")
	require.NoError(t, err)
	assert.Equal(t, 10, promo.Uses)
}

func TestCreatePlaceholder(t *testing.T) {
	f := newPromoFixture(t)
	ctx := context.Background()

	promo, err := f.ledger.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PROMO", promo.Code)
	assert.Equal(t, 0.0, promo.Discount)
	assert.Equal(t, 100, promo.MaxUses)
	assert.Equal(t, 0, promo.Uses)
	assert.Equal(t, f.clock.Now().Add(30*24*time.Hour), promo.ExpiresAt)
	assert.Empty(t, promo.Users)

	_, err = f.ledger.Create(ctx)
	assert.ErrorIs(t, err, apperrors.ErrPromoCodeExists)
}

func TestUpdatePromo(t *testing.T) {
	f := newPromoFixture(t)
	ctx := context.Background()
	promo := f.seed(t, model.PromoCode{Code: "BASE", Discount: 10, MaxUses: 10, Uses: 4, Users: datatypes.JSONSlice[string]{"a"}})
	f.seed(t, model.PromoCode{Code: "TAKEN", MaxUses: 1})

	t.Run("zero discount and cleared users are applied", func(t *testing.T) {
		zero := 0.0
		empty := []string{}
		updated, err := f.ledger.Update(ctx, promo.ID, model.PromoUpdate{Discount: &zero, Users: &empty})
		require.NoError(t, err)
		assert.Equal(t, 0.0, updated.Discount)
		assert.Empty(t, updated.Users)
		assert.Equal(t, "BASE", updated.Code)
		assert.Equal(t, 10, updated.MaxUses)
	})

	t.Run("max uses below current uses", func(t *testing.T) {
		three := 3
		_, err := f.ledger.Update(ctx, promo.ID, model.PromoUpdate{MaxUses: &three})
		assert.ErrorIs(t, err, apperrors.ErrPromoMaxUsesTooLow)
	})

	t.Run("max uses equal to current uses", func(t *testing.T) {
		four := 4
		updated, err := f.ledger.Update(ctx, promo.ID, model.PromoUpdate{MaxUses: &four})
		require.NoError(t, err)
		assert.True(t, updated.Exhausted())
	})

	t.Run("duplicate code", func(t *testing.T) {
		code := "TAKEN"
		_, err := f.ledger.Update(ctx, promo.ID, model.PromoUpdate{Code: &code})
		assert.ErrorIs(t, err, apperrors.ErrPromoCodeExists)
	})

	t.Run("invalid input", func(t *testing.T) {
		badCode := "A-"
		tooMuch := 120.0
		zeroUses := 0
		past := f.clock.Now().Add(-time.Second)
		for name, update := range map[string]model.PromoUpdate{
			"code":       {Code: &badCode},
			"discount":   {Discount: &tooMuch},
			"max uses":   {MaxUses: &zeroUses},
			"expires at": {ExpiresAt: &past},
		} {
			_, err := f.ledger.Update(ctx, promo.ID, update)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput, name)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		d := 5.0
		_, err := f.ledger.Update(ctx, "missing", model.PromoUpdate{Discount: &d})
		assert.ErrorIs(t, err, apperrors.ErrPromoNotFound)
	})
}

func TestGetListDelete(t *testing.T) {
	f := newPromoFixture(t)
	ctx := context.Background()
	promo := f.seed(t, model.PromoCode{Code: "ONE", MaxUses: 1})
	f.seed(t, model.PromoCode{Code: "TWO", MaxUses: 1})

	got, err := f.ledger.Get(ctx, promo.ID)
	require.NoError(t, err)
	assert.Equal(t, "ONE", got.Code)

	all, err := f.ledger.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, f.ledger.Delete(ctx, promo.ID))
	assert.ErrorIs(t, f.ledger.Delete(ctx, promo.ID), apperrors.ErrPromoNotFound)
	_, err = f.ledger.Get(ctx, promo.ID)
	assert.ErrorIs(t, err, apperrors.ErrPromoNotFound)
}
