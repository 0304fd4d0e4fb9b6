package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Payphone-Digital/storefront/internal/constants"
	apperrors "github.com/Payphone-Digital/storefront/internal/errors"
	"github.com/Payphone-Digital/storefront/internal/handler"
	"github.com/Payphone-Digital/storefront/internal/mocks"
	"github.com/Payphone-Digital/storefront/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func promoRouter(t *testing.T) (*gin.Engine, *mocks.MockPromoService) {
	ctrl := gomock.NewController(t)
	promos := mocks.NewMockPromoService(ctrl)
	h := handler.NewPromoHandler(promos)

	r := gin.New()
	r.POST("/promos/check", asUser(alice), h.Check)
	r.POST("/promos/use", asUser(alice), h.Use)
	r.GET("/promos", h.List)
	r.POST("/promos", h.Create)
	r.GET("/promos/:id", h.Get)
	r.PUT("/promos/:id", h.Update)
	r.DELETE("/promos/:id", h.Delete)
	return r, promos
}

func TestCheckPromo(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		message  string
		discount float64
	}{
		{"valid", nil, http.StatusOK, constants.MsgPromoValid, 10},
		{"unknown", apperrors.ErrPromoNotFound, http.StatusNotFound, apperrors.ErrPromoNotFound.Message, 0},
		{"exhausted", apperrors.ErrPromoExhausted, http.StatusBadRequest, apperrors.ErrPromoExhausted.Message, 0},
		{"expired", apperrors.ErrPromoExpired, http.StatusBadRequest, apperrors.ErrPromoExpired.Message, 0},
		{"not eligible", apperrors.ErrPromoNotEligible, http.StatusBadRequest, apperrors.ErrPromoNotEligible.Message, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, promos := promoRouter(t)
			promos.EXPECT().Check(gomock.Any(), "WELCOME10", "u1").Return(tt.discount, tt.err)

			w := perform(r, http.MethodPost, "/promos/check", `{"code":"WELCOME10"}`)
			require.Equal(t, tt.status, w.Code)

			body := decode(t, w)
			assert.Equal(t, tt.message, body["message"])
			if tt.err == nil {
				assert.EqualValues(t, tt.discount, body["discount"])
			}
		})
	}
}

func TestCheckPromoRequiresCode(t *testing.T) {
	r, _ := promoRouter(t)

	w := perform(r, http.MethodPost, "/promos/check", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, constants.MsgValidationFailed, decode(t, w)["message"])
}

func TestUsePromo(t *testing.T) {
	r, promos := promoRouter(t)
	promos.EXPECT().Redeem(gomock.Any(), "SAVE20", "u1").Return(nil)

	w := perform(r, http.MethodPost, "/promos/use", `{"code":"SAVE20"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, constants.MsgPromoUsed, decode(t, w)["message"])
}

func TestUsePromoStoreFailureIsOpaque(t *testing.T) {
	r, promos := promoRouter(t)
	promos.EXPECT().Redeem(gomock.Any(), "SAVE20", "u1").Return(errors.New("connection reset"))

	w := perform(r, http.MethodPost, "/promos/use", `{"code":"SAVE20"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperrors.ErrInternal.Message, decode(t, w)["message"])
}

func TestCreatePromoReturnsPlaceholder(t *testing.T) {
	r, promos := promoRouter(t)
	promos.EXPECT().Create(gomock.Any()).Return(&model.PromoCode{
		ID:        "p1",
		Code:      "PROMO",
		MaxUses:   100,
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
	}, nil)

	w := perform(r, http.MethodPost, "/promos", "")
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, w)
	assert.Equal(t, "PROMO", body["code"])
	assert.Equal(t, []any{}, body["users"])
}

func TestUpdatePromo(t *testing.T) {
	t.Run("applies present fields", func(t *testing.T) {
		r, promos := promoRouter(t)
		promos.EXPECT().Update(gomock.Any(), "p1", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, update model.PromoUpdate) (*model.PromoCode, error) {
				require.NotNil(t, update.Discount)
				assert.Zero(t, *update.Discount)
				require.NotNil(t, update.Users)
				assert.Equal(t, []string{"u1"}, *update.Users)
				assert.Nil(t, update.Code)
				assert.Nil(t, update.MaxUses)
				return &model.PromoCode{ID: "p1", Code: "PROMO", Users: datatypes.JSONSlice[string]{"u1"}}, nil
			})

		w := perform(r, http.MethodPut, "/promos/p1", `{"discount":0,"users":["u1"]}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []any{"u1"}, decode(t, w)["users"])
	})

	t.Run("rejects out of range values", func(t *testing.T) {
		r, _ := promoRouter(t)

		for _, body := range []string{`{"discount":101}`, `{"max_uses":0}`, `{"code":"no spaces!"}`} {
			w := perform(r, http.MethodPut, "/promos/p1", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
		}
	})

	t.Run("max uses below current uses", func(t *testing.T) {
		r, promos := promoRouter(t)
		promos.EXPECT().Update(gomock.Any(), "p1", gomock.Any()).Return(nil, apperrors.ErrPromoMaxUsesTooLow)

		w := perform(r, http.MethodPut, "/promos/p1", `{"max_uses":1}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.ErrPromoMaxUsesTooLow.Message, decode(t, w)["message"])
	})
}

func TestListAndDeletePromos(t *testing.T) {
	r, promos := promoRouter(t)
	gomock.InOrder(
		promos.EXPECT().List(gomock.Any()).Return([]model.PromoCode{{ID: "p1"}, {ID: "p2"}}, nil),
		promos.EXPECT().Delete(gomock.Any(), "p1").Return(nil),
		promos.EXPECT().Get(gomock.Any(), "p1").Return(nil, apperrors.ErrPromoNotFound),
	)

	w := perform(r, http.MethodGet, "/promos", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"p2"`)

	w = perform(r, http.MethodDelete, "/promos/p1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, constants.MsgPromoRemoved, decode(t, w)["message"])

	w = perform(r, http.MethodGet, "/promos/p1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
