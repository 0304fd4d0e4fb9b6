package handler

import (
	"context"
	"net/http"

	"github.com/Payphone-Digital/storefront/internal/constants"
	"github.com/Payphone-Digital/storefront/internal/dto"
	"github.com/Payphone-Digital/storefront/internal/middleware"
	"github.com/Payphone-Digital/storefront/internal/model"
	ctxutil "github.com/Payphone-Digital/storefront/pkg/context"
	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=promo.go -destination=../mocks/promo_service.go -package=mocks

type PromoService interface {
	Check(ctx context.Context, code, userID string) (float64, error)
	Redeem(ctx context.Context, code, userID string) error
	Create(ctx context.Context) (*model.PromoCode, error)
	Update(ctx context.Context, id string, update model.PromoUpdate) (*model.PromoCode, error)
	Get(ctx context.Context, id string) (*model.PromoCode, error)
	List(ctx context.Context) ([]model.PromoCode, error)
	Delete(ctx context.Context, id string) error
}

type PromoHandler struct {
	promos PromoService
}

func NewPromoHandler(promos PromoService) *PromoHandler {
	return &PromoHandler{promos: promos}
}

func (h *PromoHandler) Check(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "CheckPromo")

	var req dto.PromoCodeRequest
	if !bindJSON(c, &req) {
		return
	}

	discount, err := h.promos.Check(ctx, req.Code, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PromoCheckResponse{Message: constants.MsgPromoValid, Discount: discount})
}

func (h *PromoHandler) Use(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "UsePromo")

	var req dto.PromoCodeRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.promos.Redeem(ctx, req.Code, middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgPromoUsed))
}

func (h *PromoHandler) List(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ListPromos")

	promos, err := h.promos.List(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPromoResponses(promos))
}

func (h *PromoHandler) Get(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "GetPromo")

	promo, err := h.promos.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPromoResponse(promo))
}

// Create stores a placeholder code that an admin edits afterwards
func (h *PromoHandler) Create(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "CreatePromo")

	promo, err := h.promos.Create(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewPromoResponse(promo))
}

func (h *PromoHandler) Update(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "UpdatePromo")

	var req dto.UpdatePromoRequest
	if !bindJSON(c, &req) {
		return
	}

	promo, err := h.promos.Update(ctx, c.Param("id"), req.ToUpdate())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPromoResponse(promo))
}

func (h *PromoHandler) Delete(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "DeletePromo")

	if err := h.promos.Delete(ctx, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgPromoRemoved))
}
