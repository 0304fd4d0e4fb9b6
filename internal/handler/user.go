package handler

import (
	"context"
	"net/http"

	"github.com/Payphone-Digital/storefront/internal/constants"
	"github.com/Payphone-Digital/storefront/internal/dto"
	"github.com/Payphone-Digital/storefront/internal/middleware"
	"github.com/Payphone-Digital/storefront/internal/model"
	"github.com/Payphone-Digital/storefront/internal/service"
	ctxutil "github.com/Payphone-Digital/storefront/pkg/context"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"github.com/gin-gonic/gin"
)

//go:generate mockgen -source=user.go -destination=../mocks/user_service.go -package=mocks

type UserService interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, patch service.UserPatch) (*model.User, error)
	List(ctx context.Context, limit, offset int, search string) ([]model.User, int64, error)
	Get(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, id string, patch service.UserPatch) (*model.User, error)
	Delete(ctx context.Context, id string) error
}

type UserHandler struct {
	users UserService
}

func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "GetProfile")

	user, err := h.users.GetProfile(ctx, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "UpdateProfile")

	var req dto.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.UpdateProfile(ctx, middleware.CurrentUserID(c), service.UserPatch{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// List pages through users, newest first, with an optional name/email search
func (h *UserHandler) List(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ListUsers")

	params := constants.ParsePaginationParams(c)
	users, total, err := h.users.List(ctx, params.Limit, params.Offset, params.Search)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.DebugWithContext(ctx, "Users listed").
		Int("page", params.Page).
		Int("limit", params.Limit).
		Int64("total", total).
		Log()

	c.JSON(http.StatusOK, constants.BuildListResponse(
		total, params.Page, constants.PageTotal(total, params.Limit), dto.NewUserResponses(users)))
}

func (h *UserHandler) Get(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "GetUser")

	user, err := h.users.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

func (h *UserHandler) Update(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "UpdateUser")

	var req dto.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.Update(ctx, c.Param("id"), service.UserPatch{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

func (h *UserHandler) Delete(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "DeleteUser")

	if err := h.users.Delete(ctx, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgUserRemoved))
}
