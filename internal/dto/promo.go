package dto

import (
	"time"

	"github.com/Payphone-Digital/storefront/internal/model"
)

type PromoCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// UpdatePromoRequest fields are optional; a present zero value is applied
type UpdatePromoRequest struct {
	Code      *string    `json:"code" binding:"omitempty,promocode"`
	Discount  *float64   `json:"discount" binding:"omitempty,gte=0,lte=100"`
	MaxUses   *int       `json:"max_uses" binding:"omitempty,gte=1"`
	ExpiresAt *time.Time `json:"expires_at"`
	Users     *[]string  `json:"users"`
}

func (r UpdatePromoRequest) ToUpdate() model.PromoUpdate {
	return model.PromoUpdate{
		Code:      r.Code,
		Discount:  r.Discount,
		MaxUses:   r.MaxUses,
		ExpiresAt: r.ExpiresAt,
		Users:     r.Users,
	}
}

type PromoCheckResponse struct {
	Message  string  `json:"message"`
	Discount float64 `json:"discount"`
}

type PromoResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Discount  float64   `json:"discount"`
	MaxUses   int       `json:"max_uses"`
	Uses      int       `json:"uses"`
	ExpiresAt time.Time `json:"expires_at"`
	Users     []string  `json:"users"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewPromoResponse(p *model.PromoCode) *PromoResponse {
	users := []string(p.Users)
	if users == nil {
		users = []string{}
	}
	return &PromoResponse{
		ID:        p.ID,
		Code:      p.Code,
		Discount:  p.Discount,
		MaxUses:   p.MaxUses,
		Uses:      p.Uses,
		ExpiresAt: p.ExpiresAt,
		Users:     users,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func NewPromoResponses(promos []model.PromoCode) []PromoResponse {
	out := make([]PromoResponse, 0, len(promos))
	for i := range promos {
		out = append(out, *NewPromoResponse(&promos[i]))
	}
	return out
}
