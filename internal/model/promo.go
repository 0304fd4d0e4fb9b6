package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PromoCode struct {
	ID        string                      `gorm:"column:id;type:uuid;primaryKey" bson:"_id"`
	Code      string                      `gorm:"column:code;uniqueIndex;not null" bson:"code"`
	Discount  float64                     `gorm:"column:discount;not null" bson:"discount"`
	MaxUses   int                         `gorm:"column:max_uses;not null" bson:"maxUses"`
	Uses      int                         `gorm:"column:uses;not null;default:0" bson:"uses"`
	ExpiresAt time.Time                   `gorm:"column:expires_at;not null;index" bson:"expiresAt"`
	Users     datatypes.JSONSlice[string] `gorm:"column:users;type:jsonb;not null;default:'[]'" bson:"users"`
	CreatedAt time.Time                   `gorm:"column:created_at" bson:"createdAt"`
	UpdatedAt time.Time                   `gorm:"column:updated_at" bson:"updatedAt"`
}

// BeforeCreate assigns the uuid primary key and normalizes the eligibility set
func (p *PromoCode) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Users == nil {
		p.Users = datatypes.JSONSlice[string]{}
	}
	return nil
}

// Exhausted reports whether every use has been spent
func (p *PromoCode) Exhausted() bool {
	return p.Uses >= p.MaxUses
}

// Expired reports whether now is at or past the expiry instant
func (p *PromoCode) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// EligibleFor reports whether userID may use the code. An empty set admits everyone.
func (p *PromoCode) EligibleFor(userID string) bool {
	return len(p.Users) == 0 || slices.Contains(p.Users, userID)
}

// PromoUpdate carries the fields an update may change; nil means untouched
type PromoUpdate struct {
	Code      *string
	Discount  *float64
	MaxUses   *int
	ExpiresAt *time.Time
	Users     *[]string
}

func (u PromoUpdate) IsEmpty() bool {
	return u.Code == nil && u.Discount == nil && u.MaxUses == nil && u.ExpiresAt == nil && u.Users == nil
}
