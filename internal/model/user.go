package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID            string         `gorm:"column:id;type:uuid;primaryKey" bson:"_id"`
	Name          string         `gorm:"column:name;not null" bson:"name"`
	Email         string         `gorm:"column:email;uniqueIndex;not null" bson:"email"`
	Password      string         `gorm:"column:password;not null" bson:"password"`
	IsAdmin       bool           `gorm:"column:is_admin;not null;default:false" bson:"isAdmin"`
	RefreshTokens []RefreshToken `gorm:"foreignKey:UserID" bson:"refreshTokens"`
	CreatedAt     time.Time      `gorm:"column:created_at" bson:"createdAt"`
	UpdatedAt     time.Time      `gorm:"column:updated_at" bson:"updatedAt"`
}

// NormalizeEmail is the canonical form emails are stored and looked up in
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// BeforeCreate assigns the uuid primary key
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// RefreshToken is one issued refresh token kept for a user. The postgres
// store keeps them in their own table; the mongo store embeds them.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey" bson:"-"`
	UserID    string    `gorm:"column:user_id;type:uuid;not null;index:idx_refresh_tokens_user_created,priority:1" bson:"-"`
	Token     string    `gorm:"column:token;not null;uniqueIndex" bson:"token"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_refresh_tokens_user_created,priority:2" bson:"createdAt"`
}

// Live reports whether the record is younger than ttl at now
func (rt RefreshToken) Live(now time.Time, ttl time.Duration) bool {
	return now.Before(rt.CreatedAt.Add(ttl))
}

// ActiveRefreshTokens returns the records still inside ttl. Expired records
// are dropped on read; nothing sweeps them in the background.
func (u *User) ActiveRefreshTokens(now time.Time, ttl time.Duration) []RefreshToken {
	active := make([]RefreshToken, 0, len(u.RefreshTokens))
	for _, rt := range u.RefreshTokens {
		if rt.Live(now, ttl) {
			active = append(active, rt)
		}
	}
	return active
}

// HasActiveRefreshToken reports whether token is recorded and still live
func (u *User) HasActiveRefreshToken(token string, now time.Time, ttl time.Duration) bool {
	for _, rt := range u.RefreshTokens {
		if rt.Token == token && rt.Live(now, ttl) {
			return true
		}
	}
	return false
}

// UserUpdate carries the fields an update may change; nil means untouched.
// Password holds an already hashed value.
type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string
	IsAdmin  *bool
}

func (u UserUpdate) IsEmpty() bool {
	return u.Name == nil && u.Email == nil && u.Password == nil && u.IsAdmin == nil
}
