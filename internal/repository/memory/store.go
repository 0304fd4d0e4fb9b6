// Package memory holds mutex-guarded in-process stores. They honor the same
// atomic contracts as the database stores and back local runs and unit tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Payphone-Digital/storefront/internal/model"
	"github.com/Payphone-Digital/storefront/internal/repository"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type UserStore struct {
	mu    sync.Mutex
	users map[string]*model.User
	now   func() time.Time
}

func NewUserStore() *UserStore {
	return &UserStore{users: map[string]*model.User{}, now: time.Now}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.RefreshTokens = slices.Clone(u.RefreshTokens)
	if c.RefreshTokens == nil {
		c.RefreshTokens = []model.RefreshToken{}
	}
	return &c
}

func (s *UserStore) emailTaken(email, exceptID string) bool {
	for id, u := range s.users {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

func (s *UserStore) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(user.Email, "") {
		return repository.ErrDuplicate
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *UserStore) FindByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *UserStore) List(_ context.Context, limit, offset int, search string) ([]model.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(search)
	matched := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		if needle == "" ||
			strings.Contains(strings.ToLower(u.Name), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle) {
			matched = append(matched, *cloneUser(u))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []model.User{}, total, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

func (s *UserStore) Update(_ context.Context, id string, update model.UserUpdate) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.Email != nil && s.emailTaken(*update.Email, id) {
		return nil, repository.ErrDuplicate
	}

	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Email != nil {
		u.Email = *update.Email
	}
	if update.Password != nil {
		u.Password = *update.Password
	}
	if update.IsAdmin != nil {
		u.IsAdmin = *update.IsAdmin
	}
	if !update.IsEmpty() {
		u.UpdatedAt = s.now()
	}
	return cloneUser(u), nil
}

func (s *UserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *UserStore) AppendRefreshToken(_ context.Context, userID string, record model.RefreshToken, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.RefreshTokens = append(u.RefreshTokens, record)
	if keep > 0 && len(u.RefreshTokens) > keep {
		u.RefreshTokens = slices.Clone(u.RefreshTokens[len(u.RefreshTokens)-keep:])
	}
	return nil
}

func (s *UserStore) RemoveRefreshToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		u.RefreshTokens = slices.DeleteFunc(u.RefreshTokens, func(rt model.RefreshToken) bool {
			return rt.Token == token
		})
	}
	return nil
}

func (s *UserStore) ClearRefreshTokens(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		u.RefreshTokens = []model.RefreshToken{}
	}
	return nil
}

type PromoStore struct {
	mu     sync.Mutex
	promos map[string]*model.PromoCode
	now    func() time.Time
}

func NewPromoStore() *PromoStore {
	return &PromoStore{promos: map[string]*model.PromoCode{}, now: time.Now}
}

func clonePromo(p *model.PromoCode) *model.PromoCode {
	c := *p
	c.Users = datatypes.JSONSlice[string](slices.Clone([]string(p.Users)))
	if c.Users == nil {
		c.Users = datatypes.JSONSlice[string]{}
	}
	return &c
}

func (s *PromoStore) byCode(code string) *model.PromoCode {
	for _, p := range s.promos {
		if p.Code == code {
			return p
		}
	}
	return nil
}

func (s *PromoStore) Create(_ context.Context, promo *model.PromoCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byCode(promo.Code) != nil {
		return repository.ErrDuplicate
	}
	if promo.ID == "" {
		promo.ID = uuid.NewString()
	}
	if promo.Users == nil {
		promo.Users = datatypes.JSONSlice[string]{}
	}
	now := s.now()
	if promo.CreatedAt.IsZero() {
		promo.CreatedAt = now
	}
	promo.UpdatedAt = now
	s.promos[promo.ID] = clonePromo(promo)
	return nil
}

func (s *PromoStore) FindByCode(_ context.Context, code string) (*model.PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.byCode(code); p != nil {
		return clonePromo(p), nil
	}
	return nil, repository.ErrNotFound
}

func (s *PromoStore) FindByID(_ context.Context, id string) (*model.PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.promos[id]; ok {
		return clonePromo(p), nil
	}
	return nil, repository.ErrNotFound
}

func (s *PromoStore) List(_ context.Context) ([]model.PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.PromoCode, 0, len(s.promos))
	for _, p := range s.promos {
		out = append(out, *clonePromo(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *PromoStore) Update(_ context.Context, id string, update model.PromoUpdate) (*model.PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.promos[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.MaxUses != nil && p.Uses > *update.MaxUses {
		return nil, repository.ErrConflict
	}
	if update.Code != nil {
		if other := s.byCode(*update.Code); other != nil && other.ID != id {
			return nil, repository.ErrDuplicate
		}
		p.Code = *update.Code
	}
	if update.Discount != nil {
		p.Discount = *update.Discount
	}
	if update.MaxUses != nil {
		p.MaxUses = *update.MaxUses
	}
	if update.ExpiresAt != nil {
		p.ExpiresAt = *update.ExpiresAt
	}
	if update.Users != nil {
		p.Users = datatypes.JSONSlice[string](slices.Clone(*update.Users))
		if p.Users == nil {
			p.Users = datatypes.JSONSlice[string]{}
		}
	}
	if !update.IsEmpty() {
		p.UpdatedAt = s.now()
	}
	return clonePromo(p), nil
}

func (s *PromoStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.promos[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.promos, id)
	return nil
}

func (s *PromoStore) Redeem(_ context.Context, code, userID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.byCode(code)
	if p == nil || p.Exhausted() || p.Expired(now) || !p.EligibleFor(userID) {
		return false, nil
	}
	p.Uses++
	p.UpdatedAt = now
	return true, nil
}
