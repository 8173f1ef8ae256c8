package models

import (
	"time"

	"github.com/google/uuid"
)

// User - учётная запись, созданная по данным Telegram.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	TelegramID   int64      `db:"telegram_id" json:"telegram_id"`
	Username     *string    `db:"username" json:"username,omitempty"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     *string    `db:"last_name" json:"last_name,omitempty"`
	LanguageCode *string    `db:"language_code" json:"language_code,omitempty"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Profile хранит витрину пользователя, баланс звёзд, премиум и реферальные данные.
type Profile struct {
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	DisplayName    string     `db:"display_name" json:"display_name"`
	Bio            *string    `db:"bio" json:"bio,omitempty"`
	City           *string    `db:"city" json:"city,omitempty"`
	AvatarID       *uuid.UUID `db:"avatar_id" json:"avatar_id,omitempty"`
	StarsBalance   int64      `db:"stars_balance" json:"stars_balance"`
	IsPremium      bool       `db:"is_premium" json:"is_premium"`
	PremiumUntil   *time.Time `db:"premium_until" json:"premium_until,omitempty"`
	ReferralCode   string     `db:"referral_code" json:"referral_code"`
	ReferredBy     *uuid.UUID `db:"referred_by" json:"referred_by,omitempty"`
	ReferralCount  int        `db:"referral_count" json:"referral_count"`
	Theme          string     `db:"theme" json:"theme"`
	AccentColor    string     `db:"accent_color" json:"accent_color"`
	ShowOnline     bool       `db:"show_online" json:"show_online"`
	Rating         float64    `db:"rating" json:"rating"`
	ReviewsCount   int        `db:"reviews_count" json:"reviews_count"`
	CompletedDeals int        `db:"completed_deals" json:"completed_deals"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// PremiumActive учитывает срок действия: флаг без действующей даты не считается.
func (p *Profile) PremiumActive(now time.Time) bool {
	return p.IsPremium && p.PremiumUntil != nil && p.PremiumUntil.After(now)
}

// PublicProfile - то, что видят другие пользователи.
type PublicProfile struct {
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	Username       *string    `db:"username" json:"username,omitempty"`
	DisplayName    string     `db:"display_name" json:"display_name"`
	Bio            *string    `db:"bio" json:"bio,omitempty"`
	City           *string    `db:"city" json:"city,omitempty"`
	AvatarID       *uuid.UUID `db:"avatar_id" json:"avatar_id,omitempty"`
	IsPremium      bool       `db:"is_premium" json:"is_premium"`
	Theme          string     `db:"theme" json:"theme"`
	AccentColor    string     `db:"accent_color" json:"accent_color"`
	ShowOnline     bool       `db:"show_online" json:"-"`
	IsOnline       *bool      `db:"-" json:"is_online,omitempty"`
	Rating         float64    `db:"rating" json:"rating"`
	ReviewsCount   int        `db:"reviews_count" json:"reviews_count"`
	CompletedDeals int        `db:"completed_deals" json:"completed_deals"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// ProfileUpdate - частичное обновление профиля, nil поля не меняются.
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
	City        *string
	AvatarID    *uuid.UUID
	Theme       *string
	AccentColor *string
	ShowOnline  *bool
}

// ReferralInfo - сводка реферальной программы пользователя.
type ReferralInfo struct {
	Code        string `json:"code"`
	Link        string `json:"link"`
	Count       int    `json:"count"`
	EarnedStars int64  `json:"earned_stars"`
}

// Session представляет сохранённую сессию. RefreshToken хранится в виде хеша.
type Session struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	UserAgent    *string   `db:"user_agent" json:"user_agent,omitempty"`
	IPAddress    *string   `db:"ip_address" json:"ip_address,omitempty"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// TelegramUser - пользователь из initData мини-приложения.
type TelegramUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}
