// Package telegram проверяет данные запуска мини-приложения (initData).
package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"

	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/umeyka/umeyka-backend/internal/models"
)

var (
	ErrEmptyInitData   = errors.New("init data is empty")
	ErrMissingHash     = errors.New("init data hash is missing")
	ErrInvalidHash     = errors.New("init data hash mismatch")
	ErrExpired         = errors.New("init data expired")
	ErrMissingAuthDate = errors.New("init data auth_date is missing")
	ErrMissingUser     = errors.New("init data user is missing")
)

// InitData - разобранные данные запуска.
type InitData struct {
	User       models.TelegramUser
	AuthDate   time.Time
	StartParam string
	QueryID    string
}

// Validator проверяет подпись initData ключом бота.
type Validator struct {
	botToken string
	maxAge   time.Duration
	now      func() time.Time
}

// NewValidator создаёт валидатор. При пустом токене подпись не проверяется.
func NewValidator(botToken string, maxAge time.Duration) *Validator {
	return &Validator{botToken: botToken, maxAge: maxAge, now: time.Now}
}

// SkipsSignature - режим разработки без токена бота.
func (v *Validator) SkipsSignature() bool {
	return v.botToken == ""
}

// Parse проверяет подпись и срок давности, затем разбирает пользователя.
func (v *Validator) Parse(raw string) (*InitData, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyInitData
	}

	if !v.SkipsSignature() {
		// срок давности проверяем сами, по v.now
		if err := initdata.Validate(raw, v.botToken, 0); err != nil {
			return nil, mapValidateError(err)
		}
	}

	parsed, err := initdata.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("telegram: parse init data %w", err)
	}

	if parsed.AuthDateRaw == 0 {
		return nil, ErrMissingAuthDate
	}
	authDate := parsed.AuthDate()
	if v.maxAge > 0 && v.now().Sub(authDate) > v.maxAge {
		return nil, ErrExpired
	}

	if parsed.User.ID == 0 {
		return nil, ErrMissingUser
	}

	return &InitData{
		User: models.TelegramUser{
			ID:           parsed.User.ID,
			FirstName:    parsed.User.FirstName,
			LastName:     parsed.User.LastName,
			Username:     parsed.User.Username,
			LanguageCode: parsed.User.LanguageCode,
			IsPremium:    parsed.User.IsPremium,
			PhotoURL:     parsed.User.PhotoURL,
		},
		AuthDate:   authDate,
		StartParam: parsed.StartParam,
		QueryID:    parsed.QueryID,
	}, nil
}

func mapValidateError(err error) error {
	switch {
	case errors.Is(err, initdata.ErrSignMissing):
		return ErrMissingHash
	case errors.Is(err, initdata.ErrSignInvalid):
		return ErrInvalidHash
	case errors.Is(err, initdata.ErrAuthDateMissing):
		return ErrMissingAuthDate
	case errors.Is(err, initdata.ErrExpired):
		return ErrExpired
	default:
		return fmt.Errorf("telegram: validate init data %w", err)
	}
}
