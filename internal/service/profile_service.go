package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
	"github.com/umeyka/umeyka-backend/internal/validation"
)

// ProfileRepository описывает хранилище профилей.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	GetPublicProfile(ctx context.Context, userID uuid.UUID) (*models.PublicProfile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.Profile, error)
	ReferralEarnings(ctx context.Context, userID uuid.UUID) (int64, error)
}

// MediaReader проверяет владельца загруженного файла.
type MediaReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.MediaFile, error)
}

// ProfileService отвечает за профиль пользователя и реферальную сводку.
type ProfileService struct {
	repo        ProfileRepository
	media       MediaReader
	botUsername string
	now         func() time.Time
}

// NewProfileService создаёт сервис профилей.
func NewProfileService(repo ProfileRepository, media MediaReader, botUsername string) *ProfileService {
	return &ProfileService{repo: repo, media: media, botUsername: botUsername, now: time.Now}
}

// Get возвращает собственный профиль. Истёкший премиум показывается выключенным.
func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	profile.IsPremium = profile.PremiumActive(s.now())
	return profile, nil
}

// GetPublic возвращает публичный профиль другого пользователя.
func (s *ProfileService) GetPublic(ctx context.Context, userID uuid.UUID) (*models.PublicProfile, error) {
	profile, err := s.repo.GetPublicProfile(ctx, userID)
	return profile, translate(err)
}

// Update применяет частичное обновление профиля.
func (s *ProfileService) Update(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.Profile, error) {
	if upd.DisplayName != nil {
		if err := validation.ValidateDisplayName(*upd.DisplayName); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		upd.DisplayName = trimmed(upd.DisplayName)
	}
	if err := validation.ValidateBio(upd.Bio); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if err := validation.ValidateCity(upd.City); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if upd.Theme != nil {
		if err := validation.ValidateTheme(*upd.Theme); err != nil {
			return nil, apperror.Validation(err.Error())
		}
	}
	if upd.AccentColor != nil {
		if err := validation.ValidateAccentColor(*upd.AccentColor); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		lower := strings.ToLower(*upd.AccentColor)
		upd.AccentColor = &lower
	}
	if upd.AvatarID != nil {
		media, err := s.media.GetByID(ctx, *upd.AvatarID)
		if err != nil {
			return nil, translate(err)
		}
		if !media.IsOwnedBy(userID) {
			return nil, apperror.ErrForbidden
		}
	}

	profile, err := s.repo.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return nil, translate(err)
	}
	profile.IsPremium = profile.PremiumActive(s.now())
	return profile, nil
}

// Referral возвращает код, ссылку на бота и заработанные звёзды.
func (s *ProfileService) Referral(ctx context.Context, userID uuid.UUID) (*models.ReferralInfo, error) {
	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	earned, err := s.repo.ReferralEarnings(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}

	return &models.ReferralInfo{
		Code:        profile.ReferralCode,
		Link:        ReferralLink(s.botUsername, profile.ReferralCode),
		Count:       profile.ReferralCount,
		EarnedStars: earned,
	}, nil
}

// ReferralLink строит ссылку запуска мини-приложения с кодом в startapp.
func ReferralLink(botUsername, code string) string {
	return fmt.Sprintf("https://t.me/%s?startapp=%s", strings.TrimPrefix(botUsername, "@"), code)
}
