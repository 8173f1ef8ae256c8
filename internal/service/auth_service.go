package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/umeyka/umeyka-backend/internal/config"
	"github.com/umeyka/umeyka-backend/internal/logger"
	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
	"github.com/umeyka/umeyka-backend/internal/repository"
	"github.com/umeyka/umeyka-backend/internal/telegram"
)

const (
	referralCodeLength   = 8
	referralCodeAttempts = 5
	referralAlphabet     = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// AuthRepository описывает зависимости AuthService от слоя хранилища.
type AuthRepository interface {
	UpsertTelegramUser(ctx context.Context, tu models.TelegramUser, referralCode string) (*models.User, *models.Profile, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
	DeleteSessionByID(ctx context.Context, sessionID, userID uuid.UUID) error
}

// ReferralRepository применяет реферальный код при первом входе.
type ReferralRepository interface {
	ApplyReferral(ctx context.Context, newUserID uuid.UUID, code string, bonus, welcome int64) (uuid.UUID, bool, error)
}

// InitDataParser проверяет данные запуска мини-приложения.
type InitDataParser interface {
	Parse(raw string) (*telegram.InitData, error)
}

// AuthService инкапсулирует вход через Telegram и работу с сессиями.
type AuthService struct {
	repo         AuthRepository
	referrals    ReferralRepository
	initData     InitDataParser
	tokenManager *TokenManager
	economy      config.EconomyConfig
	notifier     Notifier
}

// AuthResult возвращает итог авторизации.
type AuthResult struct {
	User      *models.User    `json:"user"`
	Profile   *models.Profile `json:"profile"`
	TokenPair *TokenPair      `json:"tokens"`
	IsNew     bool            `json:"is_new"`
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(repo AuthRepository, referrals ReferralRepository, initData InitDataParser, tokenManager *TokenManager, economy config.EconomyConfig, notifier Notifier) *AuthService {
	return &AuthService{
		repo:         repo,
		referrals:    referrals,
		initData:     initData,
		tokenManager: tokenManager,
		economy:      economy,
		notifier:     notifier,
	}
}

// LoginTelegram проверяет initData, создаёт или обновляет пользователя и выдаёт токены.
// start_param при первом входе применяется как реферальный код.
func (s *AuthService) LoginTelegram(ctx context.Context, rawInitData string, meta map[string]string) (*AuthResult, error) {
	data, err := s.initData.Parse(rawInitData)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, apperror.ErrInvalidInitData.Message)
	}

	var (
		user    *models.User
		profile *models.Profile
		created bool
	)
	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		user, profile, created, err = s.repo.UpsertTelegramUser(ctx, data.User, newReferralCode())
		if !errors.Is(err, repository.ErrReferralCodeTaken) {
			break
		}
	}
	if err != nil {
		return nil, translate(err)
	}

	if !user.IsActive {
		return nil, apperror.New(apperror.ErrCodeForbidden, "аккаунт заблокирован")
	}

	if created && data.StartParam != "" {
		profile = s.applyReferral(ctx, user.ID, data.StartParam, profile)
	}

	tokenPair, err := s.issueSession(ctx, user.ID, meta)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:      user,
		Profile:   profile,
		TokenPair: tokenPair,
		IsNew:     created,
	}, nil
}

// applyReferral не прерывает вход: ошибка реферальной программы только логируется.
func (s *AuthService) applyReferral(ctx context.Context, userID uuid.UUID, code string, profile *models.Profile) *models.Profile {
	code = strings.ToUpper(strings.TrimSpace(code))

	referrerID, applied, err := s.referrals.ApplyReferral(ctx, userID, code, s.economy.ReferralBonusStars, s.economy.ReferralWelcomeStars)
	if err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"user_id": userID,
			"code":    code,
			"error":   err.Error(),
		}).Warn("auth service: не удалось применить реферальный код")
		return profile
	}
	if !applied {
		return profile
	}

	notify(s.notifier, referrerID, EventStarsUpdated, map[string]any{
		"reason": models.StarReasonReferralBonus,
		"amount": s.economy.ReferralBonusStars,
	})

	if fresh, err := s.repo.GetProfile(ctx, userID); err == nil {
		return fresh
	}
	return profile
}

// Refresh выпускает новую пару токенов и удаляет старую сессию.
func (s *AuthService) Refresh(ctx context.Context, oldToken string, meta map[string]string) (*TokenPair, error) {
	userID, err := s.tokenManager.ParseRefresh(oldToken)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, apperror.ErrInvalidRefreshToken.Message)
	}

	session, err := s.repo.GetSession(ctx, hashToken(oldToken))
	if err != nil {
		return nil, translate(err)
	}
	if session.UserID != userID {
		return nil, apperror.ErrInvalidRefreshToken
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	if !user.IsActive {
		return nil, apperror.New(apperror.ErrCodeForbidden, "аккаунт заблокирован")
	}

	if err := s.repo.DeleteSession(ctx, hashToken(oldToken)); err != nil {
		return nil, translate(err)
	}

	return s.issueSession(ctx, userID, meta)
}

// Logout удаляет сессию refresh токена.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return apperror.Validation("refresh_token обязателен")
	}
	err := s.repo.DeleteSession(ctx, hashToken(refreshToken))
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil
	}
	return translate(err)
}

// ListSessions возвращает список активных сессий пользователя.
func (s *AuthService) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	sessions, err := s.repo.ListSessions(ctx, userID)
	return sessions, translate(err)
}

// DeleteSession удаляет сессию по идентификатору.
func (s *AuthService) DeleteSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	err := s.repo.DeleteSessionByID(ctx, sessionID, userID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return apperror.New(apperror.ErrCodeNotFound, "сессия не найдена")
	}
	return translate(err)
}

func (s *AuthService) issueSession(ctx context.Context, userID uuid.UUID, meta map[string]string) (*TokenPair, error) {
	tokenPair, _, refreshExp, err := s.tokenManager.GeneratePair(userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	session := &models.Session{
		UserID:       userID,
		RefreshToken: hashToken(tokenPair.RefreshToken),
		ExpiresAt:    refreshExp,
	}

	if meta != nil {
		if ua, ok := meta["user_agent"]; ok && ua != "" {
			session.UserAgent = &ua
		}
		if ip, ok := meta["ip"]; ok && ip != "" {
			session.IPAddress = &ip
		}
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, translate(err)
	}
	return tokenPair, nil
}

// hashToken - в БД хранится только SHA3-256 от refresh токена.
func hashToken(token string) string {
	sum := sha3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newReferralCode() string {
	size := big.NewInt(int64(len(referralAlphabet)))
	b := make([]byte, referralCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:referralCodeLength])
		}
		b[i] = referralAlphabet[n.Int64()]
	}
	return string(b)
}
