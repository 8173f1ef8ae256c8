package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/umeyka/umeyka-backend/internal/cache"
	"github.com/umeyka/umeyka-backend/internal/config"
	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
)

const (
	minPremiumMonths = 1
	maxPremiumMonths = 12
	minBoostDays     = 1
	maxBoostDays     = 30
)

// StarRepository ведёт баланс и журнал звёзд.
type StarRepository interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.StarTransaction, int, error)
	PurchasePremium(ctx context.Context, userID uuid.UUID, months int, cost int64, now time.Time) (*models.Profile, *models.StarTransaction, error)
	BoostSkill(ctx context.Context, userID, skillID uuid.UUID, days int, cost int64, now time.Time) (*models.Skill, *models.StarTransaction, error)
}

// StarService - траты звёзд на премиум и поднятие умеек.
type StarService struct {
	repo     StarRepository
	cache    SearchCache
	notifier Notifier
	economy  config.EconomyConfig
	now      func() time.Time
}

// NewStarService создаёт сервис звёзд.
func NewStarService(repo StarRepository, searchCache SearchCache, notifier Notifier, economy config.EconomyConfig) *StarService {
	return &StarService{repo: repo, cache: searchCache, notifier: notifier, economy: economy, now: time.Now}
}

// PremiumResult - итог покупки премиума.
type PremiumResult struct {
	Profile     *models.Profile         `json:"profile"`
	Transaction *models.StarTransaction `json:"transaction"`
}

// BoostResult - итог поднятия умейки.
type BoostResult struct {
	Skill       *models.Skill           `json:"skill"`
	Transaction *models.StarTransaction `json:"transaction"`
}

// Balance возвращает текущий баланс.
func (s *StarService) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	balance, err := s.repo.GetBalance(ctx, userID)
	return balance, translate(err)
}

// Transactions возвращает журнал движений звёзд.
func (s *StarService) Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.StarTransaction, int, error) {
	limit, offset = normalizePage(limit, offset)
	items, total, err := s.repo.ListTransactions(ctx, userID, limit, offset)
	return items, total, translate(err)
}

// PurchasePremium списывает PremiumPriceStars за каждый месяц.
func (s *StarService) PurchasePremium(ctx context.Context, userID uuid.UUID, months int) (*PremiumResult, error) {
	if months < minPremiumMonths || months > maxPremiumMonths {
		return nil, apperror.Validation("срок премиума от 1 до 12 месяцев")
	}

	cost := s.economy.PremiumPriceStars * int64(months)
	profile, entry, err := s.repo.PurchasePremium(ctx, userID, months, cost, s.now())
	if err != nil {
		return nil, translate(err)
	}

	notify(s.notifier, userID, EventStarsUpdated, map[string]any{
		"reason":  models.StarReasonPremium,
		"amount":  entry.Amount,
		"balance": entry.BalanceAfter,
	})
	return &PremiumResult{Profile: profile, Transaction: entry}, nil
}

// Boost поднимает умейку владельца на days дней.
func (s *StarService) Boost(ctx context.Context, userID, skillID uuid.UUID, days int) (*BoostResult, error) {
	if days < minBoostDays || days > maxBoostDays {
		return nil, apperror.Validation("срок поднятия от 1 до 30 дней")
	}

	cost := s.economy.BoostPriceStars * int64(days)
	skill, entry, err := s.repo.BoostSkill(ctx, userID, skillID, days, cost, s.now())
	if err != nil {
		return nil, translate(err)
	}

	if s.cache != nil {
		s.cache.InvalidatePrefix(cache.PrefixSkillSearch)
	}
	notify(s.notifier, userID, EventStarsUpdated, map[string]any{
		"reason":   models.StarReasonBoost,
		"amount":   entry.Amount,
		"balance":  entry.BalanceAfter,
		"skill_id": skillID,
	})
	return &BoostResult{Skill: skill, Transaction: entry}, nil
}
