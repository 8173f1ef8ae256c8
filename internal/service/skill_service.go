package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/umeyka/umeyka-backend/internal/cache"
	"github.com/umeyka/umeyka-backend/internal/config"
	"github.com/umeyka/umeyka-backend/internal/logger"
	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
	"github.com/umeyka/umeyka-backend/internal/repository"
	"github.com/umeyka/umeyka-backend/internal/validation"
)

const (
	defaultNearbyRadiusKm = 10.0
	maxNearbyRadiusKm     = 100.0
	nearbyLimit           = 50
)

// SkillRepository описывает хранилище умеек.
type SkillRepository interface {
	Create(ctx context.Context, skill *models.Skill) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Skill, error)
	GetActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Skill, error)
	Update(ctx context.Context, id uuid.UUID, upd models.SkillUpdate) (*models.Skill, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f models.SkillFilter) ([]models.Skill, int, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, includeInactive bool) ([]models.Skill, error)
	CountActiveByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
	IncrementViews(ctx context.Context, id uuid.UUID) error
	IncrementContacts(ctx context.Context, id uuid.UUID) error
	Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]models.SkillWithDistance, error)
	ListWithLocation(ctx context.Context) ([]models.Skill, error)
}

// ProfileReader нужен для проверки премиума.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

// ChatOpener открывает чат клиента с мастером.
type ChatOpener interface {
	GetOrCreate(ctx context.Context, clientID, masterID uuid.UUID, skillID *uuid.UUID) (*models.Chat, bool, error)
}

// SearchCache - кэш выдачи поиска.
type SearchCache interface {
	GetOrSet(key string, fn func() (any, error)) (any, error)
	InvalidatePrefix(prefix string) int
}

// SkillService содержит бизнес-логику объявлений.
type SkillService struct {
	repo     SkillRepository
	profiles ProfileReader
	chats    ChatOpener
	cache    SearchCache
	geo      cache.SkillGeoIndex
	notifier Notifier
	economy  config.EconomyConfig
	now      func() time.Time
}

// NewSkillService создаёт сервис. cache и geo могут быть nil.
func NewSkillService(repo SkillRepository, profiles ProfileReader, chats ChatOpener, searchCache SearchCache, geo cache.SkillGeoIndex, notifier Notifier, economy config.EconomyConfig) *SkillService {
	return &SkillService{
		repo:     repo,
		profiles: profiles,
		chats:    chats,
		cache:    searchCache,
		geo:      geo,
		notifier: notifier,
		economy:  economy,
		now:      time.Now,
	}
}

// CreateSkillInput - данные новой умейки.
type CreateSkillInput struct {
	Skill       string
	Experience  string
	Description string
	Category    string
	Price       float64
	City        *string
	Lat         *float64
	Lng         *float64
	PhotoIDs    []string
}

// SearchResult - страница выдачи.
type SearchResult struct {
	Items []models.Skill
	Total int
}

// ContactResult - итог обращения к мастеру.
type ContactResult struct {
	Chat    *models.Chat `json:"chat"`
	Created bool         `json:"created"`
}

func (in CreateSkillInput) validate() error {
	checks := []error{
		validation.ValidateSkillTitle(in.Skill),
		validation.ValidateExperience(in.Experience),
		validation.ValidateSkillDescription(in.Description),
		validation.ValidateCategory(in.Category),
		validation.ValidatePrice(in.Price),
		validation.ValidateCity(in.City),
		validation.ValidateGeo(in.Lat, in.Lng),
		validation.ValidatePhotoIDs(in.PhotoIDs),
	}
	for _, err := range checks {
		if err != nil {
			return apperror.Validation(err.Error())
		}
	}
	return nil
}

// Create публикует умейку. Без премиума действует лимит активных объявлений.
func (s *SkillService) Create(ctx context.Context, ownerID uuid.UUID, in CreateSkillInput) (*models.Skill, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetProfile(ctx, ownerID)
	if err != nil {
		return nil, translate(err)
	}
	if !profile.PremiumActive(s.now()) {
		count, err := s.repo.CountActiveByOwner(ctx, ownerID)
		if err != nil {
			return nil, translate(err)
		}
		if count >= s.economy.FreeSkillLimit {
			return nil, apperror.New(apperror.ErrCodeLimitReached, "достигнут лимит бесплатных умеек, оформите премиум")
		}
	}

	skill := &models.Skill{
		OwnerID:     ownerID,
		Skill:       strings.TrimSpace(in.Skill),
		Experience:  strings.TrimSpace(in.Experience),
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Price:       in.Price,
		City:        trimmed(in.City),
		Lat:         in.Lat,
		Lng:         in.Lng,
		PhotoIDs:    in.PhotoIDs,
	}
	if err := s.repo.Create(ctx, skill); err != nil {
		return nil, translate(err)
	}

	s.syncGeo(ctx, skill)
	s.invalidate()
	return skill, nil
}

// Get возвращает умейку. Просмотр не владельцем увеличивает счётчик.
// Неактивная умейка видна только владельцу.
func (s *SkillService) Get(ctx context.Context, id uuid.UUID, viewerID *uuid.UUID) (*models.Skill, error) {
	skill, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	isOwner := viewerID != nil && *viewerID == skill.OwnerID
	if !skill.IsActive && !isOwner {
		return nil, apperror.ErrSkillNotFound
	}

	if !isOwner {
		if err := s.repo.IncrementViews(ctx, id); err != nil {
			logger.Log.WithField("skill_id", id).WithError(err).Warn("skill service: не удалось учесть просмотр")
		} else {
			skill.Views++
		}
	}
	return skill, nil
}

// Update меняет умейку владельца.
func (s *SkillService) Update(ctx context.Context, id, userID uuid.UUID, upd models.SkillUpdate) (*models.Skill, error) {
	skill, err := s.ownedActive(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	upd.Skill = trimmed(upd.Skill)
	upd.Experience = trimmed(upd.Experience)
	upd.Description = trimmed(upd.Description)
	upd.City = trimmed(upd.City)
	if err := validateSkillUpdate(skill, upd); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		return nil, translate(err)
	}

	s.syncGeo(ctx, updated)
	s.invalidate()
	return updated, nil
}

func validateSkillUpdate(current *models.Skill, upd models.SkillUpdate) error {
	var checks []error
	if upd.Skill != nil {
		checks = append(checks, validation.ValidateSkillTitle(*upd.Skill))
	}
	if upd.Experience != nil {
		checks = append(checks, validation.ValidateExperience(*upd.Experience))
	}
	if upd.Description != nil {
		checks = append(checks, validation.ValidateSkillDescription(*upd.Description))
	}
	if upd.Category != nil {
		checks = append(checks, validation.ValidateCategory(*upd.Category))
	}
	if upd.Price != nil {
		checks = append(checks, validation.ValidatePrice(*upd.Price))
	}
	checks = append(checks, validation.ValidateCity(upd.City))
	if upd.PhotoIDs != nil {
		checks = append(checks, validation.ValidatePhotoIDs(upd.PhotoIDs))
	}
	if !upd.ClearGeo && (upd.Lat != nil || upd.Lng != nil) {
		lat, lng := upd.Lat, upd.Lng
		if lat == nil {
			lat = current.Lat
		}
		if lng == nil {
			lng = current.Lng
		}
		checks = append(checks, validation.ValidateGeo(lat, lng))
	}

	for _, err := range checks {
		if err != nil {
			return apperror.Validation(err.Error())
		}
	}
	return nil
}

// Delete снимает умейку с публикации.
func (s *SkillService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.ownedActive(ctx, id, userID); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return translate(err)
	}

	if s.geo != nil {
		if err := s.geo.Remove(ctx, id); err != nil {
			logger.Log.WithField("skill_id", id).WithError(err).Warn("skill service: не удалось убрать из гео-индекса")
		}
	}
	s.invalidate()
	return nil
}

// Contact фиксирует обращение клиента к мастеру и открывает чат по умейке.
func (s *SkillService) Contact(ctx context.Context, id, clientID uuid.UUID) (*ContactResult, error) {
	skill, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !skill.IsActive {
		return nil, apperror.ErrSkillNotFound
	}
	if skill.OwnerID == clientID {
		return nil, apperror.Validation("нельзя связаться с самим собой")
	}

	chat, created, err := s.chats.GetOrCreate(ctx, clientID, skill.OwnerID, &skill.ID)
	if err != nil {
		return nil, translate(err)
	}
	if err := s.repo.IncrementContacts(ctx, id); err != nil {
		logger.Log.WithField("skill_id", id).WithError(err).Warn("skill service: не удалось учесть обращение")
	}

	notify(s.notifier, skill.OwnerID, EventSkillContacted, map[string]any{
		"skill_id":  skill.ID,
		"skill":     skill.Skill,
		"chat_id":   chat.ID,
		"client_id": clientID,
	})

	return &ContactResult{Chat: chat, Created: created}, nil
}

// Search ищет по активным умейкам. Результат кэшируется до следующей записи.
func (s *SkillService) Search(ctx context.Context, f models.SkillFilter) (*SearchResult, error) {
	f.Limit, f.Offset = normalizePage(f.Limit, f.Offset)
	f.Query = strings.TrimSpace(f.Query)
	f.City = strings.TrimSpace(f.City)
	if f.Sort == "" {
		f.Sort = models.SkillSortDate
	}
	if _, ok := models.ValidSkillSorts[f.Sort]; !ok {
		return nil, apperror.Validation("неизвестная сортировка")
	}
	if f.Category != "" && !models.IsValidCategory(f.Category) {
		return nil, apperror.Validation("неизвестная категория")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, apperror.Validation("минимальная цена больше максимальной")
	}

	load := func() (any, error) {
		items, total, err := s.repo.List(ctx, f)
		if err != nil {
			return nil, err
		}
		return &SearchResult{Items: items, Total: total}, nil
	}

	if s.cache == nil {
		res, err := load()
		if err != nil {
			return nil, translate(err)
		}
		return res.(*SearchResult), nil
	}

	res, err := s.cache.GetOrSet(cache.SkillSearchKey(f), load)
	if err != nil {
		return nil, translate(err)
	}
	return res.(*SearchResult), nil
}

// Nearby ищет умейки в радиусе, ближайшие первыми.
func (s *SkillService) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]models.SkillWithDistance, error) {
	if err := validation.ValidateGeo(&lat, &lng); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if radiusKm <= 0 {
		radiusKm = defaultNearbyRadiusKm
	}
	if radiusKm > maxNearbyRadiusKm {
		radiusKm = maxNearbyRadiusKm
	}

	if s.geo != nil {
		result, err := s.nearbyFromIndex(ctx, lat, lng, radiusKm)
		if err == nil {
			return result, nil
		}
		logger.Log.WithError(err).Warn("skill service: гео-индекс недоступен, ищем через SQL")
	}

	result, err := s.repo.Nearby(ctx, lat, lng, radiusKm, nearbyLimit)
	return result, translate(err)
}

func (s *SkillService) nearbyFromIndex(ctx context.Context, lat, lng, radiusKm float64) ([]models.SkillWithDistance, error) {
	hits, err := s.geo.Nearby(ctx, lat, lng, radiusKm, nearbyLimit)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(hits))
	distance := make(map[uuid.UUID]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.SkillID
		distance[h.SkillID] = h.DistanceKm
	}

	skills, err := s.repo.GetActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]models.SkillWithDistance, 0, len(skills))
	for _, sk := range skills {
		result = append(result, models.SkillWithDistance{Skill: sk, DistanceKm: distance[sk.ID]})
	}
	return result, nil
}

// ListMine возвращает все умейки пользователя, включая снятые.
func (s *SkillService) ListMine(ctx context.Context, userID uuid.UUID) ([]models.Skill, error) {
	skills, err := s.repo.ListByOwner(ctx, userID, true)
	return skills, translate(err)
}

// ListByUser возвращает активные умейки пользователя.
func (s *SkillService) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Skill, error) {
	skills, err := s.repo.ListByOwner(ctx, userID, false)
	return skills, translate(err)
}

// Categories возвращает известные рубрики.
func (s *SkillService) Categories() []models.Category {
	return models.Categories
}

// WarmGeoIndex заполняет гео-индекс при старте.
func (s *SkillService) WarmGeoIndex(ctx context.Context) (int, error) {
	if s.geo == nil {
		return 0, nil
	}
	skills, err := s.repo.ListWithLocation(ctx)
	if err != nil {
		return 0, err
	}
	return s.geo.Rebuild(ctx, skills)
}

func (s *SkillService) ownedActive(ctx context.Context, id, userID uuid.UUID) (*models.Skill, error) {
	skill, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !skill.IsActive {
		return nil, apperror.ErrSkillNotFound
	}
	if skill.OwnerID != userID {
		return nil, apperror.ErrForbidden
	}
	return skill, nil
}

func (s *SkillService) syncGeo(ctx context.Context, skill *models.Skill) {
	if s.geo == nil {
		return
	}
	var err error
	if skill.IsActive && skill.HasLocation() {
		err = s.geo.Upsert(ctx, skill.ID, *skill.Lat, *skill.Lng)
	} else {
		err = s.geo.Remove(ctx, skill.ID)
	}
	if err != nil {
		logger.Log.WithField("skill_id", skill.ID).WithError(err).Warn("skill service: не удалось обновить гео-индекс")
	}
}

func (s *SkillService) invalidate() {
	if s.cache != nil {
		s.cache.InvalidatePrefix(cache.PrefixSkillSearch)
	}
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

// isNotFound - хелпер для сервисов, которым отсутствие записи не ошибка.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrSkillNotFound) ||
		errors.Is(err, repository.ErrChatNotFound) ||
		errors.Is(err, repository.ErrDealNotFound) ||
		errors.Is(err, repository.ErrUserNotFound)
}
