package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/umeyka/umeyka-backend/internal/config"
	"github.com/umeyka/umeyka-backend/internal/domain/entity"
	"github.com/umeyka/umeyka-backend/internal/domain/valueobject"
	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
	"github.com/umeyka/umeyka-backend/internal/repository"
)

// DealRepository описывает хранилище сделок.
type DealRepository interface {
	Create(ctx context.Context, deal *entity.Deal, systemMessage string) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Deal, error)
	List(ctx context.Context, f repository.DealListFilter) ([]entity.Deal, int, error)
	Mutate(ctx context.Context, id uuid.UUID, fn repository.DealMutation) (*entity.Deal, *repository.DealChange, error)
}

// ChatLookup находит чат, к которому привязывается сделка.
type ChatLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)
	FindByPair(ctx context.Context, clientID, masterID uuid.UUID) (*models.Chat, error)
}

// SkillReader читает умейку по идентификатору.
type SkillReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Skill, error)
}

// DealService управляет жизненным циклом сделок.
type DealService struct {
	repo     DealRepository
	chats    ChatLookup
	skills   SkillReader
	profiles ProfileReader
	notifier Notifier
	economy  config.EconomyConfig
	now      func() time.Time
}

// NewDealService создаёт сервис сделок.
func NewDealService(repo DealRepository, chats ChatLookup, skills SkillReader, profiles ProfileReader, notifier Notifier, economy config.EconomyConfig) *DealService {
	return &DealService{
		repo:     repo,
		chats:    chats,
		skills:   skills,
		profiles: profiles,
		notifier: notifier,
		economy:  economy,
		now:      time.Now,
	}
}

// CreateDealInput - предложение сделки. Role - сторона создателя.
type CreateDealInput struct {
	CounterpartyID uuid.UUID
	Role           string
	Title          string
	Description    string
	Amount         float64
	DeadlineAt     *time.Time
	ChatID         *uuid.UUID
	SkillID        *uuid.UUID
}

// DealListInput - фильтр списка сделок.
type DealListInput struct {
	Status string
	Role   string
	Limit  int
	Offset int
}

// DealNotification - полезная нагрузка события deal.updated.
type DealNotification struct {
	Event entity.DealEvent `json:"event"`
	Deal  *entity.Deal     `json:"deal"`
}

// Create создаёт черновик сделки. Без явного chat_id сделка привязывается к чату пары, если он есть.
func (s *DealService) Create(ctx context.Context, creatorID uuid.UUID, in CreateDealInput) (*entity.Deal, error) {
	role, err := valueobject.NewDealRole(in.Role)
	if err != nil {
		return nil, err
	}
	if in.CounterpartyID == uuid.Nil {
		return nil, apperror.Validation("counterparty_id обязателен")
	}

	deal, err := entity.NewDeal(creatorID, in.CounterpartyID, role, entity.DealTerms{
		Title:       in.Title,
		Description: in.Description,
		Amount:      in.Amount,
		DeadlineAt:  in.DeadlineAt,
		ChatID:      in.ChatID,
		SkillID:     in.SkillID,
	}, s.now())
	if err != nil {
		return nil, err
	}

	if _, err := s.profiles.GetProfile(ctx, in.CounterpartyID); err != nil {
		if isNotFound(err) {
			return nil, apperror.Validation("вторая сторона сделки не найдена")
		}
		return nil, translate(err)
	}

	if err := s.linkChat(ctx, deal); err != nil {
		return nil, err
	}
	if err := s.checkSkill(ctx, deal); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, deal, deal.SystemMessage(entity.DealEventCreated, creatorID)); err != nil {
		return nil, translate(err)
	}

	notify(s.notifier, in.CounterpartyID, EventDealUpdated, DealNotification{Event: entity.DealEventCreated, Deal: deal})
	return deal, nil
}

func (s *DealService) linkChat(ctx context.Context, deal *entity.Deal) error {
	if deal.ChatID != nil {
		chat, err := s.chats.GetByID(ctx, *deal.ChatID)
		if err != nil {
			return translate(err)
		}
		if !chat.HasParticipant(deal.ClientID) || !chat.HasParticipant(deal.MasterID) {
			return apperror.Validation("чат принадлежит другим участникам")
		}
		return nil
	}

	chat, err := s.chats.FindByPair(ctx, deal.ClientID, deal.MasterID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return translate(err)
	}
	deal.ChatID = &chat.ID
	if deal.SkillID == nil && chat.SkillID != nil {
		deal.SkillID = chat.SkillID
	}
	return nil
}

func (s *DealService) checkSkill(ctx context.Context, deal *entity.Deal) error {
	if deal.SkillID == nil {
		return nil
	}
	skill, err := s.skills.GetByID(ctx, *deal.SkillID)
	if err != nil {
		return translate(err)
	}
	if skill.OwnerID != deal.MasterID {
		return apperror.Validation("умейка принадлежит другому мастеру")
	}
	return nil
}

// Get возвращает сделку участнику.
func (s *DealService) Get(ctx context.Context, id, userID uuid.UUID) (*entity.Deal, error) {
	deal, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !deal.IsParticipant(userID) {
		return nil, apperror.ErrForbidden
	}
	return deal, nil
}

// List возвращает сделки пользователя, последние изменённые первыми.
func (s *DealService) List(ctx context.Context, userID uuid.UUID, in DealListInput) ([]entity.Deal, int, error) {
	if in.Status != "" {
		if _, err := valueobject.NewDealStatus(in.Status); err != nil {
			return nil, 0, err
		}
	}
	if in.Role != "" {
		if _, err := valueobject.NewDealRole(in.Role); err != nil {
			return nil, 0, err
		}
	}
	limit, offset := normalizePage(in.Limit, in.Offset)

	deals, total, err := s.repo.List(ctx, repository.DealListFilter{
		UserID: userID,
		Status: in.Status,
		Role:   in.Role,
		Limit:  limit,
		Offset: offset,
	})
	return deals, total, translate(err)
}

// Update меняет условия. Обе подписи сбрасываются.
func (s *DealService) Update(ctx context.Context, id, userID uuid.UUID, edit entity.DealEdit) (*entity.Deal, error) {
	return s.apply(ctx, id, userID, func(d *entity.Deal, now time.Time) (entity.DealEvent, error) {
		return d.Edit(userID, edit, now)
	})
}

// Sign подписывает сделку. Вторая подпись активирует её.
func (s *DealService) Sign(ctx context.Context, id, userID uuid.UUID) (*entity.Deal, error) {
	return s.apply(ctx, id, userID, func(d *entity.Deal, now time.Time) (entity.DealEvent, error) {
		return d.Sign(userID, now)
	})
}

// Complete подтверждает выполнение и начисляет звёзды обеим сторонам.
func (s *DealService) Complete(ctx context.Context, id, userID uuid.UUID) (*entity.Deal, error) {
	return s.apply(ctx, id, userID, func(d *entity.Deal, now time.Time) (entity.DealEvent, error) {
		return d.Complete(userID, now)
	})
}

// Cancel отменяет сделку.
func (s *DealService) Cancel(ctx context.Context, id, userID uuid.UUID, reason string) (*entity.Deal, error) {
	return s.apply(ctx, id, userID, func(d *entity.Deal, now time.Time) (entity.DealEvent, error) {
		return d.Cancel(userID, reason, now)
	})
}

type dealOperation func(d *entity.Deal, now time.Time) (entity.DealEvent, error)

// apply выполняет переход под блокировкой строки и уведомляет вторую сторону после коммита.
func (s *DealService) apply(ctx context.Context, id, userID uuid.UUID, op dealOperation) (*entity.Deal, error) {
	deal, change, err := s.repo.Mutate(ctx, id, func(d *entity.Deal) (*repository.DealChange, error) {
		event, err := op(d, s.now())
		if err != nil {
			return nil, err
		}
		return s.changeFor(d, event, userID), nil
	})
	if err != nil {
		return nil, translate(err)
	}

	notify(s.notifier, deal.Counterparty(userID), EventDealUpdated, DealNotification{Event: change.Event, Deal: deal})
	for _, credit := range change.Credits {
		notify(s.notifier, credit.UserID, EventStarsUpdated, map[string]any{
			"reason":  credit.Reason,
			"amount":  credit.Amount,
			"deal_id": deal.ID,
		})
	}
	return deal, nil
}

func (s *DealService) changeFor(d *entity.Deal, event entity.DealEvent, actorID uuid.UUID) *repository.DealChange {
	change := &repository.DealChange{
		Event:         event,
		SystemMessage: d.SystemMessage(event, actorID),
	}
	if event != entity.DealEventCompleted {
		return change
	}

	dealID := d.ID
	change.IncrementMasterDeals = true
	for _, c := range []models.StarCredit{
		{UserID: d.MasterID, Amount: s.economy.DealCompletionStars, Reason: models.StarReasonDealCompleted, ReferenceID: &dealID},
		{UserID: d.ClientID, Amount: s.economy.DealClientStars, Reason: models.StarReasonDealCompleted, ReferenceID: &dealID},
	} {
		if c.Amount > 0 {
			change.Credits = append(change.Credits, c)
		}
	}
	return change
}
