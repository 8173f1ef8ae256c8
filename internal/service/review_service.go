package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/umeyka/umeyka-backend/internal/cache"
	"github.com/umeyka/umeyka-backend/internal/domain/entity"
	"github.com/umeyka/umeyka-backend/internal/domain/valueobject"
	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
	"github.com/umeyka/umeyka-backend/internal/validation"
)

type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	ExistsForDeal(ctx context.Context, dealID, reviewerID uuid.UUID) (bool, error)
	ExistsForChat(ctx context.Context, chatID, reviewerID uuid.UUID) (bool, error)
	ListByReviewed(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ReviewWithAuthor, int, error)
	ListBySkill(ctx context.Context, skillID uuid.UUID, limit, offset int) ([]models.ReviewWithAuthor, int, error)
	Summary(ctx context.Context, userID uuid.UUID) (*models.RatingSummary, error)
}

// DealGetter читает сделку, по которой оставляют отзыв.
type DealGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Deal, error)
}

// ChatGetter читает чат по идентификатору.
type ChatGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)
}

type ReviewService struct {
	repo     ReviewRepository
	deals    DealGetter
	chats    ChatGetter
	cache    SearchCache
	notifier Notifier
}

func NewReviewService(repo ReviewRepository, deals DealGetter, chats ChatGetter, searchCache SearchCache, notifier Notifier) *ReviewService {
	return &ReviewService{repo: repo, deals: deals, chats: chats, cache: searchCache, notifier: notifier}
}

// CreateReviewInput - оценка по четырём измерениям. Указывается ровно одно из DealID и ChatID.
type CreateReviewInput struct {
	DealID        *uuid.UUID
	ChatID        *uuid.UUID
	Quality       int
	Speed         int
	Communication int
	Price         int
	Comment       *string
}

// UserReviews - отзывы о мастере со средними по измерениям.
type UserReviews struct {
	Items   []models.ReviewWithAuthor `json:"items"`
	Total   int                       `json:"total"`
	Summary *models.RatingSummary     `json:"summary"`
}

// Create сохраняет отзыв клиента о мастере после завершённой сделки или чата.
func (s *ReviewService) Create(ctx context.Context, reviewerID uuid.UUID, in CreateReviewInput) (*models.Review, error) {
	if (in.DealID == nil) == (in.ChatID == nil) {
		return nil, apperror.Validation("укажите deal_id или chat_id")
	}
	for _, d := range []struct {
		field string
		score int
	}{
		{"quality", in.Quality},
		{"speed", in.Speed},
		{"communication", in.Communication},
		{"price", in.Price},
	} {
		if err := validation.ValidateScore(d.field, d.score); err != nil {
			return nil, apperror.Validation(err.Error())
		}
	}

	if err := validation.ValidateReviewComment(in.Comment); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	comment := trimmed(in.Comment)
	if comment != nil && *comment == "" {
		comment = nil
	}

	review := &models.Review{
		ReviewerID:    reviewerID,
		Quality:       in.Quality,
		Speed:         in.Speed,
		Communication: in.Communication,
		Price:         in.Price,
		Overall:       OverallScore(in.Quality, in.Speed, in.Communication, in.Price),
		Comment:       comment,
	}

	var err error
	if in.DealID != nil {
		err = s.bindDeal(ctx, review, *in.DealID)
	} else {
		err = s.bindChat(ctx, review, *in.ChatID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, review); err != nil {
		return nil, translate(err)
	}

	// рейтинг умейки попадает в выдачу поиска
	if review.SkillID != nil && s.cache != nil {
		s.cache.InvalidatePrefix(cache.PrefixSkillSearch)
	}
	notify(s.notifier, review.ReviewedID, EventReviewCreated, review)
	return review, nil
}

func (s *ReviewService) bindDeal(ctx context.Context, review *models.Review, dealID uuid.UUID) error {
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		return translate(err)
	}
	if !deal.IsParticipant(review.ReviewerID) {
		return apperror.ErrForbidden
	}
	if review.ReviewerID != deal.ClientID {
		return apperror.New(apperror.ErrCodeForbidden, "отзыв оставляет клиент")
	}
	if deal.Status != valueobject.DealStatusCompleted {
		return apperror.New(apperror.ErrCodeInvalidTransition, "отзыв можно оставить только после завершения сделки")
	}

	exists, err := s.repo.ExistsForDeal(ctx, dealID, review.ReviewerID)
	if err != nil {
		return translate(err)
	}
	if exists {
		return apperror.ErrAlreadyReviewed
	}

	review.DealID = &deal.ID
	review.ChatID = deal.ChatID
	review.SkillID = deal.SkillID
	review.ReviewedID = deal.MasterID
	return nil
}

func (s *ReviewService) bindChat(ctx context.Context, review *models.Review, chatID uuid.UUID) error {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return translate(err)
	}
	if !chat.HasParticipant(review.ReviewerID) {
		return apperror.ErrForbidden
	}
	if review.ReviewerID != chat.ClientID {
		return apperror.New(apperror.ErrCodeForbidden, "отзыв оставляет клиент")
	}
	if !chat.IsCompleted {
		return apperror.New(apperror.ErrCodeInvalidTransition, "отзыв можно оставить только после завершения работы")
	}

	exists, err := s.repo.ExistsForChat(ctx, chatID, review.ReviewerID)
	if err != nil {
		return translate(err)
	}
	if exists {
		return apperror.ErrAlreadyReviewed
	}

	review.ChatID = &chat.ID
	review.SkillID = chat.SkillID
	review.ReviewedID = chat.MasterID
	return nil
}

// ListByUser возвращает отзывы о пользователе и средние оценки.
func (s *ReviewService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) (*UserReviews, error) {
	limit, offset = normalizePage(limit, offset)

	items, total, err := s.repo.ListByReviewed(ctx, userID, limit, offset)
	if err != nil {
		return nil, translate(err)
	}
	summary, err := s.repo.Summary(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return &UserReviews{Items: items, Total: total, Summary: summary}, nil
}

// ListBySkill возвращает отзывы по умейке.
func (s *ReviewService) ListBySkill(ctx context.Context, skillID uuid.UUID, limit, offset int) ([]models.ReviewWithAuthor, int, error) {
	limit, offset = normalizePage(limit, offset)
	items, total, err := s.repo.ListBySkill(ctx, skillID, limit, offset)
	return items, total, translate(err)
}

// OverallScore - среднее по измерениям, округлённое до сотых.
func OverallScore(scores ...int) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, v := range scores {
		sum += v
	}
	return valueobject.Round2(float64(sum) / float64(len(scores)))
}
