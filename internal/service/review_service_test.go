package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/umeyka/umeyka-backend/internal/domain/entity"
	"github.com/umeyka/umeyka-backend/internal/domain/valueobject"
	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
	"github.com/umeyka/umeyka-backend/internal/repository"
)

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) Create(ctx context.Context, review *models.Review) error {
	args := m.Called(ctx, review)
	if args.Error(0) == nil {
		review.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockReviewRepo) ExistsForDeal(ctx context.Context, dealID, reviewerID uuid.UUID) (bool, error) {
	args := m.Called(ctx, dealID, reviewerID)
	return args.Bool(0), args.Error(1)
}

func (m *mockReviewRepo) ExistsForChat(ctx context.Context, chatID, reviewerID uuid.UUID) (bool, error) {
	args := m.Called(ctx, chatID, reviewerID)
	return args.Bool(0), args.Error(1)
}

func (m *mockReviewRepo) ListByReviewed(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ReviewWithAuthor, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.ReviewWithAuthor), args.Int(1), args.Error(2)
}

func (m *mockReviewRepo) ListBySkill(ctx context.Context, skillID uuid.UUID, limit, offset int) ([]models.ReviewWithAuthor, int, error) {
	args := m.Called(ctx, skillID, limit, offset)
	return args.Get(0).([]models.ReviewWithAuthor), args.Int(1), args.Error(2)
}

func (m *mockReviewRepo) Summary(ctx context.Context, userID uuid.UUID) (*models.RatingSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RatingSummary), args.Error(1)
}

func completedDeal(client, master uuid.UUID) entity.Deal {
	skillID := uuid.New()
	return entity.Deal{
		ID:       uuid.New(),
		SkillID:  &skillID,
		ClientID: client,
		MasterID: master,
		Status:   valueobject.DealStatusCompleted,
	}
}

func scores(dealID, chatID *uuid.UUID) CreateReviewInput {
	return CreateReviewInput{DealID: dealID, ChatID: chatID, Quality: 5, Speed: 4, Communication: 5, Price: 3}
}

func TestOverallScore(t *testing.T) {
	assert.Equal(t, 4.25, OverallScore(5, 4, 5, 3))
	assert.Equal(t, 4.67, OverallScore(5, 5, 4))
	assert.Equal(t, 1.0, OverallScore(1, 1, 1, 1))
	assert.Equal(t, 0.0, OverallScore())
}

func TestReviewService_CreateForDeal(t *testing.T) {
	client, master := uuid.New(), uuid.New()
	deals := newFakeDealRepo()
	deal := completedDeal(client, master)
	deals.deals[deal.ID] = deal

	repo := new(mockReviewRepo)
	repo.On("ExistsForDeal", mock.Anything, deal.ID, client).Return(false, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Review")).Return(nil)
	n := &recordingNotifier{}

	svc := NewReviewService(repo, deals, new(mockChatRepo), nil, n)
	comment := "  Отличная работа  "
	in := scores(&deal.ID, nil)
	in.Comment = &comment

	review, err := svc.Create(context.Background(), client, in)
	require.NoError(t, err)
	assert.Equal(t, master, review.ReviewedID)
	assert.Equal(t, deal.SkillID, review.SkillID)
	assert.Equal(t, 4.25, review.Overall)
	require.NotNil(t, review.Comment)
	assert.Equal(t, "Отличная работа", *review.Comment)
	assert.Equal(t, []string{EventReviewCreated}, n.events)
	assert.Equal(t, []uuid.UUID{master}, n.users)
}

func TestReviewService_CreateForDeal_Rejections(t *testing.T) {
	client, master := uuid.New(), uuid.New()
	deals := newFakeDealRepo()

	done := completedDeal(client, master)
	deals.deals[done.ID] = done

	active := completedDeal(client, master)
	active.Status = valueobject.DealStatusActive
	deals.deals[active.ID] = active

	repo := new(mockReviewRepo)
	repo.On("ExistsForDeal", mock.Anything, done.ID, client).Return(true, nil)
	svc := NewReviewService(repo, deals, new(mockChatRepo), nil, &recordingNotifier{})
	ctx := context.Background()

	_, err := svc.Create(ctx, master, scores(&done.ID, nil))
	assert.True(t, apperror.IsForbidden(err), "мастер не оценивает сам себя")

	_, err = svc.Create(ctx, uuid.New(), scores(&done.ID, nil))
	assert.True(t, apperror.IsForbidden(err))

	_, err = svc.Create(ctx, client, scores(&active.ID, nil))
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeInvalidTransition, appErr.Code)

	_, err = svc.Create(ctx, client, scores(&done.ID, nil))
	assert.ErrorIs(t, err, apperror.ErrAlreadyReviewed)

	missing := uuid.New()
	_, err = svc.Create(ctx, client, scores(&missing, nil))
	assert.True(t, apperror.IsNotFound(err))

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReviewService_CreateInputValidation(t *testing.T) {
	svc := NewReviewService(new(mockReviewRepo), newFakeDealRepo(), new(mockChatRepo), nil, &recordingNotifier{})
	ctx := context.Background()
	id := uuid.New()

	_, err := svc.Create(ctx, uuid.New(), scores(nil, nil))
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Create(ctx, uuid.New(), scores(&id, &id))
	assert.True(t, apperror.IsValidation(err))

	in := scores(&id, nil)
	in.Speed = 6
	_, err = svc.Create(ctx, uuid.New(), in)
	assert.True(t, apperror.IsValidation(err))

	in = scores(&id, nil)
	in.Quality = 0
	_, err = svc.Create(ctx, uuid.New(), in)
	assert.True(t, apperror.IsValidation(err))
}

func TestReviewService_CreateForChat(t *testing.T) {
	client, master := uuid.New(), uuid.New()
	skillID := uuid.New()
	chat := &models.Chat{ID: uuid.New(), ClientID: client, MasterID: master, SkillID: &skillID, IsCompleted: true}
	open := &models.Chat{ID: uuid.New(), ClientID: client, MasterID: master}

	chats := new(mockChatRepo)
	chats.On("GetByID", mock.Anything, chat.ID).Return(chat, nil)
	chats.On("GetByID", mock.Anything, open.ID).Return(open, nil)

	repo := new(mockReviewRepo)
	repo.On("ExistsForChat", mock.Anything, chat.ID, client).Return(false, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Review")).Return(nil)

	svc := NewReviewService(repo, newFakeDealRepo(), chats, nil, &recordingNotifier{})
	ctx := context.Background()

	review, err := svc.Create(ctx, client, scores(nil, &chat.ID))
	require.NoError(t, err)
	assert.Nil(t, review.DealID)
	assert.Equal(t, &skillID, review.SkillID)
	assert.Equal(t, master, review.ReviewedID)

	_, err = svc.Create(ctx, client, scores(nil, &open.ID))
	require.Error(t, err)
	assert.False(t, apperror.IsForbidden(err))
}

func TestReviewService_CreateDuplicateFromRepository(t *testing.T) {
	client, master := uuid.New(), uuid.New()
	deals := newFakeDealRepo()
	deal := completedDeal(client, master)
	deals.deals[deal.ID] = deal

	repo := new(mockReviewRepo)
	repo.On("ExistsForDeal", mock.Anything, deal.ID, client).Return(false, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(repository.ErrReviewExists)
	n := &recordingNotifier{}

	svc := NewReviewService(repo, deals, new(mockChatRepo), nil, n)
	_, err := svc.Create(context.Background(), client, scores(&deal.ID, nil))
	assert.ErrorIs(t, err, apperror.ErrAlreadyReviewed)
	assert.Empty(t, n.events)
}

func TestReviewService_ListByUser(t *testing.T) {
	userID := uuid.New()
	repo := new(mockReviewRepo)
	repo.On("ListByReviewed", mock.Anything, userID, 20, 0).
		Return([]models.ReviewWithAuthor{{ReviewerName: "Аня"}}, 1, nil)
	repo.On("Summary", mock.Anything, userID).Return(&models.RatingSummary{Count: 1, Overall: 4.5}, nil)

	svc := NewReviewService(repo, newFakeDealRepo(), new(mockChatRepo), nil, nil)
	res, err := svc.ListByUser(context.Background(), userID, 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 4.5, res.Summary.Overall)
	repo.AssertExpectations(t)
}

func TestReviewService_CreateRefreshesSkillSearch(t *testing.T) {
	client, master := uuid.New(), uuid.New()
	deals := newFakeDealRepo()
	deal := completedDeal(client, master)
	deals.deals[deal.ID] = deal

	f := newSkillFixture()
	filter := models.SkillFilter{Sort: models.SkillSortRating, Limit: 20}
	f.repo.On("List", mock.Anything, filter).
		Return([]models.Skill{{ID: *deal.SkillID, Rating: 0, ReviewsCount: 0}}, 1, nil).Once()
	f.repo.On("List", mock.Anything, filter).
		Return([]models.Skill{{ID: *deal.SkillID, Rating: 4.25, ReviewsCount: 1}}, 1, nil).Once()

	ctx := context.Background()
	before, err := f.svc.Search(ctx, models.SkillFilter{Sort: models.SkillSortRating})
	require.NoError(t, err)
	assert.Equal(t, 0, before.Items[0].ReviewsCount)

	repo := new(mockReviewRepo)
	repo.On("ExistsForDeal", mock.Anything, deal.ID, client).Return(false, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Review")).Return(nil)
	svc := NewReviewService(repo, deals, new(mockChatRepo), f.cache, &recordingNotifier{})

	_, err = svc.Create(ctx, client, scores(&deal.ID, nil))
	require.NoError(t, err)

	after, err := f.svc.Search(ctx, models.SkillFilter{Sort: models.SkillSortRating})
	require.NoError(t, err)
	assert.Equal(t, 1, after.Items[0].ReviewsCount)
	assert.Equal(t, 4.25, after.Items[0].Rating)
	f.repo.AssertNumberOfCalls(t, "List", 2)
}

func TestReviewService_CreateForReversedChat(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	skillA, skillB := uuid.New(), uuid.New()
	// a заказывал у b, потом b обратился к умейке a: это два разных чата
	first := &models.Chat{ID: uuid.New(), ClientID: a, MasterID: b, SkillID: &skillB, IsCompleted: true}
	reversed := &models.Chat{ID: uuid.New(), ClientID: b, MasterID: a, SkillID: &skillA, IsCompleted: true}

	chats := new(mockChatRepo)
	chats.On("GetByID", mock.Anything, first.ID).Return(first, nil)
	chats.On("GetByID", mock.Anything, reversed.ID).Return(reversed, nil)

	repo := new(mockReviewRepo)
	repo.On("ExistsForChat", mock.Anything, reversed.ID, b).Return(false, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Review")).Return(nil)
	svc := NewReviewService(repo, newFakeDealRepo(), chats, nil, &recordingNotifier{})
	ctx := context.Background()

	review, err := svc.Create(ctx, b, scores(nil, &reversed.ID))
	require.NoError(t, err)
	assert.Equal(t, a, review.ReviewedID)
	assert.Equal(t, &skillA, review.SkillID)

	_, err = svc.Create(ctx, b, scores(nil, &first.ID))
	assert.True(t, apperror.IsForbidden(err), "в первом чате b - мастер")
}
