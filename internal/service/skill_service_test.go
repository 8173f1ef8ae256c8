package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/umeyka/umeyka-backend/internal/cache"
	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
	"github.com/umeyka/umeyka-backend/internal/repository"
)

type skillFixture struct {
	repo     *mockSkillRepo
	profiles *mockProfileRepo
	chats    *mockChatRepo
	cache    *cache.TTLCache
	geo      *fakeGeo
	notifier *recordingNotifier
	svc      *SkillService
	now      time.Time
}

func newSkillFixture() *skillFixture {
	f := &skillFixture{
		repo:     new(mockSkillRepo),
		profiles: new(mockProfileRepo),
		chats:    new(mockChatRepo),
		cache:    cache.NewTTLCache(context.Background(), time.Minute, 0),
		geo:      newFakeGeo(),
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewSkillService(f.repo, f.profiles, f.chats, f.cache, f.geo, f.notifier, testEconomy)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func validSkillInput() CreateSkillInput {
	lat, lng := 55.75, 37.62
	return CreateSkillInput{
		Skill:      "Ремонт стиральных машин",
		Experience: "8 лет",
		Category:   "repair",
		Price:      1500,
		Lat:        &lat,
		Lng:        &lng,
	}
}

func TestSkillService_Create_FreeLimit(t *testing.T) {
	f := newSkillFixture()
	owner := uuid.New()

	f.profiles.On("GetProfile", mock.Anything, owner).Return(&models.Profile{UserID: owner}, nil)
	f.repo.On("CountActiveByOwner", mock.Anything, owner).Return(5, nil)

	_, err := f.svc.Create(context.Background(), owner, validSkillInput())
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.ErrCodeLimitReached, appErr.Code)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSkillService_Create_PremiumIsUnlimited(t *testing.T) {
	f := newSkillFixture()
	owner := uuid.New()
	until := f.now.Add(24 * time.Hour)

	f.profiles.On("GetProfile", mock.Anything, owner).Return(&models.Profile{UserID: owner, IsPremium: true, PremiumUntil: &until}, nil)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Skill")).Return(nil)

	f.cache.Set(cache.PrefixSkillSearch+"stale", "x")

	skill, err := f.svc.Create(context.Background(), owner, validSkillInput())
	require.NoError(t, err)
	assert.Equal(t, owner, skill.OwnerID)
	assert.Contains(t, f.geo.points, skill.ID)
	assert.Equal(t, 0, f.cache.Len(), "запись должна сбрасывать кэш выдачи")
	f.repo.AssertNotCalled(t, "CountActiveByOwner", mock.Anything, mock.Anything)
}

func TestSkillService_Create_ExpiredPremiumCountsAsFree(t *testing.T) {
	f := newSkillFixture()
	owner := uuid.New()
	past := f.now.Add(-time.Hour)

	f.profiles.On("GetProfile", mock.Anything, owner).Return(&models.Profile{UserID: owner, IsPremium: true, PremiumUntil: &past}, nil)
	f.repo.On("CountActiveByOwner", mock.Anything, owner).Return(5, nil)

	_, err := f.svc.Create(context.Background(), owner, validSkillInput())
	assert.Error(t, err)
}

func TestSkillService_Create_Validation(t *testing.T) {
	f := newSkillFixture()

	in := validSkillInput()
	in.Lng = nil
	_, err := f.svc.Create(context.Background(), uuid.New(), in)
	assert.True(t, apperror.IsValidation(err))

	in = validSkillInput()
	in.Category = "unknown"
	_, err = f.svc.Create(context.Background(), uuid.New(), in)
	assert.True(t, apperror.IsValidation(err))
}

func TestSkillService_Get(t *testing.T) {
	f := newSkillFixture()
	owner, viewer := uuid.New(), uuid.New()
	active := &models.Skill{ID: uuid.New(), OwnerID: owner, IsActive: true, Views: 3}
	hidden := &models.Skill{ID: uuid.New(), OwnerID: owner}

	f.repo.On("GetByID", mock.Anything, active.ID).Return(active, nil)
	f.repo.On("GetByID", mock.Anything, hidden.ID).Return(hidden, nil)
	f.repo.On("IncrementViews", mock.Anything, active.ID).Return(nil).Once()

	got, err := f.svc.Get(context.Background(), active.ID, &viewer)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Views)

	// владелец не накручивает просмотры
	_, err = f.svc.Get(context.Background(), active.ID, &owner)
	require.NoError(t, err)
	f.repo.AssertNumberOfCalls(t, "IncrementViews", 1)

	_, err = f.svc.Get(context.Background(), hidden.ID, &viewer)
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.svc.Get(context.Background(), hidden.ID, &owner)
	assert.NoError(t, err)
}

func TestSkillService_UpdateAndDelete_OwnerOnly(t *testing.T) {
	f := newSkillFixture()
	owner, stranger := uuid.New(), uuid.New()
	skill := &models.Skill{ID: uuid.New(), OwnerID: owner, IsActive: true}
	f.repo.On("GetByID", mock.Anything, skill.ID).Return(skill, nil)

	title := "Новое название"
	_, err := f.svc.Update(context.Background(), skill.ID, stranger, models.SkillUpdate{Skill: &title})
	assert.True(t, apperror.IsForbidden(err))

	err = f.svc.Delete(context.Background(), skill.ID, stranger)
	assert.True(t, apperror.IsForbidden(err))

	f.repo.On("Deactivate", mock.Anything, skill.ID).Return(nil)
	require.NoError(t, f.svc.Delete(context.Background(), skill.ID, owner))
	assert.Equal(t, []uuid.UUID{skill.ID}, f.geo.removed)
}

func TestSkillService_Update_PartialGeoUsesCurrentValue(t *testing.T) {
	f := newSkillFixture()
	owner := uuid.New()
	lat, lng := 10.0, 20.0
	skill := &models.Skill{ID: uuid.New(), OwnerID: owner, IsActive: true, Lat: &lat, Lng: &lng}
	f.repo.On("GetByID", mock.Anything, skill.ID).Return(skill, nil)

	newLat := 11.0
	upd := models.SkillUpdate{Lat: &newLat}
	updated := &models.Skill{ID: skill.ID, OwnerID: owner, IsActive: true, Lat: &newLat, Lng: &lng}
	f.repo.On("Update", mock.Anything, skill.ID, upd).Return(updated, nil)

	got, err := f.svc.Update(context.Background(), skill.ID, owner, upd)
	require.NoError(t, err)
	assert.Equal(t, 11.0, *got.Lat)
	assert.Equal(t, [2]float64{11, 20}, f.geo.points[skill.ID])

	bad := 200.0
	_, err = f.svc.Update(context.Background(), skill.ID, owner, models.SkillUpdate{Lng: &bad})
	assert.True(t, apperror.IsValidation(err))
}

func TestSkillService_Update_TrimsText(t *testing.T) {
	f := newSkillFixture()
	owner := uuid.New()
	skill := &models.Skill{ID: uuid.New(), OwnerID: owner, IsActive: true}
	f.repo.On("GetByID", mock.Anything, skill.ID).Return(skill, nil)

	title, experience, description := "  Ремонт часов  ", "\t5 лет ", "  Швейцарские механизмы\n"
	f.repo.On("Update", mock.Anything, skill.ID, mock.MatchedBy(func(upd models.SkillUpdate) bool {
		return *upd.Skill == "Ремонт часов" &&
			*upd.Experience == "5 лет" &&
			*upd.Description == "Швейцарские механизмы"
	})).Return(&models.Skill{ID: skill.ID, OwnerID: owner, IsActive: true, Skill: "Ремонт часов"}, nil)

	got, err := f.svc.Update(context.Background(), skill.ID, owner, models.SkillUpdate{
		Skill:       &title,
		Experience:  &experience,
		Description: &description,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ремонт часов", got.Skill)
	f.repo.AssertExpectations(t)

	blank := "   "
	_, err = f.svc.Update(context.Background(), skill.ID, owner, models.SkillUpdate{Skill: &blank})
	assert.True(t, apperror.IsValidation(err))
}

func TestSkillService_Contact(t *testing.T) {
	f := newSkillFixture()
	owner, client := uuid.New(), uuid.New()
	skill := &models.Skill{ID: uuid.New(), OwnerID: owner, IsActive: true, Skill: "Маникюр"}
	chat := &models.Chat{ID: uuid.New(), ClientID: client, MasterID: owner, SkillID: &skill.ID}

	f.repo.On("GetByID", mock.Anything, skill.ID).Return(skill, nil)
	f.chats.On("GetOrCreate", mock.Anything, client, owner, &skill.ID).Return(chat, true, nil)
	f.repo.On("IncrementContacts", mock.Anything, skill.ID).Return(nil)

	res, err := f.svc.Contact(context.Background(), skill.ID, client)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, chat.ID, res.Chat.ID)
	assert.Equal(t, []string{EventSkillContacted}, f.notifier.events)
	assert.Equal(t, []uuid.UUID{owner}, f.notifier.users)

	_, err = f.svc.Contact(context.Background(), skill.ID, owner)
	assert.True(t, apperror.IsValidation(err))
}

func TestSkillService_Search_UsesCache(t *testing.T) {
	f := newSkillFixture()
	expected := models.SkillFilter{Query: "ремонт", Sort: models.SkillSortDate, Limit: 20}
	f.repo.On("List", mock.Anything, expected).Return([]models.Skill{{Skill: "Ремонт"}}, 1, nil).Once()

	for i := 0; i < 2; i++ {
		res, err := f.svc.Search(context.Background(), models.SkillFilter{Query: "  ремонт "})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Total)
	}
	f.repo.AssertNumberOfCalls(t, "List", 1)

	_, err := f.svc.Search(context.Background(), models.SkillFilter{Sort: "random"})
	assert.True(t, apperror.IsValidation(err))
}

func TestSkillService_Nearby(t *testing.T) {
	f := newSkillFixture()
	near, far := uuid.New(), uuid.New()
	_ = f.geo.Upsert(context.Background(), near, 55.75, 37.62)
	_ = f.geo.Upsert(context.Background(), far, 55.80, 37.70)

	f.repo.On("GetActiveByIDs", mock.Anything, []uuid.UUID{near, far}).
		Return([]models.Skill{{ID: near}, {ID: far}}, nil)

	res, err := f.svc.Nearby(context.Background(), 55.75, 37.62, 500)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, near, res[0].ID)
	assert.Equal(t, 1.0, res[0].DistanceKm)

	f.geo.err = errors.New("redis down")
	f.repo.On("Nearby", mock.Anything, 55.75, 37.62, maxNearbyRadiusKm, nearbyLimit).
		Return([]models.SkillWithDistance{{Skill: models.Skill{ID: near}, DistanceKm: 0.1}}, nil)

	res, err = f.svc.Nearby(context.Background(), 55.75, 37.62, 500)
	require.NoError(t, err)
	assert.Len(t, res, 1)

	_, err = f.svc.Nearby(context.Background(), 95, 0, 1)
	assert.True(t, apperror.IsValidation(err))
}

func TestSkillService_NotFoundIsTranslated(t *testing.T) {
	f := newSkillFixture()
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, id).Return(nil, repository.ErrSkillNotFound)

	_, err := f.svc.Get(context.Background(), id, nil)
	assert.True(t, apperror.IsNotFound(err))
}
