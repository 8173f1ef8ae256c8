package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/umeyka/umeyka-backend/internal/cache"
	"github.com/umeyka/umeyka-backend/internal/models"
)

type mockSkillRepo struct {
	mock.Mock
}

func (m *mockSkillRepo) Create(ctx context.Context, skill *models.Skill) error {
	args := m.Called(ctx, skill)
	if args.Error(0) == nil {
		skill.ID = uuid.New()
		skill.IsActive = true
	}
	return args.Error(0)
}

func (m *mockSkillRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Skill, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Skill), args.Error(1)
}

func (m *mockSkillRepo) GetActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Skill, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]models.Skill), args.Error(1)
}

func (m *mockSkillRepo) Update(ctx context.Context, id uuid.UUID, upd models.SkillUpdate) (*models.Skill, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Skill), args.Error(1)
}

func (m *mockSkillRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSkillRepo) List(ctx context.Context, f models.SkillFilter) ([]models.Skill, int, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.Skill), args.Int(1), args.Error(2)
}

func (m *mockSkillRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, includeInactive bool) ([]models.Skill, error) {
	args := m.Called(ctx, ownerID, includeInactive)
	return args.Get(0).([]models.Skill), args.Error(1)
}

func (m *mockSkillRepo) CountActiveByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

func (m *mockSkillRepo) IncrementViews(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSkillRepo) IncrementContacts(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSkillRepo) Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]models.SkillWithDistance, error) {
	args := m.Called(ctx, lat, lng, radiusKm, limit)
	return args.Get(0).([]models.SkillWithDistance), args.Error(1)
}

func (m *mockSkillRepo) ListWithLocation(ctx context.Context) ([]models.Skill, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Skill), args.Error(1)
}

type mockProfileRepo struct {
	mock.Mock
}

func (m *mockProfileRepo) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *mockProfileRepo) GetPublicProfile(ctx context.Context, userID uuid.UUID) (*models.PublicProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PublicProfile), args.Error(1)
}

func (m *mockProfileRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.Profile, error) {
	args := m.Called(ctx, userID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *mockProfileRepo) ReferralEarnings(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type mockChatRepo struct {
	mock.Mock
}

func (m *mockChatRepo) GetOrCreate(ctx context.Context, clientID, masterID uuid.UUID, skillID *uuid.UUID) (*models.Chat, bool, error) {
	args := m.Called(ctx, clientID, masterID, skillID)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*models.Chat), args.Bool(1), args.Error(2)
}

func (m *mockChatRepo) FindByPair(ctx context.Context, a, b uuid.UUID) (*models.Chat, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *mockChatRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *mockChatRepo) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ChatPreview, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.ChatPreview), args.Int(1), args.Error(2)
}

func (m *mockChatRepo) CreateMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	if args.Error(0) == nil {
		msg.ID = uuid.New()
		msg.CreatedAt = time.Now()
	}
	return args.Error(0)
}

func (m *mockChatRepo) ListMessages(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]models.Message, int, error) {
	args := m.Called(ctx, chatID, limit, offset)
	return args.Get(0).([]models.Message), args.Int(1), args.Error(2)
}

func (m *mockChatRepo) MarkRead(ctx context.Context, chatID, readerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, chatID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockChatRepo) Complete(ctx context.Context, chatID uuid.UUID, systemText string) (*models.Chat, error) {
	args := m.Called(ctx, chatID, systemText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

// fakeGeo хранит точки в памяти и отдаёт их в порядке добавления.
type fakeGeo struct {
	points  map[uuid.UUID][2]float64
	order   []uuid.UUID
	removed []uuid.UUID
	err     error
}

func newFakeGeo() *fakeGeo {
	return &fakeGeo{points: map[uuid.UUID][2]float64{}}
}

func (g *fakeGeo) Upsert(ctx context.Context, id uuid.UUID, lat, lng float64) error {
	if _, ok := g.points[id]; !ok {
		g.order = append(g.order, id)
	}
	g.points[id] = [2]float64{lat, lng}
	return nil
}

func (g *fakeGeo) Remove(ctx context.Context, id uuid.UUID) error {
	delete(g.points, id)
	g.removed = append(g.removed, id)
	return nil
}

func (g *fakeGeo) Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]cache.GeoHit, error) {
	if g.err != nil {
		return nil, g.err
	}
	hits := []cache.GeoHit{}
	for i, id := range g.order {
		if _, ok := g.points[id]; ok {
			hits = append(hits, cache.GeoHit{SkillID: id, DistanceKm: float64(i + 1)})
		}
	}
	return hits, nil
}

func (g *fakeGeo) Rebuild(ctx context.Context, skills []models.Skill) (int, error) {
	g.points = map[uuid.UUID][2]float64{}
	g.order = nil
	for _, s := range skills {
		_ = g.Upsert(ctx, s.ID, *s.Lat, *s.Lng)
	}
	return len(skills), nil
}

type mockMediaRepo struct {
	mock.Mock
}

func (m *mockMediaRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.MediaFile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MediaFile), args.Error(1)
}

func (m *mockMediaRepo) Create(ctx context.Context, media *models.MediaFile) error {
	args := m.Called(ctx, media)
	if args.Error(0) == nil {
		media.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockMediaRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}
