package cache

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/umeyka/umeyka-backend/internal/models"
)

const skillGeoKey = "skills:geo"

// GeoHit - объявление в радиусе поиска.
type GeoHit struct {
	SkillID    uuid.UUID
	DistanceKm float64
}

// SkillGeoIndex хранит координаты активных объявлений для поиска поблизости.
type SkillGeoIndex interface {
	Upsert(ctx context.Context, skillID uuid.UUID, lat, lng float64) error
	Remove(ctx context.Context, skillID uuid.UUID) error
	Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]GeoHit, error)
	Rebuild(ctx context.Context, skills []models.Skill) (int, error)
}

type redisSkillGeo struct {
	redis *redis.Client
}

// NewSkillGeoIndex создаёт индекс поверх Redis GEO. Без клиента возвращает nil,
// и поиск поблизости идёт через SQL.
func NewSkillGeoIndex(client *redis.Client) SkillGeoIndex {
	if client == nil {
		return nil
	}
	return &redisSkillGeo{redis: client}
}

func (g *redisSkillGeo) Upsert(ctx context.Context, skillID uuid.UUID, lat, lng float64) error {
	err := g.redis.GeoAdd(ctx, skillGeoKey, &redis.GeoLocation{
		Name:      skillID.String(),
		Longitude: lng,
		Latitude:  lat,
	}).Err()
	if err != nil {
		return fmt.Errorf("skill geo: add %w", err)
	}
	return nil
}

func (g *redisSkillGeo) Remove(ctx context.Context, skillID uuid.UUID) error {
	if err := g.redis.ZRem(ctx, skillGeoKey, skillID.String()).Err(); err != nil {
		return fmt.Errorf("skill geo: remove %w", err)
	}
	return nil
}

func (g *redisSkillGeo) Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]GeoHit, error) {
	locations, err := g.redis.GeoSearchLocation(ctx, skillGeoKey, nearbyQuery(lat, lng, radiusKm, limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("skill geo: search %w", err)
	}

	hits := make([]GeoHit, 0, len(locations))
	for _, loc := range locations {
		id, err := uuid.Parse(loc.Name)
		if err != nil {
			continue
		}
		hits = append(hits, GeoHit{SkillID: id, DistanceKm: loc.Dist})
	}
	return hits, nil
}

// nearbyQuery - круг вокруг точки, ближайшие первыми.
func nearbyQuery(lat, lng, radiusKm float64, limit int) *redis.GeoSearchLocationQuery {
	return &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithDist: true,
	}
}

// Rebuild пересобирает индекс целиком по объявлениям с координатами.
func (g *redisSkillGeo) Rebuild(ctx context.Context, skills []models.Skill) (int, error) {
	locations := make([]*redis.GeoLocation, 0, len(skills))
	for i := range skills {
		s := &skills[i]
		if !s.IsActive || !s.HasLocation() {
			continue
		}
		locations = append(locations, &redis.GeoLocation{
			Name:      s.ID.String(),
			Longitude: *s.Lng,
			Latitude:  *s.Lat,
		})
	}

	_, err := g.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, skillGeoKey)
		if len(locations) > 0 {
			pipe.GeoAdd(ctx, skillGeoKey, locations...)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("skill geo: rebuild %w", err)
	}
	return len(locations), nil
}
