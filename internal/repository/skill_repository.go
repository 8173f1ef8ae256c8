package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/repository/common"
)

// ErrSkillNotFound возвращается, когда объявление не найдено.
var ErrSkillNotFound = errors.New("skill not found")

const skillsBoostOrder = `(boosted_until IS NOT NULL AND boosted_until > NOW()) DESC`

var skillSortOrders = map[string]string{
	models.SkillSortDate:      "created_at DESC",
	models.SkillSortPriceAsc:  "price ASC, created_at DESC",
	models.SkillSortPriceDesc: "price DESC, created_at DESC",
	models.SkillSortRating:    "rating DESC, reviews_count DESC, created_at DESC",
	models.SkillSortPopular:   "(views + contacts * 5) DESC, created_at DESC",
}

// haversineKm - расстояние от точки ($1 lat, $2 lng) до объявления в километрах.
const haversineKm = `6371 * 2 * ASIN(SQRT(
	POWER(SIN(RADIANS(s.lat - $1) / 2), 2) +
	COS(RADIANS($1)) * COS(RADIANS(s.lat)) * POWER(SIN(RADIANS(s.lng - $2) / 2), 2)
))`

// SkillRepository работает с таблицей skills.
type SkillRepository struct {
	db *sqlx.DB
}

// NewSkillRepository создаёт экземпляр репозитория.
func NewSkillRepository(db *sqlx.DB) *SkillRepository {
	return &SkillRepository{db: db}
}

// Create сохраняет новое объявление.
func (r *SkillRepository) Create(ctx context.Context, skill *models.Skill) error {
	if skill.PhotoIDs == nil {
		skill.PhotoIDs = pq.StringArray{}
	}
	query := `
		INSERT INTO skills (owner_id, skill, experience, description, category, price, city, lat, lng, photo_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING *
	`
	err := r.db.GetContext(ctx, skill, query,
		skill.OwnerID, skill.Skill, skill.Experience, skill.Description, skill.Category,
		skill.Price, skill.City, skill.Lat, skill.Lng, skill.PhotoIDs)
	if err != nil {
		return fmt.Errorf("skill repository: create %w", err)
	}
	return nil
}

// GetByID возвращает объявление независимо от активности.
func (r *SkillRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Skill, error) {
	return common.GetByID[models.Skill](ctx, r.db, "skills", id, ErrSkillNotFound)
}

// GetActiveByIDs возвращает активные объявления в порядке ids.
func (r *SkillRepository) GetActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Skill, error) {
	if len(ids) == 0 {
		return []models.Skill{}, nil
	}

	raw := make(pq.StringArray, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	var rows []models.Skill
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM skills WHERE id = ANY($1::uuid[]) AND is_active`, raw); err != nil {
		return nil, fmt.Errorf("skill repository: get by ids %w", err)
	}

	byID := make(map[uuid.UUID]models.Skill, len(rows))
	for _, s := range rows {
		byID[s.ID] = s
	}
	ordered := make([]models.Skill, 0, len(rows))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered, nil
}

// Update применяет частичное обновление.
func (r *SkillRepository) Update(ctx context.Context, id uuid.UUID, upd models.SkillUpdate) (*models.Skill, error) {
	var photos any
	if upd.PhotoIDs != nil {
		photos = pq.StringArray(upd.PhotoIDs)
	}

	var skill models.Skill
	query := `
		UPDATE skills
		SET skill = COALESCE($2, skill),
			experience = COALESCE($3, experience),
			description = COALESCE($4, description),
			category = COALESCE($5, category),
			price = COALESCE($6, price),
			city = COALESCE($7, city),
			lat = CASE WHEN $10 THEN NULL ELSE COALESCE($8, lat) END,
			lng = CASE WHEN $10 THEN NULL ELSE COALESCE($9, lng) END,
			photo_ids = COALESCE($11::uuid[], photo_ids),
			updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`
	err := r.db.GetContext(ctx, &skill, query,
		id, upd.Skill, upd.Experience, upd.Description, upd.Category, upd.Price, upd.City,
		upd.Lat, upd.Lng, upd.ClearGeo, photos)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSkillNotFound
		}
		return nil, fmt.Errorf("skill repository: update %w", err)
	}
	return &skill, nil
}

// Deactivate мягко удаляет объявление.
func (r *SkillRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE skills SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("skill repository: deactivate %w", err)
	}
	return common.ExpectOneRow(res, ErrSkillNotFound)
}

// List ищет активные объявления. Поднятые объявления всегда идут первыми.
func (r *SkillRepository) List(ctx context.Context, f models.SkillFilter) ([]models.Skill, int, error) {
	where := []string{"is_active"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		p := arg("%" + escapeLike(q) + "%")
		where = append(where, fmt.Sprintf(
			"(skill ILIKE %[1]s OR experience ILIKE %[1]s OR description ILIKE %[1]s OR category ILIKE %[1]s)", p))
	}
	if f.Category != "" {
		where = append(where, "category = "+arg(f.Category))
	}
	if f.City != "" {
		where = append(where, "city ILIKE "+arg(escapeLike(f.City)))
	}
	if f.MinPrice != nil {
		where = append(where, "price >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		where = append(where, "price <= "+arg(*f.MaxPrice))
	}
	if f.MinRating != nil {
		where = append(where, "rating >= "+arg(*f.MinRating))
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM skills WHERE "+cond, args...); err != nil {
		return nil, 0, fmt.Errorf("skill repository: count %w", err)
	}

	order, ok := skillSortOrders[f.Sort]
	if !ok {
		order = skillSortOrders[models.SkillSortDate]
	}

	query := fmt.Sprintf("SELECT * FROM skills WHERE %s ORDER BY %s, %s LIMIT %s OFFSET %s",
		cond, skillsBoostOrder, order, arg(f.Limit), arg(f.Offset))

	skills := []models.Skill{}
	if err := r.db.SelectContext(ctx, &skills, query, args...); err != nil {
		return nil, 0, fmt.Errorf("skill repository: list %w", err)
	}
	return skills, total, nil
}

// ListByOwner возвращает объявления владельца, при includeInactive - вместе с удалёнными.
func (r *SkillRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, includeInactive bool) ([]models.Skill, error) {
	query := `SELECT * FROM skills WHERE owner_id = $1`
	if !includeInactive {
		query += ` AND is_active`
	}
	query += ` ORDER BY created_at DESC`

	skills := []models.Skill{}
	if err := r.db.SelectContext(ctx, &skills, query, ownerID); err != nil {
		return nil, fmt.Errorf("skill repository: list by owner %w", err)
	}
	return skills, nil
}

// CountActiveByOwner - число активных объявлений пользователя.
func (r *SkillRepository) CountActiveByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM skills WHERE owner_id = $1 AND is_active`, ownerID); err != nil {
		return 0, fmt.Errorf("skill repository: count by owner %w", err)
	}
	return count, nil
}

// IncrementViews увеличивает счётчик просмотров.
func (r *SkillRepository) IncrementViews(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE skills SET views = views + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("skill repository: increment views %w", err)
	}
	return nil
}

// IncrementContacts увеличивает счётчик обращений.
func (r *SkillRepository) IncrementContacts(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE skills SET contacts = contacts + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("skill repository: increment contacts %w", err)
	}
	return nil
}

// Nearby ищет активные объявления в радиусе, ближайшие первыми.
func (r *SkillRepository) Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]models.SkillWithDistance, error) {
	query := fmt.Sprintf(`
		SELECT * FROM (
			SELECT s.*, %s AS distance_km
			FROM skills s
			WHERE s.is_active AND s.lat IS NOT NULL AND s.lng IS NOT NULL
		) t
		WHERE distance_km <= $3
		ORDER BY distance_km
		LIMIT $4
	`, haversineKm)

	skills := []models.SkillWithDistance{}
	if err := r.db.SelectContext(ctx, &skills, query, lat, lng, radiusKm, limit); err != nil {
		return nil, fmt.Errorf("skill repository: nearby %w", err)
	}
	return skills, nil
}

// ListWithLocation возвращает активные объявления с координатами для гео-индекса.
func (r *SkillRepository) ListWithLocation(ctx context.Context) ([]models.Skill, error) {
	skills := []models.Skill{}
	if err := r.db.SelectContext(ctx, &skills, `SELECT * FROM skills WHERE is_active AND lat IS NOT NULL AND lng IS NOT NULL`); err != nil {
		return nil, fmt.Errorf("skill repository: list with location %w", err)
	}
	return skills, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
