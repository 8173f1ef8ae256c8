package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/repository/common"
)

// ErrReviewExists - отзыв по этой сделке или чату уже оставлен.
var ErrReviewExists = errors.New("review already exists")

type ReviewRepository struct {
	db *sqlx.DB
}

func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create сохраняет отзыв и в той же транзакции пересчитывает рейтинг
// объявления и мастера по всем сохранённым отзывам.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO reviews (deal_id, chat_id, skill_id, reviewer_id, reviewed_id,
				quality, speed, communication, price, overall, comment)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at
		`, review.DealID, review.ChatID, review.SkillID, review.ReviewerID, review.ReviewedID,
			review.Quality, review.Speed, review.Communication, review.Price, review.Overall, review.Comment,
		).Scan(&review.ID, &review.CreatedAt)
		if err != nil {
			if common.IsUniqueViolation(err, "") {
				return ErrReviewExists
			}
			return fmt.Errorf("review repository: create %w", err)
		}

		if review.SkillID != nil {
			_, err := tx.ExecContext(ctx, `
				UPDATE skills s
				SET rating = agg.avg, reviews_count = agg.cnt, updated_at = NOW()
				FROM (
					SELECT COALESCE(ROUND(AVG(overall), 2), 0) AS avg, COUNT(*) AS cnt
					FROM reviews WHERE skill_id = $1
				) agg
				WHERE s.id = $1
			`, review.SkillID)
			if err != nil {
				return fmt.Errorf("review repository: recompute skill rating %w", err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE profiles p
			SET rating = agg.avg, reviews_count = agg.cnt, updated_at = NOW()
			FROM (
				SELECT COALESCE(ROUND(AVG(overall), 2), 0) AS avg, COUNT(*) AS cnt
				FROM reviews WHERE reviewed_id = $1
			) agg
			WHERE p.user_id = $1
		`, review.ReviewedID)
		if err != nil {
			return fmt.Errorf("review repository: recompute profile rating %w", err)
		}
		return nil
	})
}

// ExistsForDeal проверяет, оставлял ли пользователь отзыв по сделке.
func (r *ReviewRepository) ExistsForDeal(ctx context.Context, dealID, reviewerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM reviews WHERE deal_id = $1 AND reviewer_id = $2)`, dealID, reviewerID)
	if err != nil {
		return false, fmt.Errorf("review repository: exists for deal %w", err)
	}
	return exists, nil
}

// ExistsForChat проверяет отзыв, оставленный по завершённому чату.
func (r *ReviewRepository) ExistsForChat(ctx context.Context, chatID, reviewerID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM reviews WHERE chat_id = $1 AND deal_id IS NULL AND reviewer_id = $2)`, chatID, reviewerID)
	if err != nil {
		return false, fmt.Errorf("review repository: exists for chat %w", err)
	}
	return exists, nil
}

const reviewWithAuthorSelect = `
	SELECT r.*, COALESCE(p.display_name, '') AS reviewer_name
	FROM reviews r
	LEFT JOIN profiles p ON p.user_id = r.reviewer_id
`

// ListByReviewed возвращает отзывы о мастере, новые первыми.
func (r *ReviewRepository) ListByReviewed(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ReviewWithAuthor, int, error) {
	return r.list(ctx, "r.reviewed_id", userID, limit, offset)
}

// ListBySkill возвращает отзывы по объявлению.
func (r *ReviewRepository) ListBySkill(ctx context.Context, skillID uuid.UUID, limit, offset int) ([]models.ReviewWithAuthor, int, error) {
	return r.list(ctx, "r.skill_id", skillID, limit, offset)
}

func (r *ReviewRepository) list(ctx context.Context, column string, id uuid.UUID, limit, offset int) ([]models.ReviewWithAuthor, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf(`SELECT COUNT(*) FROM reviews r WHERE %s = $1`, column), id); err != nil {
		return nil, 0, fmt.Errorf("review repository: count %w", err)
	}

	reviews := []models.ReviewWithAuthor{}
	query := reviewWithAuthorSelect + fmt.Sprintf(` WHERE %s = $1 ORDER BY r.created_at DESC LIMIT $2 OFFSET $3`, column)
	if err := r.db.SelectContext(ctx, &reviews, query, id, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("review repository: list %w", err)
	}
	return reviews, total, nil
}

// Summary возвращает средние значения по измерениям для мастера.
func (r *ReviewRepository) Summary(ctx context.Context, userID uuid.UUID) (*models.RatingSummary, error) {
	var summary models.RatingSummary
	err := r.db.GetContext(ctx, &summary, `
		SELECT COUNT(*) AS count,
			COALESCE(ROUND(AVG(overall), 2), 0) AS overall,
			COALESCE(ROUND(AVG(quality), 2), 0) AS quality,
			COALESCE(ROUND(AVG(speed), 2), 0) AS speed,
			COALESCE(ROUND(AVG(communication), 2), 0) AS communication,
			COALESCE(ROUND(AVG(price), 2), 0) AS price
		FROM reviews WHERE reviewed_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("review repository: summary %w", err)
	}
	return &summary, nil
}
