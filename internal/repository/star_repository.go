package repository

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/repository/common"
)

var (
	// ErrInsufficientStars - списание увело бы баланс в минус.
	ErrInsufficientStars = errors.New("insufficient stars")
	// ErrNotSkillOwner - поднять объявление может только владелец.
	ErrNotSkillOwner = errors.New("not skill owner")
)

// StarRepository ведёт баланс звёзд и журнал star_transactions.
type StarRepository struct {
	db *sqlx.DB
}

// NewStarRepository создаёт экземпляр репозитория.
func NewStarRepository(db *sqlx.DB) *StarRepository {
	return &StarRepository{db: db}
}

// GetBalance возвращает текущий баланс.
func (r *StarRepository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	if err := r.db.GetContext(ctx, &balance, `SELECT stars_balance FROM profiles WHERE user_id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("star repository: get balance %w", err)
	}
	return balance, nil
}

// ListTransactions возвращает журнал пользователя, новые первыми.
func (r *StarRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.StarTransaction, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM star_transactions WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("star repository: count transactions %w", err)
	}

	txs := []models.StarTransaction{}
	query := `SELECT * FROM star_transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &txs, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("star repository: list transactions %w", err)
	}
	return txs, total, nil
}

// Apply проводит одно начисление или списание.
func (r *StarRepository) Apply(ctx context.Context, credit models.StarCredit) (*models.StarTransaction, error) {
	var out *models.StarTransaction
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		out, err = applyStars(ctx, tx, credit)
		return err
	})
	return out, err
}

// PurchasePremium списывает cost и продлевает премиум на months от max(now, premium_until).
func (r *StarRepository) PurchasePremium(ctx context.Context, userID uuid.UUID, months int, cost int64, now time.Time) (*models.Profile, *models.StarTransaction, error) {
	var (
		profile models.Profile
		entry   *models.StarTransaction
	)
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		entry, err = applyStars(ctx, tx, models.StarCredit{UserID: userID, Amount: -cost, Reason: models.StarReasonPremium})
		if err != nil {
			return err
		}

		err = tx.GetContext(ctx, &profile, `
			UPDATE profiles
			SET is_premium = TRUE,
				premium_until = GREATEST(COALESCE(premium_until, $2), $2) + make_interval(months => $3),
				updated_at = NOW()
			WHERE user_id = $1
			RETURNING *
		`, userID, now, months)
		if err != nil {
			return fmt.Errorf("star repository: extend premium %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &profile, entry, nil
}

// BoostSkill списывает cost и поднимает объявление владельца на days.
func (r *StarRepository) BoostSkill(ctx context.Context, userID, skillID uuid.UUID, days int, cost int64, now time.Time) (*models.Skill, *models.StarTransaction, error) {
	var (
		skill models.Skill
		entry *models.StarTransaction
	)
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var owner struct {
			OwnerID  uuid.UUID `db:"owner_id"`
			IsActive bool      `db:"is_active"`
		}
		if err := tx.GetContext(ctx, &owner, `SELECT owner_id, is_active FROM skills WHERE id = $1 FOR UPDATE`, skillID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSkillNotFound
			}
			return fmt.Errorf("star repository: lock skill %w", err)
		}
		if !owner.IsActive {
			return ErrSkillNotFound
		}
		if owner.OwnerID != userID {
			return ErrNotSkillOwner
		}

		var err error
		entry, err = applyStars(ctx, tx, models.StarCredit{UserID: userID, Amount: -cost, Reason: models.StarReasonBoost, ReferenceID: &skillID})
		if err != nil {
			return err
		}

		err = tx.GetContext(ctx, &skill, `
			UPDATE skills
			SET boosted_until = GREATEST(COALESCE(boosted_until, $2), $2) + make_interval(days => $3),
				updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, skillID, now, days)
		if err != nil {
			return fmt.Errorf("star repository: boost skill %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &skill, entry, nil
}

// ApplyReferral связывает нового пользователя с владельцем кода и начисляет обоим бонусы.
// Самоприглашение, неизвестный код и повторное применение игнорируются (applied = false).
func (r *StarRepository) ApplyReferral(ctx context.Context, newUserID uuid.UUID, code string, bonus, welcome int64) (uuid.UUID, bool, error) {
	var (
		referrerID uuid.UUID
		applied    bool
	)
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &referrerID, `SELECT user_id FROM profiles WHERE referral_code = $1`, code); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("star repository: find referrer %w", err)
		}
		if referrerID == newUserID {
			return nil
		}

		var referredBy *uuid.UUID
		if err := tx.GetContext(ctx, &referredBy, `SELECT referred_by FROM profiles WHERE user_id = $1 FOR UPDATE`, newUserID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("star repository: lock referee %w", err)
		}
		if referredBy != nil {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `UPDATE profiles SET referred_by = $2, updated_at = NOW() WHERE user_id = $1`, newUserID, referrerID); err != nil {
			return fmt.Errorf("star repository: set referred_by %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE profiles SET referral_count = referral_count + 1, updated_at = NOW() WHERE user_id = $1`, referrerID); err != nil {
			return fmt.Errorf("star repository: increment referral count %w", err)
		}

		credits := []models.StarCredit{
			{UserID: referrerID, Amount: bonus, Reason: models.StarReasonReferralBonus, ReferenceID: &newUserID},
			{UserID: newUserID, Amount: welcome, Reason: models.StarReasonReferralWelcome, ReferenceID: &referrerID},
		}
		if err := applyCredits(ctx, tx, credits); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return uuid.Nil, false, err
	}
	if !applied {
		return uuid.Nil, false, nil
	}
	return referrerID, true, nil
}

// applyCredits проводит начисления в порядке user_id, чтобы параллельные транзакции
// блокировали профили в одном порядке. Нулевые суммы пропускаются.
func applyCredits(ctx context.Context, tx *sqlx.Tx, credits []models.StarCredit) error {
	for _, c := range sortCredits(credits) {
		if c.Amount == 0 {
			continue
		}
		if _, err := applyStars(ctx, tx, c); err != nil {
			return err
		}
	}
	return nil
}

func sortCredits(credits []models.StarCredit) []models.StarCredit {
	sorted := slices.Clone(credits)
	slices.SortStableFunc(sorted, func(a, b models.StarCredit) int {
		return bytes.Compare(a.UserID[:], b.UserID[:])
	})
	return sorted
}

// applyStars меняет баланс под блокировкой строки профиля и пишет запись журнала.
func applyStars(ctx context.Context, tx *sqlx.Tx, credit models.StarCredit) (*models.StarTransaction, error) {
	var balance int64
	if err := tx.GetContext(ctx, &balance, `SELECT stars_balance FROM profiles WHERE user_id = $1 FOR UPDATE`, credit.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("star repository: lock balance %w", err)
	}

	next := balance + credit.Amount
	if next < 0 {
		return nil, ErrInsufficientStars
	}

	if _, err := tx.ExecContext(ctx, `UPDATE profiles SET stars_balance = $2, updated_at = NOW() WHERE user_id = $1`, credit.UserID, next); err != nil {
		return nil, fmt.Errorf("star repository: update balance %w", err)
	}

	var entry models.StarTransaction
	err := tx.GetContext(ctx, &entry, `
		INSERT INTO star_transactions (user_id, amount, balance_after, reason, reference_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, credit.UserID, credit.Amount, next, credit.Reason, credit.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("star repository: insert transaction %w", err)
	}
	return &entry, nil
}
