package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/repository/common"
)

var (
	// ErrUserNotFound возвращается, когда запись пользователя или профиля не найдена.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound - сессия не найдена или уже удалена.
	ErrSessionNotFound = errors.New("session not found")
	// ErrReferralCodeTaken - сгенерированный реферальный код уже занят.
	ErrReferralCodeTaken = errors.New("referral code taken")
)

// UserRepository отвечает за таблицы users, profiles и sessions.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

type upsertedUser struct {
	models.User
	Inserted bool `db:"inserted"`
}

// UpsertTelegramUser создаёт пользователя по telegram id или обновляет его данные.
// Для нового пользователя в той же транзакции заводится профиль с referralCode.
// created = true, если пользователь появился впервые.
func (r *UserRepository) UpsertTelegramUser(ctx context.Context, tu models.TelegramUser, referralCode string) (*models.User, *models.Profile, bool, error) {
	var (
		row     upsertedUser
		profile models.Profile
	)

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &row, `
			INSERT INTO users (telegram_id, username, first_name, last_name, language_code, last_login_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (telegram_id) DO UPDATE
			SET username = EXCLUDED.username,
				first_name = EXCLUDED.first_name,
				last_name = EXCLUDED.last_name,
				language_code = EXCLUDED.language_code,
				last_login_at = NOW(),
				updated_at = NOW()
			RETURNING id, telegram_id, username, first_name, last_name, language_code, is_active,
				last_login_at, created_at, updated_at, (xmax = 0) AS inserted
		`, tu.ID, nullString(tu.Username), tu.FirstName, nullString(tu.LastName), nullString(tu.LanguageCode))
		if err != nil {
			return fmt.Errorf("user repository: upsert user %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO profiles (user_id, display_name, referral_code)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO NOTHING
		`, row.ID, displayName(tu), referralCode)
		if err != nil {
			if common.IsUniqueViolation(err, "profiles_referral_code_key") {
				return ErrReferralCodeTaken
			}
			return fmt.Errorf("user repository: create profile %w", err)
		}

		if err := tx.GetContext(ctx, &profile, `SELECT * FROM profiles WHERE user_id = $1`, row.ID); err != nil {
			return fmt.Errorf("user repository: load profile %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}

	return &row.User, &profile, row.Inserted, nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return common.GetByID[models.User](ctx, r.db, "users", id, ErrUserNotFound)
}

// GetProfile возвращает полный профиль владельца.
func (r *UserRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, `SELECT * FROM profiles WHERE user_id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get profile %w", err)
	}
	return &profile, nil
}

// GetPublicProfile возвращает профиль без звёзд и реферальных данных.
// Истёкший премиум не показывается.
func (r *UserRepository) GetPublicProfile(ctx context.Context, userID uuid.UUID) (*models.PublicProfile, error) {
	var profile models.PublicProfile
	query := `
		SELECT p.user_id, u.username, p.display_name, p.bio, p.city, p.avatar_id,
			(p.is_premium AND p.premium_until > NOW()) AS is_premium,
			p.theme, p.accent_color, p.show_online, p.rating, p.reviews_count, p.completed_deals, p.created_at
		FROM profiles p
		JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1 AND u.is_active
	`
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get public profile %w", err)
	}
	return &profile, nil
}

// UpdateProfile применяет частичное обновление.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID uuid.UUID, upd models.ProfileUpdate) (*models.Profile, error) {
	var profile models.Profile
	query := `
		UPDATE profiles
		SET display_name = COALESCE($2, display_name),
			bio = COALESCE($3, bio),
			city = COALESCE($4, city),
			avatar_id = COALESCE($5, avatar_id),
			theme = COALESCE($6, theme),
			accent_color = COALESCE($7, accent_color),
			show_online = COALESCE($8, show_online),
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING *
	`
	err := r.db.GetContext(ctx, &profile, query,
		userID, upd.DisplayName, upd.Bio, upd.City, upd.AvatarID, upd.Theme, upd.AccentColor, upd.ShowOnline)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: update profile %w", err)
	}
	return &profile, nil
}

// ReferralEarnings - сумма звёзд, полученных за приглашения.
func (r *UserRepository) ReferralEarnings(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	query := `SELECT COALESCE(SUM(amount), 0) FROM star_transactions WHERE user_id = $1 AND reason = $2`
	if err := r.db.GetContext(ctx, &total, query, userID, models.StarReasonReferralBonus); err != nil {
		return 0, fmt.Errorf("user repository: referral earnings %w", err)
	}
	return total, nil
}

// ExpirePremiums снимает флаг премиума с истёкших подписок.
func (r *UserRepository) ExpirePremiums(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE profiles
		SET is_premium = FALSE, updated_at = NOW()
		WHERE is_premium AND (premium_until IS NULL OR premium_until <= $1)
	`, now)
	if err != nil {
		return 0, fmt.Errorf("user repository: expire premiums %w", err)
	}
	return res.RowsAffected()
}

// CreateSession сохраняет сессию. RefreshToken должен быть уже захеширован.
func (r *UserRepository) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	query := `
		INSERT INTO sessions (id, user_id, refresh_token, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		session.ID, session.UserID, session.RefreshToken, session.UserAgent, session.IPAddress, session.ExpiresAt,
	).Scan(&session.CreatedAt); err != nil {
		return fmt.Errorf("user repository: create session %w", err)
	}
	return nil
}

// GetSession ищет действующую сессию по хешу refresh токена.
func (r *UserRepository) GetSession(ctx context.Context, tokenHash string) (*models.Session, error) {
	var session models.Session
	query := `SELECT * FROM sessions WHERE refresh_token = $1 AND expires_at > NOW()`
	if err := r.db.GetContext(ctx, &session, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("user repository: get session %w", err)
	}
	return &session, nil
}

// DeleteSession удаляет сессию по хешу refresh токена.
func (r *UserRepository) DeleteSession(ctx context.Context, tokenHash string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("user repository: delete session %w", err)
	}
	return common.ExpectOneRow(res, ErrSessionNotFound)
}

// ListSessions возвращает активные сессии пользователя.
func (r *UserRepository) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	sessions := []models.Session{}
	query := `SELECT * FROM sessions WHERE user_id = $1 AND expires_at > NOW() ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, fmt.Errorf("user repository: list sessions %w", err)
	}
	return sessions, nil
}

// DeleteSessionByID удаляет сессию пользователя по идентификатору.
func (r *UserRepository) DeleteSessionByID(ctx context.Context, sessionID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1 AND user_id = $2`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("user repository: delete session by id %w", err)
	}
	return common.ExpectOneRow(res, ErrSessionNotFound)
}

func displayName(tu models.TelegramUser) string {
	name := tu.FirstName
	if tu.LastName != "" {
		name += " " + tu.LastName
	}
	if name == "" && tu.Username != "" {
		name = tu.Username
	}
	if name == "" {
		name = fmt.Sprintf("user%d", tu.ID)
	}
	return name
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
