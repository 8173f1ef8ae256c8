package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/umeyka/umeyka-backend/internal/domain/entity"
	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/repository/common"
)

// ErrDealNotFound возвращается, когда сделка не найдена.
var ErrDealNotFound = errors.New("deal not found")

// DealChange - побочные эффекты перехода, применяемые в той же транзакции.
type DealChange struct {
	Event                entity.DealEvent
	SystemMessage        string
	Credits              []models.StarCredit
	IncrementMasterDeals bool
}

// DealMutation меняет заблокированную сделку. Ошибка откатывает транзакцию.
type DealMutation func(deal *entity.Deal) (*DealChange, error)

// DealListFilter - фильтр списка сделок пользователя.
type DealListFilter struct {
	UserID uuid.UUID
	Status string
	Role   string
	Limit  int
	Offset int
}

// DealRepository работает с таблицей deals.
type DealRepository struct {
	db *sqlx.DB
}

// NewDealRepository создаёт экземпляр репозитория.
func NewDealRepository(db *sqlx.DB) *DealRepository {
	return &DealRepository{db: db}
}

// Create сохраняет новую сделку и, если она привязана к чату, системное сообщение.
func (r *DealRepository) Create(ctx context.Context, deal *entity.Deal, systemMessage string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO deals (
				id, chat_id, skill_id, client_id, master_id, created_by, title, description,
				amount, commission, master_payout, status, deadline_at, created_at, updated_at
			) VALUES (
				:id, :chat_id, :skill_id, :client_id, :master_id, :created_by, :title, :description,
				:amount, :commission, :master_payout, :status, :deadline_at, :created_at, :updated_at
			)
		`, deal)
		if err != nil {
			return fmt.Errorf("deal repository: create %w", err)
		}
		return r.writeSystemMessage(ctx, tx, deal, systemMessage)
	})
}

// GetByID возвращает сделку.
func (r *DealRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Deal, error) {
	return common.GetByID[entity.Deal](ctx, r.db, "deals", id, ErrDealNotFound)
}

// List возвращает сделки, где пользователь - одна из сторон.
func (r *DealRepository) List(ctx context.Context, f DealListFilter) ([]entity.Deal, int, error) {
	where := []string{}
	args := []any{f.UserID}

	switch f.Role {
	case "client":
		where = append(where, "client_id = $1")
	case "master":
		where = append(where, "master_id = $1")
	default:
		where = append(where, "(client_id = $1 OR master_id = $1)")
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM deals WHERE "+cond, args...); err != nil {
		return nil, 0, fmt.Errorf("deal repository: count %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf("SELECT * FROM deals WHERE %s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d", cond, len(args)-1, len(args))

	deals := []entity.Deal{}
	if err := r.db.SelectContext(ctx, &deals, query, args...); err != nil {
		return nil, 0, fmt.Errorf("deal repository: list %w", err)
	}
	return deals, total, nil
}

// Mutate блокирует строку сделки (FOR UPDATE), применяет fn и сохраняет результат
// вместе с системным сообщением, начислением звёзд и счётчиком сделок мастера.
func (r *DealRepository) Mutate(ctx context.Context, id uuid.UUID, fn DealMutation) (*entity.Deal, *DealChange, error) {
	var (
		deal   entity.Deal
		change *DealChange
	)

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &deal, `SELECT * FROM deals WHERE id = $1 FOR UPDATE`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrDealNotFound
			}
			return fmt.Errorf("deal repository: lock %w", err)
		}

		var err error
		change, err = fn(&deal)
		if err != nil {
			return err
		}
		if change == nil {
			change = &DealChange{}
		}

		_, err = tx.NamedExecContext(ctx, `
			UPDATE deals SET
				title = :title,
				description = :description,
				amount = :amount,
				commission = :commission,
				master_payout = :master_payout,
				client_signed = :client_signed,
				master_signed = :master_signed,
				client_signed_at = :client_signed_at,
				master_signed_at = :master_signed_at,
				status = :status,
				cancel_reason = :cancel_reason,
				cancelled_by = :cancelled_by,
				deadline_at = :deadline_at,
				activated_at = :activated_at,
				completed_at = :completed_at,
				cancelled_at = :cancelled_at,
				updated_at = :updated_at
			WHERE id = :id
		`, &deal)
		if err != nil {
			return fmt.Errorf("deal repository: update %w", err)
		}

		if err := r.writeSystemMessage(ctx, tx, &deal, change.SystemMessage); err != nil {
			return err
		}

		if err := applyCredits(ctx, tx, change.Credits); err != nil {
			return err
		}

		if change.IncrementMasterDeals {
			_, err := tx.ExecContext(ctx, `UPDATE profiles SET completed_deals = completed_deals + 1, updated_at = NOW() WHERE user_id = $1`, deal.MasterID)
			if err != nil {
				return fmt.Errorf("deal repository: increment completed deals %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &deal, change, nil
}

func (r *DealRepository) writeSystemMessage(ctx context.Context, tx *sqlx.Tx, deal *entity.Deal, text string) error {
	if deal.ChatID == nil || text == "" {
		return nil
	}
	return insertMessage(ctx, tx, &models.Message{
		ChatID:  *deal.ChatID,
		Kind:    models.MessageKindSystem,
		Content: text,
	})
}
