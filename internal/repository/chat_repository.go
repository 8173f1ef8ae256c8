package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/repository/common"
)

var (
	// ErrChatNotFound возвращается, когда чат не найден.
	ErrChatNotFound         = errors.New("chat not found")
	ErrChatAlreadyCompleted = errors.New("chat already completed")
)

// ChatRepository работает с таблицами chats и messages.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository создаёт экземпляр репозитория.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// GetOrCreate возвращает чат клиента с мастером, создавая его при отсутствии.
// Пара упорядочена: встречный контакт заводит отдельный чат с обратными ролями.
func (r *ChatRepository) GetOrCreate(ctx context.Context, clientID, masterID uuid.UUID, skillID *uuid.UUID) (*models.Chat, bool, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `
		INSERT INTO chats (client_id, master_id, skill_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (client_id, master_id) DO NOTHING
		RETURNING *
	`, clientID, masterID, skillID)
	if err == nil {
		return &chat, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("chat repository: create %w", err)
	}

	existing, err := r.FindByPair(ctx, clientID, masterID)
	if err != nil {
		return nil, false, err
	}

	if skillID != nil && existing.SkillID == nil {
		if _, err := r.db.ExecContext(ctx, `UPDATE chats SET skill_id = $2, updated_at = NOW() WHERE id = $1`, existing.ID, skillID); err != nil {
			return nil, false, fmt.Errorf("chat repository: link skill %w", err)
		}
		existing.SkillID = skillID
	}
	return existing, false, nil
}

// FindByPair ищет чат, где clientID - клиент, а masterID - мастер.
func (r *ChatRepository) FindByPair(ctx context.Context, clientID, masterID uuid.UUID) (*models.Chat, error) {
	var chat models.Chat
	query := `SELECT * FROM chats WHERE client_id = $1 AND master_id = $2`
	if err := r.db.GetContext(ctx, &chat, query, clientID, masterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("chat repository: find by pair %w", err)
	}
	return &chat, nil
}

// GetByID возвращает чат.
func (r *ChatRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	return common.GetByID[models.Chat](ctx, r.db, "chats", id, ErrChatNotFound)
}

// ListForUser возвращает чаты пользователя с последним сообщением и числом непрочитанных.
func (r *ChatRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ChatPreview, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM chats WHERE client_id = $1 OR master_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("chat repository: count %w", err)
	}

	query := `
		SELECT c.*,
			cp.id AS counterpart_id,
			COALESCE(p.display_name, '') AS counterpart_name,
			s.skill AS skill_title,
			lm.content AS last_message,
			(
				SELECT COUNT(*) FROM messages m
				WHERE m.chat_id = c.id AND m.read_at IS NULL AND m.sender_id IS DISTINCT FROM $1
			) AS unread_count,
			COALESCE(c.last_message_at, c.created_at) AS last_activity_at
		FROM chats c
		JOIN LATERAL (
			SELECT CASE WHEN c.client_id = $1 THEN c.master_id ELSE c.client_id END AS id
		) cp ON TRUE
		LEFT JOIN profiles p ON p.user_id = cp.id
		LEFT JOIN skills s ON s.id = c.skill_id
		LEFT JOIN LATERAL (
			SELECT content FROM messages WHERE chat_id = c.id ORDER BY created_at DESC LIMIT 1
		) lm ON TRUE
		WHERE c.client_id = $1 OR c.master_id = $1
		ORDER BY last_activity_at DESC
		LIMIT $2 OFFSET $3
	`
	chats := []models.ChatPreview{}
	if err := r.db.SelectContext(ctx, &chats, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("chat repository: list for user %w", err)
	}
	return chats, total, nil
}

// CreateMessage сохраняет сообщение и сдвигает время последней активности чата.
func (r *ChatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		return insertMessage(ctx, tx, msg)
	})
}

// ListMessages возвращает сообщения чата от старых к новым.
func (r *ChatRepository) ListMessages(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]models.Message, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM messages WHERE chat_id = $1`, chatID); err != nil {
		return nil, 0, fmt.Errorf("chat repository: count messages %w", err)
	}

	messages := []models.Message{}
	query := `SELECT * FROM messages WHERE chat_id = $1 ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &messages, query, chatID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("chat repository: list messages %w", err)
	}
	return messages, total, nil
}

// MarkRead отмечает прочитанными все чужие сообщения чата.
func (r *ChatRepository) MarkRead(ctx context.Context, chatID, readerID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET read_at = NOW()
		WHERE chat_id = $1 AND read_at IS NULL AND sender_id IS DISTINCT FROM $2
	`, chatID, readerID)
	if err != nil {
		return 0, fmt.Errorf("chat repository: mark read %w", err)
	}
	return res.RowsAffected()
}

// Complete отмечает услугу по чату выполненной и пишет системное сообщение.
func (r *ChatRepository) Complete(ctx context.Context, chatID uuid.UUID, systemText string) (*models.Chat, error) {
	var chat models.Chat
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &chat, `
			UPDATE chats SET is_completed = TRUE, completed_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND NOT is_completed
			RETURNING *
		`, chatID)
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM chats WHERE id = $1)`, chatID); err != nil {
				return fmt.Errorf("chat repository: complete %w", err)
			}
			if exists {
				return ErrChatAlreadyCompleted
			}
			return ErrChatNotFound
		}
		if err != nil {
			return fmt.Errorf("chat repository: complete %w", err)
		}
		return insertMessage(ctx, tx, &models.Message{ChatID: chatID, Kind: models.MessageKindSystem, Content: systemText})
	})
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// insertMessage пишет сообщение внутри транзакции.
func insertMessage(ctx context.Context, tx *sqlx.Tx, msg *models.Message) error {
	if msg.Kind == "" {
		msg.Kind = models.MessageKindText
	}
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO messages (chat_id, sender_id, kind, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, msg.ChatID, msg.SenderID, msg.Kind, msg.Content).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("chat repository: insert message %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE chats SET last_message_at = $2, updated_at = NOW() WHERE id = $1`, msg.ChatID, msg.CreatedAt); err != nil {
		return fmt.Errorf("chat repository: touch chat %w", err)
	}
	return nil
}
