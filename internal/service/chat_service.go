package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/umeyka/umeyka-backend/internal/models"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
	"github.com/umeyka/umeyka-backend/internal/validation"
)

// chatCompletedText - системное сообщение о завершении работы по чату.
const chatCompletedText = "✅ Работа отмечена выполненной. Клиент может оставить отзыв"

type ChatRepository interface {
	GetOrCreate(ctx context.Context, clientID, masterID uuid.UUID, skillID *uuid.UUID) (*models.Chat, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ChatPreview, int, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]models.Message, int, error)
	MarkRead(ctx context.Context, chatID, readerID uuid.UUID) (int64, error)
	Complete(ctx context.Context, chatID uuid.UUID, systemText string) (*models.Chat, error)
}

type ChatService struct {
	repo     ChatRepository
	skills   SkillReader
	profiles ProfileReader
	notifier Notifier
}

func NewChatService(repo ChatRepository, skills SkillReader, profiles ProfileReader, notifier Notifier) *ChatService {
	return &ChatService{repo: repo, skills: skills, profiles: profiles, notifier: notifier}
}

// MessageEvent - полезная нагрузка события chat.message.
type MessageEvent struct {
	ChatID  uuid.UUID       `json:"chat_id"`
	Message *models.Message `json:"message"`
}

// Open возвращает чат клиента с мастером, создавая его при первом обращении.
func (s *ChatService) Open(ctx context.Context, clientID, masterID uuid.UUID, skillID *uuid.UUID) (*ContactResult, error) {
	if masterID == uuid.Nil {
		return nil, apperror.Validation("user_id обязателен")
	}
	if clientID == masterID {
		return nil, apperror.Validation("нельзя открыть чат с самим собой")
	}

	if _, err := s.profiles.GetProfile(ctx, masterID); err != nil {
		return nil, translate(err)
	}

	if skillID != nil {
		skill, err := s.skills.GetByID(ctx, *skillID)
		if err != nil {
			return nil, translate(err)
		}
		if skill.OwnerID != masterID {
			return nil, apperror.Validation("умейка принадлежит другому пользователю")
		}
	}

	chat, created, err := s.repo.GetOrCreate(ctx, clientID, masterID, skillID)
	if err != nil {
		return nil, translate(err)
	}
	return &ContactResult{Chat: chat, Created: created}, nil
}

// List возвращает чаты пользователя, свежие первыми.
func (s *ChatService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.ChatPreview, int, error) {
	limit, offset = normalizePage(limit, offset)
	items, total, err := s.repo.ListForUser(ctx, userID, limit, offset)
	return items, total, translate(err)
}

// Get возвращает чат участнику.
func (s *ChatService) Get(ctx context.Context, chatID, userID uuid.UUID) (*models.Chat, error) {
	chat, err := s.repo.GetByID(ctx, chatID)
	if err != nil {
		return nil, translate(err)
	}
	if !chat.HasParticipant(userID) {
		return nil, apperror.ErrForbidden
	}
	return chat, nil
}

// Messages возвращает историю чата от старых сообщений к новым.
func (s *ChatService) Messages(ctx context.Context, chatID, userID uuid.UUID, limit, offset int) ([]models.Message, int, error) {
	if _, err := s.Get(ctx, chatID, userID); err != nil {
		return nil, 0, err
	}
	limit, offset = normalizePage(limit, offset)
	items, total, err := s.repo.ListMessages(ctx, chatID, limit, offset)
	return items, total, translate(err)
}

// Send сохраняет сообщение и отправляет его второму участнику.
func (s *ChatService) Send(ctx context.Context, chatID, senderID uuid.UUID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if err := validation.ValidateMessageContent(content); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	chat, err := s.Get(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ChatID:   chatID,
		SenderID: &senderID,
		Kind:     models.MessageKindText,
		Content:  content,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, translate(err)
	}

	notify(s.notifier, chat.Counterpart(senderID), EventChatMessage, MessageEvent{ChatID: chatID, Message: msg})
	return msg, nil
}

// Read отмечает сообщения собеседника прочитанными.
func (s *ChatService) Read(ctx context.Context, chatID, userID uuid.UUID) (int64, error) {
	if _, err := s.Get(ctx, chatID, userID); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkRead(ctx, chatID, userID)
	return n, translate(err)
}

// Complete отмечает работу по чату выполненной, после чего клиент может оставить отзыв.
func (s *ChatService) Complete(ctx context.Context, chatID, userID uuid.UUID) (*models.Chat, error) {
	chat, err := s.Get(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if chat.IsCompleted {
		return nil, apperror.ErrChatAlreadyCompleted
	}

	chat, err = s.repo.Complete(ctx, chatID, chatCompletedText)
	if err != nil {
		return nil, translate(err)
	}

	notify(s.notifier, chat.Counterpart(userID), EventChatMessage, MessageEvent{
		ChatID:  chatID,
		Message: &models.Message{ChatID: chatID, Kind: models.MessageKindSystem, Content: chatCompletedText},
	})
	return chat, nil
}
