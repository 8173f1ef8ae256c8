package service

import (
	"github.com/google/uuid"

	"github.com/umeyka/umeyka-backend/internal/logger"
)

// События, доставляемые пользователю через WebSocket.
const (
	EventChatMessage    = "chat.message"
	EventDealUpdated    = "deal.updated"
	EventSkillContacted = "skill.contacted"
	EventReviewCreated  = "review.created"
	EventStarsUpdated   = "stars.updated"
)

// Notifier доставляет событие пользователю и сохраняет его как уведомление.
type Notifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// notify отправляет событие после коммита. Ошибка доставки не влияет на результат операции.
func notify(n Notifier, userID uuid.UUID, event string, data any) {
	if n == nil {
		return
	}
	if err := n.BroadcastToUser(userID, event, data); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"user_id": userID,
			"event":   event,
			"error":   err.Error(),
		}).Warn("не удалось отправить событие")
	}
}
