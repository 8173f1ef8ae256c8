package ws

import (
	"context"

	"github.com/google/uuid"
)

// notificationCreator - часть сервиса уведомлений, нужная хабу.
type notificationCreator interface {
	CreateNotificationForWS(ctx context.Context, userID uuid.UUID, event string, data any) error
}

// NotificationServiceAdapter подключает сервис уведомлений к хабу.
type NotificationServiceAdapter struct {
	service notificationCreator
}

func NewNotificationServiceAdapter(service notificationCreator) *NotificationServiceAdapter {
	return &NotificationServiceAdapter{service: service}
}

// CreateNotification реализует NotificationSaver.
func (a *NotificationServiceAdapter) CreateNotification(ctx context.Context, userID uuid.UUID, event string, data any) error {
	return a.service.CreateNotificationForWS(ctx, userID, event, data)
}
