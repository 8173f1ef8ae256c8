package models

import (
	"time"

	"github.com/google/uuid"
)

// Виды сообщений.
const (
	MessageKindText   = "text"
	MessageKindSystem = "system"
)

// Chat - переписка клиента и мастера. Пара участников уникальна.
type Chat struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	ClientID      uuid.UUID  `db:"client_id" json:"client_id"`
	MasterID      uuid.UUID  `db:"master_id" json:"master_id"`
	SkillID       *uuid.UUID `db:"skill_id" json:"skill_id,omitempty"`
	IsCompleted   bool       `db:"is_completed" json:"is_completed"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// HasParticipant проверяет участие пользователя в чате.
func (c *Chat) HasParticipant(userID uuid.UUID) bool {
	return c.ClientID == userID || c.MasterID == userID
}

// Counterpart возвращает второго участника.
func (c *Chat) Counterpart(userID uuid.UUID) uuid.UUID {
	if c.ClientID == userID {
		return c.MasterID
	}
	return c.ClientID
}

// Message - сообщение в чате. SenderID пуст у системных сообщений.
type Message struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	ChatID    uuid.UUID  `db:"chat_id" json:"chat_id"`
	SenderID  *uuid.UUID `db:"sender_id" json:"sender_id,omitempty"`
	Kind      string     `db:"kind" json:"kind"`
	Content   string     `db:"content" json:"content"`
	ReadAt    *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// ChatPreview - элемент списка чатов.
type ChatPreview struct {
	Chat
	CounterpartID   uuid.UUID  `db:"counterpart_id" json:"counterpart_id"`
	CounterpartName string     `db:"counterpart_name" json:"counterpart_name"`
	SkillTitle      *string    `db:"skill_title" json:"skill_title,omitempty"`
	LastMessage     *string    `db:"last_message" json:"last_message,omitempty"`
	UnreadCount     int        `db:"unread_count" json:"unread_count"`
	LastActivityAt  *time.Time `db:"last_activity_at" json:"-"`
}
