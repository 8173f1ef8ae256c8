package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Причины движения звёзд.
const (
	StarReasonReferralBonus   = "referral_bonus"
	StarReasonReferralWelcome = "referral_welcome"
	StarReasonDealCompleted   = "deal_completed"
	StarReasonPremium         = "premium_purchase"
	StarReasonBoost           = "skill_boost"
	StarReasonAdminGrant      = "admin_grant"
)

// StarTransaction - строка журнала звёзд. Amount со знаком.
type StarTransaction struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	UserID       uuid.UUID  `db:"user_id" json:"user_id"`
	Amount       int64      `db:"amount" json:"amount"`
	BalanceAfter int64      `db:"balance_after" json:"balance_after"`
	Reason       string     `db:"reason" json:"reason"`
	ReferenceID  *uuid.UUID `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// StarCredit - начисление или списание в рамках одной транзакции БД.
type StarCredit struct {
	UserID      uuid.UUID
	Amount      int64
	Reason      string
	ReferenceID *uuid.UUID
}

// Notification - сохранённое событие для пользователя.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Type      string          `db:"type" json:"type"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
