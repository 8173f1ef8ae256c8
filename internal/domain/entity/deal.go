package entity

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/umeyka/umeyka-backend/internal/domain/valueobject"
	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
)

// DealEvent - что произошло со сделкой в результате операции.
type DealEvent string

const (
	DealEventCreated   DealEvent = "created"
	DealEventUpdated   DealEvent = "updated"
	DealEventSigned    DealEvent = "signed"
	DealEventActivated DealEvent = "activated"
	DealEventCompleted DealEvent = "completed"
	DealEventCancelled DealEvent = "cancelled"
)

const (
	maxDealTitleLen       = 200
	maxDealDescriptionLen = 2000
	maxCancelReasonLen    = 500
)

type Deal struct {
	ID             uuid.UUID              `db:"id" json:"id"`
	ChatID         *uuid.UUID             `db:"chat_id" json:"chat_id,omitempty"`
	SkillID        *uuid.UUID             `db:"skill_id" json:"skill_id,omitempty"`
	ClientID       uuid.UUID              `db:"client_id" json:"client_id"`
	MasterID       uuid.UUID              `db:"master_id" json:"master_id"`
	CreatedBy      uuid.UUID              `db:"created_by" json:"created_by"`
	Title          string                 `db:"title" json:"title"`
	Description    string                 `db:"description" json:"description"`
	Amount         float64                `db:"amount" json:"amount"`
	Commission     float64                `db:"commission" json:"commission"`
	MasterPayout   float64                `db:"master_payout" json:"master_payout"`
	ClientSigned   bool                   `db:"client_signed" json:"client_signed"`
	MasterSigned   bool                   `db:"master_signed" json:"master_signed"`
	ClientSignedAt *time.Time             `db:"client_signed_at" json:"client_signed_at,omitempty"`
	MasterSignedAt *time.Time             `db:"master_signed_at" json:"master_signed_at,omitempty"`
	Status         valueobject.DealStatus `db:"status" json:"status"`
	CancelReason   *string                `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledBy    *uuid.UUID             `db:"cancelled_by" json:"cancelled_by,omitempty"`
	DeadlineAt     *time.Time             `db:"deadline_at" json:"deadline_at,omitempty"`
	ActivatedAt    *time.Time             `db:"activated_at" json:"activated_at,omitempty"`
	CompletedAt    *time.Time             `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt    *time.Time             `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt      time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time              `db:"updated_at" json:"updated_at"`
}

// DealTerms - условия сделки при создании.
type DealTerms struct {
	Title       string
	Description string
	Amount      float64
	DeadlineAt  *time.Time
	ChatID      *uuid.UUID
	SkillID     *uuid.UUID
}

// DealEdit - частичное изменение условий, nil поля не меняются.
type DealEdit struct {
	Title       *string
	Description *string
	Amount      *float64
	DeadlineAt  *time.Time
}

// NewDeal создаёт черновик. role - сторона создателя.
func NewDeal(creatorID, counterpartyID uuid.UUID, role valueobject.DealRole, terms DealTerms, now time.Time) (*Deal, error) {
	if !role.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "роль должна быть client или master")
	}
	if creatorID == counterpartyID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя заключить сделку с самим собой")
	}

	d := &Deal{
		ID:        uuid.New(),
		ChatID:    terms.ChatID,
		SkillID:   terms.SkillID,
		CreatedBy: creatorID,
		Status:    valueobject.DealStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if role == valueobject.DealRoleClient {
		d.ClientID, d.MasterID = creatorID, counterpartyID
	} else {
		d.ClientID, d.MasterID = counterpartyID, creatorID
	}

	if err := d.setTitle(terms.Title); err != nil {
		return nil, err
	}
	if err := d.setDescription(terms.Description); err != nil {
		return nil, err
	}
	if err := d.setAmount(terms.Amount); err != nil {
		return nil, err
	}
	if err := d.setDeadline(terms.DeadlineAt, now); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Deal) IsParticipant(userID uuid.UUID) bool {
	return d.ClientID == userID || d.MasterID == userID
}

// RoleOf возвращает сторону пользователя в сделке.
func (d *Deal) RoleOf(userID uuid.UUID) (valueobject.DealRole, bool) {
	switch userID {
	case d.ClientID:
		return valueobject.DealRoleClient, true
	case d.MasterID:
		return valueobject.DealRoleMaster, true
	}
	return "", false
}

// Counterparty - другая сторона сделки.
func (d *Deal) Counterparty(userID uuid.UUID) uuid.UUID {
	if d.ClientID == userID {
		return d.MasterID
	}
	return d.ClientID
}

// Edit меняет условия и сбрасывает обе подписи.
func (d *Deal) Edit(userID uuid.UUID, edit DealEdit, now time.Time) (DealEvent, error) {
	if !d.IsParticipant(userID) {
		return "", apperror.ErrForbidden
	}
	if !d.Status.IsEditable() {
		return "", invalidTransition("изменить условия можно только до активации сделки")
	}

	if edit.Title != nil {
		if err := d.setTitle(*edit.Title); err != nil {
			return "", err
		}
	}
	if edit.Description != nil {
		if err := d.setDescription(*edit.Description); err != nil {
			return "", err
		}
	}
	if edit.Amount != nil {
		if err := d.setAmount(*edit.Amount); err != nil {
			return "", err
		}
	}
	if edit.DeadlineAt != nil {
		if err := d.setDeadline(edit.DeadlineAt, now); err != nil {
			return "", err
		}
	}

	d.ClientSigned, d.MasterSigned = false, false
	d.ClientSignedAt, d.MasterSignedAt = nil, nil
	d.Status = valueobject.DealStatusDraft
	d.UpdatedAt = now
	return DealEventUpdated, nil
}

// Sign ставит подпись стороны. Вторая подпись активирует сделку.
func (d *Deal) Sign(userID uuid.UUID, now time.Time) (DealEvent, error) {
	role, ok := d.RoleOf(userID)
	if !ok {
		return "", apperror.ErrForbidden
	}
	if !d.Status.IsEditable() {
		return "", invalidTransition("подписать можно только черновик или сделку, ожидающую подписи")
	}

	switch role {
	case valueobject.DealRoleClient:
		if d.ClientSigned {
			return "", apperror.New(apperror.ErrCodeConflict, "вы уже подписали сделку")
		}
		d.ClientSigned = true
		d.ClientSignedAt = &now
	case valueobject.DealRoleMaster:
		if d.MasterSigned {
			return "", apperror.New(apperror.ErrCodeConflict, "вы уже подписали сделку")
		}
		d.MasterSigned = true
		d.MasterSignedAt = &now
	}
	d.UpdatedAt = now

	if d.ClientSigned && d.MasterSigned {
		if err := d.transition(valueobject.DealStatusActive); err != nil {
			return "", err
		}
		d.ActivatedAt = &now
		return DealEventActivated, nil
	}

	if d.Status != valueobject.DealStatusPendingSignature {
		if err := d.transition(valueobject.DealStatusPendingSignature); err != nil {
			return "", err
		}
	}
	return DealEventSigned, nil
}

// Complete подтверждает выполнение. Доступно только клиенту.
func (d *Deal) Complete(userID uuid.UUID, now time.Time) (DealEvent, error) {
	if !d.IsParticipant(userID) {
		return "", apperror.ErrForbidden
	}
	if userID != d.ClientID {
		return "", apperror.New(apperror.ErrCodeForbidden, "завершить сделку может только клиент")
	}
	if err := d.transition(valueobject.DealStatusCompleted); err != nil {
		return "", err
	}
	d.CompletedAt = &now
	d.UpdatedAt = now
	return DealEventCompleted, nil
}

// Cancel отменяет сделку любой из сторон.
func (d *Deal) Cancel(userID uuid.UUID, reason string, now time.Time) (DealEvent, error) {
	if !d.IsParticipant(userID) {
		return "", apperror.ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxCancelReasonLen {
		return "", apperror.Validation(fmt.Sprintf("причина отмены не должна превышать %d символов", maxCancelReasonLen))
	}
	if err := d.transition(valueobject.DealStatusCancelled); err != nil {
		return "", err
	}
	if reason != "" {
		d.CancelReason = &reason
	}
	d.CancelledBy = &userID
	d.CancelledAt = &now
	d.UpdatedAt = now
	return DealEventCancelled, nil
}

// SystemMessage - текст системного сообщения в чате о событии.
func (d *Deal) SystemMessage(event DealEvent, actorID uuid.UUID) string {
	who := "Клиент"
	if actorID == d.MasterID {
		who = "Мастер"
	}
	amount := valueobject.Money{Amount: d.Amount}

	switch event {
	case DealEventCreated:
		return fmt.Sprintf("📝 %s предложил сделку «%s» на %s", who, d.Title, amount)
	case DealEventUpdated:
		return fmt.Sprintf("✏️ %s изменил условия сделки «%s»: %s. Подписи сброшены", who, d.Title, amount)
	case DealEventSigned:
		return fmt.Sprintf("✍️ %s подписал сделку «%s». Ожидается подпись второй стороны", who, d.Title)
	case DealEventActivated:
		return fmt.Sprintf("🤝 Сделка «%s» подписана обеими сторонами и активна", d.Title)
	case DealEventCompleted:
		return fmt.Sprintf("✅ Сделка «%s» завершена. Мастер получает %s", d.Title, valueobject.Money{Amount: d.MasterPayout})
	case DealEventCancelled:
		if d.CancelReason != nil {
			return fmt.Sprintf("❌ %s отменил сделку «%s»: %s", who, d.Title, *d.CancelReason)
		}
		return fmt.Sprintf("❌ %s отменил сделку «%s»", who, d.Title)
	}
	return ""
}

func (d *Deal) transition(next valueobject.DealStatus) error {
	if !d.Status.CanTransitionTo(next) {
		return invalidTransition(fmt.Sprintf("переход сделки из %s в %s невозможен", d.Status, next))
	}
	d.Status = next
	return nil
}

func (d *Deal) setTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return apperror.Validation("название сделки обязательно")
	}
	if utf8.RuneCountInString(title) > maxDealTitleLen {
		return apperror.Validation(fmt.Sprintf("название сделки не должно превышать %d символов", maxDealTitleLen))
	}
	d.Title = title
	return nil
}

func (d *Deal) setDescription(description string) error {
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > maxDealDescriptionLen {
		return apperror.Validation(fmt.Sprintf("описание сделки не должно превышать %d символов", maxDealDescriptionLen))
	}
	d.Description = description
	return nil
}

func (d *Deal) setAmount(amount float64) error {
	money, err := valueobject.NewDealAmount(amount)
	if err != nil {
		return err
	}
	d.Amount = money.Amount
	d.Commission = money.Commission().Amount
	d.MasterPayout = money.Payout().Amount
	return nil
}

func (d *Deal) setDeadline(deadline *time.Time, now time.Time) error {
	if deadline == nil {
		return nil
	}
	if deadline.Before(now) {
		return apperror.Validation("дедлайн не может быть в прошлом")
	}
	d.DeadlineAt = deadline
	return nil
}

func invalidTransition(message string) error {
	return apperror.New(apperror.ErrCodeInvalidTransition, message)
}
