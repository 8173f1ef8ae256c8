package valueobject

import "github.com/umeyka/umeyka-backend/internal/pkg/apperror"

type DealStatus string

const (
	DealStatusDraft            DealStatus = "draft"
	DealStatusPendingSignature DealStatus = "pending_signature"
	DealStatusActive           DealStatus = "active"
	DealStatusCompleted        DealStatus = "completed"
	DealStatusCancelled        DealStatus = "cancelled"
)

var dealTransitions = map[DealStatus][]DealStatus{
	DealStatusDraft:            {DealStatusPendingSignature, DealStatusActive, DealStatusCancelled},
	DealStatusPendingSignature: {DealStatusDraft, DealStatusActive, DealStatusCancelled},
	DealStatusActive:           {DealStatusCompleted, DealStatusCancelled},
	DealStatusCompleted:        {},
	DealStatusCancelled:        {},
}

func (s DealStatus) IsValid() bool {
	_, ok := dealTransitions[s]
	return ok
}

func (s DealStatus) IsTerminal() bool {
	return s == DealStatusCompleted || s == DealStatusCancelled
}

// IsEditable - условия сделки можно менять только до активации.
func (s DealStatus) IsEditable() bool {
	return s == DealStatusDraft || s == DealStatusPendingSignature
}

func (s DealStatus) CanTransitionTo(next DealStatus) bool {
	for _, allowed := range dealTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func NewDealStatus(status string) (DealStatus, error) {
	s := DealStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус сделки")
	}
	return s, nil
}

// DealRole - сторона сделки.
type DealRole string

const (
	DealRoleClient DealRole = "client"
	DealRoleMaster DealRole = "master"
)

func (r DealRole) IsValid() bool {
	return r == DealRoleClient || r == DealRoleMaster
}

func NewDealRole(role string) (DealRole, error) {
	r := DealRole(role)
	if !r.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "роль должна быть client или master")
	}
	return r, nil
}
