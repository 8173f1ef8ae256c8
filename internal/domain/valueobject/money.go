package valueobject

import (
	"fmt"
	"math"

	"github.com/umeyka/umeyka-backend/internal/pkg/apperror"
)

const (
	// CommissionPercent - доля площадки со сделки.
	CommissionPercent = 5
	// MaxAmount - верхняя граница цены и суммы сделки.
	MaxAmount = 10_000_000
)

// Money - сумма в рублях с точностью до копейки.
type Money struct {
	Amount float64
}

func NewMoney(amount float64) (Money, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "некорректная сумма")
	}
	if amount < 0 {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "сумма не может быть отрицательной")
	}
	if amount > MaxAmount {
		return Money{}, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("сумма не может превышать %d", MaxAmount))
	}
	return Money{Amount: Round2(amount)}, nil
}

// NewDealAmount - сумма сделки обязана быть положительной.
func NewDealAmount(amount float64) (Money, error) {
	m, err := NewMoney(amount)
	if err != nil {
		return Money{}, err
	}
	if m.Amount <= 0 {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "сумма сделки должна быть больше нуля")
	}
	return m, nil
}

// Commission - 5% от суммы, округлено до копеек. Считаем в копейках,
// чтобы 1234.50 давало 61.73, а не 61.72.
func (m Money) Commission() Money {
	cents := math.Round(m.Amount * 100)
	return Money{Amount: math.Round(cents*CommissionPercent/100) / 100}
}

// Payout - сумма мастеру за вычетом комиссии.
func (m Money) Payout() Money {
	return Money{Amount: Round2(m.Amount - m.Commission().Amount)}
}

func (m Money) String() string {
	return fmt.Sprintf("%.2f ₽", m.Amount)
}

// Round2 округляет до двух знаков, половины от нуля.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
