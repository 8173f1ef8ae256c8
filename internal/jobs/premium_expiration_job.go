package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/umeyka/umeyka-backend/internal/logger"
)

// PremiumExpirer снимает флаг премиума у пользователей с истёкшим premium_until.
type PremiumExpirer interface {
	ExpirePremiums(ctx context.Context, now time.Time) (int64, error)
}

// PremiumExpirationJob периодически вычищает просроченные премиумы.
type PremiumExpirationJob struct {
	users    PremiumExpirer
	interval time.Duration
	now      func() time.Time
}

func NewPremiumExpirationJob(users PremiumExpirer, interval time.Duration) *PremiumExpirationJob {
	if interval <= 0 {
		interval = time.Hour
	}
	return &PremiumExpirationJob{users: users, interval: interval, now: time.Now}
}

// Run работает до отмены ctx. Первый проход выполняется сразу.
func (j *PremiumExpirationJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход и возвращает число сброшенных премиумов.
func (j *PremiumExpirationJob) RunOnce(ctx context.Context) int64 {
	n, err := j.users.ExpirePremiums(ctx, j.now())
	log := logger.WithComponent("premium_job")
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Error("не удалось сбросить истёкшие премиумы")
		}
		return 0
	}
	if n > 0 {
		log.WithFields(logrus.Fields{"expired": n}).Info("премиум снят")
	}
	return n
}
