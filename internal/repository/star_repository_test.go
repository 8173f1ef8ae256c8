package repository

import (
	"bytes"
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umeyka/umeyka-backend/internal/models"
)

var (
	findReferrerSQL = regexp.QuoteMeta(`SELECT user_id FROM profiles WHERE referral_code = $1`)
	lockRefereeSQL  = regexp.QuoteMeta(`SELECT referred_by FROM profiles WHERE user_id = $1 FOR UPDATE`)
	lockBalanceSQL  = regexp.QuoteMeta(`SELECT stars_balance FROM profiles WHERE user_id = $1 FOR UPDATE`)
)

// orderedPair возвращает два id: первый меньше второго побайтно.
func orderedPair() (uuid.UUID, uuid.UUID) {
	a, b := uuid.New(), uuid.New()
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}

func expectCredit(mock sqlmock.Sqlmock, userID uuid.UUID, amount int64) {
	mock.ExpectQuery(lockBalanceSQL).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"stars_balance"}).AddRow(int64(0)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE profiles SET stars_balance`)).WithArgs(userID, amount).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO star_transactions`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "balance_after", "reason", "reference_id", "created_at"}).
			AddRow(uuid.NewString(), userID.String(), amount, amount, "referral", nil, time.Now()))
}

func TestSortCredits(t *testing.T) {
	lo, hi := orderedPair()
	credits := []models.StarCredit{
		{UserID: hi, Amount: 1},
		{UserID: lo, Amount: 2},
		{UserID: hi, Amount: 3},
	}

	sorted := sortCredits(credits)
	assert.Equal(t, []int64{2, 1, 3}, []int64{sorted[0].Amount, sorted[1].Amount, sorted[2].Amount})
	assert.Equal(t, hi, credits[0].UserID, "исходный срез не меняется")
}

func TestStarRepository_ApplyReferral(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStarRepository(db)
	// пригласивший с большим id: блокировка всё равно начинается с меньшего
	newUser, referrer := orderedPair()

	mock.ExpectBegin()
	mock.ExpectQuery(findReferrerSQL).WithArgs("REF12345").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(referrer.String()))
	mock.ExpectQuery(lockRefereeSQL).WithArgs(newUser).
		WillReturnRows(sqlmock.NewRows([]string{"referred_by"}).AddRow(nil))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE profiles SET referred_by`)).WithArgs(newUser, referrer).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`referral_count = referral_count + 1`)).WithArgs(referrer).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectCredit(mock, newUser, 10)
	expectCredit(mock, referrer, 50)
	mock.ExpectCommit()

	got, applied, err := repo.ApplyReferral(context.Background(), newUser, "REF12345", 50, 10)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, referrer, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStarRepository_ApplyReferralIgnored(t *testing.T) {
	tests := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock, newUser, other uuid.UUID)
	}{
		{
			name: "свой код",
			expect: func(mock sqlmock.Sqlmock, newUser, _ uuid.UUID) {
				mock.ExpectQuery(findReferrerSQL).
					WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(newUser.String()))
			},
		},
		{
			name: "неизвестный код",
			expect: func(mock sqlmock.Sqlmock, _, _ uuid.UUID) {
				mock.ExpectQuery(findReferrerSQL).WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
			},
		},
		{
			name: "код уже применён",
			expect: func(mock sqlmock.Sqlmock, newUser, other uuid.UUID) {
				mock.ExpectQuery(findReferrerSQL).
					WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(uuid.NewString()))
				mock.ExpectQuery(lockRefereeSQL).WithArgs(newUser).
					WillReturnRows(sqlmock.NewRows([]string{"referred_by"}).AddRow(other.String()))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewStarRepository(db)
			newUser, other := uuid.New(), uuid.New()

			mock.ExpectBegin()
			tt.expect(mock, newUser, other)
			mock.ExpectCommit()

			got, applied, err := repo.ApplyReferral(context.Background(), newUser, "REF12345", 50, 10)
			require.NoError(t, err)
			assert.False(t, applied)
			assert.Equal(t, uuid.Nil, got)
			// ни начислений, ни смены referred_by
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
