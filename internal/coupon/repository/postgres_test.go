package repository

import (
	"context"
	"testing"
	"time"

	"couponhub/internal/coupon"
	"couponhub/pkg/db"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Условие и инкремент должны уходить одним UPDATE; клиентское чтение-запись недопустимо.
const reserveSQL = `UPDATE coupons\s+SET issued_count = issued_count \+ 1, updated_at = NOW\(\)\s+` +
	`WHERE id = \$1\s+AND issued_count < total_quantity\s+AND start_date <= \$2\s+AND end_date > \$2`

func TestTryReserve(t *testing.T) {
	boom := errors.New("connection reset")

	tests := []struct {
		name    string
		result  func(e *sqlmock.ExpectedExec)
		want    bool
		wantErr error
	}{
		{"one row updated", func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 1)) }, true, nil},
		{"guard rejected", func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 0)) }, false, nil},
		{"exec fails", func(e *sqlmock.ExpectedExec) { e.WillReturnError(boom) }, false, boom},
		{"rows affected fails", func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewErrorResult(boom)) }, false, boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sqlDB, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer sqlDB.Close()

			tt.result(mock.ExpectExec(reserveSQL).WithArgs(int64(7), at))

			ok, err := NewPostgresCouponRepository(sqlDB).TryReserve(context.Background(), 7, at)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

var couponRow = []string{"id", "name", "discount_amount", "total_quantity", "issued_count",
	"user_id", "start_date", "end_date", "created_at", "updated_at"}

func TestCouponGetByID(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	repo := NewPostgresCouponRepository(sqlDB)

	mock.ExpectQuery(`SELECT .+ FROM coupons WHERE id = \$1`).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(couponRow).
			AddRow(1, "Summer", 1500, 10, 10, 3, at.Add(-time.Hour), at.Add(time.Hour), at, at))
	mock.ExpectQuery(`SELECT .+ FROM coupons WHERE id = \$1`).WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(couponRow))

	c, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Summer", c.Name)
	assert.Equal(t, int64(3), c.OwnerID)
	assert.True(t, c.Exhausted())

	missing, err := repo.GetByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIssuanceInsert(t *testing.T) {
	insertSQL := `INSERT INTO coupon_issuances \(coupon_id, user_id, status, issued_at, used_at\)\s+` +
		`VALUES \(\$1, \$2, \$3, \$4, \$5\)\s+RETURNING id, created_at, updated_at`

	t.Run("assigns id and timestamps", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectQuery(insertSQL).WithArgs(int64(3), int64(9), "ISSUED", at, nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(11, at, at))

		iss := &coupon.Issuance{CouponID: 3, UserID: 9, Status: coupon.StatusIssued, IssuedAt: at}
		require.NoError(t, NewPostgresIssuanceRepository(sqlDB).Insert(context.Background(), iss))
		assert.Equal(t, int64(11), iss.ID)
		assert.Equal(t, at, iss.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation is returned as is", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectQuery(insertSQL).
			WillReturnError(&pq.Error{Code: "23505", Constraint: db.CouponIssuancesUniqueKey})

		iss := &coupon.Issuance{CouponID: 3, UserID: 9, Status: coupon.StatusIssued, IssuedAt: at}
		err = NewPostgresIssuanceRepository(sqlDB).Insert(context.Background(), iss)
		assert.True(t, db.IsUniqueViolation(err, db.CouponIssuancesUniqueKey))
		assert.Zero(t, iss.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIssuanceFindByCouponAndUser(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	cols := []string{"id", "coupon_id", "user_id", "status", "issued_at", "used_at", "created_at", "updated_at"}
	used := at.Add(time.Minute)
	mock.ExpectQuery(`SELECT .+ FROM coupon_issuances WHERE coupon_id = \$1 AND user_id = \$2`).
		WithArgs(int64(3), int64(9)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 3, 9, "USED", at, used, at, used))

	list, err := NewPostgresIssuanceRepository(sqlDB).FindByCouponAndUser(context.Background(), 3, 9)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, coupon.StatusUsed, list[0].Status)
	require.NotNil(t, list[0].UsedAt)
	assert.Equal(t, used, *list[0].UsedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
