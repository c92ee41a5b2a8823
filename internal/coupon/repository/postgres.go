package repository

import (
	"context"
	"database/sql"
	"time"

	"couponhub/internal/coupon"
	"couponhub/pkg/db"
)

const couponColumns = `id, name, discount_amount, total_quantity, issued_count, user_id, start_date, end_date, created_at, updated_at`

type PostgresCouponRepository struct {
	db db.Querier
}

func NewPostgresCouponRepository(q db.Querier) *PostgresCouponRepository {
	return &PostgresCouponRepository{db: q}
}

func (r *PostgresCouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	query := `
        INSERT INTO coupons (name, discount_amount, total_quantity, user_id, start_date, end_date)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, issued_count, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		c.Name, c.DiscountAmount, c.TotalQuantity, c.OwnerID, c.StartDate, c.EndDate,
	).Scan(&c.ID, &c.IssuedCount, &c.CreatedAt, &c.UpdatedAt)
}

// GetByID возвращает nil, nil если купона нет.
func (r *PostgresCouponRepository) GetByID(ctx context.Context, id int64) (*coupon.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (r *PostgresCouponRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*coupon.Coupon, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE user_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	coupons := make([]*coupon.Coupon, 0)
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

// TryReserve атомарно увеличивает issued_count, если остался запас и купон
// действует в момент at. Проверка и изменение выполняются одним UPDATE,
// строку блокирует сама БД, поэтому конкурентные вызовы не превысят лимит.
func (r *PostgresCouponRepository) TryReserve(ctx context.Context, couponID int64, at time.Time) (bool, error) {
	query := `
        UPDATE coupons
        SET issued_count = issued_count + 1, updated_at = NOW()
        WHERE id = $1
          AND issued_count < total_quantity
          AND start_date <= $2
          AND end_date > $2`

	res, err := r.db.ExecContext(ctx, query, couponID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCoupon(row rowScanner) (*coupon.Coupon, error) {
	c := &coupon.Coupon{}
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.DiscountAmount,
		&c.TotalQuantity,
		&c.IssuedCount,
		&c.OwnerID,
		&c.StartDate,
		&c.EndDate,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
