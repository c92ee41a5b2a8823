package repository

import (
	"context"
	"database/sql"

	"couponhub/internal/coupon"
	"couponhub/pkg/db"
)

const issuanceColumns = `id, coupon_id, user_id, status, issued_at, used_at, created_at, updated_at`

// PostgresIssuanceRepository - журнал выданных купонов.
// Пара (coupon_id, user_id) уникальна на уровне схемы.
type PostgresIssuanceRepository struct {
	db db.Querier
}

func NewPostgresIssuanceRepository(q db.Querier) *PostgresIssuanceRepository {
	return &PostgresIssuanceRepository{db: q}
}

func (r *PostgresIssuanceRepository) FindByCouponAndUser(ctx context.Context, couponID, userID int64) ([]*coupon.Issuance, error) {
	return r.list(ctx, `SELECT `+issuanceColumns+` FROM coupon_issuances WHERE coupon_id = $1 AND user_id = $2`, couponID, userID)
}

// Insert заполняет ID и служебные метки времени. Нарушение уникальности
// возвращается как есть (pq.Error 23505), классифицирует его вызывающий.
func (r *PostgresIssuanceRepository) Insert(ctx context.Context, iss *coupon.Issuance) error {
	query := `
        INSERT INTO coupon_issuances (coupon_id, user_id, status, issued_at, used_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		iss.CouponID, iss.UserID, iss.Status, iss.IssuedAt, iss.UsedAt,
	).Scan(&iss.ID, &iss.CreatedAt, &iss.UpdatedAt)
}

func (r *PostgresIssuanceRepository) GetByID(ctx context.Context, id int64) (*coupon.Issuance, error) {
	iss, err := scanIssuance(r.db.QueryRowContext(ctx, `SELECT `+issuanceColumns+` FROM coupon_issuances WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return iss, err
}

func (r *PostgresIssuanceRepository) List(ctx context.Context) ([]*coupon.Issuance, error) {
	return r.list(ctx, `SELECT `+issuanceColumns+` FROM coupon_issuances ORDER BY id`)
}

func (r *PostgresIssuanceRepository) ListByCoupon(ctx context.Context, couponID int64) ([]*coupon.Issuance, error) {
	return r.list(ctx, `SELECT `+issuanceColumns+` FROM coupon_issuances WHERE coupon_id = $1 ORDER BY id`, couponID)
}

func (r *PostgresIssuanceRepository) ListByUser(ctx context.Context, userID int64) ([]*coupon.Issuance, error) {
	return r.list(ctx, `SELECT `+issuanceColumns+` FROM coupon_issuances WHERE user_id = $1 ORDER BY id`, userID)
}

func (r *PostgresIssuanceRepository) list(ctx context.Context, query string, args ...any) ([]*coupon.Issuance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*coupon.Issuance, 0)
	for rows.Next() {
		iss, err := scanIssuance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, iss)
	}
	return out, rows.Err()
}

func scanIssuance(row rowScanner) (*coupon.Issuance, error) {
	iss := &coupon.Issuance{}
	var usedAt sql.NullTime
	err := row.Scan(
		&iss.ID,
		&iss.CouponID,
		&iss.UserID,
		&iss.Status,
		&iss.IssuedAt,
		&usedAt,
		&iss.CreatedAt,
		&iss.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		t := usedAt.Time
		iss.UsedAt = &t
	}
	return iss, nil
}
