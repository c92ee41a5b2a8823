package repository

import (
	"context"
	"database/sql"

	"couponhub/internal/link"
	"couponhub/pkg/db"
)

const linkColumns = `id, original_url, short_code, user_id, expires_at, created_at, updated_at`

type PostgresLinkRepository struct {
	db db.Querier
}

func NewPostgresLinkRepository(q db.Querier) *PostgresLinkRepository {
	return &PostgresLinkRepository{db: q}
}

func (r *PostgresLinkRepository) Create(ctx context.Context, l *link.Link) error {
	query := `
        INSERT INTO links (original_url, short_code, user_id, expires_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		l.OriginalURL, l.ShortCode, l.UserID, l.ExpiresAt,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
}

// GetByID, GetByShortCode и GetByOriginalURL возвращают nil, nil если ссылки нет.
func (r *PostgresLinkRepository) GetByID(ctx context.Context, id int64) (*link.Link, error) {
	return r.getOne(ctx, `SELECT `+linkColumns+` FROM links WHERE id = $1`, id)
}

func (r *PostgresLinkRepository) GetByShortCode(ctx context.Context, code string) (*link.Link, error) {
	return r.getOne(ctx, `SELECT `+linkColumns+` FROM links WHERE short_code = $1`, code)
}

func (r *PostgresLinkRepository) GetByOriginalURL(ctx context.Context, url string) (*link.Link, error) {
	return r.getOne(ctx, `SELECT `+linkColumns+` FROM links WHERE original_url = $1`, url)
}

func (r *PostgresLinkRepository) getOne(ctx context.Context, query string, arg any) (*link.Link, error) {
	l, err := scanLink(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return l, err
}

func (r *PostgresLinkRepository) List(ctx context.Context) ([]*link.Link, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+linkColumns+` FROM links ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := make([]*link.Link, 0)
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// Delete удаляет ссылку вместе с её кликами (ON DELETE CASCADE).
func (r *PostgresLinkRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*link.Link, error) {
	l := &link.Link{}
	err := row.Scan(
		&l.ID,
		&l.OriginalURL,
		&l.ShortCode,
		&l.UserID,
		&l.ExpiresAt,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}
