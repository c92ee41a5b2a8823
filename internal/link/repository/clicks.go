package repository

import (
	"context"

	"couponhub/internal/link"
	"couponhub/pkg/db"
)

type PostgresClickRepository struct {
	db db.Querier
}

func NewPostgresClickRepository(q db.Querier) *PostgresClickRepository {
	return &PostgresClickRepository{db: q}
}

func (r *PostgresClickRepository) Insert(ctx context.Context, c *link.Click) error {
	query := `
        INSERT INTO link_clicks (link_id, ip_address, user_agent, referer)
        VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''))
        RETURNING id, clicked_at`

	return r.db.QueryRowContext(ctx, query,
		c.LinkID, c.IPAddress, c.UserAgent, c.Referer,
	).Scan(&c.ID, &c.ClickedAt)
}

func (r *PostgresClickRepository) CountByLink(ctx context.Context, linkID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM link_clicks WHERE link_id = $1`, linkID).Scan(&n)
	return n, err
}

func (r *PostgresClickRepository) ListByLink(ctx context.Context, linkID int64) ([]*link.Click, error) {
	query := `
        SELECT id, link_id, clicked_at,
               COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(referer, '')
        FROM link_clicks
        WHERE link_id = $1
        ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, linkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clicks := make([]*link.Click, 0)
	for rows.Next() {
		c := &link.Click{}
		if err := rows.Scan(&c.ID, &c.LinkID, &c.ClickedAt, &c.IPAddress, &c.UserAgent, &c.Referer); err != nil {
			return nil, err
		}
		clicks = append(clicks, c)
	}
	return clicks, rows.Err()
}
