package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Constraint names referenced by repositories when classifying unique violations.
const (
	UsersEmailKey            = "users_email_key"
	CouponIssuancesUniqueKey = "coupon_issuances_coupon_user_key"
	LinksShortCodeKey        = "links_short_code_key"
	LinksOriginalURLKey      = "links_original_url_key"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         BIGSERIAL PRIMARY KEY,
		email      VARCHAR(255) NOT NULL,
		name       VARCHAR(100) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS coupons (
		id              BIGSERIAL PRIMARY KEY,
		name            VARCHAR(255) NOT NULL,
		discount_amount BIGINT NOT NULL CHECK (discount_amount > 0),
		total_quantity  INTEGER NOT NULL CHECK (total_quantity > 0),
		issued_count    INTEGER NOT NULL DEFAULT 0 CHECK (issued_count >= 0),
		user_id         BIGINT NOT NULL REFERENCES users(id),
		start_date      TIMESTAMPTZ NOT NULL,
		end_date        TIMESTAMPTZ NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT coupons_issued_le_total CHECK (issued_count <= total_quantity),
		CONSTRAINT coupons_window CHECK (start_date < end_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_coupons_user_id ON coupons (user_id)`,
	`CREATE TABLE IF NOT EXISTS coupon_issuances (
		id         BIGSERIAL PRIMARY KEY,
		coupon_id  BIGINT NOT NULL REFERENCES coupons(id),
		user_id    BIGINT NOT NULL REFERENCES users(id),
		status     VARCHAR(16) NOT NULL DEFAULT 'ISSUED',
		issued_at  TIMESTAMPTZ NOT NULL,
		used_at    TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT coupon_issuances_coupon_user_key UNIQUE (coupon_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_coupon_issuances_user_id ON coupon_issuances (user_id)`,
	`CREATE TABLE IF NOT EXISTS links (
		id           BIGSERIAL PRIMARY KEY,
		original_url TEXT NOT NULL,
		short_code   VARCHAR(16) NOT NULL,
		user_id      BIGINT NOT NULL REFERENCES users(id),
		expires_at   TIMESTAMPTZ NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT links_short_code_key UNIQUE (short_code),
		CONSTRAINT links_original_url_key UNIQUE (original_url)
	)`,
	`CREATE TABLE IF NOT EXISTS link_clicks (
		id         BIGSERIAL PRIMARY KEY,
		link_id    BIGINT NOT NULL REFERENCES links(id) ON DELETE CASCADE,
		ip_address VARCHAR(64),
		user_agent TEXT,
		referer    TEXT,
		clicked_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_link_clicks_link_id ON link_clicks (link_id)`,
}

// Migrate создаёт схему, если её ещё нет.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to apply schema statement %d", i)
		}
	}
	return nil
}
