package repository

import (
	"context"
	"database/sql"

	"couponhub/internal/user"
	"couponhub/pkg/db"
)

const userColumns = `id, email, name, created_at, updated_at`

type PostgresUserRepository struct {
	db db.Querier
}

func NewPostgresUserRepository(q db.Querier) *PostgresUserRepository {
	return &PostgresUserRepository{db: q}
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	query := `INSERT INTO users (email, name) VALUES ($1, $2) RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query, u.Email, u.Name).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

// GetByID возвращает nil, nil если пользователя нет.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresUserRepository) getOne(ctx context.Context, query string, arg any) (*user.User, error) {
	u := &user.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func (r *PostgresUserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *PostgresUserRepository) List(ctx context.Context) ([]*user.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

// ListByName - имя не уникально, поэтому список.
func (r *PostgresUserRepository) ListByName(ctx context.Context, name string) ([]*user.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE name = $1 ORDER BY id`, name)
}

func (r *PostgresUserRepository) list(ctx context.Context, query string, args ...any) ([]*user.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*user.User, 0)
	for rows.Next() {
		u := &user.User{}
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// Update возвращает false, если строки с таким id нет.
func (r *PostgresUserRepository) Update(ctx context.Context, u *user.User) (bool, error) {
	query := `UPDATE users SET email = $1, name = $2, updated_at = NOW() WHERE id = $3 RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query, u.Email, u.Name, u.ID).Scan(&u.UpdatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r *PostgresUserRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
