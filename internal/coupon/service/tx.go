package service

import (
	"context"
	"database/sql"

	"couponhub/internal/coupon/repository"

	"github.com/pkg/errors"
)

// Stores - репозитории, привязанные к одной транзакции.
type Stores struct {
	Coupons   InventoryStore
	Issuances IssuanceLedger
}

// TxRunner выполняет fn в транзакции: ошибка fn = откат, иначе коммит.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Stores) error) error
}

type SQLTxRunner struct {
	DB *sql.DB
}

func NewSQLTxRunner(db *sql.DB) *SQLTxRunner {
	return &SQLTxRunner{DB: db}
}

func (r *SQLTxRunner) InTx(ctx context.Context, fn func(Stores) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stores := Stores{
		Coupons:   repository.NewPostgresCouponRepository(tx),
		Issuances: repository.NewPostgresIssuanceRepository(tx),
	}
	if err := fn(stores); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	committed = true
	return nil
}
