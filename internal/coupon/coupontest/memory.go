// Package coupontest содержит in-memory реализации хранилищ купонов для тестов.
package coupontest

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"couponhub/internal/coupon"
	"couponhub/internal/coupon/service"
	"couponhub/pkg/db"

	"github.com/lib/pq"
)

// Store хранит купоны и журнал выдач. Мьютекс играет роль блокировки строки:
// проверка и инкремент в TryReserve выполняются под ним одним шагом.
type Store struct {
	mu           sync.Mutex
	coupons      map[int64]*coupon.Coupon
	issuances    map[int64]*coupon.Issuance
	nextCoupon   int64
	nextIssuance int64

	ReserveCalls atomic.Int64
	// FailReserve, если задан, возвращается из TryReserve.
	FailReserve error
	// FailInsert, если задан, возвращается из Ledger.Insert.
	FailInsert error
}

func NewStore() *Store {
	return &Store{
		coupons:   make(map[int64]*coupon.Coupon),
		issuances: make(map[int64]*coupon.Issuance),
	}
}

func (s *Store) Create(_ context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCoupon++
	now := time.Now().UTC()
	c.ID = s.nextCoupon
	c.IssuedCount = 0
	c.CreatedAt, c.UpdatedAt = now, now
	cp := *c
	s.coupons[c.ID] = &cp
	return nil
}

func (s *Store) GetByID(_ context.Context, id int64) (*coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ListByOwner(_ context.Context, ownerID int64) ([]*coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*coupon.Coupon, 0)
	for _, c := range s.coupons {
		if c.OwnerID == ownerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) TryReserve(_ context.Context, couponID int64, at time.Time) (bool, error) {
	s.ReserveCalls.Add(1)
	if s.FailReserve != nil {
		return false, s.FailReserve
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[couponID]
	if !ok || c.Exhausted() || !c.ActiveAt(at) {
		return false, nil
	}
	c.IssuedCount++
	c.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Store) release(couponID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.coupons[couponID]; ok && c.IssuedCount > 0 {
		c.IssuedCount--
	}
}

// Ledger - журнал выдач поверх того же Store.
func (s *Store) Ledger() *Ledger { return &Ledger{s: s} }

type Ledger struct {
	s *Store
}

func (l *Ledger) FindByCouponAndUser(_ context.Context, couponID, userID int64) ([]*coupon.Issuance, error) {
	return l.filter(func(i *coupon.Issuance) bool { return i.CouponID == couponID && i.UserID == userID }), nil
}

// Insert повторяет уникальный индекс (coupon_id, user_id) и отвечает той же ошибкой, что и Postgres.
func (l *Ledger) Insert(_ context.Context, iss *coupon.Issuance) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	if l.s.FailInsert != nil {
		return l.s.FailInsert
	}

	for _, existing := range l.s.issuances {
		if existing.CouponID == iss.CouponID && existing.UserID == iss.UserID {
			return &pq.Error{Code: "23505", Constraint: db.CouponIssuancesUniqueKey}
		}
	}

	l.s.nextIssuance++
	now := time.Now().UTC()
	iss.ID = l.s.nextIssuance
	iss.CreatedAt, iss.UpdatedAt = now, now
	cp := *iss
	l.s.issuances[iss.ID] = &cp
	return nil
}

func (l *Ledger) delete(id int64) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	delete(l.s.issuances, id)
}

func (l *Ledger) GetByID(_ context.Context, id int64) (*coupon.Issuance, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	iss, ok := l.s.issuances[id]
	if !ok {
		return nil, nil
	}
	cp := *iss
	return &cp, nil
}

func (l *Ledger) List(context.Context) ([]*coupon.Issuance, error) {
	return l.filter(func(*coupon.Issuance) bool { return true }), nil
}

func (l *Ledger) ListByCoupon(_ context.Context, couponID int64) ([]*coupon.Issuance, error) {
	return l.filter(func(i *coupon.Issuance) bool { return i.CouponID == couponID }), nil
}

func (l *Ledger) ListByUser(_ context.Context, userID int64) ([]*coupon.Issuance, error) {
	return l.filter(func(i *coupon.Issuance) bool { return i.UserID == userID }), nil
}

func (l *Ledger) filter(keep func(*coupon.Issuance) bool) []*coupon.Issuance {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	out := make([]*coupon.Issuance, 0)
	for _, iss := range l.s.issuances {
		if keep(iss) {
			cp := *iss
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TxRunner откатывает резервы и вставки, сделанные внутри fn, если fn вернула ошибку.
type TxRunner struct {
	Store *Store
}

func (r *TxRunner) InTx(ctx context.Context, fn func(service.Stores) error) error {
	tx := &txState{store: r.Store, ledger: r.Store.Ledger()}
	stores := service.Stores{
		Coupons:   &txInventory{Store: r.Store, tx: tx},
		Issuances: &txLedger{Ledger: tx.ledger, tx: tx},
	}
	if err := fn(stores); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

type txState struct {
	store    *Store
	ledger   *Ledger
	reserved []int64
	inserted []int64
}

func (t *txState) rollback() {
	for _, id := range t.inserted {
		t.ledger.delete(id)
	}
	for _, id := range t.reserved {
		t.store.release(id)
	}
}

type txInventory struct {
	*Store
	tx *txState
}

func (t *txInventory) TryReserve(ctx context.Context, couponID int64, at time.Time) (bool, error) {
	ok, err := t.Store.TryReserve(ctx, couponID, at)
	if ok {
		t.tx.reserved = append(t.tx.reserved, couponID)
	}
	return ok, err
}

type txLedger struct {
	*Ledger
	tx *txState
}

func (t *txLedger) Insert(ctx context.Context, iss *coupon.Issuance) error {
	if err := t.Ledger.Insert(ctx, iss); err != nil {
		return err
	}
	t.tx.inserted = append(t.tx.inserted, iss.ID)
	return nil
}

// Users - каталог пользователей с фиксированным набором id.
type Users struct {
	mu  sync.RWMutex
	ids map[int64]bool
	Err error
}

func NewUsers(ids ...int64) *Users {
	u := &Users{ids: make(map[int64]bool, len(ids))}
	for _, id := range ids {
		u.ids[id] = true
	}
	return u
}

func (u *Users) Add(id int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ids[id] = true
}

func (u *Users) Exists(_ context.Context, id int64) (bool, error) {
	if u.Err != nil {
		return false, u.Err
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.ids[id], nil
}
