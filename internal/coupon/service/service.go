package service

import (
	"context"
	"strings"
	"time"

	"couponhub/internal/coupon"

	"github.com/pkg/errors"
)

var (
	ErrInvalidCoupon    = errors.New("invalid coupon")
	ErrOwnerNotFound    = errors.New("owner not found")
	ErrIssuanceNotFound = errors.New("issuance not found")
	ErrUserNotFound     = errors.New("user not found")
)

type NewCoupon struct {
	Name           string
	DiscountAmount int64
	TotalQuantity  int
	OwnerID        int64
	StartDate      time.Time
	EndDate        time.Time
}

// Service - регистрация купонов и чтение журнала. Выдача живёт в Issuer.
type Service struct {
	Users     UserDirectory
	Coupons   InventoryStore
	Issuances IssuanceLedger
	Issuer    *Issuer
}

func NewService(users UserDirectory, coupons InventoryStore, issuances IssuanceLedger, issuer *Issuer) *Service {
	return &Service{
		Users:     users,
		Coupons:   coupons,
		Issuances: issuances,
		Issuer:    issuer,
	}
}

func (s *Service) Register(ctx context.Context, in NewCoupon) (*coupon.Coupon, error) {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return nil, errors.Wrap(ErrInvalidCoupon, "name is required")
	case in.DiscountAmount <= 0:
		return nil, errors.Wrap(ErrInvalidCoupon, "discount amount must be positive")
	case in.TotalQuantity <= 0:
		return nil, errors.Wrap(ErrInvalidCoupon, "total quantity must be positive")
	case !in.EndDate.After(in.StartDate):
		return nil, errors.Wrap(ErrInvalidCoupon, "end date must be after start date")
	}

	exists, err := s.Users.Exists(ctx, in.OwnerID)
	if err != nil {
		return nil, errors.Wrap(err, "check owner")
	}
	if !exists {
		return nil, ErrOwnerNotFound
	}

	c := &coupon.Coupon{
		Name:           name,
		DiscountAmount: in.DiscountAmount,
		TotalQuantity:  in.TotalQuantity,
		OwnerID:        in.OwnerID,
		StartDate:      in.StartDate.UTC(),
		EndDate:        in.EndDate.UTC(),
	}
	if err := s.Coupons.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create coupon")
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*coupon.Coupon, error) {
	c, err := s.Coupons.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get coupon %d", id)
	}
	if c == nil {
		return nil, ErrCouponNotFound
	}
	return c, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID int64) ([]*coupon.Coupon, error) {
	coupons, err := s.Coupons.ListByOwner(ctx, ownerID)
	return coupons, errors.Wrapf(err, "list coupons of owner %d", ownerID)
}

func (s *Service) Issue(ctx context.Context, couponID, userID int64) (*coupon.Issuance, error) {
	return s.Issuer.Issue(ctx, couponID, userID)
}

func (s *Service) GetIssuance(ctx context.Context, id int64) (*coupon.Issuance, error) {
	iss, err := s.Issuances.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get issuance %d", id)
	}
	if iss == nil {
		return nil, ErrIssuanceNotFound
	}
	return iss, nil
}

func (s *Service) ListIssuances(ctx context.Context) ([]*coupon.Issuance, error) {
	list, err := s.Issuances.List(ctx)
	return list, errors.Wrap(err, "list issuances")
}

func (s *Service) ListIssuancesByCoupon(ctx context.Context, couponID int64) ([]*coupon.Issuance, error) {
	if _, err := s.Get(ctx, couponID); err != nil {
		return nil, err
	}
	list, err := s.Issuances.ListByCoupon(ctx, couponID)
	return list, errors.Wrapf(err, "list issuances of coupon %d", couponID)
}

func (s *Service) ListIssuancesByUser(ctx context.Context, userID int64) ([]*coupon.Issuance, error) {
	exists, err := s.Users.Exists(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "check user")
	}
	if !exists {
		return nil, ErrUserNotFound
	}
	list, err := s.Issuances.ListByUser(ctx, userID)
	return list, errors.Wrapf(err, "list issuances of user %d", userID)
}
