package service

import (
	"context"
	"time"

	"couponhub/internal/coupon"
	"couponhub/internal/metrics"
	"couponhub/pkg/db"
	"couponhub/pkg/logger"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Классифицированные причины отказа в выдаче.
var (
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrDuplicateAllocation = errors.New("coupon already issued to this user")
	ErrCouponNotFound      = errors.New("coupon not found")
	ErrCouponExhausted     = errors.New("coupon is sold out")
	ErrCouponExpired       = errors.New("coupon is not valid at this time")
	ErrAllocationFailed    = errors.New("coupon allocation failed")
)

// errReserveRejected откатывает транзакцию, когда условный UPDATE ничего не изменил.
var errReserveRejected = errors.New("reservation rejected")

type UserDirectory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

type InventoryStore interface {
	Create(ctx context.Context, c *coupon.Coupon) error
	GetByID(ctx context.Context, id int64) (*coupon.Coupon, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]*coupon.Coupon, error)
	TryReserve(ctx context.Context, couponID int64, at time.Time) (bool, error)
}

type IssuanceLedger interface {
	FindByCouponAndUser(ctx context.Context, couponID, userID int64) ([]*coupon.Issuance, error)
	Insert(ctx context.Context, iss *coupon.Issuance) error
	GetByID(ctx context.Context, id int64) (*coupon.Issuance, error)
	List(ctx context.Context) ([]*coupon.Issuance, error)
	ListByCoupon(ctx context.Context, couponID int64) ([]*coupon.Issuance, error)
	ListByUser(ctx context.Context, userID int64) ([]*coupon.Issuance, error)
}

// EventPublisher получает уже закоммиченные выдачи.
type EventPublisher interface {
	PublishIssued(ctx context.Context, c *coupon.Issuance) error
}

type noopPublisher struct{}

func (noopPublisher) PublishIssued(context.Context, *coupon.Issuance) error { return nil }

// Issuer выдаёт купоны с ограниченным тиражом. Единственная точка
// синхронизации - условный UPDATE в InventoryStore.TryReserve; в процессе
// никаких блокировок нет.
type Issuer struct {
	users     UserDirectory
	coupons   InventoryStore
	issuances IssuanceLedger
	tx        TxRunner
	events    EventPublisher
	now       func() time.Time
	tracer    trace.Tracer
}

type IssuerOption func(*Issuer)

func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

func WithEventPublisher(p EventPublisher) IssuerOption {
	return func(i *Issuer) {
		if p != nil {
			i.events = p
		}
	}
}

func NewIssuer(users UserDirectory, coupons InventoryStore, issuances IssuanceLedger, tx TxRunner, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		users:     users,
		coupons:   coupons,
		issuances: issuances,
		tx:        tx,
		events:    noopPublisher{},
		now:       time.Now,
		tracer:    otel.Tracer("couponhub/coupon"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue выдаёт пользователю userID один экземпляр купона couponID.
// Возвращает одну из классифицированных ошибок выше либо неклассифицированную
// ошибку хранилища.
func (i *Issuer) Issue(ctx context.Context, couponID, userID int64) (*coupon.Issuance, error) {
	ctx, span := i.tracer.Start(ctx, "Issuer.Issue", trace.WithAttributes(
		attribute.Int64("coupon.id", couponID),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	iss, err := i.issue(ctx, couponID, userID)

	outcome := outcomeOf(err)
	metrics.CouponIssuanceTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("coupon.outcome", outcome))

	log := logger.Ctx(ctx)
	switch outcome {
	case "issued":
		log.Info().Int64("coupon_id", couponID).Int64("user_id", userID).Int64("issuance_id", iss.ID).Msg("coupon issued")
		i.publish(ctx, iss)
	case "internal_error":
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error().Err(err).Int64("coupon_id", couponID).Int64("user_id", userID).Msg("coupon issuance failed")
	default:
		log.Debug().Str("outcome", outcome).Int64("coupon_id", couponID).Int64("user_id", userID).Msg("coupon issuance rejected")
	}

	return iss, err
}

func (i *Issuer) issue(ctx context.Context, couponID, userID int64) (*coupon.Issuance, error) {
	exists, err := i.users.Exists(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "check recipient")
	}
	if !exists {
		return nil, ErrRecipientNotFound
	}

	prior, err := i.issuances.FindByCouponAndUser(ctx, couponID, userID)
	if err != nil {
		return nil, errors.Wrap(err, "check prior issuance")
	}
	if len(prior) > 0 {
		return nil, ErrDuplicateAllocation
	}

	now := i.now()
	var issued *coupon.Issuance

	start := time.Now()
	err = i.tx.InTx(ctx, func(s Stores) error {
		ok, err := s.Coupons.TryReserve(ctx, couponID, now)
		if err != nil {
			return errors.Wrap(err, "reserve coupon")
		}
		if !ok {
			return errReserveRejected
		}

		iss := &coupon.Issuance{
			CouponID: couponID,
			UserID:   userID,
			Status:   coupon.StatusIssued,
			IssuedAt: now,
		}
		if err := s.Issuances.Insert(ctx, iss); err != nil {
			// параллельный запрос той же пары успел раньше; инкремент откатится вместе с транзакцией
			if db.IsUniqueViolation(err, db.CouponIssuancesUniqueKey) {
				return ErrDuplicateAllocation
			}
			return errors.Wrap(err, "record issuance")
		}
		issued = iss
		return nil
	})
	metrics.CouponReservationDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		return issued, nil
	case errors.Is(err, errReserveRejected):
		return nil, i.diagnose(ctx, couponID, now)
	default:
		return nil, err
	}
}

// diagnose объясняет, почему резерв не прошёл. Чтение не атомарно с UPDATE
// и влияет только на текст ошибки, но не на исход.
func (i *Issuer) diagnose(ctx context.Context, couponID int64, now time.Time) error {
	c, err := i.coupons.GetByID(ctx, couponID)
	if err != nil {
		return errors.Wrap(err, "diagnose rejected reservation")
	}

	switch {
	case c == nil:
		return ErrCouponNotFound
	case c.Exhausted():
		return ErrCouponExhausted
	case !c.ActiveAt(now):
		return ErrCouponExpired
	default:
		return ErrAllocationFailed
	}
}

func (i *Issuer) publish(ctx context.Context, iss *coupon.Issuance) {
	if err := i.events.PublishIssued(ctx, iss); err != nil {
		metrics.CouponEventsPublished.WithLabelValues("error").Inc()
		logger.Ctx(ctx).Warn().Err(err).Int64("issuance_id", iss.ID).Msg("failed to publish issuance event")
		return
	}
	metrics.CouponEventsPublished.WithLabelValues("ok").Inc()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "issued"
	case errors.Is(err, ErrRecipientNotFound):
		return "recipient_not_found"
	case errors.Is(err, ErrDuplicateAllocation):
		return "duplicate"
	case errors.Is(err, ErrCouponNotFound):
		return "coupon_not_found"
	case errors.Is(err, ErrCouponExhausted):
		return "exhausted"
	case errors.Is(err, ErrCouponExpired):
		return "expired"
	case errors.Is(err, ErrAllocationFailed):
		return "allocation_failed"
	default:
		return "internal_error"
	}
}
