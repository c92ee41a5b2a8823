package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"couponhub/internal/link"
	"couponhub/internal/metrics"
	"couponhub/pkg/db"
	"couponhub/pkg/logger"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrLinkExists   = errors.New("url is already shortened")
	ErrLinkExpired  = errors.New("link has expired")
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidURL   = errors.New("invalid url")
)

type LinkStore interface {
	Create(ctx context.Context, l *link.Link) error
	GetByID(ctx context.Context, id int64) (*link.Link, error)
	GetByShortCode(ctx context.Context, code string) (*link.Link, error)
	GetByOriginalURL(ctx context.Context, url string) (*link.Link, error)
	List(ctx context.Context) ([]*link.Link, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type ClickStore interface {
	Insert(ctx context.Context, c *link.Click) error
	CountByLink(ctx context.Context, linkID int64) (int64, error)
	ListByLink(ctx context.Context, linkID int64) ([]*link.Click, error)
}

type UserDirectory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

type CodeSource interface {
	Generate() (string, error)
}

// Cache - кэш ссылок по короткому коду. Get возвращает nil, nil при промахе.
type Cache interface {
	Get(ctx context.Context, code string) (*link.Link, error)
	Set(ctx context.Context, l *link.Link) error
	Delete(ctx context.Context, code string) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*link.Link, error) { return nil, nil }
func (noopCache) Set(context.Context, *link.Link) error            { return nil }
func (noopCache) Delete(context.Context, string) error             { return nil }

type Service struct {
	links   LinkStore
	clicks  ClickStore
	users   UserDirectory
	codes   CodeSource
	cache   Cache
	baseURL string
	now     func() time.Time
	tracer  trace.Tracer
}

type Option func(*Service)

func WithCache(c Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(links LinkStore, clicks ClickStore, users UserDirectory, codes CodeSource, baseURL string, opts ...Option) *Service {
	s := &Service{
		links:   links,
		clicks:  clicks,
		users:   users,
		codes:   codes,
		cache:   noopCache{},
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
		tracer:  otel.Tracer("couponhub/link"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShortURL - публичный адрес редиректа для кода.
func (s *Service) ShortURL(code string) string {
	return s.baseURL + "/r/" + code
}

func (s *Service) View(l *link.Link) link.View {
	return link.View{Link: l, ShortURL: s.ShortURL(l.ShortCode)}
}

func (s *Service) Create(ctx context.Context, rawURL string, userID int64) (*link.Link, error) {
	ctx, span := s.tracer.Start(ctx, "Links.Create", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	original := strings.TrimSpace(rawURL)
	if err := validateURL(original); err != nil {
		return nil, err
	}

	ok, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "check user")
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	existing, err := s.links.GetByOriginalURL(ctx, original)
	if err != nil {
		return nil, errors.Wrap(err, "lookup link by url")
	}
	if existing != nil {
		return nil, ErrLinkExists
	}

	code, err := s.codes.Generate()
	if err != nil {
		return nil, err
	}

	l := &link.Link{
		OriginalURL: original,
		ShortCode:   code,
		UserID:      userID,
		ExpiresAt:   s.now().UTC().Add(link.TTL),
	}
	if err := s.links.Create(ctx, l); err != nil {
		if db.IsUniqueViolation(err, db.LinksOriginalURLKey) {
			return nil, ErrLinkExists
		}
		if db.IsForeignKeyViolation(err) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, "create link")
	}

	span.SetAttributes(attribute.String("link.code", l.ShortCode))
	logger.Ctx(ctx).Info().Int64("link_id", l.ID).Str("short_code", l.ShortCode).Msg("link created")
	return l, nil
}

func validateURL(raw string) error {
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return errors.Wrap(ErrInvalidURL, "url must be non-empty and contain no whitespace")
	}
	target := raw
	if !hasScheme(target) {
		target = "https://" + target
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return errors.Wrapf(ErrInvalidURL, "%q", raw)
	}
	return nil
}

func hasScheme(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

// RedirectTarget добавляет https:// к адресам без схемы.
func RedirectTarget(l *link.Link) string {
	if hasScheme(l.OriginalURL) {
		return l.OriginalURL
	}
	return "https://" + l.OriginalURL
}

func (s *Service) GetByShortCode(ctx context.Context, code string) (*link.Link, error) {
	l, err := s.links.GetByShortCode(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "get link by code")
	}
	if l == nil {
		return nil, ErrLinkNotFound
	}
	return l, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*link.Link, error) {
	l, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get link")
	}
	if l == nil {
		return nil, ErrLinkNotFound
	}
	return l, nil
}

func (s *Service) Detail(ctx context.Context, id int64) (*link.Detail, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := s.clicks.CountByLink(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "count clicks")
	}
	return &link.Detail{View: s.View(l), ClickCount: n}, nil
}

func (s *Service) List(ctx context.Context) ([]*link.Link, error) {
	links, err := s.links.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list links")
	}
	return links, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	l, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.links.Delete(ctx, id)
	if err != nil {
		return errors.Wrap(err, "delete link")
	}
	if !ok {
		return ErrLinkNotFound
	}

	if err := s.cache.Delete(ctx, l.ShortCode); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("short_code", l.ShortCode).Msg("failed to evict link from cache")
	}
	return nil
}

// Resolve находит действующую ссылку для редиректа, сначала в кэше.
func (s *Service) Resolve(ctx context.Context, code string) (*link.Link, error) {
	ctx, span := s.tracer.Start(ctx, "Links.Resolve", trace.WithAttributes(attribute.String("link.code", code)))
	defer span.End()

	l, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if l == nil {
		metrics.LinkRedirectsTotal.WithLabelValues("not_found").Inc()
		return nil, ErrLinkNotFound
	}
	if l.ExpiredAt(s.now()) {
		metrics.LinkRedirectsTotal.WithLabelValues("expired").Inc()
		return nil, ErrLinkExpired
	}

	metrics.LinkRedirectsTotal.WithLabelValues("found").Inc()
	return l, nil
}

func (s *Service) lookup(ctx context.Context, code string) (*link.Link, error) {
	log := logger.Ctx(ctx)

	cached, err := s.cache.Get(ctx, code)
	if err != nil {
		// кэш не критичен, идём в БД
		metrics.LinkCacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("short_code", code).Msg("link cache read failed")
	} else if cached != nil {
		metrics.LinkCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	} else {
		metrics.LinkCacheLookups.WithLabelValues("miss").Inc()
	}

	l, err := s.links.GetByShortCode(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "get link by code")
	}
	if l == nil {
		return nil, nil
	}

	if err := s.cache.Set(ctx, l); err != nil {
		log.Warn().Err(err).Str("short_code", code).Msg("link cache write failed")
	}
	return l, nil
}

func (s *Service) RecordClick(ctx context.Context, c *link.Click) error {
	if err := s.clicks.Insert(ctx, c); err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrLinkNotFound
		}
		return errors.Wrap(err, "record click")
	}
	return nil
}

func (s *Service) ClickStats(ctx context.Context, linkID int64) (*link.ClickStats, error) {
	if _, err := s.Get(ctx, linkID); err != nil {
		return nil, err
	}

	n, err := s.clicks.CountByLink(ctx, linkID)
	if err != nil {
		return nil, errors.Wrap(err, "count clicks")
	}
	clicks, err := s.clicks.ListByLink(ctx, linkID)
	if err != nil {
		return nil, errors.Wrap(err, "list clicks")
	}
	return &link.ClickStats{LinkID: linkID, Count: n, Clicks: clicks}, nil
}
