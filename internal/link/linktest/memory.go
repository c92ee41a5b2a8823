// Package linktest содержит in-memory хранилища ссылок и кликов для тестов.
package linktest

import (
	"context"
	"sort"
	"sync"
	"time"

	"couponhub/internal/link"
	"couponhub/pkg/db"

	"github.com/lib/pq"
)

type Store struct {
	mu        sync.Mutex
	links     map[int64]*link.Link
	clicks    []*link.Click
	nextLink  int64
	nextClick int64
}

func NewStore() *Store {
	return &Store{links: make(map[int64]*link.Link)}
}

// Create повторяет уникальные индексы links и отвечает ошибкой Postgres.
func (s *Store) Create(_ context.Context, l *link.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.links {
		if existing.OriginalURL == l.OriginalURL {
			return &pq.Error{Code: "23505", Constraint: db.LinksOriginalURLKey}
		}
		if existing.ShortCode == l.ShortCode {
			return &pq.Error{Code: "23505", Constraint: db.LinksShortCodeKey}
		}
	}

	s.nextLink++
	now := time.Now().UTC()
	l.ID = s.nextLink
	l.CreatedAt, l.UpdatedAt = now, now
	cp := *l
	s.links[l.ID] = &cp
	return nil
}

func (s *Store) GetByID(_ context.Context, id int64) (*link.Link, error) {
	return s.find(func(l *link.Link) bool { return l.ID == id }), nil
}

func (s *Store) GetByShortCode(_ context.Context, code string) (*link.Link, error) {
	return s.find(func(l *link.Link) bool { return l.ShortCode == code }), nil
}

func (s *Store) GetByOriginalURL(_ context.Context, url string) (*link.Link, error) {
	return s.find(func(l *link.Link) bool { return l.OriginalURL == url }), nil
}

func (s *Store) find(match func(*link.Link) bool) *link.Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if match(l) {
			cp := *l
			return &cp
		}
	}
	return nil
}

func (s *Store) List(context.Context) ([]*link.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*link.Link, 0, len(s.links))
	for _, l := range s.links {
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete удаляет и клики ссылки, как ON DELETE CASCADE.
func (s *Store) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[id]; !ok {
		return false, nil
	}
	delete(s.links, id)

	kept := s.clicks[:0]
	for _, c := range s.clicks {
		if c.LinkID != id {
			kept = append(kept, c)
		}
	}
	s.clicks = kept
	return true, nil
}

// Expire сдвигает срок жизни ссылки.
func (s *Store) Expire(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.links[id]; ok {
		l.ExpiresAt = at
	}
}

func (s *Store) Clicks() *Clicks { return &Clicks{s: s} }

type Clicks struct {
	s *Store
}

func (c *Clicks) Insert(_ context.Context, click *link.Click) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if _, ok := c.s.links[click.LinkID]; !ok {
		return &pq.Error{Code: "23503"}
	}
	c.s.nextClick++
	click.ID = c.s.nextClick
	click.ClickedAt = time.Now().UTC()
	cp := *click
	c.s.clicks = append(c.s.clicks, &cp)
	return nil
}

func (c *Clicks) CountByLink(ctx context.Context, linkID int64) (int64, error) {
	list, err := c.ListByLink(ctx, linkID)
	return int64(len(list)), err
}

func (c *Clicks) ListByLink(_ context.Context, linkID int64) ([]*link.Click, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	out := make([]*link.Click, 0)
	for _, click := range c.s.clicks {
		if click.LinkID == linkID {
			cp := *click
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Cache - кэш в памяти со счётчиками попаданий.
type Cache struct {
	mu      sync.Mutex
	entries map[string]link.Link
	Hits    int
	Misses  int
	Err     error
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]link.Link)}
}

func (c *Cache) Get(_ context.Context, code string) (*link.Link, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	l, ok := c.entries[code]
	if !ok {
		c.Misses++
		return nil, nil
	}
	c.Hits++
	return &l, nil
}

func (c *Cache) Set(_ context.Context, l *link.Link) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.entries[l.ShortCode] = *l
	return nil
}

func (c *Cache) Delete(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, code)
	return nil
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
