package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"couponhub/internal/metrics"
	"couponhub/pkg/logger"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// RateLimiter держит token-bucket на каждого клиента и периодически
// выбрасывает неактивных.
type RateLimiter struct {
	mu           sync.Mutex
	entries      map[string]*limiterEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	trusted      []*net.IPNet
	now          func() time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type RateLimiterOption func(*RateLimiter)

func WithIdleTTL(d time.Duration) RateLimiterOption {
	return func(r *RateLimiter) { r.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) RateLimiterOption {
	return func(r *RateLimiter) { r.cleanupEvery = d }
}

// WithTrustedProxies разрешает брать адрес клиента из X-Forwarded-For,
// но только если соединение пришло от одного из этих прокси.
func WithTrustedProxies(nets []*net.IPNet) RateLimiterOption {
	return func(r *RateLimiter) { r.trusted = nets }
}

// ParseCIDRs разбирает список подсетей; одиночный IP считается /32 (/128).
func ParseCIDRs(list []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(list))
	for _, raw := range list {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, errors.Errorf("invalid proxy address %q", raw)
			}
			bits := 8 * net.IPv4len
			if ip.To4() == nil {
				bits = 8 * net.IPv6len
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid proxy cidr %q", raw)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func NewRateLimiter(rps float64, burst int, opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		entries:      make(map[string]*limiterEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RateLimiter) limiter(key string) *rate.Limiter {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if ent, ok := r.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(r.rps, r.burst)
	r.entries[key] = &limiterEntry{lim: lim, lastSeen: now}
	return lim
}

func (r *RateLimiter) Allow(key string) bool {
	return r.limiter(key).Allow()
}

func (r *RateLimiter) Cleanup() {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	for k, ent := range r.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(r.entries, k)
		}
	}
}

// StartJanitor чистит неактивные ключи, пока не отменён ctx.
func (r *RateLimiter) StartJanitor(ctx context.Context) {
	if r.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(r.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				r.Cleanup()
			}
		}
	}()
}

func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ip := r.clientKey(req)
		if !r.Allow(ip) {
			metrics.HTTPRateLimited.Inc()
			logger.Ctx(req.Context()).Warn().Str("ip", ip).Msg("rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, req)
	})
}

// clientKey - адрес, по которому считается лимит. X-Forwarded-For учитывается
// только от доверенного прокси; берётся самый правый недоверенный адрес цепочки,
// потому что левые элементы клиент может подставить сам.
func (r *RateLimiter) clientKey(req *http.Request) string {
	remote := RemoteIP(req)
	if !r.isTrusted(remote) {
		return remote
	}

	hops := strings.Split(req.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !r.isTrusted(hop) {
			return hop
		}
	}
	return remote
}

func (r *RateLimiter) isTrusted(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range r.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// RemoteIP - адрес сокета без порта.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientIP берёт первый адрес из X-Forwarded-For, иначе RemoteAddr без порта.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return RemoteIP(r)
}
