package cache

import (
	"context"
	"testing"
	"time"

	"couponhub/internal/link"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	l := &link.Link{ID: 1, ShortCode: "abc", ExpiresAt: time.Now().Add(time.Hour)}

	for _, c := range []*RedisCache{nil, NewRedisCache(nil)} {
		require.NoError(t, c.Set(ctx, l))
		got, err := c.Get(ctx, "abc")
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, c.Delete(ctx, "abc"))
	}
}

func TestNewClient_EmptyURL(t *testing.T) {
	rdb, err := NewClient(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, rdb)
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "://nope")
	assert.Error(t, err)
}

func TestKeyAndTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewRedisCache(nil, WithPrefix("short:"), WithTTL(time.Hour))
	c.now = func() time.Time { return now }

	assert.Equal(t, "short:xY9", c.key("xY9"))

	tests := []struct {
		name    string
		expires time.Time
		want    time.Duration
	}{
		{"long lived", now.Add(30 * 24 * time.Hour), time.Hour},
		{"expires soon", now.Add(10 * time.Minute), 10 * time.Minute},
		{"already expired", now.Add(-time.Minute), -time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ttlFor(&link.Link{ExpiresAt: tt.expires}))
		})
	}
}
