package link

import "time"

// TTL - срок жизни короткой ссылки с момента создания.
const TTL = 365 * 24 * time.Hour

type Link struct {
	ID          int64     `json:"link_id"`
	OriginalURL string    `json:"original_url"`
	ShortCode   string    `json:"short_code"`
	UserID      int64     `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (l *Link) ExpiredAt(t time.Time) bool {
	return !t.Before(l.ExpiresAt)
}

type Click struct {
	ID        int64     `json:"click_id"`
	LinkID    int64     `json:"link_id"`
	ClickedAt time.Time `json:"clicked_at"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Referer   string    `json:"referer"`
}

// View - ссылка в ответе API вместе с полным коротким адресом.
type View struct {
	*Link
	ShortURL string `json:"short_url"`
}

type Detail struct {
	View
	ClickCount int64 `json:"click_count"`
}

type ClickStats struct {
	LinkID int64    `json:"link_id"`
	Count  int64    `json:"click_count"`
	Clicks []*Click `json:"clicks"`
}
