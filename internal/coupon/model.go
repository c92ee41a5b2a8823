package coupon

import (
	"time"
)

type IssuanceStatus string

const (
	StatusIssued IssuanceStatus = "ISSUED"
	StatusUsed   IssuanceStatus = "USED"
)

type Coupon struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	DiscountAmount int64     `json:"discount_amount"`
	TotalQuantity  int       `json:"total_quantity"` // не меняется после создания
	IssuedCount    int       `json:"issued_count"`
	OwnerID        int64     `json:"user_id"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"` // не включительно
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (c *Coupon) Exhausted() bool {
	return c.IssuedCount >= c.TotalQuantity
}

// ActiveAt проверяет попадание в окно [StartDate, EndDate).
func (c *Coupon) ActiveAt(t time.Time) bool {
	return !t.Before(c.StartDate) && t.Before(c.EndDate)
}

func (c *Coupon) Remaining() int {
	if c.Exhausted() {
		return 0
	}
	return c.TotalQuantity - c.IssuedCount
}

type Issuance struct {
	ID        int64          `json:"id"`
	CouponID  int64          `json:"coupon_id"`
	UserID    int64          `json:"user_id"`
	Status    IssuanceStatus `json:"status"`
	IssuedAt  time.Time      `json:"issued_at"`
	UsedAt    *time.Time     `json:"used_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
