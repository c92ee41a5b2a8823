package dto

import "time"

type CreateCouponRequest struct {
	Name           string    `json:"name" validate:"required,max=255"`
	DiscountAmount int64     `json:"discount_amount" validate:"required,gt=0"`
	TotalQuantity  int       `json:"total_quantity" validate:"required,gt=0"`
	UserID         int64     `json:"user_id" validate:"required,gt=0"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
}

type IssueCouponRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}
