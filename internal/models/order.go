package models

import "time"

// BaseOrder is one merchant order as returned by the base-order query:
// orders joined with order_items and users, grouped per order, with
// cancelled/returned orders already filtered out. Email identifies the
// owning customer and may repeat across orders.
type BaseOrder struct {
	OrderID    int64     `bigquery:"order_id" json:"order_id"`
	UserID     int64     `bigquery:"user_id" json:"user_id"`
	Email      string    `bigquery:"email" json:"email"`
	City       string    `bigquery:"city" json:"city"`
	Status     string    `bigquery:"status" json:"status"`
	TotalPrice float64   `bigquery:"total_price" json:"total_price"`
	CreatedAt  time.Time `bigquery:"created_at" json:"created_at"`
}
