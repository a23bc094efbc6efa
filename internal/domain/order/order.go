package order

import "time"

type Order struct {
	OrderNumber string    `json:"order_number"`
	CustomerID  string    `json:"customer_id"`
	OrderStatus bool      `json:"order_status"`
	CreatedAt   time.Time `json:"created_at"`
}
