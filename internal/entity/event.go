package entity

import (
	"github.com/shopspring/decimal"
	"time"
)

const EventOrderPlaced = "order.placed"

// OrderPlacedEvent is published once an order transaction has committed.
type OrderPlacedEvent struct {
	EventID     string          `json:"event_id"`
	Type        string          `json:"type"`
	OrderID     int64           `json:"order_id"`
	CustomerID  int64           `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItem     `json:"items"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// BookIDs returns the distinct books touched by the order.
func (e *OrderPlacedEvent) BookIDs() []int64 {
	seen := make(map[int64]struct{}, len(e.Items))
	ids := make([]int64, 0, len(e.Items))
	for _, item := range e.Items {
		if _, ok := seen[item.BookID]; ok {
			continue
		}
		seen[item.BookID] = struct{}{}
		ids = append(ids, item.BookID)
	}
	return ids
}
