package model

import "time"

// OrderEvent stores the immutable history of every ledger transition taken by
// an order, with a snapshot of the order at that moment. Written in the same
// transaction as the status update so the trail can never diverge from the
// order row.
type OrderEvent struct {
	ID uint `gorm:"primaryKey" json:"id"`

	OrderID uint   `gorm:"index" json:"order_id"`
	Order   *Order `gorm:"constraint:OnDelete:CASCADE" json:"order,omitempty"`

	// Snapshot of the order at the moment of this event.
	Symbol    string  `gorm:"size:50" json:"symbol"`
	Side      string  `gorm:"size:10" json:"side"`
	EntryType string  `gorm:"size:10" json:"entry_type"`
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`

	BrokerOrderID string `gorm:"size:100" json:"broker_order_id"`

	Status string `gorm:"size:20;not null" json:"status"`
	Reason string `gorm:"size:255" json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (OrderEvent) TableName() string {
	return "order_events"
}
