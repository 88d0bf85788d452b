package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Order statuses. PENDING is the initial state on placement attempt; ONGOING,
// REJECTED and CLOSED are terminal for this ledger (quantity changes after
// execution are tracked on the position, not by mutating the order).
const (
	OrderStatusPending      = "PENDING"
	OrderStatusOngoing      = "ONGOING"
	OrderStatusFailed       = "FAILED"
	OrderStatusRetryPending = "RETRY_PENDING"
	OrderStatusRejected     = "REJECTED"
	OrderStatusClosed       = "CLOSED"
)

const (
	OrderSideBuy  = "buy"
	OrderSideSell = "sell"
)

// Entry types: whether the order opens a new position or adds to an open one.
const (
	EntryTypeInitial = "initial"
	EntryTypeReentry = "reentry"
)

// OrderMetadata is the semi-structured payload attached to an order, keyed by
// the order's entry type.
//
// initial: TriggerIndicator and TriggerValue describe the indicator level
// that produced the signal.
// reentry: Level, IndicatorValue and ReentryIndex additionally record which
// averaging-down level fired and how many re-entries preceded it.
type OrderMetadata struct {
	TriggerIndicator string  `json:"trigger_indicator,omitempty"`
	TriggerValue     float64 `json:"trigger_value,omitempty"`
	Level            float64 `json:"level,omitempty"`
	IndicatorValue   float64 `json:"indicator_value,omitempty"`
	ReentryIndex     int     `json:"reentry_index,omitempty"`
}

// Validate checks the metadata against the schema for the given entry type.
func (m OrderMetadata) Validate(entryType string) error {
	switch entryType {
	case EntryTypeInitial:
		return nil
	case EntryTypeReentry:
		if m.ReentryIndex < 0 {
			return fmt.Errorf("reentry metadata: negative reentry_index %d", m.ReentryIndex)
		}
		return nil
	default:
		return fmt.Errorf("unknown entry type %q", entryType)
	}
}

// Order is one brokerage order for one user. Orders are never deleted;
// terminal states are retained for audit.
type Order struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"index" json:"user_id"`

	Symbol    string  `gorm:"size:50;index;not null" json:"symbol"`
	Side      string  `gorm:"size:10;not null" json:"side"`
	Quantity  int64   `gorm:"not null" json:"quantity"`
	Price     float64 `json:"price"`
	EntryType string  `gorm:"size:10;not null;default:initial" json:"entry_type"`

	Metadata datatypes.JSONType[OrderMetadata] `json:"metadata"`

	BrokerOrderID string `gorm:"size:100;index" json:"broker_order_id"`
	Status        string `gorm:"size:20;not null;default:PENDING;index" json:"status"`

	// Execution details, set on the PENDING -> ONGOING transition.
	ExecutionPrice *float64   `json:"execution_price,omitempty"`
	ExecutedQty    *int64     `json:"executed_qty,omitempty"`
	ExecutedAt     *time.Time `json:"executed_at,omitempty"`

	// Failure/retry bookkeeping.
	RetryCount    int        `json:"retry_count"`
	FirstFailedAt *time.Time `json:"first_failed_at,omitempty"`
	FailureReason string     `gorm:"size:255" json:"failure_reason,omitempty"`

	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Events []OrderEvent `gorm:"foreignKey:OrderID" json:"order_events,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// IsTerminal reports whether the order can take no further ledger transition.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusOngoing, OrderStatusRejected, OrderStatusClosed:
		return true
	}
	return false
}
