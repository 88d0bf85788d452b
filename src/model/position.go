package model

import (
	"time"

	"gorm.io/datatypes"
)

// Reentry is one averaging-down fill folded into an open position. The list
// on the position is a denormalized projection of the reentry-type orders
// that contributed to it.
type Reentry struct {
	Qty            int64     `json:"qty"`
	Level          float64   `json:"level"`
	IndicatorValue float64   `json:"indicator_value"`
	Price          float64   `json:"price"`
	Time           time.Time `json:"time"`
}

// Position is the aggregated holding for one (user, symbol). A position is
// created on the first executed buy and mutated by every subsequent fill.
// Once ClosedAt is set it stays set; a later re-entry into the symbol creates
// a fresh row.
type Position struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"index" json:"user_id"`

	Symbol   string  `gorm:"size:50;index;not null" json:"symbol"`
	Quantity int64   `gorm:"not null" json:"quantity"`
	AvgPrice float64 `json:"avg_price"`

	// InitialEntryPrice and EntryIndicator are set once when the position is
	// opened and never overwritten.
	InitialEntryPrice float64 `json:"initial_entry_price"`
	EntryIndicator    string  `gorm:"size:50" json:"entry_indicator,omitempty"`

	LastReentryPrice *float64                     `json:"last_reentry_price,omitempty"`
	ReentryCount     int                          `json:"reentry_count"`
	Reentries        datatypes.JSONSlice[Reentry] `json:"reentries,omitempty"`

	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

// IsClosed reports whether the holding was fully exited.
func (p *Position) IsClosed() bool {
	return p.ClosedAt != nil
}
