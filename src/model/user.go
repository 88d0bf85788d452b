package model

import "time"

// User is the minimal account record this core needs: an identity to scope
// orders and positions by, a capital allocation for premarket sizing, and an
// API token hash for the reporting endpoints.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"size:100;uniqueIndex;not null" json:"username"`

	// CapitalPerTrade is the target capital (in account currency) allocated
	// to a single order, used to recompute pending quantities premarket.
	CapitalPerTrade float64 `json:"capital_per_trade"`

	// APITokenHash is a bcrypt hash of the user's reporting-API token.
	APITokenHash string `gorm:"size:100" json:"-"`

	Active bool `gorm:"default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
