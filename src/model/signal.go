package model

import (
	"time"

	"gorm.io/datatypes"
)

// Signal statuses. A signal row is never deleted; it moves through these
// states and a fresh row is inserted when a symbol becomes recommendable
// again.
const (
	SignalStatusActive   = "ACTIVE"
	SignalStatusRejected = "REJECTED"
	SignalStatusExpired  = "EXPIRED"
	SignalStatusTraded   = "TRADED"
)

// Verdict values produced by the recommendation engine. Buy and strong buy
// are the only actionable ("buy-class") verdicts.
const (
	VerdictBuy       = "buy"
	VerdictStrongBuy = "strong_buy"
	VerdictWatch     = "watch"
	VerdictSell      = "sell"
)

// IsBuyClassVerdict reports whether a verdict should lead to an actionable
// signal. Unknown or empty verdicts are not buy-class.
func IsBuyClassVerdict(verdict string) bool {
	return verdict == VerdictBuy || verdict == VerdictStrongBuy
}

// Signal is one timestamped trade recommendation for one symbol. Signals are
// global (not user-scoped); per-user activity against a signal is tracked in
// UserSignalStatus. Identity is (symbol, generated_at): the current signal
// for a symbol is the row with the greatest generated_at regardless of
// status.
type Signal struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Symbol       string `gorm:"size:50;index;not null" json:"symbol"`
	Verdict      string `gorm:"size:30" json:"verdict"`
	FinalVerdict string `gorm:"size:30" json:"final_verdict"`
	Status       string `gorm:"size:20;not null;default:ACTIVE;index" json:"status"`

	// Indicators carries the ~30 opaque numeric/boolean attributes produced
	// by the recommendation engine. This core stores and returns them
	// unchanged.
	Indicators datatypes.JSON `gorm:"type:jsonb" json:"indicators,omitempty"`

	GeneratedAt time.Time `gorm:"index;not null" json:"generated_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Signal) TableName() string {
	return "signals"
}

// UserSignalStatus records that one user acted on one signal row. Many users
// can attach a status to the same base signal; the base signal's own Status
// is a global marker set once any user acts.
type UserSignalStatus struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	UserID   uint   `gorm:"index:idx_user_signal,unique" json:"user_id"`
	SignalID uint   `gorm:"index:idx_user_signal,unique" json:"signal_id"`
	Status   string `gorm:"size:20;not null" json:"status"`

	Signal *Signal `gorm:"constraint:OnDelete:CASCADE" json:"signal,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserSignalStatus) TableName() string {
	return "user_signal_statuses"
}
