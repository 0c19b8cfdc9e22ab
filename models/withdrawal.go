// models/withdrawal.go
package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// WithdrawalStatus tracks the payout review state of a request
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalStatusApproved || s == WithdrawalStatusRejected
}

// Withdrawal is a Robux payout request. Amount and Fee are frozen at
// submission; only Status changes afterwards.
type Withdrawal struct {
	ID           string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string           `gorm:"type:varchar(128);index;not null" json:"user_id"`
	Date         datatypes.Date   `gorm:"index;not null" json:"-"`
	Amount       float64          `gorm:"not null" json:"amount"`
	Fee          float64          `gorm:"not null" json:"fee"`
	Status       WithdrawalStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	GamepassLink string           `gorm:"type:text;not null" json:"gamepass_link"`
	CreatedAt    time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

// DateString returns the request date as YYYY-MM-DD.
func (w Withdrawal) DateString() string {
	return time.Time(w.Date).Format(time.DateOnly)
}

// NetAmount is what the payout side delivers after the fee. Not persisted.
func (w Withdrawal) NetAmount() float64 {
	return w.Amount - w.Fee
}

// Today truncates t to a day-precision date in its own location.
func Today(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, t.Location()))
}

// MarshalJSON renders Date as YYYY-MM-DD and adds the derived net amount.
func (w Withdrawal) MarshalJSON() ([]byte, error) {
	type plain Withdrawal
	return json.Marshal(struct {
		plain
		Date      string  `json:"date"`
		NetAmount float64 `json:"net_amount"`
	}{plain(w), w.DateString(), w.NetAmount()})
}
