package services

import (
	"errors"
	"strings"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrSessionNotFound    = errors.New("no active session for user")

	ErrWithdrawalInvalid = errors.New("withdrawal request invalid")
	ErrInvalidTransition = errors.New("withdrawal status transition not allowed")

	ErrInvalidCatalog = errors.New("invalid task catalog")
)

// Reasons a withdrawal request fails validation.
const (
	ReasonAmountTooLow        = "amount_below_minimum"
	ReasonAmountInvalid       = "amount_invalid"
	ReasonLinkInvalid         = "gamepass_link_invalid"
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonFeeNotAccepted      = "fee_not_accepted"
)

// ValidationError lists every reason a withdrawal request was refused.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "withdrawal request invalid: " + strings.Join(e.Reasons, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrWithdrawalInvalid }

// Has reports whether reason is among the failures.
func (e *ValidationError) Has(reason string) bool {
	for _, r := range e.Reasons {
		if r == reason {
			return true
		}
	}
	return false
}
