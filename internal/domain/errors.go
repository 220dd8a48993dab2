package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// TransientError wraps a storage failure that aborted a whole unit of work
// (lock timeout, serialization conflict, deadlock victim, busy database).
// Nothing was written; the caller may retry the entire operation.
type TransientError struct {
	Op  string // Operation that failed (e.g., "place", "cancel", "match")
	Err error  // Underlying error
}

func (e *TransientError) Error() string {
	return e.Op + ": transient: " + e.Err.Error()
}

func (e *TransientError) IsRetriable() bool {
	return true
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// MatchError reports an order that was booked but whose match attempt failed.
// The order stays open with its reservation in place and can be matched again.
type MatchError struct {
	OrderID uint64
	Err     error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("order %d booked, match failed: %v", e.OrderID, e.Err)
}

// IsRetriable reports whether retrying the match can succeed without any
// other change, which holds when the cause was transient.
func (e *MatchError) IsRetriable() bool {
	return IsRetriable(e.Err)
}

func (e *MatchError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Business precondition failures. None of them is retriable and all of them
// are raised before anything is written.
var (
	// ErrInvalidOrder is returned for an unknown symbol or side, or a non-positive price or quantity.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInsufficientBalance is returned when cash cannot cover a lock or debit.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAsset is returned when an asset holding cannot cover a lock.
	ErrInsufficientAsset = errors.New("insufficient asset")

	// ErrNotFound is returned for unknown orders and accounts.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when an account acts on an order it does not own.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned when an order is not in a state that allows the transition.
	ErrInvalidState = errors.New("invalid order state")

	// ErrLedgerInvariant is returned when a write would leave a negative amount behind.
	ErrLedgerInvariant = errors.New("ledger invariant violated")
)
