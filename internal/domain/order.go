package domain

import (
	"fmt"
	"time"
)

// Side is the direction of an order.
type Side string

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"

	StatusOpen      OrderStatus = "open"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is buy or sell.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the side a counter-order must have.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Order represents a limit order for the full Quantity at Price or better.
type Order struct {
	ID        uint64      `gorm:"primaryKey" json:"id"`
	AccountID uint64      `gorm:"not null;index" json:"account_id"`
	Symbol    string      `gorm:"size:16;not null;index:idx_orders_book,priority:1" json:"symbol"`
	Side      Side        `gorm:"size:4;not null;index:idx_orders_book,priority:3" json:"side"`
	Status    OrderStatus `gorm:"size:16;not null;index:idx_orders_book,priority:2" json:"status"`
	Price     Units       `gorm:"not null" json:"price"`
	Quantity  Units       `gorm:"not null" json:"amount"`
	Reserved  Units       `gorm:"not null;default:0" json:"reserved"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// IsOpen checks if the order is still active.
func (o *Order) IsOpen() bool {
	return o.Status == StatusOpen
}

// Fill moves an open order to filled.
func (o *Order) Fill() error {
	if !o.IsOpen() {
		return fmt.Errorf("fill order %d in status %s: %w", o.ID, o.Status, ErrInvalidState)
	}
	o.Status = StatusFilled
	return nil
}

// Cancel moves an open order to cancelled.
func (o *Order) Cancel() error {
	if !o.IsOpen() {
		return fmt.Errorf("cancel order %d in status %s: %w", o.ID, o.Status, ErrInvalidState)
	}
	o.Status = StatusCancelled
	return nil
}

// Notional returns trunc8(Price × Quantity), the cash a buy order commits.
func (o *Order) Notional() (Units, error) {
	return o.Price.Mul(o.Quantity)
}

// Reservation is what placing the order took from the ledger and what
// cancelling it gives back: cash for a buy, instrument quantity for a sell.
// A buy without a recorded amount reserved its notional.
func (o *Order) Reservation() (Units, error) {
	if o.Side != SideBuy {
		return o.Quantity, nil
	}
	if o.Reserved.IsPositive() {
		return o.Reserved, nil
	}
	return o.Notional()
}

// OrderFilter narrows an account's order list. Empty fields match everything.
type OrderFilter struct {
	Symbol string
	Side   Side
	Status OrderStatus
}
