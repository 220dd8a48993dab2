package domain

import (
	"fmt"
)

// Ledger mutators. They operate on rows the caller has already loaded under
// an exclusive lock inside its transaction and never persist anything
// themselves. A failed mutator leaves the receiver unchanged.

// LockFunds takes amount out of the cash balance for an open buy order.
func (a *Account) LockFunds(amount Units) error {
	if amount.IsNegative() {
		return fmt.Errorf("lock funds: negative amount %s: %w", amount, ErrLedgerInvariant)
	}
	if a.Balance < amount {
		return fmt.Errorf("account %d needs %s, has %s: %w", a.ID, amount, a.Balance, ErrInsufficientBalance)
	}
	a.Balance -= amount
	return nil
}

// UnlockFunds returns previously locked cash (cancel, price-improvement refund).
func (a *Account) UnlockFunds(amount Units) error {
	return a.CreditCash(amount)
}

// CreditCash adds amount to the balance.
func (a *Account) CreditCash(amount Units) error {
	if amount.IsNegative() {
		return fmt.Errorf("credit cash: negative amount %s: %w", amount, ErrLedgerInvariant)
	}
	b, err := a.Balance.Add(amount)
	if err != nil {
		return fmt.Errorf("credit account %d: %w", a.ID, err)
	}
	a.Balance = b
	return nil
}

// DebitCash removes amount from free cash. Settlement uses it for what a buy
// reservation did not cover.
func (a *Account) DebitCash(amount Units) error {
	if amount.IsNegative() {
		return fmt.Errorf("debit cash: negative amount %s: %w", amount, ErrLedgerInvariant)
	}
	if a.Balance < amount {
		return fmt.Errorf("account %d debit %s, has %s: %w", a.ID, amount, a.Balance, ErrInsufficientBalance)
	}
	a.Balance -= amount
	return nil
}

// VerifyInvariant checks that the cash balance is non-negative.
func (a *Account) VerifyInvariant() error {
	if a.Balance.IsNegative() {
		return fmt.Errorf("account %d balance %s: %w", a.ID, a.Balance, ErrLedgerInvariant)
	}
	return nil
}

// LockAsset moves amount from available to locked for an open sell order.
func (h *AssetHolding) LockAsset(amount Units) error {
	if amount.IsNegative() {
		return fmt.Errorf("lock asset: negative amount %s: %w", amount, ErrLedgerInvariant)
	}
	if h.Available < amount {
		return fmt.Errorf("account %d needs %s %s, has %s: %w",
			h.AccountID, amount, h.Symbol, h.Available, ErrInsufficientAsset)
	}
	locked, err := h.Locked.Add(amount)
	if err != nil {
		return err
	}
	h.Available -= amount
	h.Locked = locked
	return nil
}

// ReleaseAsset moves amount from locked back to available (cancel path).
func (h *AssetHolding) ReleaseAsset(amount Units) error {
	if amount.IsNegative() {
		return fmt.Errorf("release asset: negative amount %s: %w", amount, ErrLedgerInvariant)
	}
	if h.Locked < amount {
		return fmt.Errorf("account %d release %s %s exceeds locked %s: %w",
			h.AccountID, amount, h.Symbol, h.Locked, ErrLedgerInvariant)
	}
	available, err := h.Available.Add(amount)
	if err != nil {
		return err
	}
	h.Locked -= amount
	h.Available = available
	return nil
}

// VerifyInvariant checks that both halves of the holding are non-negative.
func (h *AssetHolding) VerifyInvariant() error {
	if h.Available.IsNegative() {
		return fmt.Errorf("holding %d/%s available %s: %w", h.AccountID, h.Symbol, h.Available, ErrLedgerInvariant)
	}
	if h.Locked.IsNegative() {
		return fmt.Errorf("holding %d/%s locked %s: %w", h.AccountID, h.Symbol, h.Locked, ErrLedgerInvariant)
	}
	return nil
}

// TransferAssetOnFill delivers amount to the buyer's available quantity and
// consumes the same amount from the seller's locked quantity. The seller's
// available quantity is never touched.
func TransferAssetOnFill(buyer, seller *AssetHolding, amount Units) error {
	if buyer.Symbol != seller.Symbol {
		return fmt.Errorf("transfer between %s and %s: %w", buyer.Symbol, seller.Symbol, ErrLedgerInvariant)
	}
	if amount.IsNegative() {
		return fmt.Errorf("transfer asset: negative amount %s: %w", amount, ErrLedgerInvariant)
	}
	if seller.Locked < amount {
		return fmt.Errorf("account %d delivers %s %s, locked %s: %w",
			seller.AccountID, amount, seller.Symbol, seller.Locked, ErrLedgerInvariant)
	}
	available, err := buyer.Available.Add(amount)
	if err != nil {
		return err
	}
	buyer.Available = available
	seller.Locked -= amount
	return nil
}
