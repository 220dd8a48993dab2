package storage

import (
	"errors"
	"fmt"
	"slices"

	"exchange_go/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Tx is one unit of work. Every Lock* read takes an exclusive row lock that
// is held until commit or rollback.
//
// Lock order across the whole program: orders (ascending id), then accounts
// (ascending id), then asset holdings (ascending account id). A transaction
// only ever moves forward in that order, which keeps lock acquisition free of
// deadlocks whichever side initiated a match.
type Tx struct {
	db *gorm.DB
}

func (tx *Tx) forUpdate() *gorm.DB {
	return tx.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ======================================================================================
// Orders
// ======================================================================================

// GetOrder reads an order without locking it.
func (tx *Tx) GetOrder(id uint64) (*domain.Order, error) {
	var o domain.Order
	if err := tx.db.Take(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &o, nil
}

// LockOrder reads and locks an order.
func (tx *Tx) LockOrder(id uint64) (*domain.Order, error) {
	var o domain.Order
	if err := tx.forUpdate().Take(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &o, nil
}

// LockOrders locks the given orders one by one in ascending id order.
func (tx *Tx) LockOrders(ids ...uint64) (map[uint64]*domain.Order, error) {
	out := make(map[uint64]*domain.Order, len(ids))
	for _, id := range sortedUnique(ids) {
		o, err := tx.LockOrder(id)
		if err != nil {
			return nil, err
		}
		out[id] = o
	}
	return out, nil
}

// FindCounterOrder returns the best open counter-order for o, or nil.
//
// Eligible: same symbol, opposite side, open, identical quantity, another
// account, and a crossing price. Best price for o's side wins, then the
// earliest created_at, then the lowest id. The row is not locked here;
// the caller locks it in global order and re-checks its status.
func (tx *Tx) FindCounterOrder(o *domain.Order) (*domain.Order, error) {
	q := tx.db.Where("symbol = ? AND status = ? AND quantity = ? AND account_id <> ?",
		o.Symbol, domain.StatusOpen, o.Quantity, o.AccountID)

	if o.Side == domain.SideBuy {
		q = q.Where("side = ? AND price <= ?", domain.SideSell, o.Price).Order("price ASC")
	} else {
		q = q.Where("side = ? AND price >= ?", domain.SideBuy, o.Price).Order("price DESC")
	}

	var found []domain.Order
	if err := q.Order("created_at ASC").Order("id ASC").Limit(1).Find(&found).Error; err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// CreateOrder inserts a new order and fills in its id and timestamps.
func (tx *Tx) CreateOrder(o *domain.Order) error {
	return tx.db.Create(o).Error
}

// SaveOrder persists a status change.
func (tx *Tx) SaveOrder(o *domain.Order) error {
	return tx.db.Model(o).Update("status", o.Status).Error
}

// ======================================================================================
// Accounts
// ======================================================================================

// LockAccount reads and locks an account.
func (tx *Tx) LockAccount(id uint64) (*domain.Account, error) {
	var a domain.Account
	if err := tx.forUpdate().Take(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account %d: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}

// LockAccounts locks the given accounts one by one in ascending id order.
func (tx *Tx) LockAccounts(ids ...uint64) (map[uint64]*domain.Account, error) {
	out := make(map[uint64]*domain.Account, len(ids))
	for _, id := range sortedUnique(ids) {
		a, err := tx.LockAccount(id)
		if err != nil {
			return nil, err
		}
		out[id] = a
	}
	return out, nil
}

// SaveAccount verifies the ledger invariant and persists the balance.
func (tx *Tx) SaveAccount(a *domain.Account) error {
	if err := a.VerifyInvariant(); err != nil {
		return err
	}
	return tx.db.Model(a).Update("balance", a.Balance).Error
}

// ======================================================================================
// Asset holdings
// ======================================================================================

// LockHolding reads and locks the (account, symbol) holding, creating it with
// zero balances first if it does not exist yet.
func (tx *Tx) LockHolding(accountID uint64, symbol string) (*domain.AssetHolding, error) {
	h, err := tx.lockHolding(accountID, symbol)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	zero := &domain.AssetHolding{AccountID: accountID, Symbol: symbol}
	if err := tx.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "symbol"}},
		DoNothing: true,
	}).Create(zero).Error; err != nil {
		return nil, err
	}
	return tx.lockHolding(accountID, symbol)
}

func (tx *Tx) lockHolding(accountID uint64, symbol string) (*domain.AssetHolding, error) {
	var h domain.AssetHolding
	err := tx.forUpdate().Take(&h, "account_id = ? AND symbol = ?", accountID, symbol).Error
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// LockHoldings locks the symbol holdings of the given accounts in ascending account id order.
func (tx *Tx) LockHoldings(symbol string, accountIDs ...uint64) (map[uint64]*domain.AssetHolding, error) {
	out := make(map[uint64]*domain.AssetHolding, len(accountIDs))
	for _, id := range sortedUnique(accountIDs) {
		h, err := tx.LockHolding(id, symbol)
		if err != nil {
			return nil, err
		}
		out[id] = h
	}
	return out, nil
}

// SaveHolding verifies the ledger invariant and persists both halves.
func (tx *Tx) SaveHolding(h *domain.AssetHolding) error {
	if err := h.VerifyInvariant(); err != nil {
		return err
	}
	return tx.db.Model(h).Updates(map[string]any{
		"available": h.Available,
		"locked":    h.Locked,
	}).Error
}

// ======================================================================================
// Trades
// ======================================================================================

// CreateTrade inserts the trade record of a match.
func (tx *Tx) CreateTrade(t *domain.Trade) error {
	return tx.db.Create(t).Error
}

func sortedUnique(ids []uint64) []uint64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
