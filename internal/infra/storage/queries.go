package storage

import (
	"context"
	"errors"
	"fmt"

	"exchange_go/internal/domain"

	"gorm.io/gorm"
)

// Read-only queries. They run outside any unit of work and take no locks.

// GetOrder retrieves an order by id.
func (s *Storage) GetOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	var o domain.Order
	err := s.db.WithContext(ctx).Take(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders returns an account's orders, newest first.
func (s *Storage) ListOrders(ctx context.Context, accountID uint64, f domain.OrderFilter) ([]domain.Order, error) {
	q := s.db.WithContext(ctx).Where("account_id = ?", accountID)
	if f.Symbol != "" {
		q = q.Where("symbol = ?", f.Symbol)
	}
	if f.Side != "" {
		q = q.Where("side = ?", f.Side)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var orders []domain.Order
	err := q.Order("created_at DESC").Order("id DESC").Find(&orders).Error
	return orders, err
}

// OpenOrders returns every open order, optionally restricted to one symbol,
// in FIFO order. Book ordering by side and price is left to the caller.
func (s *Storage) OpenOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	q := s.db.WithContext(ctx).Where("status = ?", domain.StatusOpen)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}

	var orders []domain.Order
	err := q.Order("created_at ASC").Order("id ASC").Find(&orders).Error
	return orders, err
}

// GetAccount retrieves an account by id.
func (s *Storage) GetAccount(ctx context.Context, id uint64) (*domain.Account, error) {
	var a domain.Account
	err := s.db.WithContext(ctx).Take(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("account %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetHolding retrieves one holding; a missing row reads as zero.
func (s *Storage) GetHolding(ctx context.Context, accountID uint64, symbol string) (*domain.AssetHolding, error) {
	var found []domain.AssetHolding
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND symbol = ?", accountID, symbol).
		Limit(1).Find(&found).Error
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return &domain.AssetHolding{AccountID: accountID, Symbol: symbol}, nil
	}
	return &found[0], nil
}

// ListHoldings returns all holdings of an account sorted by symbol.
func (s *Storage) ListHoldings(ctx context.Context, accountID uint64) ([]domain.AssetHolding, error) {
	var holdings []domain.AssetHolding
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("symbol ASC").
		Find(&holdings).Error
	return holdings, err
}

// ListTrades returns trades newest first along with the total count.
func (s *Storage) ListTrades(ctx context.Context, offset, limit int) ([]domain.Trade, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&domain.Trade{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var trades []domain.Trade
	err := s.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&trades).Error
	return trades, total, err
}

// TradeTotals sums the count, USD volume and commission of all trades.
func (s *Storage) TradeTotals(ctx context.Context) (count int64, volume, commission domain.Units, err error) {
	var row struct {
		Count      int64
		Volume     int64
		Commission int64
	}
	err = s.db.WithContext(ctx).Model(&domain.Trade{}).
		Select("COUNT(*) AS count, COALESCE(SUM(usd_volume), 0) AS volume, COALESCE(SUM(commission), 0) AS commission").
		Scan(&row).Error
	if err != nil {
		return 0, 0, 0, err
	}
	return row.Count, domain.Units(row.Volume), domain.Units(row.Commission), nil
}

// CountAccounts returns the number of accounts.
func (s *Storage) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Account{}).Count(&n).Error
	return n, err
}

// CreateAccount inserts an account together with its initial holdings.
func (s *Storage) CreateAccount(ctx context.Context, a *domain.Account, holdings ...domain.AssetHolding) error {
	return s.Transaction(ctx, "create account", func(tx *Tx) error {
		if err := a.VerifyInvariant(); err != nil {
			return err
		}
		if err := tx.db.Create(a).Error; err != nil {
			return err
		}
		for i := range holdings {
			h := holdings[i]
			h.AccountID = a.ID
			if err := h.VerifyInvariant(); err != nil {
				return err
			}
			if err := tx.db.Create(&h).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
