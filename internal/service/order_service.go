package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"exchange_go/internal/domain"
	"exchange_go/internal/engine"
	"exchange_go/internal/infra"
	"exchange_go/internal/infra/storage"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// OrderService owns the order lifecycle: validation, reservation of funds
// or assets, persistence, cancellation and the read-side views.
type OrderService struct {
	store   *storage.Storage
	matcher *engine.Matcher
	symbols []string
}

// NewOrderService creates an order service trading the given symbols.
func NewOrderService(store *storage.Storage, matcher *engine.Matcher, symbols []string) *OrderService {
	return &OrderService{
		store:   store,
		matcher: matcher,
		symbols: slices.Clone(symbols),
	}
}

// Symbols returns the tradeable instruments.
func (s *OrderService) Symbols() []string {
	return slices.Clone(s.symbols)
}

func (s *OrderService) validate(symbol string, side domain.Side, price, quantity domain.Units) error {
	if !slices.Contains(s.symbols, symbol) {
		return fmt.Errorf("unknown symbol %q: %w", symbol, domain.ErrInvalidOrder)
	}
	if !side.Valid() {
		return fmt.Errorf("unknown side %q: %w", side, domain.ErrInvalidOrder)
	}
	if !price.IsPositive() {
		return fmt.Errorf("price must be positive, got %s: %w", price, domain.ErrInvalidOrder)
	}
	if !quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive, got %s: %w", quantity, domain.ErrInvalidOrder)
	}
	return nil
}

// PlaceOrder validates and books a limit order, reserving cash for a buy or
// instrument quantity for a sell, then makes one synchronous match attempt.
// It returns the order as it stands after that attempt.
//
// The cash a buy reserves is decided by the commission policy and recorded on
// the order, so settlement and cancellation release exactly that amount.
//
// When the order is booked but the match attempt fails, the open order is
// returned together with a *domain.MatchError; MatchOrder retries it.
func (s *OrderService) PlaceOrder(ctx context.Context, accountID uint64, symbol string, side domain.Side, price, quantity domain.Units) (*domain.Order, error) {
	if err := s.validate(symbol, side, price, quantity); err != nil {
		infra.GlobalMetrics.RecordOrderRejected()
		return nil, err
	}

	order := &domain.Order{
		AccountID: accountID,
		Symbol:    symbol,
		Side:      side,
		Status:    domain.StatusOpen,
		Price:     price,
		Quantity:  quantity,
		Reserved:  quantity,
	}
	if side == domain.SideBuy {
		notional, err := order.Notional()
		if err != nil {
			infra.GlobalMetrics.RecordOrderRejected()
			return nil, fmt.Errorf("order notional: %v: %w", err, domain.ErrInvalidOrder)
		}
		if !notional.IsPositive() {
			infra.GlobalMetrics.RecordOrderRejected()
			return nil, fmt.Errorf("order notional rounds to zero: %w", domain.ErrInvalidOrder)
		}
		if order.Reserved, err = s.matcher.Policy().Reserve(notional); err != nil {
			infra.GlobalMetrics.RecordOrderRejected()
			return nil, fmt.Errorf("order reservation: %v: %w", err, domain.ErrInvalidOrder)
		}
	}

	err := s.store.Transaction(ctx, "place", func(tx *storage.Tx) error {
		account, err := tx.LockAccount(accountID)
		if err != nil {
			return err
		}

		if side == domain.SideBuy {
			if err := account.LockFunds(order.Reserved); err != nil {
				return err
			}
			if err := tx.SaveAccount(account); err != nil {
				return err
			}
		} else {
			holding, err := tx.LockHolding(accountID, symbol)
			if err != nil {
				return err
			}
			if err := holding.LockAsset(order.Reserved); err != nil {
				return err
			}
			if err := tx.SaveHolding(holding); err != nil {
				return err
			}
		}

		return tx.CreateOrder(order)
	})
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	infra.GlobalMetrics.RecordOrderPlaced()
	slog.Info("ORDER_PLACED",
		slog.Uint64("order_id", order.ID),
		slog.Uint64("account_id", accountID),
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.String("price", price.String()),
		slog.String("quantity", quantity.String()),
		slog.String("reserved", order.Reserved.String()),
	)

	return s.match(ctx, order)
}

// MatchOrder makes another match attempt for an open order of accountID,
// typically after PlaceOrder reported a *domain.MatchError.
func (s *OrderService) MatchOrder(ctx context.Context, accountID, orderID uint64) (*domain.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.AccountID != accountID {
		return nil, fmt.Errorf("order %d belongs to another account: %w", orderID, domain.ErrForbidden)
	}
	if !order.IsOpen() {
		return nil, fmt.Errorf("match order %d in status %s: %w", orderID, order.Status, domain.ErrInvalidState)
	}
	return s.match(ctx, order)
}

// match runs one match attempt for a committed open order and returns the
// order as it stands afterwards.
func (s *OrderService) match(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	trade, err := s.matcher.Match(ctx, order.ID)
	if err != nil {
		slog.Error("MATCH_FAILED",
			slog.Uint64("order_id", order.ID),
			slog.Any("error", err),
		)
		return order, &domain.MatchError{OrderID: order.ID, Err: err}
	}
	if trade == nil {
		return order, nil
	}

	current, err := s.store.GetOrder(ctx, order.ID)
	if err != nil {
		// The trade committed; only the re-read failed.
		order.Status = domain.StatusFilled
		return order, nil
	}
	return current, nil
}

// CancelOrder cancels an open order owned by accountID and releases exactly
// what placing it reserved.
func (s *OrderService) CancelOrder(ctx context.Context, accountID, orderID uint64) (*domain.Order, error) {
	var cancelled *domain.Order

	err := s.store.Transaction(ctx, "cancel", func(tx *storage.Tx) error {
		order, err := tx.LockOrder(orderID)
		if err != nil {
			return err
		}
		if order.AccountID != accountID {
			return fmt.Errorf("order %d belongs to another account: %w", orderID, domain.ErrForbidden)
		}
		if err := order.Cancel(); err != nil {
			return err
		}

		reserve, err := order.Reservation()
		if err != nil {
			return err
		}

		account, err := tx.LockAccount(accountID)
		if err != nil {
			return err
		}
		if order.Side == domain.SideBuy {
			if err := account.UnlockFunds(reserve); err != nil {
				return err
			}
			if err := tx.SaveAccount(account); err != nil {
				return err
			}
		} else {
			holding, err := tx.LockHolding(accountID, order.Symbol)
			if err != nil {
				return err
			}
			if err := holding.ReleaseAsset(reserve); err != nil {
				return err
			}
			if err := tx.SaveHolding(holding); err != nil {
				return err
			}
		}

		if err := tx.SaveOrder(order); err != nil {
			return err
		}
		cancelled = order
		return nil
	})
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	infra.GlobalMetrics.RecordOrderCancelled()
	slog.Info("ORDER_CANCELLED",
		slog.Uint64("order_id", orderID),
		slog.Uint64("account_id", accountID),
	)
	return cancelled, nil
}

func (s *OrderService) recordFailure(err error) {
	switch {
	case domain.IsRetriable(err):
		infra.GlobalMetrics.RecordTransient()
		infra.GlobalMetrics.RecordError()
	case isBusinessError(err):
		infra.GlobalMetrics.RecordOrderRejected()
	default:
		infra.GlobalMetrics.RecordError()
	}
}

func isBusinessError(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidOrder,
		domain.ErrInsufficientBalance,
		domain.ErrInsufficientAsset,
		domain.ErrNotFound,
		domain.ErrForbidden,
		domain.ErrInvalidState,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ListOrders returns an account's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, accountID uint64, f domain.OrderFilter) ([]domain.Order, error) {
	if f.Side != "" && !f.Side.Valid() {
		return nil, fmt.Errorf("unknown side %q: %w", f.Side, domain.ErrInvalidOrder)
	}
	switch f.Status {
	case "", domain.StatusOpen, domain.StatusFilled, domain.StatusCancelled:
	default:
		return nil, fmt.Errorf("unknown status %q: %w", f.Status, domain.ErrInvalidOrder)
	}
	return s.store.ListOrders(ctx, accountID, f)
}

// OrderBook returns the open orders of symbol (all symbols when empty):
// bids best price first, then asks best price first, FIFO within a price.
func (s *OrderService) OrderBook(ctx context.Context, symbol string) ([]domain.Order, error) {
	if symbol != "" && !slices.Contains(s.symbols, symbol) {
		return nil, fmt.Errorf("unknown symbol %q: %w", symbol, domain.ErrInvalidOrder)
	}

	orders, err := s.store.OpenOrders(ctx, symbol)
	if err != nil {
		return nil, err
	}

	// Storage returns FIFO order; a stable sort keeps it within equal prices.
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if a.Side != b.Side {
			return a.Side == domain.SideBuy
		}
		if a.Price != b.Price {
			if a.Side == domain.SideBuy {
				return a.Price > b.Price
			}
			return a.Price < b.Price
		}
		return false
	})
	return orders, nil
}

// Profile returns the account and all of its holdings.
func (s *OrderService) Profile(ctx context.Context, accountID uint64) (*domain.Profile, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.store.ListHoldings(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if holdings == nil {
		holdings = []domain.AssetHolding{}
	}
	return &domain.Profile{Account: *account, Holdings: holdings}, nil
}

// Trades returns one page of the trade history, newest first.
// page starts at 1; perPage defaults to DefaultPerPage and is capped at MaxPerPage.
func (s *OrderService) Trades(ctx context.Context, page, perPage int) (*domain.TradePage, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	perPage = min(perPage, MaxPerPage)

	trades, total, err := s.store.ListTrades(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return nil, err
	}
	if trades == nil {
		trades = []domain.Trade{}
	}

	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}

	return &domain.TradePage{
		Trades:   trades,
		Page:     page,
		PerPage:  perPage,
		LastPage: lastPage,
		Total:    total,
	}, nil
}

// Summary aggregates the whole trade history.
func (s *OrderService) Summary(ctx context.Context) (*domain.TradeSummary, error) {
	count, volume, commission, err := s.store.TradeTotals(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.TradeSummary{
		TotalTrades:     count,
		TotalVolume:     volume,
		TotalCommission: commission,
		CommissionRate:  s.matcher.Policy().Rate().Shift(2).String() + "%",
	}, nil
}
