package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"exchange_go/internal/domain"
	"exchange_go/internal/event"
	"exchange_go/internal/infra"
	"exchange_go/internal/infra/storage"
)

// errCounterGone aborts a match whose counter-order stopped being open
// between the search and the lock. The whole transaction is retried.
var errCounterGone = errors.New("counter order no longer open")

// Matcher executes at most one full-amount trade for an incoming order.
//
// There is no in-memory book: every attempt re-derives the best counter-order
// with one query and settles both sides inside a single transaction. Rows are
// locked orders first, then accounts, then holdings, each group in ascending
// id order, so two matches racing over shared rows cannot deadlock.
type Matcher struct {
	store         *storage.Storage
	policy        CommissionPolicy
	notifier      domain.Notifier
	attempts      int
	notifyTimeout time.Duration
}

// DefaultNotifyTimeout bounds the delivery of one settlement to the notifier.
const DefaultNotifyTimeout = 2 * time.Second

// NewMatcher creates a matcher. notifier may be nil.
func NewMatcher(store *storage.Storage, policy CommissionPolicy, notifier domain.Notifier, attempts int) *Matcher {
	if attempts <= 0 {
		attempts = 1
	}
	return &Matcher{
		store:         store,
		policy:        policy,
		notifier:      notifier,
		attempts:      attempts,
		notifyTimeout: DefaultNotifyTimeout,
	}
}

// SetNotifyTimeout bounds the delivery of each settlement. Non-positive
// values are ignored.
func (m *Matcher) SetNotifyTimeout(d time.Duration) {
	if d > 0 {
		m.notifyTimeout = d
	}
}

// NotifyTimeout returns the per-settlement delivery bound.
func (m *Matcher) NotifyTimeout() time.Duration {
	return m.notifyTimeout
}

// Policy returns the commission policy in use.
func (m *Matcher) Policy() CommissionPolicy {
	return m.policy
}

// Match tries to fill orderID against the best open counter-order.
// It returns (nil, nil) when nothing is eligible or the order is no longer open.
// The settlement is handed to the notifier only after the trade has committed.
func (m *Matcher) Match(ctx context.Context, orderID uint64) (*domain.Trade, error) {
	start := time.Now()

	box := event.AcquireOutbox()
	defer event.ReleaseOutbox(box)

	for attempt := 1; attempt <= m.attempts; attempt++ {
		var trade *domain.Trade
		err := m.store.Transaction(ctx, "match", func(tx *storage.Tx) error {
			box.Discard()
			t, err := m.matchOnce(tx, orderID, box)
			trade = t
			return err
		})

		if errors.Is(err, errCounterGone) {
			slog.Debug("MATCH_RESTART",
				slog.Uint64("order_id", orderID),
				slog.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			infra.GlobalMetrics.RecordError()
			if domain.IsRetriable(err) {
				infra.GlobalMetrics.RecordTransient()
			}
			return nil, err
		}

		infra.GlobalMetrics.RecordMatch(trade != nil, time.Since(start))
		if trade == nil {
			return nil, nil
		}

		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.notifyTimeout)
		err = box.Flush(notifyCtx, m.notifier)
		cancel()
		if err != nil {
			infra.GlobalMetrics.RecordNotifyFailure()
			slog.Warn("SETTLEMENT_NOTIFY_FAILED",
				slog.Uint64("trade_id", trade.ID),
				slog.Any("error", err),
			)
		}

		slog.Info("TRADE_EXECUTED",
			slog.Uint64("trade_id", trade.ID),
			slog.Uint64("buy_order_id", trade.BuyOrderID),
			slog.Uint64("sell_order_id", trade.SellOrderID),
			slog.String("symbol", trade.Symbol),
			slog.String("price", trade.Price.String()),
			slog.String("quantity", trade.Quantity.String()),
			slog.String("commission", trade.Commission.String()),
		)
		return trade, nil
	}

	infra.GlobalMetrics.RecordTransient()
	return nil, &domain.TransientError{
		Op:  "match",
		Err: fmt.Errorf("order %d: %w after %d attempts", orderID, errCounterGone, m.attempts),
	}
}

func (m *Matcher) matchOnce(tx *storage.Tx, orderID uint64, box *event.Outbox) (*domain.Trade, error) {
	// 1. Unlocked read and counter search
	incoming, err := tx.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if !incoming.IsOpen() {
		return nil, nil
	}

	counter, err := tx.FindCounterOrder(incoming)
	if err != nil {
		return nil, fmt.Errorf("find counter for order %d: %w", orderID, err)
	}
	if counter == nil {
		return nil, nil
	}

	// 2. Lock both orders in id order and re-check what the search saw
	orders, err := tx.LockOrders(incoming.ID, counter.ID)
	if err != nil {
		return nil, err
	}
	incoming, counter = orders[incoming.ID], orders[counter.ID]
	if !incoming.IsOpen() {
		return nil, nil
	}
	if !counter.IsOpen() {
		return nil, errCounterGone
	}

	buy, sell := incoming, counter
	if incoming.Side == domain.SideSell {
		buy, sell = counter, incoming
	}

	// 3. Accounts, then holdings
	accounts, err := tx.LockAccounts(buy.AccountID, sell.AccountID)
	if err != nil {
		return nil, err
	}
	holdings, err := tx.LockHoldings(incoming.Symbol, buy.AccountID, sell.AccountID)
	if err != nil {
		return nil, err
	}
	buyer, seller := accounts[buy.AccountID], accounts[sell.AccountID]
	buyerAsset, sellerAsset := holdings[buy.AccountID], holdings[sell.AccountID]

	// 4. Settle
	reserved, err := buy.Reservation()
	if err != nil {
		return nil, err
	}
	amounts, err := m.policy.Settle(Quote{
		BuyPrice:  buy.Price,
		ExecPrice: counter.Price,
		Quantity:  incoming.Quantity,
		Reserved:  reserved,
	})
	if err != nil {
		return nil, err
	}

	if amounts.BuyerRefund.IsPositive() {
		if err := buyer.UnlockFunds(amounts.BuyerRefund); err != nil {
			return nil, err
		}
	}
	if amounts.BuyerDebit.IsPositive() {
		if err := buyer.DebitCash(amounts.BuyerDebit); err != nil {
			return nil, err
		}
	}
	if err := seller.CreditCash(amounts.SellerCredit); err != nil {
		return nil, err
	}
	if err := domain.TransferAssetOnFill(buyerAsset, sellerAsset, incoming.Quantity); err != nil {
		return nil, err
	}
	if err := buy.Fill(); err != nil {
		return nil, err
	}
	if err := sell.Fill(); err != nil {
		return nil, err
	}

	// 5. Persist
	for _, o := range []*domain.Order{buy, sell} {
		if err := tx.SaveOrder(o); err != nil {
			return nil, err
		}
	}
	for _, a := range []*domain.Account{buyer, seller} {
		if err := tx.SaveAccount(a); err != nil {
			return nil, err
		}
	}
	for _, h := range []*domain.AssetHolding{buyerAsset, sellerAsset} {
		if err := tx.SaveHolding(h); err != nil {
			return nil, err
		}
	}

	trade := &domain.Trade{
		BuyOrderID:  buy.ID,
		SellOrderID: sell.ID,
		Symbol:      incoming.Symbol,
		Price:       counter.Price,
		Quantity:    incoming.Quantity,
		USDVolume:   amounts.Volume,
		Commission:  amounts.Commission,
	}
	if err := tx.CreateTrade(trade); err != nil {
		return nil, err
	}

	box.Stage(domain.NewSettlement(trade, buyer, buyerAsset, buy, seller, sellerAsset, sell))
	return trade, nil
}
