package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"exchange_go/internal/domain"
	"exchange_go/internal/engine"
	"exchange_go/internal/infra/storage"

	"github.com/shopspring/decimal"
)

var u = domain.MustUnits

func newTestService(t *testing.T, policy string) (*OrderService, *storage.Storage) {
	t.Helper()
	store, err := storage.NewStorage(storage.DriverSQLite, filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})

	return newServiceOn(t, store, policy), store
}

// newServiceOn builds a service over an existing store.
func newServiceOn(t *testing.T, store *storage.Storage, policy string) *OrderService {
	t.Helper()
	p, err := engine.NewCommissionPolicy(policy, decimal.RequireFromString("0.015"))
	if err != nil {
		t.Fatal(err)
	}
	m := engine.NewMatcher(store, p, nil, 5)
	return NewOrderService(store, m, []string{"BTC", "ETH"})
}

func newAccount(t *testing.T, store *storage.Storage, balance, btc string) uint64 {
	t.Helper()
	a := &domain.Account{Name: "trader", Balance: u(balance)}
	var holdings []domain.AssetHolding
	if btc != "" {
		holdings = append(holdings, domain.AssetHolding{Symbol: "BTC", Available: u(btc)})
	}
	if err := store.CreateAccount(context.Background(), a, holdings...); err != nil {
		t.Fatal(err)
	}
	return a.ID
}

func balance(t *testing.T, store *storage.Storage, id uint64) domain.Units {
	t.Helper()
	a, err := store.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return a.Balance
}

func holding(t *testing.T, store *storage.Storage, id uint64) *domain.AssetHolding {
	t.Helper()
	h, err := store.GetHolding(context.Background(), id, "BTC")
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestPlaceOrder_Validation(t *testing.T) {
	svc, store := newTestService(t, engine.PolicySeller)
	acct := newAccount(t, store, "10000", "1")

	tests := []struct {
		name   string
		symbol string
		side   domain.Side
		price  domain.Units
		qty    domain.Units
	}{
		{"unknown symbol", "DOGE", domain.SideBuy, u("1"), u("1")},
		{"unknown side", "BTC", domain.Side("hold"), u("1"), u("1")},
		{"zero price", "BTC", domain.SideBuy, 0, u("1")},
		{"negative quantity", "BTC", domain.SideSell, u("1"), u("-1")},
		{"notional truncates to zero", "BTC", domain.SideBuy, u("0.00000001"), u("0.00000001")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PlaceOrder(context.Background(), acct, tt.symbol, tt.side, tt.price, tt.qty)
			if !errors.Is(err, domain.ErrInvalidOrder) {
				t.Errorf("expected ErrInvalidOrder, got %v", err)
			}
		})
	}

	orders, _ := svc.ListOrders(context.Background(), acct, domain.OrderFilter{})
	if len(orders) != 0 {
		t.Errorf("rejected orders were stored: %d", len(orders))
	}
	if balance(t, store, acct) != u("10000") {
		t.Error("rejected orders touched the balance")
	}
}

func TestPlaceOrder_BuyReservesCash(t *testing.T) {
	svc, store := newTestService(t, engine.PolicySeller)
	acct := newAccount(t, store, "10000", "")

	order, err := svc.PlaceOrder(context.Background(), acct, "BTC", domain.SideBuy, u("95000"), u("0.1"))
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != domain.StatusOpen {
		t.Errorf("status = %s", order.Status)
	}
	if got := balance(t, store, acct); got.String() != "500.00000000" {
		t.Errorf("balance = %s", got)
	}
}

func TestPlaceOrder_Insufficient(t *testing.T) {
	svc, store := newTestService(t, engine.PolicySeller)
	acct := newAccount(t, store, "100", "0.2")
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, acct, "BTC", domain.SideBuy, u("1000"), u("0.2"))
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	_, err = svc.PlaceOrder(ctx, acct, "BTC", domain.SideSell, u("1000"), u("0.3"))
	if !errors.Is(err, domain.ErrInsufficientAsset) {
		t.Errorf("expected ErrInsufficientAsset, got %v", err)
	}
	_, err = svc.PlaceOrder(ctx, acct, "ETH", domain.SideSell, u("10"), u("1"))
	if !errors.Is(err, domain.ErrInsufficientAsset) {
		t.Errorf("selling an unheld symbol: expected ErrInsufficientAsset, got %v", err)
	}
	_, err = svc.PlaceOrder(ctx, 999, "BTC", domain.SideBuy, u("1"), u("1"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown account: expected ErrNotFound, got %v", err)
	}

	if balance(t, store, acct) != u("100") {
		t.Error("failed placement changed the balance")
	}
	h := holding(t, store, acct)
	if h.Available != u("0.2") || !h.Locked.IsZero() {
		t.Errorf("failed placement changed the holding: %s/%s", h.Available, h.Locked)
	}
}

func TestPlaceOrder_FullScenario(t *testing.T) {
	tests := []struct {
		policy        string
		sellerBalance string
		buyerBalance  string
	}{
		{engine.PolicySeller, "492.50000000", "9500.00000000"},
		{engine.PolicyBuyer, "500.00000000", "9492.50000000"},
	}

	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			svc, store := newTestService(t, tt.policy)
			ctx := context.Background()
			seller := newAccount(t, store, "0", "1")
			buyer := newAccount(t, store, "10000", "")

			sell, err := svc.PlaceOrder(ctx, seller, "BTC", domain.SideSell, u("1000"), u("0.5"))
			if err != nil {
				t.Fatal(err)
			}
			h := holding(t, store, seller)
			if h.Available.String() != "0.50000000" || h.Locked.String() != "0.50000000" {
				t.Fatalf("seller holding after placement = %s/%s", h.Available, h.Locked)
			}

			buy, err := svc.PlaceOrder(ctx, buyer, "BTC", domain.SideBuy, u("1000"), u("0.5"))
			if err != nil {
				t.Fatal(err)
			}
			if buy.Status != domain.StatusFilled {
				t.Fatalf("buy status = %s", buy.Status)
			}

			page, err := svc.Trades(ctx, 1, 10)
			if err != nil {
				t.Fatal(err)
			}
			if page.Total != 1 {
				t.Fatalf("trades = %d", page.Total)
			}
			trade := page.Trades[0]
			if trade.USDVolume.String() != "500.00000000" || trade.Commission.String() != "7.50000000" {
				t.Errorf("trade = %s/%s", trade.USDVolume, trade.Commission)
			}
			if trade.SellOrderID != sell.ID {
				t.Errorf("sell order = %d", trade.SellOrderID)
			}

			if got := balance(t, store, seller).String(); got != tt.sellerBalance {
				t.Errorf("seller balance = %s, want %s", got, tt.sellerBalance)
			}
			if got := balance(t, store, buyer).String(); got != tt.buyerBalance {
				t.Errorf("buyer balance = %s, want %s", got, tt.buyerBalance)
			}
			if got := holding(t, store, buyer).Available.String(); got != "0.50000000" {
				t.Errorf("buyer asset = %s", got)
			}
			sh := holding(t, store, seller)
			if sh.Available.String() != "0.50000000" || sh.Locked.String() != "0.00000000" {
				t.Errorf("seller asset = %s/%s", sh.Available, sh.Locked)
			}

			total := balance(t, store, seller) + balance(t, store, buyer) + trade.Commission
			if total != u("10000") {
				t.Errorf("cash not conserved: %s", total)
			}
		})
	}
}

func TestPlaceOrder_PriceImprovement(t *testing.T) {
	svc, store := newTestService(t, engine.PolicySeller)
	ctx := context.Background()
	seller := newAccount(t, store, "0", "1")
	buyer := newAccount(t, store, "10000", "")

	if _, err := svc.PlaceOrder(ctx, seller, "BTC", domain.SideSell, u("900"), u("0.5")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.PlaceOrder(ctx, buyer, "BTC", domain.SideBuy, u("1000"), u("0.5")); err != nil {
		t.Fatal(err)
	}

	page, _ := svc.Trades(ctx, 1, 10)
	if len(page.Trades) != 1 {
		t.Fatalf("trades = %d", len(page.Trades))
	}
	if page.Trades[0].USDVolume.String() != "450.00000000" {
		t.Errorf("usdVolume = %s", page.Trades[0].USDVolume)
	}
	if page.Trades[0].Price.String() != "900.00000000" {
		t.Errorf("price = %s", page.Trades[0].Price)
	}
	// Only the 50 price difference comes back; the seller bore the commission.
	if got := balance(t, store, buyer).String(); got != "9550.00000000" {
		t.Errorf("buyer balance = %s", got)
	}
	total := balance(t, store, seller) + balance(t, store, buyer) + page.Trades[0].Commission
	if total != u("10000") {
		t.Errorf("cash not conserved: %s", total)
	}
}

func TestPlaceOrder_BuyerPaysReservesCommission(t *testing.T) {
	svc, store := newTestService(t, engine.PolicyBuyer)
	ctx := context.Background()
	seller := newAccount(t, store, "0", "1")
	short := newAccount(t, store, "500", "")
	buyer := newAccount(t, store, "507.5", "")

	if _, err := svc.PlaceOrder(ctx, seller, "BTC", domain.SideSell, u("1000"), u("0.5")); err != nil {
		t.Fatal(err)
	}

	// The notional alone is covered, the commission on top is not.
	_, err := svc.PlaceOrder(ctx, short, "BTC", domain.SideBuy, u("1000"), u("0.5"))
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := balance(t, store, short).String(); got != "500.00000000" {
		t.Errorf("rejected buyer balance = %s", got)
	}
	book, _ := svc.OrderBook(ctx, "BTC")
	if len(book) != 1 {
		t.Errorf("book = %d orders, want only the ask", len(book))
	}

	order, err := svc.PlaceOrder(ctx, buyer, "BTC", domain.SideBuy, u("1000"), u("0.5"))
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != domain.StatusFilled {
		t.Errorf("status = %s", order.Status)
	}
	if got := balance(t, store, buyer).String(); got != "0.00000000" {
		t.Errorf("buyer balance = %s", got)
	}
	if got := balance(t, store, seller).String(); got != "500.00000000" {
		t.Errorf("seller balance = %s", got)
	}
}

func TestCancelOrder_ReleasesRecordedReservation(t *testing.T) {
	svc, store := newTestService(t, engine.PolicyBuyer)
	ctx := context.Background()
	acct := newAccount(t, store, "10000", "")

	order, err := svc.PlaceOrder(ctx, acct, "BTC", domain.SideBuy, u("1000"), u("0.5"))
	if err != nil {
		t.Fatal(err)
	}
	if order.Reserved.String() != "507.50000000" {
		t.Errorf("reserved = %s", order.Reserved)
	}
	if got := balance(t, store, acct).String(); got != "9492.50000000" {
		t.Errorf("balance after placement = %s", got)
	}

	// A service running the other policy still releases what was recorded.
	if _, err := newServiceOn(t, store, engine.PolicySeller).CancelOrder(ctx, acct, order.ID); err != nil {
		t.Fatal(err)
	}
	if got := balance(t, store, acct).String(); got != "10000.00000000" {
		t.Errorf("balance after cancel = %s", got)
	}
}

func TestPlaceOrder_MatchFailureIsReported(t *testing.T) {
	legacy, store := newTestService(t, engine.PolicySeller)
	svc := newServiceOn(t, store, engine.PolicyBuyer)
	ctx := context.Background()
	buyer := newAccount(t, store, "500", "")
	seller := newAccount(t, store, "0", "1")
	other := newAccount(t, store, "0", "")

	// Booked with only the notional reserved and no cash left for a buyer-paid commission.
	buy, err := legacy.PlaceOrder(ctx, buyer, "BTC", domain.SideBuy, u("1000"), u("0.5"))
	if err != nil {
		t.Fatal(err)
	}

	sell, err := svc.PlaceOrder(ctx, seller, "BTC", domain.SideSell, u("1000"), u("0.5"))
	var me *domain.MatchError
	if !errors.As(err, &me) {
		t.Fatalf("expected MatchError, got %v", err)
	}
	if sell == nil || me.OrderID != sell.ID || sell.Status != domain.StatusOpen {
		t.Fatalf("booked order not returned with the error: %+v %+v", sell, me)
	}
	if !errors.Is(err, domain.ErrInsufficientBalance) || domain.IsRetriable(err) {
		t.Errorf("cause = %v, retriable = %v", err, domain.IsRetriable(err))
	}

	if _, err := svc.MatchOrder(ctx, other, sell.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("foreign retry: expected ErrForbidden, got %v", err)
	}

	// Top the buyer up and retry.
	err = store.Transaction(ctx, "topup", func(tx *storage.Tx) error {
		a, err := tx.LockAccount(buyer)
		if err != nil {
			return err
		}
		if err := a.CreditCash(u("7.5")); err != nil {
			return err
		}
		return tx.SaveAccount(a)
	})
	if err != nil {
		t.Fatal(err)
	}

	matched, err := svc.MatchOrder(ctx, seller, sell.ID)
	if err != nil {
		t.Fatal(err)
	}
	if matched.Status != domain.StatusFilled {
		t.Errorf("status after retry = %s", matched.Status)
	}
	if o, _ := store.GetOrder(ctx, buy.ID); o.Status != domain.StatusFilled {
		t.Errorf("buy status = %s", o.Status)
	}
	if got := balance(t, store, buyer).String(); got != "0.00000000" {
		t.Errorf("buyer balance = %s", got)
	}

	if _, err := svc.MatchOrder(ctx, seller, sell.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("retrying a filled order: expected ErrInvalidState, got %v", err)
	}
}

func TestPlaceOrder_NoMatch(t *testing.T) {
	svc, store := newTestService(t, engine.PolicySeller)
	ctx := context.Background()
	a := newAccount(t, store, "10000", "1")
	b := newAccount(t, store, "10000", "1")

	sell, _ := svc.PlaceOrder(ctx, a, "BTC", domain.SideSell, u("1000"), u("0.5"))
	partial, _ := svc.PlaceOrder(ctx, b, "BTC", domain.SideBuy, u("1000"), u("0.3"))
	self, _ := svc.PlaceOrder(ctx, a, "BTC", domain.SideBuy, u("1000"), u("0.5"))

	for name, o := range map[string]*domain.Order{"sell": sell, "partial": partial, "self": self} {
		if o == nil || o.Status != domain.StatusOpen {
			t.Errorf("%s order should stay open: %+v", name, o)
		}
	}

	summary, err := svc.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalTrades != 0 {
		t.Errorf("trades = %d", summary.TotalTrades)
	}
}

func TestCancelOrder(t *testing.T) {
	svc, store := newTestService(t, engine.PolicySeller)
	ctx := context.Background()
	owner := newAccount(t, store, "10000", "1")
	other := newAccount(t, store, "10000", "")

	buy, _ := svc.PlaceOrder(ctx, owner, "BTC", domain.SideBuy, u("950"), u("0.3"))
	sell, _ := svc.PlaceOrder(ctx, owner, "BTC", domain.SideSell, u("1100"), u("0.4"))

	t.Run("forbidden", func(t *testing.T) {
		if _, err := svc.CancelOrder(ctx, other, buy.ID); !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := svc.CancelOrder(ctx, owner, 424242); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("buy releases cash", func(t *testing.T) {
		o, err := svc.CancelOrder(ctx, owner, buy.ID)
		if err != nil {
			t.Fatal(err)
		}
		if o.Status != domain.StatusCancelled {
			t.Errorf("status = %s", o.Status)
		}
		if balance(t, store, owner) != u("10000") {
			t.Errorf("balance = %s", balance(t, store, owner))
		}
	})

	t.Run("sell releases asset", func(t *testing.T) {
		if _, err := svc.CancelOrder(ctx, owner, sell.ID); err != nil {
			t.Fatal(err)
		}
		h := holding(t, store, owner)
		if h.Available != u("1") || !h.Locked.IsZero() {
			t.Errorf("holding = %s/%s", h.Available, h.Locked)
		}
	})

	t.Run("cancelled twice", func(t *testing.T) {
		if _, err := svc.CancelOrder(ctx, owner, buy.ID); !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
		if balance(t, store, owner) != u("10000") {
			t.Error("second cancel refunded again")
		}
	})
}

func TestCancelOrder_Filled(t *testing.T) {
	svc, store := newTestService(t, engine.PolicySeller)
	ctx := context.Background()
	seller := newAccount(t, store, "0", "1")
	buyer := newAccount(t, store, "10000", "")

	sell, _ := svc.PlaceOrder(ctx, seller, "BTC", domain.SideSell, u("1000"), u("0.5"))
	buy, _ := svc.PlaceOrder(ctx, buyer, "BTC", domain.SideBuy, u("1000"), u("0.5"))

	before := balance(t, store, buyer)
	for _, tc := range []struct {
		account uint64
		order   uint64
	}{{buyer, buy.ID}, {seller, sell.ID}} {
		if _, err := svc.CancelOrder(ctx, tc.account, tc.order); !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("cancel filled order %d: expected ErrInvalidState, got %v", tc.order, err)
		}
	}
	if balance(t, store, buyer) != before {
		t.Error("cancel of a filled order mutated the balance")
	}
	if sh := holding(t, store, seller); !sh.Locked.IsZero() {
		t.Errorf("seller locked = %s", sh.Locked)
	}
}

func TestOrderBook_Ordering(t *testing.T) {
	svc, store := newTestService(t, engine.PolicySeller)
	ctx := context.Background()
	a := newAccount(t, store, "100000", "10")

	place := func(side domain.Side, price, qty string) uint64 {
		t.Helper()
		o, err := svc.PlaceOrder(ctx, a, "BTC", side, u(price), u(qty))
		if err != nil {
			t.Fatal(err)
		}
		return o.ID
	}

	ask2 := place(domain.SideSell, "1200", "0.1")
	bid1 := place(domain.SideBuy, "900", "0.1")
	ask1 := place(domain.SideSell, "1100", "0.1")
	bid2 := place(domain.SideBuy, "950", "0.1")
	bid3 := place(domain.SideBuy, "950", "0.2")

	book, err := svc.OrderBook(ctx, "BTC")
	if err != nil {
		t.Fatal(err)
	}

	want := []uint64{bid2, bid3, bid1, ask1, ask2}
	if len(book) != len(want) {
		t.Fatalf("book has %d orders, want %d", len(book), len(want))
	}
	for i, id := range want {
		if book[i].ID != id {
			t.Errorf("book[%d] = %d, want %d", i, book[i].ID, id)
		}
	}

	if _, err := svc.OrderBook(ctx, "XRP"); !errors.Is(err, domain.ErrInvalidOrder) {
		t.Errorf("unknown symbol: %v", err)
	}
	if all, _ := svc.OrderBook(ctx, ""); len(all) != len(want) {
		t.Errorf("unfiltered book = %d", len(all))
	}
}

func TestListOrders_Filter(t *testing.T) {
	svc, store := newTestService(t, engine.PolicySeller)
	ctx := context.Background()
	a := newAccount(t, store, "100000", "10")

	first, _ := svc.PlaceOrder(ctx, a, "BTC", domain.SideBuy, u("900"), u("0.1"))
	svc.PlaceOrder(ctx, a, "BTC", domain.SideSell, u("1100"), u("0.1"))
	last, _ := svc.PlaceOrder(ctx, a, "BTC", domain.SideBuy, u("800"), u("0.1"))
	svc.CancelOrder(ctx, a, first.ID)

	buys, err := svc.ListOrders(ctx, a, domain.OrderFilter{Side: domain.SideBuy})
	if err != nil {
		t.Fatal(err)
	}
	if len(buys) != 2 || buys[0].ID != last.ID {
		t.Errorf("buys newest first: %+v", buys)
	}

	open, _ := svc.ListOrders(ctx, a, domain.OrderFilter{Symbol: "BTC", Status: domain.StatusOpen})
	if len(open) != 2 {
		t.Errorf("open = %d", len(open))
	}

	if _, err := svc.ListOrders(ctx, a, domain.OrderFilter{Status: "pending"}); !errors.Is(err, domain.ErrInvalidOrder) {
		t.Errorf("bad status filter: %v", err)
	}
}

func TestTradesAndSummary(t *testing.T) {
	svc, store := newTestService(t, engine.PolicySeller)
	ctx := context.Background()
	seller := newAccount(t, store, "0", "10")
	buyer := newAccount(t, store, "100000", "")

	for i := 0; i < 3; i++ {
		svc.PlaceOrder(ctx, seller, "BTC", domain.SideSell, u("1000"), u("0.5"))
		svc.PlaceOrder(ctx, buyer, "BTC", domain.SideBuy, u("1000"), u("0.5"))
	}

	page, err := svc.Trades(ctx, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 || page.LastPage != 2 || len(page.Trades) != 1 {
		t.Errorf("page = %+v", page)
	}

	capped, _ := svc.Trades(ctx, 0, 1000)
	if capped.Page != 1 || capped.PerPage != MaxPerPage {
		t.Errorf("normalised page = %d/%d", capped.Page, capped.PerPage)
	}

	summary, err := svc.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalTrades != 3 {
		t.Errorf("total trades = %d", summary.TotalTrades)
	}
	if summary.TotalVolume.String() != "1500.00000000" || summary.TotalCommission.String() != "22.50000000" {
		t.Errorf("summary = %s/%s", summary.TotalVolume, summary.TotalCommission)
	}
	if summary.CommissionRate != "1.5%" {
		t.Errorf("rate = %s", summary.CommissionRate)
	}
}

func TestProfile(t *testing.T) {
	svc, store := newTestService(t, engine.PolicySeller)
	a := newAccount(t, store, "250", "2")

	p, err := svc.Profile(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	if p.Account.Balance != u("250") || len(p.Holdings) != 1 || p.Holdings[0].Symbol != "BTC" {
		t.Errorf("profile = %+v", p)
	}

	if _, err := svc.Profile(context.Background(), 777); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentBuyersSingleAsk(t *testing.T) {
	svc, store := newTestService(t, engine.PolicySeller)
	ctx := context.Background()
	seller := newAccount(t, store, "0", "1")

	const buyers = 8
	ids := make([]uint64, buyers)
	for i := range ids {
		ids[i] = newAccount(t, store, "1000", "")
	}

	if _, err := svc.PlaceOrder(ctx, seller, "BTC", domain.SideSell, u("1000"), u("0.5")); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			if _, err := svc.PlaceOrder(ctx, id, "BTC", domain.SideBuy, u("1000"), u("0.5")); err != nil {
				errs <- err
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("placement failed: %v", err)
	}

	summary, _ := svc.Summary(ctx)
	if summary.TotalTrades != 1 {
		t.Fatalf("a single ask produced %d trades", summary.TotalTrades)
	}

	// Everybody's cash plus the commission still adds up to the initial total.
	total := balance(t, store, seller) + summary.TotalCommission
	for _, id := range ids {
		total += balance(t, store, id)
	}
	book, _ := svc.OrderBook(ctx, "BTC")
	for _, o := range book {
		reserve, _ := o.Reservation()
		if o.Side == domain.SideBuy {
			total += reserve
		}
	}
	if total != u("8000") {
		t.Errorf("cash not conserved: %s", total)
	}
	if len(book) != buyers-1 {
		t.Errorf("open buys = %d, want %d", len(book), buyers-1)
	}
}
