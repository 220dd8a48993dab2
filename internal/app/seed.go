package app

import (
	"context"
	"fmt"
	"log/slog"

	"exchange_go/internal/domain"
	"exchange_go/internal/infra/storage"
)

// DemoAccount describes one seeded account.
type DemoAccount struct {
	Name     string
	Balance  string
	Holdings map[string]string
}

// DemoAccounts are created on an empty database when seeding is enabled.
var DemoAccounts = []DemoAccount{
	{Name: "Test User 1", Balance: "100000", Holdings: map[string]string{"BTC": "10", "ETH": "100"}},
	{Name: "Test User 2", Balance: "100000", Holdings: map[string]string{"BTC": "10", "ETH": "100"}},
}

// Seed creates the demo accounts unless the database already has accounts.
// Holdings for symbols that are not traded are skipped.
func Seed(ctx context.Context, store *storage.Storage, symbols []string) (int, error) {
	n, err := store.CountAccounts(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("Seed skipped, accounts exist", slog.Int64("accounts", n))
		return 0, nil
	}

	created := 0
	for _, demo := range DemoAccounts {
		balance, err := domain.ParseUnits(demo.Balance)
		if err != nil {
			return created, err
		}

		var holdings []domain.AssetHolding
		for _, sym := range symbols {
			amount, ok := demo.Holdings[sym]
			if !ok {
				continue
			}
			available, err := domain.ParseUnits(amount)
			if err != nil {
				return created, err
			}
			holdings = append(holdings, domain.AssetHolding{Symbol: sym, Available: available})
		}

		a := &domain.Account{Name: demo.Name, Balance: balance}
		if err := store.CreateAccount(ctx, a, holdings...); err != nil {
			return created, fmt.Errorf("seed %s: %w", demo.Name, err)
		}
		slog.Info("✅ Seeded account", slog.Uint64("account_id", a.ID), slog.String("name", a.Name))
		created++
	}
	return created, nil
}
