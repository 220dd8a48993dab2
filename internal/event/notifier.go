package event

import (
	"context"
	"errors"
	"log/slog"

	"exchange_go/internal/domain"
)

// Fanout delivers a settlement to every notifier in order. A failing
// notifier does not prevent delivery to the rest.
type Fanout []domain.Notifier

func (f Fanout) Notify(ctx context.Context, s domain.Settlement) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes one structured line per settlement.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, s domain.Settlement) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("TRADE_SETTLED",
		slog.Uint64("trade_id", s.Trade.ID),
		slog.String("symbol", s.Trade.Symbol),
		slog.String("price", s.Trade.Price.String()),
		slog.String("quantity", s.Trade.Quantity.String()),
		slog.String("usd_volume", s.Trade.USDVolume.String()),
		slog.String("commission", s.Trade.Commission.String()),
		slog.Uint64("buyer", s.Buyer.AccountID),
		slog.Uint64("seller", s.Seller.AccountID),
	)
	return nil
}
