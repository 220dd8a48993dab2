package domain

import (
	"context"
)

// Notifier receives settlements strictly after the transaction that produced
// them has committed. Implementations deliver to websocket clients, brokers or logs.
type Notifier interface {
	Notify(ctx context.Context, s Settlement) error
}
