package event

import (
	"context"
	"errors"
	"fmt"

	"exchange_go/internal/domain"
)

type staged struct {
	settlement domain.Settlement
}

// Outbox holds settlements produced inside a transaction until it commits.
//
// Usage:
//
//	box := AcquireOutbox()
//	defer ReleaseOutbox(box)
//	err := store.Transaction(ctx, "match", func(tx *storage.Tx) error {
//		box.Discard() // the closure may run more than once
//		...
//		box.Stage(settlement)
//		return nil
//	})
//	if err == nil {
//		box.Flush(ctx, notifier)
//	}
//
// An Outbox is not safe for concurrent use; each unit of work owns its own.
type Outbox struct {
	pending []staged
}

// Stage records a settlement for delivery after commit.
func (o *Outbox) Stage(s domain.Settlement) {
	o.pending = append(o.pending, staged{settlement: s})
}

// Discard drops everything staged (rollback).
func (o *Outbox) Discard() {
	clear(o.pending)
	o.pending = o.pending[:0]
}

// Len returns the number of staged settlements.
func (o *Outbox) Len() int {
	return len(o.pending)
}

// Flush delivers every staged settlement exactly once, in staging order, and
// empties the outbox. Delivery errors are joined; they never stop the
// remaining deliveries.
func (o *Outbox) Flush(ctx context.Context, n domain.Notifier) error {
	if n == nil {
		o.Discard()
		return nil
	}

	var errs []error
	for _, p := range o.pending {
		if err := n.Notify(ctx, p.settlement); err != nil {
			errs = append(errs, fmt.Errorf("trade %d: %w", p.settlement.Trade.ID, err))
		}
	}
	o.Discard()
	return errors.Join(errs...)
}
