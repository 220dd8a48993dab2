package event

import (
	"sync"
)

// outboxPool recycles Outbox buffers between units of work.
// A match stages at most one settlement, so buffers stay tiny.
var outboxPool = sync.Pool{
	New: func() interface{} {
		return &Outbox{pending: make([]staged, 0, 1)}
	},
}

// AcquireOutbox gets an empty Outbox from the pool.
func AcquireOutbox() *Outbox {
	return outboxPool.Get().(*Outbox)
}

// ReleaseOutbox returns an Outbox to the pool.
// Anything still staged is dropped.
func ReleaseOutbox(o *Outbox) {
	if o == nil {
		return
	}
	o.Discard()
	outboxPool.Put(o)
}
