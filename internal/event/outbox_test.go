package event

import (
	"context"
	"errors"
	"testing"

	"exchange_go/internal/domain"
)

type recorder struct {
	got []uint64
	err error
}

func (r *recorder) Notify(_ context.Context, s domain.Settlement) error {
	r.got = append(r.got, s.Trade.ID)
	return r.err
}

func settlement(id uint64) domain.Settlement {
	return domain.Settlement{Trade: domain.TradeView{ID: id}}
}

func TestOutbox_FlushDeliversOnce(t *testing.T) {
	box := AcquireOutbox()
	defer ReleaseOutbox(box)

	box.Stage(settlement(1))
	box.Stage(settlement(2))
	if box.Len() != 2 {
		t.Fatalf("Len = %d", box.Len())
	}

	rec := &recorder{}
	if err := box.Flush(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if err := box.Flush(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	if len(rec.got) != 2 || rec.got[0] != 1 || rec.got[1] != 2 {
		t.Errorf("delivered %v, want [1 2]", rec.got)
	}
}

func TestOutbox_DiscardDropsStaged(t *testing.T) {
	box := AcquireOutbox()
	defer ReleaseOutbox(box)

	box.Stage(settlement(1))
	box.Discard()

	rec := &recorder{}
	if err := box.Flush(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.got) != 0 {
		t.Errorf("rolled back settlement was delivered: %v", rec.got)
	}
}

func TestOutbox_ReleaseResets(t *testing.T) {
	box := AcquireOutbox()
	box.Stage(settlement(9))
	ReleaseOutbox(box)

	again := AcquireOutbox()
	defer ReleaseOutbox(again)
	if again.Len() != 0 {
		t.Errorf("pooled outbox kept %d entries", again.Len())
	}
}

func TestFanout(t *testing.T) {
	boom := errors.New("boom")
	failing := &recorder{err: boom}
	healthy := &recorder{}

	err := Fanout{failing, nil, healthy, LogNotifier{}}.Notify(context.Background(), settlement(5))
	if !errors.Is(err, boom) {
		t.Errorf("expected joined error, got %v", err)
	}
	if len(healthy.got) != 1 {
		t.Error("a failing notifier must not block the others")
	}
}
