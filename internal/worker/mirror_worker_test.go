package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"sixjars/internal/core"
	"sixjars/internal/sheets/memory"
)

type sliceSource struct {
	events []core.LedgerEvent
	failed int
}

// Consume delivers every event once, redelivering on handler error, then
// blocks until ctx ends.
func (s *sliceSource) Consume(ctx context.Context, handler func(context.Context, core.LedgerEvent) error) error {
	for _, ev := range s.events {
		if err := handler(ctx, ev); err != nil {
			s.failed++
			if err := handler(ctx, ev); err != nil {
				return err
			}
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

type flakyMirror struct {
	*memory.Mirror
	failNext bool
}

func (f *flakyMirror) AppendEvent(ctx context.Context, ev core.LedgerEvent) (string, error) {
	if f.failNext {
		f.failNext = false
		return "", errors.New("quota exceeded")
	}
	return f.Mirror.AppendEvent(ctx, ev)
}

func TestMirrorWorker_Run(t *testing.T) {
	mirror := &flakyMirror{Mirror: memory.New(time.UTC), failNext: true}
	src := &sliceSource{events: []core.LedgerEvent{
		{ID: "ev-1", Kind: core.EventIncomeRecorded, Amount: 100},
		{ID: "ev-2", Kind: core.EventExpenseRecorded, JarCode: core.NEC, Amount: 10},
		{ID: "ev-1", Kind: core.EventIncomeRecorded, Amount: 100},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := NewMirrorWorker(mirror).Run(ctx, src); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows, _ := mirror.ListRows(context.Background())
	if len(rows) != 2 {
		t.Fatalf("expected 2 mirrored rows, got %d", len(rows))
	}
	if src.failed != 1 {
		t.Errorf("expected one redelivery, got %d", src.failed)
	}
}

func TestMirrorWorker_HandleEventWrapsError(t *testing.T) {
	w := NewMirrorWorker(&flakyMirror{Mirror: memory.New(time.UTC), failNext: true})
	err := w.HandleEvent(context.Background(), core.LedgerEvent{ID: "ev-9"})
	if err == nil || err.Error() != "mirror event ev-9: quota exceeded" {
		t.Errorf("unexpected error: %v", err)
	}
}
