// Package worker consumes ledger events from the broker and mirrors them to
// the spreadsheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"sixjars/internal/core"
	"sixjars/internal/log"
	"sixjars/internal/sheets"
)

// EventSource delivers events to handler until ctx ends. A handler error
// asks the source to redeliver.
type EventSource interface {
	Consume(ctx context.Context, handler func(context.Context, core.LedgerEvent) error) error
}

// MirrorWorker appends one sheet row per ledger event. Redelivered events
// are absorbed by the mirror's event-id check.
type MirrorWorker struct {
	mirror sheets.LedgerMirror
}

func NewMirrorWorker(mirror sheets.LedgerMirror) *MirrorWorker {
	return &MirrorWorker{mirror: mirror}
}

func (w *MirrorWorker) HandleEvent(ctx context.Context, ev core.LedgerEvent) error {
	ref, err := w.mirror.AppendEvent(ctx, ev)
	if err != nil {
		return fmt.Errorf("mirror event %s: %w", ev.ID, err)
	}
	if ref == "" {
		slog.DebugContext(ctx, "Skipped already mirrored event", log.FieldEventID, ev.ID)
		return nil
	}
	slog.InfoContext(ctx, "Mirrored ledger event",
		log.FieldEventID, ev.ID,
		log.FieldEventKind, ev.Kind,
		log.FieldUserID, ev.UserID,
		log.FieldMirrorRef, ref)
	return nil
}

// Run consumes src until ctx is cancelled.
func (w *MirrorWorker) Run(ctx context.Context, src EventSource) error {
	slog.InfoContext(ctx, "Mirror worker started")
	err := src.Consume(ctx, w.HandleEvent)
	if ctx.Err() != nil {
		slog.InfoContext(ctx, "Mirror worker stopped")
		return nil
	}
	return err
}
