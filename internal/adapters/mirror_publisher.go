// Package adapters bridges service ports to outbound adapters when the
// worker runs without a broker.
package adapters

import (
	"context"

	"sixjars/internal/core"
	"sixjars/internal/services"
	"sixjars/internal/sheets"
)

// MirrorPublisher publishes outbox events straight to the sheet mirror.
type MirrorPublisher struct {
	mirror sheets.LedgerMirror
}

var _ services.Publisher = (*MirrorPublisher)(nil)

func NewMirrorPublisher(mirror sheets.LedgerMirror) *MirrorPublisher {
	return &MirrorPublisher{mirror: mirror}
}

func (p *MirrorPublisher) PublishEvent(ctx context.Context, ev core.LedgerEvent) error {
	_, err := p.mirror.AppendEvent(ctx, ev)
	return err
}
