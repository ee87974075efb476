// Package memory is an in-process sheets.LedgerMirror for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sixjars/internal/core"
	"sixjars/internal/sheets"
)

type Mirror struct {
	mu   sync.Mutex
	loc  *time.Location
	rows []sheets.Row
	ids  map[string]struct{}
}

var (
	_ sheets.LedgerMirror = (*Mirror)(nil)
	_ sheets.MirrorReader = (*Mirror)(nil)
)

func New(loc *time.Location) *Mirror {
	return &Mirror{loc: loc, ids: make(map[string]struct{})}
}

// AppendEvent stores the row and returns a synthetic row reference.
func (m *Mirror) AppendEvent(_ context.Context, ev core.LedgerEvent) (string, error) {
	if ev.ID == "" {
		return "", fmt.Errorf("event without id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[ev.ID]; ok {
		return "", nil
	}
	m.ids[ev.ID] = struct{}{}
	m.rows = append(m.rows, sheets.RowFromEvent(ev, m.loc))
	return fmt.Sprintf("mem:%d", len(m.rows)), nil
}

func (m *Mirror) ListRows(_ context.Context) ([]sheets.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sheets.Row(nil), m.rows...), nil
}
