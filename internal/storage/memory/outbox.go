package memory

import (
	"context"
	"fmt"
	"time"

	"sixjars/internal/core"
	"sixjars/internal/ledger"
)

func (s *Store) entry(id int64) (*ledger.OutboxEntry, error) {
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			return &s.outbox[i], nil
		}
	}
	return nil, fmt.Errorf("outbox entry %d: %w", id, core.ErrNotFound)
}

func (s *Store) DequeueOutbox(_ context.Context, limit int) ([]ledger.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ledger.OutboxEntry
	for _, e := range s.outbox {
		if len(out) == limit {
			break
		}
		if e.Status == ledger.OutboxPending {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) setStatus(id int64, status ledger.OutboxStatus, errMsg string, bump bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.Status = status
	if errMsg != "" {
		e.LastError = errMsg
	}
	if bump {
		e.Attempts++
	}
	e.UpdatedAt = s.now()
	return nil
}

func (s *Store) MarkOutboxProcessing(_ context.Context, id int64) error {
	return s.setStatus(id, ledger.OutboxProcessing, "", false)
}

func (s *Store) MarkOutboxComplete(_ context.Context, id int64) error {
	return s.setStatus(id, ledger.OutboxCompleted, "", false)
}

func (s *Store) MarkOutboxFailed(_ context.Context, id int64, errMsg string) error {
	return s.setStatus(id, ledger.OutboxFailed, errMsg, true)
}

func (s *Store) RequeueOutbox(_ context.Context, id int64, errMsg string) error {
	return s.setStatus(id, ledger.OutboxPending, errMsg, true)
}

func (s *Store) CleanupOutbox(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-olderThan)
	kept := s.outbox[:0]
	var removed int64
	for _, e := range s.outbox {
		if e.Status == ledger.OutboxCompleted && e.UpdatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.outbox = kept
	return removed, nil
}

func (s *Store) ResetStaleOutbox(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-olderThan)
	var n int64
	for i := range s.outbox {
		if s.outbox[i].Status == ledger.OutboxProcessing && !s.outbox[i].UpdatedAt.After(cutoff) {
			s.outbox[i].Status = ledger.OutboxPending
			n++
		}
	}
	return n, nil
}

func (s *Store) RetryFailedOutbox(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.outbox {
		if s.outbox[i].Status == ledger.OutboxFailed {
			s.outbox[i].Status = ledger.OutboxPending
			s.outbox[i].Attempts = 0
			n++
		}
	}
	return n, nil
}

func (s *Store) OutboxStats(_ context.Context) (ledger.OutboxStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st ledger.OutboxStats
	for _, e := range s.outbox {
		switch e.Status {
		case ledger.OutboxPending:
			st.Pending++
		case ledger.OutboxProcessing:
			st.Processing++
		case ledger.OutboxCompleted:
			st.Completed++
		case ledger.OutboxFailed:
			st.Failed++
		}
	}
	return st, nil
}
