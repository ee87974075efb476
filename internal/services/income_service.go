package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sixjars/internal/core"
	"sixjars/internal/ledger"
	"sixjars/internal/log"
)

type IncomeInput struct {
	Amount   core.Money
	Source   string
	Category string
	Note     string
	// AutoAllocate defaults to true when nil.
	AutoAllocate *bool
}

// IncomeService records income and spreads it across the jars. The income
// record, the jar increments and the outbox event share one write, so a
// stored income always agrees with the jar balances.
type IncomeService struct {
	env Env
}

func NewIncomeService(env Env) *IncomeService {
	return &IncomeService{env: env.withDefaults()}
}

func (s *IncomeService) RecordIncome(ctx context.Context, userID string, in IncomeInput) (core.IncomeRecord, error) {
	if err := checkUser(userID); err != nil {
		return core.IncomeRecord{}, err
	}
	if err := in.Amount.Validate(); err != nil {
		return core.IncomeRecord{}, err
	}
	auto := in.AutoAllocate == nil || *in.AutoAllocate

	source := strings.TrimSpace(in.Source)
	category := strings.TrimSpace(in.Category)
	if source == "" {
		source = category
	}
	if category == "" {
		category = source
	}

	now := s.env.Now()
	rec := core.IncomeRecord{
		ID:            s.env.NewID(),
		UserID:        userID,
		Amount:        in.Amount,
		Source:        source,
		Category:      category,
		Note:          strings.TrimSpace(in.Note),
		Allocated:     core.AllocateAll(in.Amount),
		AutoAllocated: auto,
		CreatedAt:     now,
	}

	ev := s.env.newEvent(userID, core.EventIncomeRecorded, now)
	ev.AggregateID = rec.ID
	ev.Amount = rec.Amount
	ev.Description = rec.Source
	ev.Allocation = rec.Allocated

	err := s.env.Store.InTx(ctx, func(tx ledger.Tx) error {
		if err := tx.InsertIncome(ctx, rec); err != nil {
			return err
		}
		if auto {
			if err := applyDeltas(ctx, tx, userID, rec.Allocated.Deltas(), now); err != nil {
				return err
			}
		}
		return tx.Enqueue(ctx, ev)
	})
	if err != nil {
		return core.IncomeRecord{}, fmt.Errorf("record income: %w", err)
	}
	s.env.touched(userID)

	if drift := rec.Allocated.Drift(rec.Amount); drift != 0 {
		slog.DebugContext(ctx, "Allocation rounding drift", log.FieldIncomeID, rec.ID, "drift", int64(drift))
	}
	slog.InfoContext(ctx, "Income recorded",
		log.FieldUserID, userID,
		log.FieldIncomeID, rec.ID,
		log.FieldAmount, int64(rec.Amount),
		"auto_allocate", auto)
	return rec, nil
}

func (s *IncomeService) Get(ctx context.Context, userID, id string) (core.IncomeRecord, error) {
	rec, err := s.env.Store.GetIncome(ctx, userID, id)
	if err != nil {
		return core.IncomeRecord{}, fmt.Errorf("get income: %w", err)
	}
	return rec, nil
}

// List returns the newest incomes first, at most maxResults (default 50).
func (s *IncomeService) List(ctx context.Context, userID string, maxResults int) ([]core.IncomeRecord, error) {
	recs, err := s.env.Store.ListIncomes(ctx, userID, maxResults)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	return recs, nil
}
