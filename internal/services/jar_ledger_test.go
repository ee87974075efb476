package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"sixjars/internal/core"
)

func TestJarLedger_FreshUserGetsSixZeroedJars(t *testing.T) {
	f := newFixture(t)
	jars, err := NewJarLedger(f.env).List(context.Background(), testUser)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jars) != 6 {
		t.Fatalf("expected 6 jars, got %d", len(jars))
	}
	for i, j := range jars {
		if j.Code != core.Codes()[i] {
			t.Errorf("jar %d: got %s, want %s", i, j.Code, core.Codes()[i])
		}
		if j.Allocated != 0 || j.Spent != 0 || j.Balance != 0 {
			t.Errorf("%s not zeroed: %+v", j.Code, j)
		}
	}
}

func TestJarLedger_InitializeIsNotAReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := NewJarLedger(f.env)

	if err := l.Allocate(ctx, testUser, core.Allocation{core.NEC: 1000}); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := l.Initialize(ctx, testUser); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	nec, err := l.Get(ctx, testUser, core.NEC)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if nec.Allocated != 1000 || nec.Balance != 1000 {
		t.Errorf("Initialize changed existing jar: %+v", nec)
	}
}

func TestJarLedger_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := NewJarLedger(f.env)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"allocate unknown jar", func() error { return l.Allocate(ctx, testUser, core.Allocation{"XXX": 10}) }, core.ErrUnknownJar},
		{"allocate negative", func() error { return l.Allocate(ctx, testUser, core.Allocation{core.NEC: -1}) }, core.ErrInvalidAmount},
		{"spend unknown jar", func() error { return l.Spend(ctx, testUser, "XXX", 10) }, core.ErrUnknownJar},
		{"spend zero", func() error { return l.Spend(ctx, testUser, core.NEC, 0) }, core.ErrInvalidAmount},
		{"empty user", func() error { return l.Spend(ctx, " ", core.NEC, 10) }, core.ErrEmptyUser},
		{"same jar transfer", func() error {
			_, err := l.Transfer(ctx, testUser, core.NEC, core.NEC, 10, "")
			return err
		}, core.ErrSameJarTransfer},
		{"get unknown jar", func() error {
			_, err := l.Get(ctx, testUser, "XXX")
			return err
		}, core.ErrUnknownJar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestJarLedger_OverspendGoesNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := NewJarLedger(f.env)

	if err := l.Allocate(ctx, testUser, core.Allocation{core.PLAY: 100}); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := l.Spend(ctx, testUser, core.PLAY, 250); err != nil {
		t.Fatalf("Spend: %v", err)
	}
	play := jarsOf(t, f.env)[core.PLAY]
	if play.Balance != -150 || play.Spent != 250 {
		t.Errorf("got %+v, want balance -150 spent 250", play)
	}
}

func TestJarLedger_TransferMovesBalanceOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := NewJarLedger(f.env)

	if err := l.Allocate(ctx, testUser, core.AllocateAll(1_000_000)); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	tx, err := l.Transfer(ctx, testUser, core.NEC, core.FFA, 50_000, "top up")
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if tx.Type != core.TxTransfer || tx.JarCode != core.NEC || tx.ToJarCode != core.FFA {
		t.Errorf("unexpected transfer record: %+v", tx)
	}

	jars := jarsOf(t, f.env)
	if jars[core.NEC].Balance != 500_000 || jars[core.NEC].Allocated != 550_000 || jars[core.NEC].Spent != 0 {
		t.Errorf("NEC after transfer: %+v", jars[core.NEC])
	}
	if jars[core.FFA].Balance != 150_000 || jars[core.FFA].Allocated != 100_000 {
		t.Errorf("FFA after transfer: %+v", jars[core.FFA])
	}

	got, err := f.store.GetTransaction(ctx, testUser, tx.ID)
	if err != nil {
		t.Fatalf("transfer not stored: %v", err)
	}
	if got.Amount != 50_000 {
		t.Errorf("stored amount = %d", got.Amount)
	}
}

func TestJarLedger_ResetPeriodArchivesAndRestores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := NewJarLedger(f.env)
	started := f.clock.Now()

	if err := l.Allocate(ctx, testUser, core.AllocateAll(10_000_000)); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := l.Spend(ctx, testUser, core.NEC, 50_000); err != nil {
		t.Fatalf("Spend: %v", err)
	}

	resetAt := started.AddDate(0, 1, 0)
	f.clock.Set(resetAt)
	periods, err := l.ResetPeriod(ctx, testUser)
	if err != nil {
		t.Fatalf("ResetPeriod: %v", err)
	}
	if len(periods) != 6 {
		t.Fatalf("expected 6 archived periods, got %d", len(periods))
	}

	archived, err := l.Periods(ctx, testUser, core.NEC, 10)
	if err != nil {
		t.Fatalf("Periods: %v", err)
	}
	if len(archived) != 1 {
		t.Fatalf("expected 1 NEC period, got %d", len(archived))
	}
	p := archived[0]
	if p.Allocated != 5_500_000 || p.Spent != 50_000 || p.Balance != 5_450_000 {
		t.Errorf("archived NEC period: %+v", p)
	}
	if !p.PeriodStart.Equal(started) || !p.PeriodEnd.Equal(resetAt) {
		t.Errorf("period bounds %v..%v, want %v..%v", p.PeriodStart, p.PeriodEnd, started, resetAt)
	}

	nec := jarsOf(t, f.env)[core.NEC]
	if nec.Balance != 5_500_000 || nec.Spent != 0 || nec.Allocated != 5_500_000 {
		t.Errorf("NEC after reset: %+v", nec)
	}
	if !nec.PeriodStartedAt.Equal(resetAt) {
		t.Errorf("PeriodStartedAt = %v, want %v", nec.PeriodStartedAt, resetAt)
	}

	kinds := outboxKinds(t, f)
	if len(kinds) != 1 || kinds[0] != core.EventPeriodReset {
		t.Errorf("outbox kinds = %v, want [period.reset]", kinds)
	}
}

// Concurrent and sequential application of the same operations converge.
func TestJarLedger_ConcurrentOperationsCommute(t *testing.T) {
	type op struct {
		allocate bool
		amount   core.Money
	}
	r := rand.New(rand.NewSource(42))
	ops := make([]op, 200)
	for i := range ops {
		ops[i] = op{allocate: r.Intn(2) == 0, amount: core.Money(r.Intn(10_000) + 1)}
	}

	apply := func(t *testing.T, f fixture, o op) {
		l := NewJarLedger(f.env)
		var err error
		if o.allocate {
			err = l.Allocate(context.Background(), testUser, core.Allocation{core.EDU: o.amount})
		} else {
			err = l.Spend(context.Background(), testUser, core.EDU, o.amount)
		}
		if err != nil {
			t.Errorf("apply %+v: %v", o, err)
		}
	}

	sequential := newFixture(t)
	for _, o := range ops {
		apply(t, sequential, o)
		assertBalanceIdentity(t, jarsOf(t, sequential.env))
	}

	concurrent := newFixture(t)
	var wg sync.WaitGroup
	for _, o := range ops {
		wg.Add(1)
		go func(o op) {
			defer wg.Done()
			apply(t, concurrent, o)
		}(o)
	}
	wg.Wait()

	want := jarsOf(t, sequential.env)[core.EDU]
	got := jarsOf(t, concurrent.env)[core.EDU]
	if got.Allocated != want.Allocated || got.Spent != want.Spent || got.Balance != want.Balance {
		t.Errorf("concurrent %+v != sequential %+v", got, want)
	}
	assertBalanceIdentity(t, jarsOf(t, concurrent.env))
}
