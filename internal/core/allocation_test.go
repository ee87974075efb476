package core

import (
	"errors"
	"testing"
)

func TestCatalogPercentagesSumTo100(t *testing.T) {
	total := 0
	for _, d := range Definitions() {
		total += d.Percentage
	}
	if total != 100 {
		t.Fatalf("catalog percentages sum to %d", total)
	}
	if len(Codes()) != 6 {
		t.Fatalf("expected 6 jars, got %d", len(Codes()))
	}
}

func TestByCode(t *testing.T) {
	d, err := ByCode(NEC)
	if err != nil || d.Percentage != 55 {
		t.Fatalf("NEC lookup: %+v %v", d, err)
	}
	if _, err := ByCode("XXX"); !errors.Is(err, ErrUnknownJar) {
		t.Fatalf("expected ErrUnknownJar, got %v", err)
	}
	code, err := ParseJarCode(" play ")
	if err != nil || code != PLAY {
		t.Fatalf("ParseJarCode: %q %v", code, err)
	}
}

func TestAllocate(t *testing.T) {
	cases := []struct {
		amount Money
		pct    int
		want   Money
	}{
		{10000000, 55, 5500000},
		{10, 5, 1},  // 0.5 rounds up
		{9, 5, 0},   // 0.45 rounds down
		{15, 10, 2}, // 1.5 rounds up
		{1, 55, 1},  // 0.55
		{0, 55, 0},
	}
	for _, tc := range cases {
		if got := Allocate(tc.amount, tc.pct); got != tc.want {
			t.Fatalf("Allocate(%d, %d) = %d, want %d", tc.amount, tc.pct, got, tc.want)
		}
	}
}

func TestAllocateAllTenMillion(t *testing.T) {
	got := AllocateAll(10000000)
	want := Allocation{NEC: 5500000, FFA: 1000000, LTSS: 1000000, EDU: 1000000, PLAY: 1000000, GIVE: 500000}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for code, v := range want {
		if got[code] != v {
			t.Fatalf("%s: expected %d, got %d", code, v, got[code])
		}
	}
	if got.Total() != 10000000 || got.Drift(10000000) != 0 {
		t.Fatalf("expected no drift, total %d", got.Total())
	}
}

func TestAllocateAllDriftBound(t *testing.T) {
	check := func(amount Money) {
		a := AllocateAll(amount)
		d := a.Drift(amount)
		if d < -MaxRoundingDrift || d > MaxRoundingDrift {
			t.Fatalf("amount %d drift %d exceeds bound", amount, d)
		}
	}
	for amount := Money(0); amount <= 20000; amount++ {
		check(amount)
	}
	for amount := Money(999_999_000); amount <= 1_000_001_000; amount += 7 {
		check(amount)
	}
}

func TestAllocationDriftIsObservable(t *testing.T) {
	// 5 -> NEC 2.75->3, 10% jars 0.5->1 each, GIVE 0.25->0: 7 allocated from 5
	a := AllocateAll(5)
	if a.Total() != 7 || a.Drift(5) != -2 {
		t.Fatalf("expected total 7 drift -2, got total %d drift %d", a.Total(), a.Drift(5))
	}
}

func TestAllocationDeltas(t *testing.T) {
	deltas := AllocateAll(1000).Deltas()
	if len(deltas) != 6 || deltas[0].Code != NEC {
		t.Fatalf("unexpected deltas %+v", deltas)
	}
	for _, d := range deltas {
		if d.Allocated != d.Balance || d.Spent != 0 {
			t.Fatalf("allocation delta must move allocated and balance together: %+v", d)
		}
	}
}
