package google

import (
	"testing"
	"time"

	"sixjars/internal/core"
)

func TestParseRows(t *testing.T) {
	values := [][]any{
		{"Date", "User", "Kind", "Jar", "Amount", "Description", "Event ID"},
		{"2024-03-01 08:30:00", "u1", "expense.recorded", "NEC", 50000.0, "phở", "ev-1"},
		{"2024-03-02 09:00:00", "u1", "income.recorded", "", "10.000.000", "Lương", "ev-2"},
		{"2024-03-03 09:00:00", "u1", "income.recorded", "", 5.5e+06, "Thưởng", "ev-3"},
		{"2024-03-04 09:00:00", "u1", "expense.recorded", "PLAY", "abc", "bad amount", "ev-4"},
		{"2024-03-05 09:00:00", "u1", "expense.recorded", "PLAY", 10, "no id", ""},
		{"short row"},
	}

	rows := parseRows(values, time.UTC)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %+v", len(rows), rows)
	}
	want := []core.Money{50_000, 10_000_000, 5_500_000}
	for i, r := range rows {
		if r.Amount != want[i] {
			t.Errorf("row %d amount = %d, want %d", i, r.Amount, want[i])
		}
	}
	if !rows[0].Date.Equal(time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("date = %v", rows[0].Date)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want core.Money
		ok   bool
	}{
		{"1500", 1500, true},
		{"1.500", 1500, true},
		{"2e+06", 2_000_000, true},
		{"", 0, false},
		{"x", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseAmount(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseAmount(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
