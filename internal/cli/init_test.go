package cli

import (
	"context"
	"testing"
	"time"

	"sixjars/internal/config"
	"sixjars/internal/core"
	"sixjars/internal/services"
	"sixjars/internal/storage/memory"
)

func TestNewServices(t *testing.T) {
	for _, ttl := range []time.Duration{0, time.Minute} {
		cfg := &config.Config{Timezone: "UTC", StatsCacheTTL: ttl}
		svc, err := NewServices(memory.New(), cfg, nil)
		if err != nil {
			t.Fatalf("ttl %v: NewServices: %v", ttl, err)
		}
		if (svc.statsCache != nil) != (ttl > 0) {
			t.Errorf("ttl %v: stats cache present = %v", ttl, svc.statsCache != nil)
		}
		if svc.Env.Location != time.UTC {
			t.Errorf("location = %v", svc.Env.Location)
		}

		ctx := context.Background()
		if _, err := svc.Incomes.RecordIncome(ctx, "u1", services.IncomeInput{Amount: 1_000_000, Source: "salary"}); err != nil {
			t.Fatalf("RecordIncome: %v", err)
		}
		stats, err := svc.Stats.Stats(ctx, "u1", core.WindowLifetime, 0, 0)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if stats.Income != 1_000_000 {
			t.Errorf("lifetime income = %d", stats.Income)
		}
		svc.Close()
	}
}

func TestNewClassifierDisabledWithoutURL(t *testing.T) {
	c, err := NewClassifier(&config.Config{})
	if err != nil || c != nil {
		t.Fatalf("NewClassifier() = %v, %v; want nil, nil", c, err)
	}

	c, err = NewClassifier(&config.Config{ClassifierURL: "http://localhost:9000/classify", ClassifierTimeout: time.Second})
	if err != nil || c == nil {
		t.Fatalf("NewClassifier() = %v, %v; want a client", c, err)
	}
}
