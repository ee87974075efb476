package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"sixjars/internal/config"
	"sixjars/internal/core"
)

func TestBackendType_IsValid(t *testing.T) {
	for _, bt := range GetBackendTypes() {
		if !bt.IsValid() {
			t.Errorf("%s should be valid", bt)
		}
	}
	if BackendType("sheets").IsValid() {
		t.Error("sheets is not a ledger backend")
	}
	if got := GetBackendTypeStrings(); len(got) != 3 || got[0] != "sqlite" {
		t.Errorf("GetBackendTypeStrings() = %v", got)
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "excel"}); err == nil {
		t.Error("expected error for unknown backend")
	}

	cfg, err := FromAppConfig(&config.Config{DataBackend: "postgres", PostgresDSN: "postgres://db/x"})
	if err != nil {
		t.Fatalf("FromAppConfig() error: %v", err)
	}
	if cfg.Type != PostgresBackend || cfg.PostgresDSN != "postgres://db/x" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without dsn", Config{Type: PostgresBackend}, true},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFactory_CreateMemoryBackend(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend() error: %v", err)
	}
	defer res.Cleanup()

	if err := res.Store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
	jars, err := res.Store.ListJars(ctx, "nobody")
	if err != nil || len(jars) != 0 {
		t.Fatalf("ListJars() = %v, %v", jars, err)
	}
}

func TestFactory_CreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateBackend() error: %v", err)
	}
	defer res.Cleanup()

	if err := res.Store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
	if _, err := res.Store.GetIncome(ctx, "u1", "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetIncome() error = %v, want not found", err)
	}
}

func TestFactory_InvalidConfig(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: PostgresBackend}); err == nil {
		t.Error("expected validation error")
	}
}
