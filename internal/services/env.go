// Package services implements the jar ledger operations on top of a ledger.Store.
package services

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"sixjars/internal/cache"
	"sixjars/internal/core"
	"sixjars/internal/ledger"
)

// Env carries the collaborators shared by every service. Store is required;
// the rest default to wall clock, random UUIDs, UTC and no cache tracking.
type Env struct {
	Store       ledger.Store
	Now         func() time.Time
	NewID       func() string
	Location    *time.Location
	Generations *cache.Generations
}

func (e Env) withDefaults() Env {
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.NewID == nil {
		e.NewID = uuid.NewString
	}
	if e.Location == nil {
		e.Location = time.UTC
	}
	return e
}

func (e Env) touched(userID string) {
	e.Generations.Bump(userID)
}

func (e Env) newEvent(userID string, kind core.EventKind, now time.Time) core.LedgerEvent {
	return core.LedgerEvent{ID: e.NewID(), UserID: userID, Kind: kind, OccurredAt: now}
}

func checkUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrEmptyUser
	}
	return nil
}
