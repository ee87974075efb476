package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sixjars/internal/log"
)

const (
	CadenceMonthly Cadence = "monthly"
	CadenceYearly  Cadence = "yearly"
)

// Cadence is how often jar periods roll over.
type Cadence string

// DuenessChecker decides whether a period that started at periodStart has
// ended by now. Both times are compared in loc.
type DuenessChecker interface {
	IsDue(periodStart, now time.Time, loc *time.Location) bool
}

// MonthlyChecker is due once the calendar month has changed.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(periodStart, now time.Time, loc *time.Location) bool {
	if periodStart.IsZero() {
		return true
	}
	ps, n := periodStart.In(loc), now.In(loc)
	return ps.Year() != n.Year() || ps.Month() != n.Month()
}

// YearlyChecker is due once the calendar year has changed.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(periodStart, now time.Time, loc *time.Location) bool {
	if periodStart.IsZero() {
		return true
	}
	return periodStart.In(loc).Year() != now.In(loc).Year()
}

var duenessStrategies = map[Cadence]DuenessChecker{
	CadenceMonthly: MonthlyChecker{},
	CadenceYearly:  YearlyChecker{},
}

func GetDuenessChecker(c Cadence) (DuenessChecker, error) {
	checker, ok := duenessStrategies[c]
	if !ok {
		return nil, fmt.Errorf("unknown period cadence: %s", c)
	}
	return checker, nil
}

// PeriodRoller resets the jar period of every user whose current period has
// ended. Running it twice in the same period is a no-op.
type PeriodRoller struct {
	env     Env
	jars    *JarLedger
	checker DuenessChecker
}

func NewPeriodRoller(env Env, jars *JarLedger, cadence Cadence) (*PeriodRoller, error) {
	if cadence == "" {
		cadence = CadenceMonthly
	}
	checker, err := GetDuenessChecker(cadence)
	if err != nil {
		return nil, err
	}
	return &PeriodRoller{env: env.withDefaults(), jars: jars, checker: checker}, nil
}

// RollAll returns how many users were reset. A failure for one user does not
// stop the others; all failures are returned together.
func (r *PeriodRoller) RollAll(ctx context.Context) (int, error) {
	owners, err := r.env.Store.ListJarOwners(ctx)
	if err != nil {
		return 0, fmt.Errorf("list jar owners: %w", err)
	}
	now := r.env.Now()

	slog.InfoContext(ctx, "Rolling jar periods",
		"users", len(owners),
		"processing_date", now.In(r.env.Location).Format("2006-01-02"))

	var (
		rolled int
		errs   []error
	)
	for _, userID := range owners {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		due, err := r.isDue(ctx, userID, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check period dueness", log.FieldUserID, userID, "error", err)
			errs = append(errs, err)
			continue
		}
		if !due {
			continue
		}
		if _, err := r.jars.ResetPeriod(ctx, userID); err != nil {
			slog.ErrorContext(ctx, "Failed to reset jar period", log.FieldUserID, userID, "error", err)
			errs = append(errs, err)
			continue
		}
		rolled++
	}

	slog.InfoContext(ctx, "Jar period rollover complete",
		"rolled", rolled,
		"total_checked", len(owners))
	return rolled, errors.Join(errs...)
}

// isDue looks at the oldest period start among the user's jars.
func (r *PeriodRoller) isDue(ctx context.Context, userID string, now time.Time) (bool, error) {
	jars, err := r.env.Store.ListJars(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list jars of %s: %w", userID, err)
	}
	if len(jars) == 0 {
		return false, nil
	}
	oldest := jars[0].PeriodStartedAt
	for _, j := range jars[1:] {
		if j.PeriodStartedAt.Before(oldest) {
			oldest = j.PeriodStartedAt
		}
	}
	return r.checker.IsDue(oldest, now, r.env.Location), nil
}
