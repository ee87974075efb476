// Package sheets mirrors ledger events into a spreadsheet, one row per event.
package sheets

import (
	"context"
	"fmt"
	"time"

	"sixjars/internal/core"
)

// Header is the first row of the ledger sheet.
var Header = []string{"Date", "User", "Kind", "Jar", "Amount", "Description", "Event ID"}

type (
	// Row is one mirrored event in sheet column order.
	Row struct {
		Date        time.Time
		UserID      string
		Kind        core.EventKind
		Jar         string
		Amount      core.Money
		Description string
		EventID     string
	}

	// LedgerMirror appends events to the sheet. Appending an event id that
	// is already present is a no-op returning an empty reference.
	LedgerMirror interface {
		AppendEvent(ctx context.Context, ev core.LedgerEvent) (rowRef string, err error)
	}

	MirrorReader interface {
		ListRows(ctx context.Context) ([]Row, error)
	}
)

const DateLayout = "2006-01-02 15:04:05"

// RowFromEvent renders ev with its time in loc.
func RowFromEvent(ev core.LedgerEvent, loc *time.Location) Row {
	if loc == nil {
		loc = time.UTC
	}
	jar := string(ev.JarCode)
	if ev.ToJarCode != "" {
		jar = fmt.Sprintf("%s->%s", ev.JarCode, ev.ToJarCode)
	}
	return Row{
		Date:        ev.OccurredAt.In(loc),
		UserID:      ev.UserID,
		Kind:        ev.Kind,
		Jar:         jar,
		Amount:      ev.Amount,
		Description: ev.Description,
		EventID:     ev.ID,
	}
}

func (r Row) Values() []any {
	return []any{
		r.Date.Format(DateLayout),
		r.UserID,
		string(r.Kind),
		r.Jar,
		int64(r.Amount),
		r.Description,
		r.EventID,
	}
}
