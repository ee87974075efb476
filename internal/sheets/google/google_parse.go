package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"sixjars/internal/core"
	ports "sixjars/internal/sheets"
)

// parseRows converts a values matrix (as returned by the Sheets API) into
// rows. Rows without an event id or a parseable amount are skipped.
func parseRows(values [][]any, loc *time.Location) []ports.Row {
	out := make([]ports.Row, 0, len(values))
	for _, raw := range values {
		cols := toStrings(raw)
		if len(cols) < len(ports.Header) {
			continue
		}
		if strings.EqualFold(cols[0], ports.Header[0]) {
			continue
		}
		id := cols[6]
		if id == "" {
			continue
		}
		amount, ok := parseAmount(cols[4])
		if !ok {
			continue
		}
		date, _ := time.ParseInLocation(ports.DateLayout, cols[0], loc)
		out = append(out, ports.Row{
			Date:        date,
			UserID:      cols[1],
			Kind:        core.EventKind(cols[2]),
			Jar:         cols[3],
			Amount:      amount,
			Description: cols[5],
			EventID:     id,
		})
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// parseAmount accepts whole numbers as written back by USER_ENTERED, with or
// without thousands separators, and the exponent form fmt uses for large floats.
func parseAmount(s string) (core.Money, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return core.Money(n), true
	}
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 0 {
			return 0, false
		}
		return core.Money(f + 0.5), true
	}
	m, err := core.ParseAmount(s)
	if err != nil {
		return 0, false
	}
	return m, true
}
