package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sixjars/internal/core"
)

const maxBodyBytes = 1 << 20

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// decodeJSON reads one JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		var amountErr *amountError
		switch {
		case errors.Is(err, io.EOF):
			return badRequest("request body is required")
		case errors.As(err, &tooLarge):
			return badRequest("request body exceeds %d bytes", tooLarge.Limit)
		case errors.As(err, &amountErr):
			return fmt.Errorf("%w: %s", core.ErrInvalidAmount, amountErr.input)
		default:
			return badRequest("malformed JSON: %v", err)
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// Amount accepts a JSON integer or a VND string such as "50k", "2tr",
// "2 triệu" or "10.000.000".
type Amount core.Money

type amountError struct {
	input string
}

func (e *amountError) Error() string { return "invalid amount " + e.input }

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		m, err := core.ParseAmount(s)
		if err != nil {
			return &amountError{input: strconv.Quote(s)}
		}
		*a = Amount(m)
		return nil
	}
	if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
		*a = Amount(n)
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > float64(core.MaxAmount) {
		return &amountError{input: string(b)}
	}
	*a = Amount(int64(f))
	return nil
}

func (a Amount) Money() core.Money { return core.Money(a) }

// queryInt returns def when key is absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("query parameter %s must be an integer", key)
	}
	return n, nil
}

// optionalJar parses a jar code that may be empty.
func optionalJar(s string) (core.JarCode, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return core.ParseJarCode(s)
}

// parseDate accepts YYYY-MM-DD (midnight in loc) or RFC 3339.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD or RFC 3339", core.ErrInvalidBudget, s)
	}
	return t, nil
}

// sanitizeInput removes control characters other than tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
