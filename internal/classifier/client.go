// Package classifier calls the external text-classification service that
// turns free text such as "vừa ăn trưa 50 nghìn" into a ledger record.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sixjars/internal/core"
	"sixjars/internal/services"
)

const (
	defaultTimeout  = 15 * time.Second
	maxResponseSize = 1 << 20
)

var ErrEmptyResponse = errors.New("classifier returned no record")

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

type Options struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client implements services.Classifier over HTTP.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

var _ services.Classifier = (*Client)(nil)

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("missing CLASSIFIER_URL")
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{url: opts.URL, apiKey: opts.APIKey, http: hc}, nil
}

type request struct {
	Text string `json:"text"`
}

// record mirrors core.Classification but accepts a fractional amount, which
// language models sometimes emit for whole numbers.
type record struct {
	Type        core.TxType `json:"type"`
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Confidence  float64     `json:"confidence"`
	Jar         string      `json:"jar"`
	Source      string      `json:"source"`
	Description string      `json:"description"`
}

// Classify posts text and decodes the service's record. The result is not
// validated here; the classification service does that.
func (c *Client) Classify(ctx context.Context, text string) (core.Classification, error) {
	body, err := json.Marshal(request{Text: text})
	if err != nil {
		return core.Classification{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return core.Classification{}, fmt.Errorf("build classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return core.Classification{}, fmt.Errorf("%w: %v", services.ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return core.Classification{}, fmt.Errorf("%w: read body: %v", services.ErrClassifierUnavailable, err)
	}
	slog.DebugContext(ctx, "Classifier responded", "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return core.Classification{}, fmt.Errorf("%w: status %d", services.ErrClassifierUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return core.Classification{}, fmt.Errorf("classifier rejected request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return decode(raw)
}

// decode extracts the first JSON object from raw, tolerating markdown fences
// and surrounding prose.
func decode(raw []byte) (core.Classification, error) {
	obj := jsonObject.Find(raw)
	if obj == nil {
		return core.Classification{}, ErrEmptyResponse
	}

	var rec record
	if err := json.Unmarshal(obj, &rec); err != nil {
		return core.Classification{}, &core.ClassificationError{Field: "body", Reason: "is not valid JSON: " + err.Error()}
	}

	amount, err := wholeAmount(rec.Amount)
	if err != nil {
		return core.Classification{}, err
	}

	return core.Classification{
		Type:        core.TxType(strings.ToLower(strings.TrimSpace(string(rec.Type)))),
		Amount:      amount,
		Category:    rec.Category,
		Confidence:  rec.Confidence,
		Jar:         core.JarCode(rec.Jar),
		Source:      rec.Source,
		Description: rec.Description,
	}, nil
}

func wholeAmount(n json.Number) (core.Money, error) {
	if n == "" {
		return 0, &core.ClassificationError{Field: "amount", Reason: "is missing"}
	}
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return core.Money(i), nil
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, &core.ClassificationError{Field: "amount", Reason: "must be a whole number"}
	}
	return core.Money(f), nil
}
