package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sixjars/internal/cache"
	"sixjars/internal/core"
	"sixjars/internal/services"
	"sixjars/internal/storage/memory"
)

var testSecret = []byte("test-secret")

type stubClassifier struct {
	result core.Classification
	err    error
}

func (c stubClassifier) Classify(context.Context, string) (core.Classification, error) {
	return c.result, c.err
}

type testServer struct {
	*httptest.Server
	token string
}

func newTestServer(t *testing.T, classifier services.Classifier) *testServer {
	t.Helper()
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	var seq atomic.Int64
	store := memory.New()
	env := services.Env{
		Store:       store,
		Now:         func() time.Time { return now },
		NewID:       func() string { return fmt.Sprintf("id-%d", seq.Add(1)) },
		Location:    time.UTC,
		Generations: cache.NewGenerations(),
	}
	txs := services.NewTransactionService(env)
	incomes := services.NewIncomeService(env)
	if classifier == nil {
		classifier = stubClassifier{err: services.ErrClassifierUnavailable}
	}
	svc := Services{
		Jars:           services.NewJarLedger(env),
		Transactions:   txs,
		Incomes:        incomes,
		Stats:          services.NewStatsService(env, nil),
		Budgets:        services.NewBudgetService(env, txs),
		Goals:          services.NewGoalService(env),
		Classification: services.NewClassificationService(classifier, incomes, txs),
		Store:          store,
	}
	srv := NewServer(":0", svc, Options{
		Auth:     AuthConfig{Secret: testSecret},
		Location: time.UTC,
		Now:      env.Now,
		Logger:   nil,
	})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return &testServer{Server: ts, token: signToken(t, "user-1", testSecret)}
}

func signToken(t *testing.T, subject string, secret []byte) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	return ts.doAs(t, ts.token, method, path, body)
}

func (ts *testServer) doAs(t *testing.T, token, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func decodeBody[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, body []byte, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status = %d, want %d; body=%s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}

func jarByCode(t *testing.T, r jarsResponse, code core.JarCode) jarView {
	t.Helper()
	for _, j := range r.Jars {
		if j.Code == code {
			return j
		}
	}
	t.Fatalf("jar %s missing from response", code)
	return jarView{}
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.doAs(t, "", http.MethodGet, "/healthz", "")
	expectStatus(t, resp, body, http.StatusOK)

	resp, body = ts.doAs(t, "", http.MethodGet, "/readyz", "")
	expectStatus(t, resp, body, http.StatusOK)
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("security headers missing: %v", resp.Header)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestCatalogIsPublic(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.doAs(t, "", http.MethodGet, "/api/catalog", "")
	expectStatus(t, resp, body, http.StatusOK)

	got := decodeBody[struct {
		Jars []core.JarDefinition `json:"jars"`
	}](t, body)
	if len(got.Jars) != 6 {
		t.Fatalf("catalog has %d jars, want 6", len(got.Jars))
	}
	total := 0
	for _, j := range got.Jars {
		total += j.Percentage
	}
	if total != 100 {
		t.Errorf("percentages sum to %d, want 100", total)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", signToken(t, "user-1", []byte("other"))},
		{"empty subject", signToken(t, "", testSecret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.doAs(t, tt.token, http.MethodGet, "/api/jars", "")
			expectStatus(t, resp, body, http.StatusUnauthorized)
			if resp.Header.Get("WWW-Authenticate") == "" {
				t.Error("WWW-Authenticate header missing")
			}
			if got := decodeBody[errorResponse](t, body); got.Code != "unauthorized" {
				t.Errorf("code = %q, want unauthorized", got.Code)
			}
		})
	}
}

func TestListJarsInitializesUser(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/api/jars", "")
	expectStatus(t, resp, body, http.StatusOK)

	got := decodeBody[jarsResponse](t, body)
	if len(got.Jars) != 6 {
		t.Fatalf("got %d jars, want 6", len(got.Jars))
	}
	for _, j := range got.Jars {
		if j.Allocated != 0 || j.Spent != 0 || j.Balance != 0 {
			t.Errorf("jar %s not zeroed: %+v", j.Code, j.JarState)
		}
		if j.Name == "" {
			t.Errorf("jar %s has no display name", j.Code)
		}
	}
}

func TestIncomeExpenseTransferFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/api/incomes", `{"amount":"10tr","source":"salary"}`)
	expectStatus(t, resp, body, http.StatusCreated)
	income := decodeBody[core.IncomeRecord](t, body)
	if income.Amount != 10_000_000 {
		t.Fatalf("income amount = %d, want 10000000", income.Amount)
	}
	if income.Allocated[core.NEC] != 5_500_000 || income.Allocated[core.GIVE] != 500_000 {
		t.Errorf("allocation = %v", income.Allocated)
	}

	resp, body = ts.do(t, http.MethodPost, "/api/expenses", `{"amount":"50k","jarCode":"nec","category":"food","description":"lunch"}`)
	expectStatus(t, resp, body, http.StatusCreated)
	exp := decodeBody[expenseResponse](t, body)
	if exp.Transaction.Amount != 50_000 || exp.Transaction.JarCode != core.NEC {
		t.Errorf("expense = %+v", exp.Transaction)
	}

	resp, body = ts.do(t, http.MethodPost, "/api/jars/transfer", `{"from":"NEC","to":"PLAY","amount":100000,"note":"treat"}`)
	expectStatus(t, resp, body, http.StatusCreated)

	resp, body = ts.do(t, http.MethodGet, "/api/jars", "")
	expectStatus(t, resp, body, http.StatusOK)
	jars := decodeBody[jarsResponse](t, body)

	nec := jarByCode(t, jars, core.NEC)
	if nec.Allocated != 5_500_000 || nec.Spent != 50_000 || nec.Balance != 5_350_000 {
		t.Errorf("NEC = %+v", nec.JarState)
	}
	play := jarByCode(t, jars, core.PLAY)
	if play.Balance != 1_100_000 {
		t.Errorf("PLAY balance = %d, want 1100000", play.Balance)
	}
	if jars.Total.Allocated != 10_000_000 || jars.Total.Balance != 9_950_000 {
		t.Errorf("total = %+v", jars.Total)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/transactions?type=expense", "")
	expectStatus(t, resp, body, http.StatusOK)
	list := decodeBody[struct {
		Transactions []core.Transaction `json:"transactions"`
	}](t, body)
	if len(list.Transactions) != 1 {
		t.Fatalf("got %d expenses, want 1", len(list.Transactions))
	}

	resp, body = ts.do(t, http.MethodGet, "/api/stats?window=month", "")
	expectStatus(t, resp, body, http.StatusOK)
	stats := decodeBody[statsResponse](t, body)
	if stats.Income != 10_000_000 || stats.Expenses != 50_000 || stats.Savings != 9_950_000 {
		t.Errorf("stats = %+v", stats.Stats)
	}
	if stats.Month != 3 || stats.Year != 2024 {
		t.Errorf("window = %d/%d, want 3/2024", stats.Month, stats.Year)
	}
}

func TestDeleteTransactionKeepsJarDebit(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.do(t, http.MethodPost, "/api/incomes", `{"amount":1000000,"source":"gift"}`)
	resp, body := ts.do(t, http.MethodPost, "/api/expenses", `{"amount":200000,"jarCode":"EDU","category":"books"}`)
	expectStatus(t, resp, body, http.StatusCreated)
	exp := decodeBody[expenseResponse](t, body)

	resp, body = ts.do(t, http.MethodDelete, "/api/transactions/"+exp.Transaction.ID, "")
	expectStatus(t, resp, body, http.StatusNoContent)

	resp, body = ts.do(t, http.MethodGet, "/api/jars/edu", "")
	expectStatus(t, resp, body, http.StatusOK)
	edu := decodeBody[jarView](t, body)
	if edu.Spent != 200_000 || edu.Balance != -100_000 {
		t.Errorf("EDU after delete = %+v, want the debit kept", edu.JarState)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/transactions/"+exp.Transaction.ID, "")
	expectStatus(t, resp, body, http.StatusNotFound)
}

func TestManualIncomeSkipsAllocation(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/api/incomes", `{"amount":500000,"source":"refund","autoAllocate":false}`)
	expectStatus(t, resp, body, http.StatusCreated)
	if rec := decodeBody[core.IncomeRecord](t, body); rec.AutoAllocated {
		t.Error("income was auto allocated")
	}

	resp, body = ts.do(t, http.MethodGet, "/api/jars", "")
	expectStatus(t, resp, body, http.StatusOK)
	if total := decodeBody[jarsResponse](t, body).Total.Allocated; total != 0 {
		t.Errorf("allocated = %d, want 0", total)
	}
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"negative amount", http.MethodPost, "/api/incomes", `{"amount":-5,"source":"x"}`, http.StatusUnprocessableEntity, "invalid_amount"},
		{"bad shorthand", http.MethodPost, "/api/incomes", `{"amount":"lots","source":"x"}`, http.StatusUnprocessableEntity, "invalid_amount"},
		{"unknown jar", http.MethodPost, "/api/expenses", `{"amount":1000,"jarCode":"XYZ"}`, http.StatusUnprocessableEntity, "unknown_jar"},
		{"same jar transfer", http.MethodPost, "/api/jars/transfer", `{"from":"NEC","to":"nec","amount":1000}`, http.StatusUnprocessableEntity, "same_jar_transfer"},
		{"empty body", http.MethodPost, "/api/incomes", "", http.StatusBadRequest, "bad_request"},
		{"malformed json", http.MethodPost, "/api/incomes", `{"amount":`, http.StatusBadRequest, "bad_request"},
		{"two objects", http.MethodPost, "/api/incomes", `{"amount":1}{"amount":2}`, http.StatusBadRequest, "bad_request"},
		{"bad window", http.MethodGet, "/api/stats?window=decade", "", http.StatusUnprocessableEntity, "invalid_window"},
		{"bad month", http.MethodGet, "/api/stats?month=13", "", http.StatusUnprocessableEntity, "invalid_window"},
		{"year past nanosecond range", http.MethodGet, "/api/stats?window=year&year=2610", "", http.StatusUnprocessableEntity, "invalid_window"},
		{"bad limit", http.MethodGet, "/api/transactions?limit=abc", "", http.StatusBadRequest, "bad_request"},
		{"bad type filter", http.MethodGet, "/api/transactions?type=refund", "", http.StatusUnprocessableEntity, "invalid_type"},
		{"missing income", http.MethodGet, "/api/incomes/nope", "", http.StatusNotFound, "not_found"},
		{"missing budget", http.MethodGet, "/api/budgets/nope", "", http.StatusNotFound, "not_found"},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound, "not_found"},
		{"classifier down", http.MethodPost, "/api/classify", `{"text":"coffee 30k"}`, http.StatusServiceUnavailable, "classifier_unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, tt.method, tt.path, tt.body)
			expectStatus(t, resp, body, tt.status)
			if got := decodeBody[errorResponse](t, body); got.Code != tt.code {
				t.Errorf("code = %q, want %q (error %q)", got.Code, tt.code, got.Error)
			}
		})
	}
}

func TestBudgetLifecycleAndAlert(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/api/budgets", `{"jarCode":"PLAY","amount":"1tr","startDate":"2024-03-01"}`)
	expectStatus(t, resp, body, http.StatusCreated)
	b := decodeBody[core.Budget](t, body)
	if b.Period != core.BudgetMonthly || b.AlertThreshold != core.DefaultAlertThreshold {
		t.Errorf("defaults not applied: %+v", b)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/budgets/alert?jar=PLAY&spent=500000", "")
	expectStatus(t, resp, body, http.StatusOK)
	if alert := decodeBody[core.BudgetAlert](t, body); alert.Exceeded || alert.Percentage != 50 {
		t.Errorf("alert at 500k = %+v", alert)
	}

	resp, body = ts.do(t, http.MethodPost, "/api/expenses", `{"amount":"900k","jarCode":"PLAY"}`)
	expectStatus(t, resp, body, http.StatusCreated)
	exp := decodeBody[expenseResponse](t, body)
	if exp.Alert == nil || !exp.Alert.Exceeded {
		t.Errorf("expense alert = %+v, want exceeded", exp.Alert)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/budgets/alert?jar=play", "")
	expectStatus(t, resp, body, http.StatusOK)
	if alert := decodeBody[core.BudgetAlert](t, body); alert.Spent != 900_000 || !alert.Exceeded {
		t.Errorf("month-to-date alert = %+v", alert)
	}

	resp, body = ts.do(t, http.MethodPut, "/api/budgets/"+b.ID, `{"jarCode":"PLAY","amount":"2tr","alertThreshold":90}`)
	expectStatus(t, resp, body, http.StatusOK)
	updated := decodeBody[core.Budget](t, body)
	if updated.Amount != 2_000_000 || !updated.StartDate.Equal(b.StartDate) {
		t.Errorf("updated = %+v", updated)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/budgets?jar=PLAY", "")
	expectStatus(t, resp, body, http.StatusOK)
	list := decodeBody[struct {
		Budgets []core.Budget `json:"budgets"`
	}](t, body)
	if len(list.Budgets) != 1 {
		t.Fatalf("got %d budgets, want 1", len(list.Budgets))
	}

	resp, body = ts.do(t, http.MethodDelete, "/api/budgets/"+b.ID, "")
	expectStatus(t, resp, body, http.StatusNoContent)

	resp, body = ts.do(t, http.MethodGet, "/api/budgets/alert?jar=PLAY&spent=5000000", "")
	expectStatus(t, resp, body, http.StatusOK)
	if alert := decodeBody[core.BudgetAlert](t, body); alert.Exceeded || alert.Budget != nil {
		t.Errorf("alert without budget = %+v", alert)
	}
}

func TestBudgetRejectsInvalidInput(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"zero amount", `{"jarCode":"NEC","amount":0}`, "invalid_amount"},
		{"bad period", `{"jarCode":"NEC","amount":1000,"period":"weekly"}`, "invalid_budget"},
		{"end before start", `{"jarCode":"NEC","amount":1000,"startDate":"2024-03-10","endDate":"2024-03-01"}`, "invalid_budget"},
		{"bad date", `{"jarCode":"NEC","amount":1000,"startDate":"March"}`, "invalid_budget"},
		{"unknown jar", `{"jarCode":"CAR","amount":1000}`, "unknown_jar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, http.MethodPost, "/api/budgets", tt.body)
			expectStatus(t, resp, body, http.StatusUnprocessableEntity)
			if got := decodeBody[errorResponse](t, body); got.Code != tt.code {
				t.Errorf("code = %q, want %q (error %q)", got.Code, tt.code, got.Error)
			}
		})
	}
}

func TestGoalLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/api/goals", `{"title":"Laptop","targetAmount":"3tr","targetDate":"2024-03-25","jarCode":"ltss"}`)
	expectStatus(t, resp, body, http.StatusCreated)
	g := decodeBody[core.GoalView](t, body)
	if g.Status != core.GoalActive || g.Priority != core.PriorityMedium || g.JarCode != core.LTSS {
		t.Errorf("defaults not applied: %+v", g)
	}
	if g.DaysRemaining == nil || *g.DaysRemaining != 10 {
		t.Errorf("daysRemaining = %v, want 10", g.DaysRemaining)
	}

	resp, body = ts.do(t, http.MethodPost, "/api/goals/"+g.ID+"/progress", `{"amount":"1tr"}`)
	expectStatus(t, resp, body, http.StatusOK)
	if v := decodeBody[core.GoalView](t, body); v.CurrentAmount != 1_000_000 || v.Status != core.GoalActive {
		t.Errorf("after 1tr = %+v", v)
	}

	resp, body = ts.do(t, http.MethodPost, "/api/goals/"+g.ID+"/progress", `{"amount":2000000}`)
	expectStatus(t, resp, body, http.StatusOK)
	if v := decodeBody[core.GoalView](t, body); v.Status != core.GoalCompleted || v.Progress != 100 {
		t.Errorf("after reaching target = %+v", v)
	}

	resp, body = ts.do(t, http.MethodPost, "/api/goals/"+g.ID+"/progress", `{"amount":-500000}`)
	expectStatus(t, resp, body, http.StatusOK)
	if v := decodeBody[core.GoalView](t, body); v.CurrentAmount != 2_500_000 || v.Status != core.GoalCompleted {
		t.Errorf("after withdrawal = %+v", v)
	}

	for _, in := range []string{
		`{"title":"Trip","targetAmount":1000000,"priority":"low"}`,
		`{"title":"Course","targetAmount":1000000,"priority":"high"}`,
	} {
		resp, body = ts.do(t, http.MethodPost, "/api/goals", in)
		expectStatus(t, resp, body, http.StatusCreated)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/goals/active", "")
	expectStatus(t, resp, body, http.StatusOK)
	active := decodeBody[struct {
		Goals []core.GoalView `json:"goals"`
	}](t, body)
	if len(active.Goals) != 2 || active.Goals[0].Title != "Course" || active.Goals[1].Title != "Trip" {
		t.Errorf("active goals = %+v", active.Goals)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/goals?status=completed", "")
	expectStatus(t, resp, body, http.StatusOK)
	completed := decodeBody[struct {
		Goals []core.GoalView `json:"goals"`
	}](t, body)
	if len(completed.Goals) != 1 || completed.Goals[0].ID != g.ID {
		t.Errorf("completed goals = %+v", completed.Goals)
	}

	resp, body = ts.do(t, http.MethodPut, "/api/goals/"+g.ID, `{"title":"Gaming laptop","targetAmount":"4tr","currentAmount":2500000}`)
	expectStatus(t, resp, body, http.StatusOK)
	if v := decodeBody[core.GoalView](t, body); v.Title != "Gaming laptop" || v.TargetAmount != 4_000_000 || v.TargetDate != nil {
		t.Errorf("updated = %+v", v)
	}

	resp, body = ts.do(t, http.MethodDelete, "/api/goals/"+g.ID, "")
	expectStatus(t, resp, body, http.StatusNoContent)

	resp, body = ts.do(t, http.MethodGet, "/api/goals/"+g.ID, "")
	expectStatus(t, resp, body, http.StatusNotFound)
}

func TestGoalRejectsInvalidInput(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/api/goals", `{"title":"Bike","targetAmount":1000000}`)
	expectStatus(t, resp, body, http.StatusCreated)
	g := decodeBody[core.GoalView](t, body)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"missing title", http.MethodPost, "/api/goals", `{"targetAmount":1000}`, http.StatusUnprocessableEntity, "invalid_goal"},
		{"zero target", http.MethodPost, "/api/goals", `{"title":"x","targetAmount":0}`, http.StatusUnprocessableEntity, "invalid_amount"},
		{"bad priority", http.MethodPost, "/api/goals", `{"title":"x","targetAmount":1000,"priority":"urgent"}`, http.StatusUnprocessableEntity, "invalid_goal"},
		{"bad date", http.MethodPost, "/api/goals", `{"title":"x","targetAmount":1000,"targetDate":"someday"}`, http.StatusUnprocessableEntity, "invalid_goal"},
		{"date past nanosecond range", http.MethodPost, "/api/goals", `{"title":"x","targetAmount":1000,"targetDate":"2400-01-01"}`, http.StatusUnprocessableEntity, "invalid_goal"},
		{"unknown jar", http.MethodPost, "/api/goals", `{"title":"x","targetAmount":1000,"jarCode":"CAR"}`, http.StatusUnprocessableEntity, "unknown_jar"},
		{"bad status filter", http.MethodGet, "/api/goals?status=paused", "", http.StatusUnprocessableEntity, "invalid_goal"},
		{"zero progress", http.MethodPost, "/api/goals/" + g.ID + "/progress", `{"amount":0}`, http.StatusUnprocessableEntity, "invalid_amount"},
		{"progress on missing goal", http.MethodPost, "/api/goals/nope/progress", `{"amount":1000}`, http.StatusNotFound, "not_found"},
		{"update missing goal", http.MethodPut, "/api/goals/nope", `{"title":"x","targetAmount":1000}`, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, tt.method, tt.path, tt.body)
			expectStatus(t, resp, body, tt.status)
			if got := decodeBody[errorResponse](t, body); got.Code != tt.code {
				t.Errorf("code = %q, want %q (error %q)", got.Code, tt.code, got.Error)
			}
		})
	}

	resp, body = ts.doAs(t, signToken(t, "user-2", testSecret), http.MethodGet, "/api/goals/"+g.ID, "")
	expectStatus(t, resp, body, http.StatusNotFound)
}

func TestClassifyAndConfirm(t *testing.T) {
	ts := newTestServer(t, stubClassifier{result: core.Classification{
		Type:       core.TxExpense,
		Amount:     35_000,
		Category:   "coffee",
		Confidence: 0.92,
		Jar:        core.PLAY,
	}})

	resp, body := ts.do(t, http.MethodPost, "/api/classify", `{"text":"cà phê 35k"}`)
	expectStatus(t, resp, body, http.StatusOK)
	c := decodeBody[core.Classification](t, body)
	if c.Amount != 35_000 || c.Jar != core.PLAY {
		t.Fatalf("classification = %+v", c)
	}

	resp, body = ts.do(t, http.MethodPost, "/api/classify/confirm",
		`{"type":"expense","amount":"35k","category":"coffee","jar":"play","recognizedText":"cà phê 35k"}`)
	expectStatus(t, resp, body, http.StatusCreated)
	conf := decodeBody[services.Confirmation](t, body)
	if conf.Transaction == nil || conf.Transaction.RecognizedText != "cà phê 35k" {
		t.Fatalf("confirmation = %+v", conf)
	}

	resp, body = ts.do(t, http.MethodPost, "/api/classify/confirm", `{"type":"income","amount":2000000,"category":"bonus"}`)
	expectStatus(t, resp, body, http.StatusCreated)
	conf = decodeBody[services.Confirmation](t, body)
	if conf.Income == nil || conf.Income.Source != "bonus" {
		t.Fatalf("income confirmation = %+v", conf)
	}
}

func TestResetPeriodArchivesJars(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.do(t, http.MethodPost, "/api/incomes", `{"amount":"1tr","source":"salary"}`)

	resp, body := ts.do(t, http.MethodPost, "/api/jars/reset", "")
	expectStatus(t, resp, body, http.StatusOK)
	closed := decodeBody[struct {
		Closed []core.JarPeriod `json:"closed"`
	}](t, body)
	if len(closed.Closed) != 6 {
		t.Fatalf("closed %d periods, want 6", len(closed.Closed))
	}

	resp, body = ts.do(t, http.MethodGet, "/api/jars/NEC/periods", "")
	expectStatus(t, resp, body, http.StatusOK)
	periods := decodeBody[struct {
		Periods []core.JarPeriod `json:"periods"`
	}](t, body)
	if len(periods.Periods) != 1 || periods.Periods[0].Allocated != 550_000 {
		t.Errorf("NEC periods = %+v", periods.Periods)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	ts := newTestServer(t, nil)
	other := signToken(t, "user-2", testSecret)

	resp, body := ts.do(t, http.MethodPost, "/api/incomes", `{"amount":"5tr","source":"salary"}`)
	expectStatus(t, resp, body, http.StatusCreated)
	rec := decodeBody[core.IncomeRecord](t, body)

	resp, body = ts.doAs(t, other, http.MethodGet, "/api/incomes/"+rec.ID, "")
	expectStatus(t, resp, body, http.StatusNotFound)

	resp, body = ts.doAs(t, other, http.MethodGet, "/api/jars", "")
	expectStatus(t, resp, body, http.StatusOK)
	if total := decodeBody[jarsResponse](t, body).Total.Allocated; total != 0 {
		t.Errorf("user-2 sees allocated %d", total)
	}
}

func TestClassifyMapsUnexpectedErrorsToInternal(t *testing.T) {
	ts := newTestServer(t, stubClassifier{err: errors.New("boom")})

	resp, body := ts.do(t, http.MethodPost, "/api/classify", `{"text":"x"}`)
	expectStatus(t, resp, body, http.StatusInternalServerError)
	got := decodeBody[errorResponse](t, body)
	if got.Code != "internal" || strings.Contains(got.Error, "boom") {
		t.Errorf("response leaks internals: %+v", got)
	}
}
