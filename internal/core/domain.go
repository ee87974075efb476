package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	TxExpense  TxType = "expense"
	TxIncome   TxType = "income"
	TxTransfer TxType = "transfer"

	BudgetMonthly BudgetPeriod = "monthly"
	BudgetYearly  BudgetPeriod = "yearly"

	// DefaultAlertThreshold applies when a budget has no threshold set.
	DefaultAlertThreshold = 80

	// DefaultListLimit and MaxListLimit bound list queries.
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type (
	TxType       string
	BudgetPeriod string

	// JarState is the running state of one jar for one user.
	// Balance = allocated - spent, adjusted by transfers; it may go negative.
	JarState struct {
		Code            JarCode   `json:"code"`
		Allocated       Money     `json:"allocated"`
		Spent           Money     `json:"spent"`
		Balance         Money     `json:"balance"`
		PeriodStartedAt time.Time `json:"periodStartedAt"`
		UpdatedAt       time.Time `json:"updatedAt"`
	}

	// JarDelta is an increment applied to a jar's accumulators.
	JarDelta struct {
		Code      JarCode
		Allocated Money
		Spent     Money
		Balance   Money
	}

	// JarPeriod is the archived snapshot of a jar when a period is closed.
	JarPeriod struct {
		ID          string    `json:"id"`
		UserID      string    `json:"userId"`
		Code        JarCode   `json:"code"`
		PeriodStart time.Time `json:"periodStart"`
		PeriodEnd   time.Time `json:"periodEnd"`
		Allocated   Money     `json:"allocated"`
		Spent       Money     `json:"spent"`
		Balance     Money     `json:"balance"`
	}

	IncomeRecord struct {
		ID            string     `json:"id"`
		UserID        string     `json:"userId"`
		Amount        Money      `json:"amount"`
		Source        string     `json:"source"`
		Category      string     `json:"category,omitempty"`
		Note          string     `json:"note,omitempty"`
		Allocated     Allocation `json:"allocated"`
		AutoAllocated bool       `json:"autoAllocated"`
		CreatedAt     time.Time  `json:"createdAt"`
	}

	Transaction struct {
		ID             string    `json:"id"`
		UserID         string    `json:"userId"`
		Type           TxType    `json:"type"`
		Amount         Money     `json:"amount"`
		JarCode        JarCode   `json:"jarCode,omitempty"`
		ToJarCode      JarCode   `json:"toJarCode,omitempty"`
		Category       string    `json:"category,omitempty"`
		Description    string    `json:"description,omitempty"`
		RecognizedText string    `json:"recognizedText,omitempty"`
		CreatedAt      time.Time `json:"createdAt"`
	}

	// TransactionFilter narrows a transaction listing. Zero values mean "any".
	TransactionFilter struct {
		JarCode    JarCode
		Type       TxType
		MaxResults int
	}

	Budget struct {
		ID             string       `json:"id"`
		UserID         string       `json:"userId"`
		JarCode        JarCode      `json:"jarCode"`
		Category       string       `json:"category,omitempty"`
		Amount         Money        `json:"amount"`
		Period         BudgetPeriod `json:"period"`
		StartDate      time.Time    `json:"startDate"`
		EndDate        *time.Time   `json:"endDate,omitempty"`
		AlertThreshold int          `json:"alertThreshold"`
		CreatedAt      time.Time    `json:"createdAt"`
		UpdatedAt      time.Time    `json:"updatedAt"`
	}

	// BudgetAlert is the outcome of comparing spend against the active budget.
	BudgetAlert struct {
		Exceeded   bool    `json:"exceeded"`
		Percentage float64 `json:"percentage"`
		Spent      Money   `json:"spent"`
		Budget     *Budget `json:"budget"`
	}

	Stats struct {
		Income   Money `json:"income"`
		Expenses Money `json:"expenses"`
		Savings  Money `json:"savings"`
	}
)

func (t TxType) Valid() bool {
	switch t {
	case TxExpense, TxIncome, TxTransfer:
		return true
	}
	return false
}

func (p BudgetPeriod) Valid() bool {
	return p == BudgetMonthly || p == BudgetYearly
}

// Apply adds d to the jar. It is the in-memory form of the storage increment.
func (s *JarState) Apply(d JarDelta) {
	s.Allocated += d.Allocated
	s.Spent += d.Spent
	s.Balance += d.Balance
}

// SpendDelta debits a jar: spent grows, balance shrinks.
func SpendDelta(code JarCode, amount Money) JarDelta {
	return JarDelta{Code: code, Spent: amount, Balance: -amount}
}

// TransferDeltas moves balance only; allocated and spent are untouched.
func TransferDeltas(from, to JarCode, amount Money) []JarDelta {
	return []JarDelta{
		{Code: from, Balance: -amount},
		{Code: to, Balance: amount},
	}
}

// ZeroJars returns a fresh, zeroed state for every catalog jar.
func ZeroJars(now time.Time) map[JarCode]JarState {
	out := make(map[JarCode]JarState, len(catalog))
	for _, d := range catalog {
		out[d.Code] = JarState{Code: d.Code, PeriodStartedAt: now, UpdatedAt: now}
	}
	return out
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidTxType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	switch t.Type {
	case TxExpense:
		if _, err := ByCode(t.JarCode); err != nil {
			return err
		}
	case TxTransfer:
		if _, err := ByCode(t.JarCode); err != nil {
			return err
		}
		if _, err := ByCode(t.ToJarCode); err != nil {
			return err
		}
		if t.JarCode == t.ToJarCode {
			return ErrSameJarTransfer
		}
	case TxIncome:
		if t.JarCode != "" && !t.JarCode.Valid() {
			return ErrUnknownJar
		}
	}
	return nil
}

// Limit clamps MaxResults to [1, MaxListLimit], defaulting to DefaultListLimit.
func (f TransactionFilter) Limit() int {
	return ClampLimit(f.MaxResults)
}

func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > MaxListLimit:
		return MaxListLimit
	}
	return n
}

func (b Budget) Validate() error {
	if _, err := ByCode(b.JarCode); err != nil {
		return err
	}
	if b.Amount.Validate() != nil {
		return errors.Join(ErrInvalidBudget, ErrInvalidAmount)
	}
	if !b.Period.Valid() {
		return errors.Join(ErrInvalidBudget, errors.New("period must be monthly or yearly"))
	}
	if b.StartDate.IsZero() {
		return errors.Join(ErrInvalidBudget, errors.New("start date is required"))
	}
	if !StorableDate(b.StartDate) || (b.EndDate != nil && !StorableDate(*b.EndDate)) {
		return errors.Join(ErrInvalidBudget, fmt.Errorf("dates must fall between %d and %d", MinWindowYear, MaxWindowYear))
	}
	if b.EndDate != nil && !b.EndDate.After(b.StartDate) {
		return errors.Join(ErrInvalidBudget, errors.New("end date must be after start date"))
	}
	if b.AlertThreshold < 0 || b.AlertThreshold > 100 {
		return errors.Join(ErrInvalidBudget, errors.New("alert threshold must be between 1 and 100"))
	}
	if len(strings.TrimSpace(b.Category)) > 100 {
		return errors.Join(ErrInvalidBudget, errors.New("category too long (max 100 characters)"))
	}
	return nil
}

// Threshold returns the alert threshold, falling back to DefaultAlertThreshold.
func (b Budget) Threshold() int {
	if b.AlertThreshold <= 0 {
		return DefaultAlertThreshold
	}
	return b.AlertThreshold
}

// ActiveAt reports whether the budget covers t: started, and no end date or
// an end date after t.
func (b Budget) ActiveAt(t time.Time) bool {
	if b.StartDate.After(t) {
		return false
	}
	return b.EndDate == nil || b.EndDate.After(t)
}

// EvaluateBudget computes the alert for spent against b. A nil budget never alerts.
func EvaluateBudget(b *Budget, spent Money) BudgetAlert {
	if b == nil || b.Amount <= 0 {
		return BudgetAlert{Spent: spent}
	}
	// Exceeded is decided on integers; the float is for display only.
	return BudgetAlert{
		Exceeded:   int64(spent)*100 >= int64(b.Threshold())*int64(b.Amount),
		Percentage: float64(spent) / float64(b.Amount) * 100,
		Spent:      spent,
		Budget:     b,
	}
}

// NewStats derives savings from income and expenses. Savings may be negative.
func NewStats(income, expenses Money) Stats {
	return Stats{Income: income, Expenses: expenses, Savings: income - expenses}
}
