package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"sixjars/internal/core"
)

// ErrClassifierUnavailable is returned when no classifier is configured.
var ErrClassifierUnavailable = errors.New("classifier not configured")

// Classifier turns free-form text into a structured record. Implementations
// are untrusted; every result is validated before use.
type Classifier interface {
	Classify(ctx context.Context, text string) (core.Classification, error)
}

// Confirmation is what a confirmed classification was recorded as. Exactly
// one of Income and Transaction is set.
type Confirmation struct {
	Type        core.TxType        `json:"type"`
	Income      *core.IncomeRecord `json:"income,omitempty"`
	Transaction *core.Transaction  `json:"transaction,omitempty"`
}

type ClassificationService struct {
	classifier Classifier
	incomes    *IncomeService
	txs        *TransactionService
}

// NewClassificationService accepts a nil classifier; Classify then fails
// with ErrClassifierUnavailable while Confirm keeps working.
func NewClassificationService(c Classifier, incomes *IncomeService, txs *TransactionService) *ClassificationService {
	return &ClassificationService{classifier: c, incomes: incomes, txs: txs}
}

func (s *ClassificationService) Classify(ctx context.Context, text string) (core.Classification, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return core.Classification{}, &core.ClassificationError{Field: "text", Reason: "is empty"}
	}
	if s.classifier == nil {
		return core.Classification{}, ErrClassifierUnavailable
	}
	c, err := s.classifier.Classify(ctx, text)
	if err != nil {
		return core.Classification{}, fmt.Errorf("classify: %w", err)
	}
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		slog.WarnContext(ctx, "Classifier result rejected", "error", err)
		return core.Classification{}, err
	}
	return c, nil
}

// Confirm records a classification the user accepted. Income goes through
// the allocation workflow; expenses are appended with the original text.
func (s *ClassificationService) Confirm(ctx context.Context, userID string, c core.Classification, recognizedText string) (Confirmation, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return Confirmation{}, err
	}

	switch c.Type {
	case core.TxIncome:
		rec, err := s.incomes.RecordIncome(ctx, userID, IncomeInput{
			Amount:   c.Amount,
			Source:   c.Source,
			Category: c.Category,
			Note:     c.Description,
		})
		if err != nil {
			return Confirmation{}, err
		}
		return Confirmation{Type: core.TxIncome, Income: &rec}, nil
	default:
		tx, err := s.txs.RecordExpense(ctx, userID, ExpenseInput{
			Amount:         c.Amount,
			JarCode:        c.Jar,
			Category:       c.Category,
			Description:    c.Description,
			RecognizedText: strings.TrimSpace(recognizedText),
		})
		if err != nil {
			return Confirmation{}, err
		}
		return Confirmation{Type: core.TxExpense, Transaction: &tx}, nil
	}
}
