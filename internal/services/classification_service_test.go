package services

import (
	"context"
	"errors"
	"testing"

	"sixjars/internal/core"
)

type stubClassifier struct {
	result core.Classification
	err    error
	calls  int
}

func (s *stubClassifier) Classify(_ context.Context, _ string) (core.Classification, error) {
	s.calls++
	return s.result, s.err
}

func newClassificationService(f fixture, c Classifier) *ClassificationService {
	return NewClassificationService(c, NewIncomeService(f.env), NewTransactionService(f.env))
}

func TestClassify_ValidatesClassifierOutput(t *testing.T) {
	tests := []struct {
		name    string
		result  core.Classification
		wantErr bool
		wantJar core.JarCode
	}{
		{"expense lowercase jar", core.Classification{Type: core.TxExpense, Amount: 50_000, Category: "Ăn uống", Confidence: 0.9, Jar: "nec"}, false, core.NEC},
		{"expense without jar", core.Classification{Type: core.TxExpense, Amount: 50_000, Confidence: 0.9}, true, ""},
		{"expense unknown jar", core.Classification{Type: core.TxExpense, Amount: 50_000, Confidence: 0.9, Jar: "FOOD"}, true, ""},
		{"income without jar", core.Classification{Type: core.TxIncome, Amount: 1_000_000, Confidence: 0.7}, false, ""},
		{"confidence out of range", core.Classification{Type: core.TxIncome, Amount: 1, Confidence: 1.5}, true, ""},
		{"transfer type", core.Classification{Type: core.TxTransfer, Amount: 1, Confidence: 0.5}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			svc := newClassificationService(f, &stubClassifier{result: tt.result})
			got, err := svc.Classify(context.Background(), "some text")
			if tt.wantErr {
				if !core.IsClassificationError(err) {
					t.Fatalf("expected ClassificationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got.Jar != tt.wantJar {
				t.Errorf("jar = %q, want %q", got.Jar, tt.wantJar)
			}
		})
	}
}

func TestClassify_EmptyTextAndMissingClassifier(t *testing.T) {
	f := newFixture(t)
	stub := &stubClassifier{}
	if _, err := newClassificationService(f, stub).Classify(context.Background(), "  "); !core.IsClassificationError(err) {
		t.Errorf("expected ClassificationError for empty text, got %v", err)
	}
	if stub.calls != 0 {
		t.Errorf("classifier called for empty text")
	}
	if _, err := newClassificationService(f, nil).Classify(context.Background(), "hi"); !errors.Is(err, ErrClassifierUnavailable) {
		t.Errorf("expected ErrClassifierUnavailable, got %v", err)
	}
}

func TestConfirm_RoutesByType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newClassificationService(f, nil)

	exp, err := svc.Confirm(ctx, testUser, core.Classification{
		Type: core.TxExpense, Amount: 30_000, Category: "Cà phê", Confidence: 0.8, Jar: "play",
	}, "cà phê 30k")
	if err != nil {
		t.Fatalf("Confirm expense: %v", err)
	}
	if exp.Transaction == nil || exp.Transaction.RecognizedText != "cà phê 30k" || exp.Transaction.JarCode != core.PLAY {
		t.Errorf("expense confirmation = %+v", exp.Transaction)
	}

	inc, err := svc.Confirm(ctx, testUser, core.Classification{
		Type: core.TxIncome, Amount: 2_000_000, Category: "Lương", Confidence: 0.95,
	}, "nhận lương 2tr")
	if err != nil {
		t.Fatalf("Confirm income: %v", err)
	}
	if inc.Income == nil || inc.Income.Source != "Lương" {
		t.Errorf("income confirmation = %+v", inc.Income)
	}

	jars := jarsOf(t, f.env)
	if jars[core.PLAY].Spent != 30_000 || jars[core.PLAY].Allocated != 200_000 {
		t.Errorf("PLAY = %+v", jars[core.PLAY])
	}

	if _, err := svc.Confirm(ctx, testUser, core.Classification{Type: core.TxExpense, Amount: 1, Confidence: 1}, ""); !core.IsClassificationError(err) {
		t.Errorf("expected ClassificationError for jar-less expense, got %v", err)
	}
}
