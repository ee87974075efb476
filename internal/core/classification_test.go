package core

import (
	"errors"
	"testing"
)

func TestClassificationValidate(t *testing.T) {
	good := []Classification{
		{Type: TxExpense, Amount: 50000, Jar: NEC, Category: "Ăn uống", Confidence: 0.95},
		{Type: TxIncome, Amount: 10000000, Source: "Lương", Confidence: 0.9},
	}
	for i, c := range good {
		if err := c.Validate(); err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
	}

	bads := []struct {
		c     Classification
		field string
	}{
		{Classification{Type: "refund", Amount: 1, Confidence: 0.5}, "type"},
		{Classification{Type: TxExpense, Amount: 0, Jar: NEC}, "amount"},
		{Classification{Type: TxExpense, Amount: 1, Jar: NEC, Confidence: 1.2}, "confidence"},
		{Classification{Type: TxExpense, Amount: 1}, "jar"},
		{Classification{Type: TxExpense, Amount: 1, Jar: "FOOD"}, "jar"},
	}
	for i, tc := range bads {
		err := tc.c.Validate()
		var ce *ClassificationError
		if !errors.As(err, &ce) || ce.Field != tc.field {
			t.Fatalf("case %d expected ClassificationError on %q, got %v", i, tc.field, err)
		}
	}
}

func TestClassificationNormalize(t *testing.T) {
	c := Classification{Type: TxIncome, Amount: 5000000, Category: "Thưởng"}.Normalize()
	if c.Source != "Thưởng" {
		t.Fatalf("expected source from category, got %q", c.Source)
	}
	c = Classification{Type: TxIncome, Amount: 1}.Normalize()
	if c.Source != defaultIncomeSource {
		t.Fatalf("expected default source, got %q", c.Source)
	}
	c = Classification{Type: TxExpense, Amount: 1, Jar: " nec "}.Normalize()
	if c.Jar != NEC {
		t.Fatalf("expected NEC, got %q", c.Jar)
	}
	if (Classification{Type: TxExpense, Amount: 1}).Normalize().Jar != "" {
		t.Fatalf("missing jar must stay empty")
	}
}
