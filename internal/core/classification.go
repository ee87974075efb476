package core

import (
	"math"
	"strings"
)

// defaultIncomeSource labels income when the classifier gives neither source nor category.
const defaultIncomeSource = "Thu nhập"

// Classification is the structured record returned by the text classifier.
type Classification struct {
	Type        TxType  `json:"type"`
	Amount      Money   `json:"amount"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	Jar         JarCode `json:"jar,omitempty"`
	Source      string  `json:"source,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Validate rejects records the ledger cannot accept as-is. A missing or
// unknown expense jar is an error; no default jar is substituted.
func (c Classification) Validate() error {
	switch c.Type {
	case TxIncome, TxExpense:
	default:
		return &ClassificationError{Field: "type", Reason: "must be income or expense"}
	}
	if c.Amount.Validate() != nil {
		return &ClassificationError{Field: "amount", Reason: "must be a positive whole amount"}
	}
	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return &ClassificationError{Field: "confidence", Reason: "must be between 0 and 1"}
	}
	if c.Type == TxExpense {
		if strings.TrimSpace(string(c.Jar)) == "" {
			return &ClassificationError{Field: "jar", Reason: "is required for expenses"}
		}
		if !c.Jar.Valid() {
			return &ClassificationError{Field: "jar", Reason: "is not a known jar code"}
		}
	}
	return nil
}

// Normalize uppercases the jar code and fills an income source from the
// category when the classifier left it out.
func (c Classification) Normalize() Classification {
	c.Jar = JarCode(strings.ToUpper(strings.TrimSpace(string(c.Jar))))
	c.Category = strings.TrimSpace(c.Category)
	c.Source = strings.TrimSpace(c.Source)
	if c.Type == TxIncome && c.Source == "" {
		c.Source = c.Category
		if c.Source == "" {
			c.Source = defaultIncomeSource
		}
	}
	return c
}
