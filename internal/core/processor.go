package core

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// Processor turns drafts into storable transactions.
type Processor struct {
	Classifier *Classifier
	Now        func() time.Time
	// Suffix returns the random part of generated ids, in [0, 1000).
	Suffix func() int
}

// NewProcessor returns a processor using the wall clock and math/rand.
func NewProcessor(c *Classifier) *Processor {
	if c == nil {
		c = DefaultClassifier()
	}
	return &Processor{
		Classifier: c,
		Now:        time.Now,
		Suffix:     func() int { return rand.IntN(1000) },
	}
}

// GenerateID returns the epoch-millisecond timestamp followed by a 3-digit random suffix.
func (p *Processor) GenerateID() string {
	return fmt.Sprintf("%d%03d", p.Now().UnixMilli(), p.Suffix()%1000)
}

// Process validates d and fills in id, createdAt, type and classification.
// Supplied id, createdAt and classification are kept so that reprocessing an exported record is idempotent.
func (p *Processor) Process(d Draft) (Transaction, string, error) {
	if err := ValidateDate(d); err != nil {
		return Transaction{}, "", err
	}
	monthKey, err := DeriveMonthKey(d.Date)
	if err != nil {
		return Transaction{}, "", err
	}

	typ := TransactionType(strings.TrimSpace(string(d.Type)))
	if typ == "" {
		typ = Expense
	}
	if !typ.IsValid() {
		return Transaction{}, "", ErrInvalidType
	}

	t := Transaction{
		ID:             strings.TrimSpace(d.ID),
		Date:           strings.TrimSpace(d.Date),
		Type:           typ,
		Classification: strings.TrimSpace(d.Classification),
		Describe:       d.Describe,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.Amount != nil {
		t.Amount = *d.Amount
	}
	if t.ID == "" {
		t.ID = p.GenerateID()
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = p.Now().UnixMilli()
	}
	if t.Classification == "" {
		t.Classification = p.Classifier.Classify(t.Describe)
	}
	return t, monthKey, nil
}

// HasRequiredImportFields reports whether an import record carries date, amount and type.
func HasRequiredImportFields(d Draft) bool {
	return strings.TrimSpace(d.Date) != "" && d.Amount != nil && strings.TrimSpace(string(d.Type)) != ""
}
