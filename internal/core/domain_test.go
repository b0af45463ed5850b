package core

import (
	"errors"
	"testing"
	"time"
)

func TestDeriveMonthKey(t *testing.T) {
	cases := []struct {
		date    string
		want    string
		wantErr bool
	}{
		{"2024-03-15", "2024-03", false},
		{"2024-13-40", "2024-13", false}, // no calendar check
		{"2024-03", "2024-03", false},
		{"2024-03-5", "2024-03", false},
		{"2024-03-foo", "", true},
		{"2024-03-123", "", true},
		{"", "", true},
		{"20240315", "", true},
		{"undefined", "", true},
		{"24-3-5", "", true},
		{"../x-y", "", true},
	}
	for _, tc := range cases {
		got, err := DeriveMonthKey(tc.date)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("DeriveMonthKey(%q) expected error, got %q", tc.date, got)
			}
			if !IsValidation(err) {
				t.Fatalf("DeriveMonthKey(%q) error %v is not a ValidationError", tc.date, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("DeriveMonthKey(%q) = %q, %v; want %q", tc.date, got, err, tc.want)
		}
	}
}

func TestParseDateRollsOver(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2024-03-15", "2024-03-15"},
		{" 2024-03-15 ", "2024-03-15"},
		{"2024-03-5", "2024-03-05"},
		{"2024-03", "2024-03-01"},
		{"2024-13-40", "2025-02-09"},
		{"2024-02-30", "2024-03-01"},
		{"2024-03-00", "2024-02-29"},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", tc.in, err)
		}
		if s := got.Format(DateLayout); s != tc.want {
			t.Errorf("ParseDate(%q) = %s, want %s", tc.in, s, tc.want)
		}
	}
	for _, bad := range []string{"", "2024/03/15", "31/12/2024", "2024-03-foo", "24-3-5"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q) expected error", bad)
		}
	}
}

func TestValidateDate(t *testing.T) {
	if err := ValidateDate(Draft{}); !errors.Is(err, ErrMissingDate) {
		t.Fatalf("expected ErrMissingDate, got %v", err)
	}
	if err := ValidateDate(Draft{Date: "2024-01-01"}); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestTransactionTypeKind(t *testing.T) {
	cases := []struct {
		in    TransactionType
		kind  TransactionType
		valid bool
	}{
		{Income, Income, true},
		{IncomeLabel, Income, true},
		{Expense, Expense, true},
		{ExpenseLabel, Expense, true},
		{"transfer", "transfer", false},
	}
	for _, tc := range cases {
		if got := tc.in.Kind(); got != tc.kind {
			t.Errorf("%q.Kind() = %q, want %q", tc.in, got, tc.kind)
		}
		if got := tc.in.IsValid(); got != tc.valid {
			t.Errorf("%q.IsValid() = %v, want %v", tc.in, got, tc.valid)
		}
	}
}

func TestPatchApplyKeepsIdentity(t *testing.T) {
	orig := Transaction{ID: "1", Date: "2024-03-01", Type: Expense, Amount: 10, Describe: "a", CreatedAt: 5}
	date := "2024-03-20"
	amount := 12.5
	got := Patch{Date: &date, Amount: &amount}.Apply(orig)
	if got.ID != "1" || got.CreatedAt != 5 {
		t.Fatalf("identity changed: %+v", got)
	}
	if got.Date != date || got.Amount != amount || got.Describe != "a" {
		t.Fatalf("unexpected merge: %+v", got)
	}
}

func TestPatchValidate(t *testing.T) {
	bad := "not-a-date"
	if err := (Patch{Date: &bad}).Validate(); err == nil {
		t.Fatal("expected error for bad date")
	}
	typ := TransactionType("gift")
	if err := (Patch{Type: &typ}).Validate(); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
	if err := (Patch{}).Validate(); err != nil {
		t.Fatalf("empty patch should validate, got %v", err)
	}
}

func TestCrossMonthUpdateErrorMessage(t *testing.T) {
	err := error(CrossMonthUpdateError{From: "2024-03", To: "2024-04"})
	var cm CrossMonthUpdateError
	if !errors.As(err, &cm) || cm.From != "2024-03" || cm.To != "2024-04" {
		t.Fatalf("errors.As failed: %v", err)
	}
}

func TestProcessGeneratesIdentity(t *testing.T) {
	now := time.UnixMilli(1710460800123)
	p := NewProcessor(nil)
	p.Now = func() time.Time { return now }
	p.Suffix = func() int { return 7 }

	amount := 12.5
	tx, key, err := p.Process(Draft{Date: "2024-03-15", Type: Expense, Amount: &amount, Describe: "午餐"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if key != "2024-03" {
		t.Fatalf("month key = %q", key)
	}
	if tx.ID != "1710460800123007" {
		t.Fatalf("id = %q", tx.ID)
	}
	if tx.CreatedAt != now.UnixMilli() {
		t.Fatalf("createdAt = %d", tx.CreatedAt)
	}
	if tx.Classification != CategoryFood {
		t.Fatalf("classification = %q, want %q", tx.Classification, CategoryFood)
	}
	if tx.UpdatedAt != 0 {
		t.Fatalf("updatedAt should be unset, got %d", tx.UpdatedAt)
	}
}

func TestProcessPreservesSuppliedFields(t *testing.T) {
	p := NewProcessor(nil)
	amount := 3.0
	tx, _, err := p.Process(Draft{
		ID: "abc", Date: "2024-01-02", Type: IncomeLabel, Amount: &amount,
		Classification: "红包", Describe: "午餐", CreatedAt: 42,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if tx.ID != "abc" || tx.CreatedAt != 42 || tx.Classification != "红包" || tx.Type != IncomeLabel {
		t.Fatalf("supplied fields not preserved: %+v", tx)
	}
}

func TestProcessRejects(t *testing.T) {
	p := NewProcessor(nil)
	if _, _, err := p.Process(Draft{Type: Expense}); !errors.Is(err, ErrMissingDate) {
		t.Fatalf("expected ErrMissingDate, got %v", err)
	}
	if _, _, err := p.Process(Draft{Date: "2024-01-01", Type: "gift"}); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
	tx, _, err := p.Process(Draft{Date: "2024-01-01"})
	if err != nil || tx.Type != Expense {
		t.Fatalf("empty type should default to expense: %+v %v", tx, err)
	}
}

func TestShardIndexOfAndClone(t *testing.T) {
	s := Shard{Transactions: []Transaction{{ID: "a"}, {ID: "b"}}}
	if s.IndexOf("b") != 1 || s.IndexOf("z") != -1 {
		t.Fatalf("IndexOf mismatch")
	}
	c := s.Clone()
	c.Transactions[0].ID = "changed"
	if s.Transactions[0].ID != "a" {
		t.Fatal("Clone shares backing array")
	}
}
