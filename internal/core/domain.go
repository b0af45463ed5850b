package core

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	// Localized labels accepted as synonyms of Income and Expense.
	IncomeLabel  TransactionType = "收入"
	ExpenseLabel TransactionType = "支出"

	// DateLayout is the layout of Transaction.Date.
	DateLayout = "2006-01-02"
)

type (
	TransactionType string

	// Transaction is one income or expense entry as persisted in a month shard.
	Transaction struct {
		ID             string          `json:"id"`
		Date           string          `json:"date"`
		Type           TransactionType `json:"type"`
		Classification string          `json:"classification,omitempty"`
		Amount         float64         `json:"amount"`
		Describe       string          `json:"describe,omitempty"`
		CreatedAt      int64           `json:"createdAt"`
		UpdatedAt      int64           `json:"updatedAt,omitempty"`
	}

	// Draft is an unvalidated transaction payload coming from a client or an import file.
	Draft struct {
		ID             string          `json:"id,omitempty"`
		Date           string          `json:"date"`
		Type           TransactionType `json:"type"`
		Classification string          `json:"classification,omitempty"`
		Amount         *float64        `json:"amount,omitempty"`
		Describe       string          `json:"describe,omitempty"`
		CreatedAt      int64           `json:"createdAt,omitempty"`
		UpdatedAt      int64           `json:"updatedAt,omitempty"`
	}

	// Patch carries the fields of a partial update. Nil means "leave unchanged".
	Patch struct {
		Date           *string          `json:"date,omitempty"`
		Type           *TransactionType `json:"type,omitempty"`
		Classification *string          `json:"classification,omitempty"`
		Amount         *float64         `json:"amount,omitempty"`
		Describe       *string          `json:"describe,omitempty"`
	}

	// Shard is the content of one month file.
	Shard struct {
		Transactions []Transaction `json:"transactions"`
	}

	// Snapshot is a full store export keyed by month.
	Snapshot map[string]Shard

	// ImportSnapshot is the import counterpart of Snapshot, holding unvalidated drafts.
	ImportSnapshot map[string]ImportShard

	ImportShard struct {
		Transactions []Draft `json:"transactions"`
	}

	// ImportResult counts the outcome of an import.
	ImportResult struct {
		Imported int `json:"importedCount"`
		Updated  int `json:"updatedCount"`
		Errors   int `json:"errorCount"`
	}

	// Location identifies a record inside the store.
	Location struct {
		MonthKey string
		Index    int
	}
)

var (
	ErrNotFound      = errors.New("transaction not found")
	ErrMissingDate   = ValidationError{Field: "date", Reason: "缺少 date 字段"}
	ErrInvalidType   = ValidationError{Field: "type", Reason: "type 必须为 income 或 expense"}
	ErrEmptyBatch    = ValidationError{Field: "batch", Reason: "请求体必须是非空数组"}
	ErrDuplicateID   = ValidationError{Field: "id", Reason: "id 已存在"}
	ErrMissingImport = ValidationError{Field: "record", Reason: "缺少 date、amount 或 type 字段"}

	monthKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)
	datePattern     = regexp.MustCompile(`^(\d{4})-(\d{1,2})(?:-(\d{0,2}))?$`)
)

// ValidationError reports a malformed or missing field in a client payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CrossMonthUpdateError is returned when an update would move a record to another shard.
type CrossMonthUpdateError struct {
	From string
	To   string
}

func (e CrossMonthUpdateError) Error() string {
	return fmt.Sprintf("暂不支持跨月更新。记录当前月份为 %s，更新后的日期月份为 %s", e.From, e.To)
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Kind maps localized labels onto their canonical type. Unknown values are returned unchanged.
func (t TransactionType) Kind() TransactionType {
	switch t {
	case Income, IncomeLabel:
		return Income
	case Expense, ExpenseLabel:
		return Expense
	default:
		return t
	}
}

// IsValid reports whether t is one of the accepted type values.
func (t TransactionType) IsValid() bool {
	k := t.Kind()
	return k == Income || k == Expense
}

// ValidMonthKey reports whether key names a shard.
func ValidMonthKey(key string) bool {
	return monthKeyPattern.MatchString(key)
}

// ValidateDate fails when the draft carries no date.
func ValidateDate(d Draft) error {
	if strings.TrimSpace(d.Date) == "" {
		return ErrMissingDate
	}
	return nil
}

// DeriveMonthKey returns the YYYY-MM shard key of a YYYY-MM-DD date.
// Calendar validity is not checked: "2024-13-40" yields "2024-13". The date must still
// be readable by ParseDate so range queries can place it.
func DeriveMonthKey(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return "", ErrMissingDate
	}
	parts := strings.Split(date, "-")
	if len(parts) < 2 {
		return "", ValidationError{Field: "date", Reason: "日期格式无效，必须为 YYYY-MM-DD"}
	}
	key := parts[0] + "-" + parts[1]
	if !ValidMonthKey(key) {
		return "", ValidationError{Field: "date", Reason: fmt.Sprintf("无法从 %q 得到有效月份", date)}
	}
	if _, err := ParseDate(date); err != nil {
		return "", ValidationError{Field: "date", Reason: "日期格式无效，必须为 YYYY-MM-DD"}
	}
	return key, nil
}

// ParseDate reads YYYY-MM-DD the way JavaScript dates do: the day may have one digit or be
// absent (the 1st), and out-of-range fields roll over, so "2024-13-40" is 2025-02-09 and
// "2024-03-00" is 2024-02-29.
func ParseDate(s string) (time.Time, error) {
	m := datePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, fmt.Errorf("parse date %q: want YYYY-MM-DD", s)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day := 1
	if m[3] != "" {
		day, _ = strconv.Atoi(m[3])
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// Apply merges p over t, leaving id and createdAt untouched.
func (p Patch) Apply(t Transaction) Transaction {
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Classification != nil {
		t.Classification = *p.Classification
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Describe != nil {
		t.Describe = *p.Describe
	}
	return t
}

// Validate checks the fields a patch may not break.
func (p Patch) Validate() error {
	if p.Date != nil {
		if _, err := DeriveMonthKey(*p.Date); err != nil {
			return err
		}
	}
	if p.Type != nil && !p.Type.IsValid() {
		return ErrInvalidType
	}
	return nil
}

// PatchFromDraft turns an import draft into a full-field patch.
func PatchFromDraft(d Draft) Patch {
	p := Patch{
		Date:     &d.Date,
		Type:     &d.Type,
		Amount:   d.Amount,
		Describe: &d.Describe,
	}
	if d.Classification != "" {
		p.Classification = &d.Classification
	}
	return p
}

// Clone returns a deep copy of the shard.
func (s Shard) Clone() Shard {
	out := Shard{Transactions: make([]Transaction, len(s.Transactions))}
	copy(out.Transactions, s.Transactions)
	return out
}

// IndexOf returns the position of id in the shard, or -1.
func (s Shard) IndexOf(id string) int {
	for i, t := range s.Transactions {
		if t.ID == id {
			return i
		}
	}
	return -1
}
