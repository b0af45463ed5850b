package core

import (
	"strings"
)

// Filter selects transactions. Zero-valued fields impose no constraint.
type Filter struct {
	StartDate      string
	EndDate        string
	Type           TransactionType
	Classification string
	Describe       string
}

// Validate checks that the date bounds parse.
func (f Filter) Validate() error {
	if f.StartDate != "" {
		if _, err := ParseDate(f.StartDate); err != nil {
			return ValidationError{Field: "startDate", Reason: "必须为 YYYY-MM-DD"}
		}
	}
	if f.EndDate != "" {
		if _, err := ParseDate(f.EndDate); err != nil {
			return ValidationError{Field: "endDate", Reason: "必须为 YYYY-MM-DD"}
		}
	}
	return nil
}

// Match reports whether t satisfies every predicate of f.
// The date range is half-open: StartDate <= date < EndDate + 1 day.
func (f Filter) Match(t Transaction) bool {
	if f.StartDate != "" || f.EndDate != "" {
		d, err := ParseDate(t.Date)
		if err != nil {
			return false
		}
		if f.StartDate != "" {
			start, err := ParseDate(f.StartDate)
			if err == nil && d.Before(start) {
				return false
			}
		}
		if f.EndDate != "" {
			end, err := ParseDate(f.EndDate)
			if err == nil && !d.Before(end.AddDate(0, 0, 1)) {
				return false
			}
		}
	}
	if f.Type != "" && t.Type.Kind() != f.Type.Kind() {
		return false
	}
	if f.Classification != "" && t.Classification != f.Classification {
		return false
	}
	if f.Describe != "" {
		if t.Describe == "" || !strings.Contains(strings.ToLower(t.Describe), strings.ToLower(f.Describe)) {
			return false
		}
	}
	return true
}

// MayHoldShard reports whether shard monthKey can contain a record inside the date range.
// A shard holds dates whose month field is its key; with a day field of 0..99 those land
// between the last day of the previous month and 98 days after the 1st, so a shard is
// skipped only when that window misses [StartDate, EndDate+1 day). Without both bounds
// every shard may match.
func (f Filter) MayHoldShard(monthKey string) bool {
	if f.StartDate == "" || f.EndDate == "" {
		return true
	}
	start, err := ParseDate(f.StartDate)
	if err != nil {
		return true
	}
	end, err := ParseDate(f.EndDate)
	if err != nil {
		return true
	}
	first, err := ParseDate(monthKey)
	if err != nil {
		return true
	}
	lo := first.AddDate(0, 0, -1)
	hi := first.AddDate(0, 0, 99)
	return lo.Before(end.AddDate(0, 0, 1)) && start.Before(hi)
}
