package core

import (
	"testing"
)

func TestFilterMatchDateRange(t *testing.T) {
	f := Filter{StartDate: "2024-03-01", EndDate: "2024-03-31"}
	cases := []struct {
		date string
		want bool
	}{
		{"2024-02-29", false},
		{"2024-03-01", true},
		{"2024-03-31", true}, // end date is inclusive of its day
		{"2024-04-01", false},
		{"garbage", false},
	}
	for _, tc := range cases {
		if got := f.Match(Transaction{Date: tc.date}); got != tc.want {
			t.Errorf("Match(%s) = %v, want %v", tc.date, got, tc.want)
		}
	}

	onlyStart := Filter{StartDate: "2024-03-10"}
	if onlyStart.Match(Transaction{Date: "2024-03-09"}) || !onlyStart.Match(Transaction{Date: "2030-01-01"}) {
		t.Error("start-only bound not applied")
	}
	onlyEnd := Filter{EndDate: "2024-03-10"}
	if !onlyEnd.Match(Transaction{Date: "2024-03-10"}) || onlyEnd.Match(Transaction{Date: "2024-03-11"}) {
		t.Error("end-only bound not applied")
	}
}

func TestFilterMatchFields(t *testing.T) {
	tx := Transaction{Date: "2024-03-15", Type: ExpenseLabel, Classification: CategoryFood, Describe: "今天喝咖啡了"}
	cases := []struct {
		name string
		f    Filter
		want bool
	}{
		{"empty filter", Filter{}, true},
		{"type canonical", Filter{Type: Expense}, true},
		{"type mismatch", Filter{Type: Income}, false},
		{"classification", Filter{Classification: CategoryFood}, true},
		{"classification mismatch", Filter{Classification: CategoryHousing}, false},
		{"describe substring", Filter{Describe: "咖啡"}, true},
		{"describe miss", Filter{Describe: "茶"}, false},
		{"anded", Filter{Describe: "咖啡", Type: Income}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.f.Match(tx); got != tc.want {
				t.Fatalf("Match = %v, want %v", got, tc.want)
			}
		})
	}

	if !(Filter{Describe: "lunch"}).Match(Transaction{Describe: "Team LUNCH"}) {
		t.Error("describe match should be case-insensitive")
	}
	if (Filter{Describe: "x"}).Match(Transaction{}) {
		t.Error("empty describe must not match a describe filter")
	}
}

func TestFilterMayHoldShard(t *testing.T) {
	f := Filter{StartDate: "2024-03-10", EndDate: "2024-03-10"}
	cases := []struct {
		key  string
		want bool
	}{
		{"2024-03", true},
		{"2024-04", false}, // earliest is "2024-04-00", 2024-03-31
		{"2024-01", true},  // "2024-01-70" rolls over to 2024-03-10
		{"2023-11", false},
		{"2024-05", false},
		{"2023-15", true}, // month 15 of 2023 is March 2024
	}
	for _, tc := range cases {
		if got := f.MayHoldShard(tc.key); got != tc.want {
			t.Errorf("MayHoldShard(%s) = %v, want %v", tc.key, got, tc.want)
		}
	}
	if !(Filter{StartDate: "2024-01-01"}).MayHoldShard("1999-01") {
		t.Error("a single bound must not prune")
	}
	if (Filter{StartDate: "2024-05-01", EndDate: "2024-01-01"}).MayHoldShard("2024-03") {
		t.Error("inverted range should prune every shard")
	}
}

func TestFilterMatchRolledOverDates(t *testing.T) {
	cases := []struct {
		date string
		day  string
	}{
		{"2024-13-40", "2025-02-09"},
		{"2024-03-5", "2024-03-05"},
		{"2024-03-00", "2024-02-29"},
	}
	for _, tc := range cases {
		f := Filter{StartDate: tc.day, EndDate: tc.day}
		if !f.Match(Transaction{Date: tc.date}) {
			t.Errorf("%s should fall on %s", tc.date, tc.day)
		}
	}
}

func TestFilterValidate(t *testing.T) {
	if err := (Filter{StartDate: "2024/01/01"}).Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := (Filter{EndDate: "2024-03-foo"}).Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error for bad end date, got %v", err)
	}
	if err := (Filter{StartDate: "2024-01-01", EndDate: "2024-01-31"}).Validate(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
