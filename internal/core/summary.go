package core

import (
	"math"
	"sort"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// DailyAmount is the expense total of one day.
type DailyAmount struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// MonthOverview is a compact summary for a month shard.
type MonthOverview struct {
	MonthKey   string           `json:"monthKey"`
	Income     float64          `json:"income"`
	Expense    float64          `json:"expense"`
	Balance    float64          `json:"balance"`
	Count      int              `json:"count"`
	ByCategory []CategoryAmount `json:"byClassification"`
	Daily      []DailyAmount    `json:"dailyExpense"`
}

// Summarize aggregates the transactions of one month.
// Expense categories are sorted by amount descending, days ascending.
func Summarize(monthKey string, txs []Transaction) MonthOverview {
	ov := MonthOverview{MonthKey: monthKey, Count: len(txs)}
	byCat := map[string]float64{}
	byDay := map[string]float64{}
	for _, t := range txs {
		switch t.Type.Kind() {
		case Income:
			ov.Income += t.Amount
		case Expense:
			ov.Expense += t.Amount
			cat := t.Classification
			if cat == "" {
				cat = CategoryOther
			}
			byCat[cat] += t.Amount
			byDay[t.Date] += t.Amount
		}
	}
	ov.Income = round2(ov.Income)
	ov.Expense = round2(ov.Expense)
	ov.Balance = round2(ov.Income - ov.Expense)

	for name, amt := range byCat {
		ov.ByCategory = append(ov.ByCategory, CategoryAmount{Name: name, Amount: round2(amt)})
	}
	sort.Slice(ov.ByCategory, func(i, j int) bool {
		if ov.ByCategory[i].Amount != ov.ByCategory[j].Amount {
			return ov.ByCategory[i].Amount > ov.ByCategory[j].Amount
		}
		return ov.ByCategory[i].Name < ov.ByCategory[j].Name
	})
	for day, amt := range byDay {
		ov.Daily = append(ov.Daily, DailyAmount{Date: day, Amount: round2(amt)})
	}
	sort.Slice(ov.Daily, func(i, j int) bool { return ov.Daily[i].Date < ov.Daily[j].Date })
	return ov
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
