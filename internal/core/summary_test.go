package core

import "testing"

func TestSummarize(t *testing.T) {
	txs := []Transaction{
		{Date: "2024-03-01", Type: Income, Amount: 5000, Classification: CategorySalary},
		{Date: "2024-03-01", Type: Expense, Amount: 12.5, Classification: CategoryFood},
		{Date: "2024-03-02", Type: ExpenseLabel, Amount: 30.1, Classification: CategoryFood},
		{Date: "2024-03-02", Type: Expense, Amount: 100},
	}
	ov := Summarize("2024-03", txs)
	if ov.Income != 5000 || ov.Expense != 142.6 || ov.Balance != 4857.4 || ov.Count != 4 {
		t.Fatalf("totals = %+v", ov)
	}
	if len(ov.ByCategory) != 2 || ov.ByCategory[0].Name != CategoryOther || ov.ByCategory[0].Amount != 100 {
		t.Fatalf("by category = %+v", ov.ByCategory)
	}
	if ov.ByCategory[1].Name != CategoryFood || ov.ByCategory[1].Amount != 42.6 {
		t.Fatalf("food total = %+v", ov.ByCategory[1])
	}
	if len(ov.Daily) != 2 || ov.Daily[0].Date != "2024-03-01" || ov.Daily[1].Amount != 130.1 {
		t.Fatalf("daily = %+v", ov.Daily)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	ov := Summarize("2024-01", nil)
	if ov.MonthKey != "2024-01" || ov.Count != 0 || ov.Balance != 0 || len(ov.ByCategory) != 0 {
		t.Fatalf("unexpected empty overview: %+v", ov)
	}
}
