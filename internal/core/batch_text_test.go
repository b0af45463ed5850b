package core

import "testing"

func TestParseBatchText(t *testing.T) {
	got := ParseBatchText("coffee15元 lunch60元", "2024-03-15", Expense)
	if len(got) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(got))
	}
	if got[0].Describe != "coffee" || *got[0].Amount != 15 {
		t.Fatalf("first draft = %+v", got[0])
	}
	if got[1].Describe != "lunch" || *got[1].Amount != 60 {
		t.Fatalf("second draft = %+v", got[1])
	}
	for _, d := range got {
		if d.Date != "2024-03-15" || d.Type != Expense {
			t.Fatalf("date/type not propagated: %+v", d)
		}
	}
}

func TestParseBatchTextPunctuationAndDecimals(t *testing.T) {
	got := ParseBatchText("早餐，豆浆3.5元。打车、22元 无金额", "2024-01-01", Expense)
	if len(got) != 2 {
		t.Fatalf("expected 2 drafts, got %+v", got)
	}
	if got[0].Describe != "早餐豆浆" || *got[0].Amount != 3.5 {
		t.Fatalf("first draft = %q %v", got[0].Describe, *got[0].Amount)
	}
	if got[1].Describe != "打车" || *got[1].Amount != 22 {
		t.Fatalf("second draft = %q %v", got[1].Describe, *got[1].Amount)
	}
}

func TestParseBatchTextNoMatches(t *testing.T) {
	if got := ParseBatchText("nothing here", "2024-01-01", Expense); len(got) != 0 {
		t.Fatalf("expected no drafts, got %+v", got)
	}
}
