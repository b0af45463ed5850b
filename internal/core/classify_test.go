package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassify(t *testing.T) {
	c := DefaultClassifier()
	cases := []struct {
		describe string
		want     string
	}{
		{"午餐", CategoryFood},
		{"今天喝咖啡了", CategoryFood},
		{"Morning COFFEE", CategoryFood},
		{"京东买鞋", CategoryShopping},
		{"滴滴打车", CategoryTransport},
		{"三月房租", CategoryHousing},
		{"十月工资", CategorySalary},
		{"午餐后打车", CategoryFood}, // food has priority
		{"随便", CategoryOther},
		{"", CategoryOther},
		{"   ", CategoryOther},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.describe); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.describe, got, tc.want)
		}
	}
}

func TestCategoriesEndsWithFallback(t *testing.T) {
	cats := DefaultClassifier().Categories()
	if len(cats) != 6 || cats[0] != CategoryFood || cats[len(cats)-1] != CategoryOther {
		t.Fatalf("unexpected categories: %v", cats)
	}
}

func TestLoadClassifier(t *testing.T) {
	c, err := LoadClassifier("")
	if err != nil || c.Classify("午餐") != CategoryFood {
		t.Fatalf("empty path should yield default classifier: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := "fallback: 杂项\ncategories:\n  - name: 宠物\n    keywords: [猫粮, Vet]\n  - name: \"\"\n    keywords: [ignored]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	c, err = LoadClassifier(path)
	if err != nil {
		t.Fatalf("LoadClassifier: %v", err)
	}
	if got := c.Classify("买猫粮"); got != "宠物" {
		t.Fatalf("Classify = %q", got)
	}
	if got := c.Classify("vet visit"); got != "宠物" {
		t.Fatalf("keywords should be case-insensitive, got %q", got)
	}
	if got := c.Classify("午餐"); got != "杂项" {
		t.Fatalf("fallback = %q", got)
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("categories: []\n"), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	if _, err := LoadClassifier(empty); err == nil {
		t.Fatal("expected error for rules file without categories")
	}
	if _, err := LoadClassifier(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
