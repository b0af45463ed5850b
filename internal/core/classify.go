package core

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category labels stored in Transaction.Classification.
const (
	CategoryFood      = "餐饮"
	CategoryShopping  = "购物"
	CategoryTransport = "交通"
	CategoryHousing   = "住房"
	CategorySalary    = "工资"
	CategoryOther     = "其他"
)

// CategoryRule maps a category to the keywords that select it.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// RulesFile is the YAML layout accepted by LoadClassifier.
type RulesFile struct {
	Fallback   string         `yaml:"fallback"`
	Categories []CategoryRule `yaml:"categories"`
}

// Classifier derives a category from a free-text description.
// Rules are checked in order; the first rule with a matching keyword wins.
type Classifier struct {
	rules    []CategoryRule
	fallback string
}

// DefaultRules lists the built-in keyword rules in priority order.
func DefaultRules() []CategoryRule {
	return []CategoryRule{
		{Name: CategoryFood, Keywords: []string{
			"餐", "饭", "早餐", "午餐", "晚餐", "夜宵", "外卖", "咖啡", "奶茶", "饮料", "零食", "水果", "菜", "超市",
			"coffee", "lunch", "dinner", "breakfast", "food", "restaurant", "snack",
		}},
		{Name: CategoryShopping, Keywords: []string{
			"购物", "淘宝", "京东", "拼多多", "衣服", "鞋", "日用", "商场", "网购",
			"shopping", "amazon", "clothes",
		}},
		{Name: CategoryTransport, Keywords: []string{
			"交通", "地铁", "公交", "打车", "出租", "滴滴", "高铁", "火车", "机票", "加油", "停车", "油费",
			"taxi", "uber", "metro", "subway", "bus", "train", "flight", "fuel", "parking",
		}},
		{Name: CategoryHousing, Keywords: []string{
			"房租", "租金", "物业", "水费", "电费", "燃气", "宽带", "房贷", "住房",
			"rent", "mortgage", "utilities",
		}},
		{Name: CategorySalary, Keywords: []string{
			"工资", "薪水", "薪资", "奖金", "年终",
			"salary", "wage", "bonus", "payroll",
		}},
	}
}

// NewClassifier builds a classifier from rules. An empty fallback means CategoryOther.
func NewClassifier(rules []CategoryRule, fallback string) *Classifier {
	if fallback == "" {
		fallback = CategoryOther
	}
	normalized := make([]CategoryRule, 0, len(rules))
	for _, r := range rules {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			continue
		}
		kws := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kws = append(kws, k)
			}
		}
		normalized = append(normalized, CategoryRule{Name: name, Keywords: kws})
	}
	return &Classifier{rules: normalized, fallback: fallback}
}

// DefaultClassifier returns a classifier over DefaultRules.
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultRules(), CategoryOther)
}

// LoadClassifier reads rules from a YAML file. An empty path yields the default classifier.
func LoadClassifier(path string) (*Classifier, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultClassifier(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if len(rf.Categories) == 0 {
		return nil, fmt.Errorf("rules file %s defines no categories", path)
	}
	return NewClassifier(rf.Categories, rf.Fallback), nil
}

// Classify returns the category of describe.
func (c *Classifier) Classify(describe string) string {
	text := strings.ToLower(strings.TrimSpace(describe))
	if text == "" {
		return c.fallback
	}
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(text, k) {
				return r.Name
			}
		}
	}
	return c.fallback
}

// Categories returns the rule names followed by the fallback.
func (c *Classifier) Categories() []string {
	out := make([]string, 0, len(c.rules)+1)
	for _, r := range c.rules {
		out = append(out, r.Name)
	}
	return append(out, c.fallback)
}
