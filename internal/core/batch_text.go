package core

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	shorthandEntry = regexp.MustCompile(`([^0-9.元]+?)(\d+\.?\d*)元`)
	shorthandPunct = strings.NewReplacer("，", "", "。", "", "、", "")
)

// ParseBatchText splits shorthand such as "咖啡15元 午餐60元" into drafts sharing date and type.
// Text that does not match the "<description><amount>元" pattern is ignored.
func ParseBatchText(text, date string, typ TransactionType) []Draft {
	var out []Draft
	for _, m := range shorthandEntry.FindAllStringSubmatch(text, -1) {
		amount, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		out = append(out, Draft{
			Date:     date,
			Type:     typ,
			Amount:   &amount,
			Describe: strings.TrimSpace(shorthandPunct.Replace(m[1])),
		})
	}
	return out
}
