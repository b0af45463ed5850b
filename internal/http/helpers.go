package http

import (
	"strings"

	"zhangdan/internal/core"
)

// sanitizeInput drops control characters other than tab, newline and carriage return, and trims.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

func sanitizeDraft(d core.Draft) core.Draft {
	d.ID = strings.TrimSpace(d.ID)
	d.Date = strings.TrimSpace(d.Date)
	d.Type = core.TransactionType(strings.TrimSpace(string(d.Type)))
	d.Classification = sanitizeInput(d.Classification)
	d.Describe = sanitizeInput(d.Describe)
	return d
}

func sanitizePatch(p core.Patch) core.Patch {
	trim := func(s *string, f func(string) string) *string {
		if s == nil {
			return nil
		}
		v := f(*s)
		return &v
	}
	p.Date = trim(p.Date, strings.TrimSpace)
	p.Classification = trim(p.Classification, sanitizeInput)
	p.Describe = trim(p.Describe, sanitizeInput)
	if p.Type != nil {
		t := core.TransactionType(strings.TrimSpace(string(*p.Type)))
		p.Type = &t
	}
	return p
}
