// Package backend selects the journal implementation the worker appends to.
package backend

import (
	"context"

	ports "zhangdan/internal/sheets"
)

// Type names a journal backend.
type Type string

const (
	SheetsBackend Type = "sheets"
	MemoryBackend Type = "memory"
)

func (t Type) String() string { return string(t) }

// IsValid reports whether t is a known backend.
func (t Type) IsValid() bool {
	switch t {
	case SheetsBackend, MemoryBackend:
		return true
	}
	return false
}

// Journal is what the worker needs from a backend.
type Journal interface {
	ports.JournalWriter
	ports.JournalReader
}

// Factory builds journals from configuration.
type Factory interface {
	CreateJournal(ctx context.Context, cfg Config) (Journal, error)
}
