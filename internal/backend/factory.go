package backend

import (
	"context"
	"fmt"

	"zhangdan/internal/log"
	gsheet "zhangdan/internal/sheets/google"
	"zhangdan/internal/sheets/memory"
)

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger    *log.Logger
	newSheets func(ctx context.Context, opts gsheet.Options, logger *log.Logger) (Journal, error)
}

// NewFactory returns a factory that dials Google Sheets for SheetsBackend.
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger,
		newSheets: func(ctx context.Context, opts gsheet.Options, logger *log.Logger) (Journal, error) {
			return gsheet.New(ctx, opts, logger)
		},
	}
}

// CreateJournal implements Factory.
func (f *DefaultFactory) CreateJournal(ctx context.Context, cfg Config) (Journal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case SheetsBackend:
		j, err := f.newSheets(ctx, gsheet.Options{
			SpreadsheetID:      cfg.SpreadsheetID,
			SheetName:          cfg.SheetName,
			ServiceAccountJSON: cfg.ServiceAccountJSON,
			ServiceAccountFile: cfg.ServiceAccountFile,
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("initialize Google Sheets journal: %w", err)
		}
		f.logger.Info("Google Sheets journal initialized", "spreadsheet_id", cfg.SpreadsheetID, "sheet", cfg.SheetName)
		return j, nil
	default:
		f.logger.Info("Journal kept in memory", "limit_per_year", cfg.MemoryLimit)
		return memory.New(cfg.MemoryLimit), nil
	}
}
