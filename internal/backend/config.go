package backend

import (
	"errors"
	"fmt"

	"zhangdan/internal/config"
)

// DefaultMemoryLimit bounds the rows per year kept by the memory journal.
const DefaultMemoryLimit = 10000

// Config carries the settings of the selected journal.
type Config struct {
	Type Type

	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string

	MemoryLimit int
}

// FromAppConfig picks the Sheets journal when a spreadsheet is configured and memory otherwise.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	cfg := Config{Type: MemoryBackend, MemoryLimit: DefaultMemoryLimit}
	if appConfig.GoogleSpreadsheetID != "" {
		cfg.Type = SheetsBackend
		cfg.SpreadsheetID = appConfig.GoogleSpreadsheetID
		cfg.SheetName = appConfig.GoogleSheetName
		cfg.ServiceAccountJSON = appConfig.GoogleServiceAccountJSON
		cfg.ServiceAccountFile = appConfig.GoogleServiceAccountFile
	}
	return cfg, cfg.Validate()
}

// Validate checks the fields required by the selected type.
func (c Config) Validate() error {
	switch c.Type {
	case SheetsBackend:
		if c.SpreadsheetID == "" {
			return errors.New("spreadsheet id is required for sheets backend")
		}
		if c.SheetName == "" {
			return errors.New("sheet name is required for sheets backend")
		}
		if c.ServiceAccountFile == "" && c.ServiceAccountJSON == "" {
			return errors.New("service account file or JSON is required for sheets backend")
		}
	case MemoryBackend:
		if c.MemoryLimit < 0 {
			return fmt.Errorf("invalid memory journal limit %d", c.MemoryLimit)
		}
	default:
		return fmt.Errorf("invalid backend type: %q", c.Type)
	}
	return nil
}
