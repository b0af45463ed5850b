package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"zhangdan/internal/core"
)

const (
	maxBodyBytes   = 1 << 20
	maxImportBytes = 32 << 20
)

var errEmptyBody = errors.New("empty request body")

// readBody reads at most limit bytes and trims surrounding whitespace.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errEmptyBody
	}
	return body, nil
}

// decodeJSON decodes a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	body, err := readBody(w, r, limit)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// decodeBatch accepts only a JSON array; anything else is the empty-batch validation error.
func decodeBatch(w http.ResponseWriter, r *http.Request) ([]core.Draft, error) {
	body, err := readBody(w, r, maxBodyBytes)
	if errors.Is(err, errEmptyBody) {
		return nil, core.ErrEmptyBatch
	}
	if err != nil {
		return nil, err
	}
	if body[0] != '[' {
		return nil, core.ErrEmptyBatch
	}
	var drafts []core.Draft
	if err := json.Unmarshal(body, &drafts); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	for i := range drafts {
		drafts[i] = sanitizeDraft(drafts[i])
	}
	return drafts, nil
}

// decodeImport requires a JSON object keyed by month.
func decodeImport(w http.ResponseWriter, r *http.Request) (core.ImportSnapshot, error) {
	body, err := readBody(w, r, maxImportBytes)
	if err != nil {
		return nil, err
	}
	if body[0] != '{' {
		return nil, errors.New("import body must be an object")
	}
	var snap core.ImportSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("decode import: %w", err)
	}
	for key, sh := range snap {
		for i := range sh.Transactions {
			sh.Transactions[i] = sanitizeDraft(sh.Transactions[i])
		}
		snap[key] = sh
	}
	return snap, nil
}

// parseFilter reads the optional query predicates of GET /transactions.
func parseFilter(q url.Values) core.Filter {
	get := func(k string) string { return strings.TrimSpace(q.Get(k)) }
	return core.Filter{
		StartDate:      get("startDate"),
		EndDate:        get("endDate"),
		Type:           core.TransactionType(get("type")),
		Classification: sanitizeInput(q.Get("classification")),
		Describe:       sanitizeInput(q.Get("describe")),
	}
}

// batchTextRequest is the body of POST /transactions/batch/text.
type batchTextRequest struct {
	Date string               `json:"date"`
	Type core.TransactionType `json:"type"`
	Text string               `json:"text"`
}
