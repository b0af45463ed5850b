package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"zhangdan/internal/amqp"
	"zhangdan/internal/core"
	ports "zhangdan/internal/sheets"
)

type fakeSheets struct {
	mu       sync.Mutex
	calls    []string
	appended [][]any
	rows     [][]any
	hasHead  bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "!A1:A1"):
		if f.hasHead {
			json.NewEncoder(w).Encode(map[string]any{"values": [][]any{{"timestamp"}}})
			return
		}
		io.WriteString(w, `{}`)
	case r.Method == http.MethodPut:
		f.hasHead = true
		io.WriteString(w, `{}`)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.appended = append(f.appended, vr.Values...)
		io.WriteString(w, `{}`)
	case r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(map[string]any{"values": f.rows})
	default:
		http.Error(w, "unexpected call", http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return newClient(svc, Options{SpreadsheetID: "sheet-id"}, nil)
}

func TestAppendEventWritesHeaderOnce(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	ev := amqp.NewTransactionEvent(amqp.EventCreated, "2024-03", core.Transaction{
		ID: "1", Date: "2024-03-15", Type: core.Expense, Amount: 12.5, Describe: "午餐",
	})

	for i := 0; i < 2; i++ {
		if err := c.AppendEvent(context.Background(), ev); err != nil {
			t.Fatalf("AppendEvent #%d: %v", i, err)
		}
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	var puts, gets int
	for _, call := range fake.calls {
		if strings.HasPrefix(call, "PUT") {
			puts++
		}
		if strings.HasPrefix(call, "GET") {
			gets++
		}
		if !strings.Contains(call, "/v4/spreadsheets/sheet-id/values/2024 Journal!") {
			t.Errorf("unexpected path %q", call)
		}
	}
	if puts != 1 || gets != 1 {
		t.Fatalf("header should be checked and written once, calls=%v", fake.calls)
	}
	if len(fake.appended) != 2 || fake.appended[0][1] != ev.EventID {
		t.Fatalf("appended = %v", fake.appended)
	}
}

func TestReadJournal(t *testing.T) {
	fake := &fakeSheets{rows: [][]any{
		ports.Header,
		{"2024-03-15T08:30:00Z", "e-1", "created", "2024-03", "1", "2024-03-15", "expense", "餐饮", "12.5", "午餐"},
	}}
	c := newTestClient(t, fake)
	rows, err := c.ReadJournal(context.Background(), 2024)
	if err != nil {
		t.Fatalf("ReadJournal: %v", err)
	}
	if len(rows) != 1 || rows[0].Transaction.Amount != 12.5 || !rows[0].Timestamp.Equal(time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestNilServiceFails(t *testing.T) {
	c := &Client{spreadsheetID: "x", journalBase: "Journal"}
	if err := c.AppendEvent(context.Background(), &amqp.TransactionEvent{}); err == nil {
		t.Fatal("expected error with nil service")
	}
	if _, err := c.ReadJournal(context.Background(), 2024); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestNewMissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{}, nil)
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	got, err := loadCredentials(Options{ServiceAccountJSON: ` {"type":"service_account"} `})
	if err != nil || string(got) != `{"type":"service_account"}` {
		t.Fatalf("inline = %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err = loadCredentials(Options{ServiceAccountFile: path})
	if err != nil || string(got) != `{"from":"file"}` {
		t.Fatalf("file = %q, %v", got, err)
	}

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	if _, err := loadCredentials(Options{}); err != nil {
		t.Fatalf("ADC fallback: %v", err)
	}

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := loadCredentials(Options{}); err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
	if _, err := loadCredentials(Options{ServiceAccountFile: filepath.Join(t.TempDir(), "nope.json")}); err == nil {
		t.Fatal("expected read error")
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Journal", 2024, "2024 Journal"},
		{"2023 Journal", 2024, "2023 Journal"},
		{"  Log  ", 2025, "2025 Log"},
		{"", 2024, ""},
		{"12345", 2024, "2024 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}
