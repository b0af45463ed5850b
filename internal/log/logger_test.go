package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentMonthStore, JSON: true, Output: &buf})
	l.Info("shard written", FieldMonthKey, "2024-03")
	out := buf.String()
	if !strings.Contains(out, `"component":"monthstore"`) || !strings.Contains(out, `"month_key":"2024-03"`) {
		t.Fatalf("unexpected log line: %s", out)
	}

	buf.Reset()
	l.WithComponent(ComponentHTTP).Debug("hello")
	if !strings.Contains(buf.String(), `"component":"http"`) {
		t.Fatalf("component override missing: %s", buf.String())
	}
}

func TestLevelFiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Output: &buf})
	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level: %s", buf.String())
	}
	l.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn record missing: %s", buf.String())
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger: %+v", l)
	}
}

func TestLogTransactionWritten(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{JSON: true, Output: &buf}))
	sl.LogTransactionWritten(context.Background(), OpCreate, "1700000000000001", "2024-03", 12.5, "expense", "餐饮")
	out := buf.String()
	for _, want := range []string{`"transaction_id":"1700000000000001"`, `"operation":"create"`, `"amount":12.5`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, `"level":"INFO"`},
		{404, `"level":"WARN"`},
		{503, `"level":"ERROR"`},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(New(Config{JSON: true, Output: &buf, Component: ComponentTrace}))
		r := httptest.NewRequest(http.MethodGet, "/transactions?type=income", nil)
		sl.LogHTTPEnd(context.Background(), r, tt.status, 3, "10.0.0.1")
		out := buf.String()
		if !strings.Contains(out, tt.level) {
			t.Errorf("status %d: missing %s in %s", tt.status, tt.level, out)
		}
		if strings.Count(out, `"component"`) != 1 || !strings.Contains(out, `"component":"trace"`) {
			t.Errorf("status %d: component attribute not stamped once: %s", tt.status, out)
		}
	}
}

func TestLogErrorCarriesOperation(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{JSON: true, Output: &buf}))
	sl.LogError(context.Background(), "journal failed", errors.New("quota"), OpAppend, NewFields().WithEventID("evt-1"))
	out := buf.String()
	for _, want := range []string{`"error":"quota"`, `"operation":"append"`, `"event_id":"evt-1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}
