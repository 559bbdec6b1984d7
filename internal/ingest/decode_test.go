package ingest

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"
)

func captureLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func countLogEntries(t *testing.T, buf *bytes.Buffer, level, msg string) int {
	t.Helper()
	n := 0
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		if entry["level"] == level && entry["msg"] == msg {
			n++
		}
	}
	return n
}

func TestDecodeObject(t *testing.T) {
	var buf bytes.Buffer
	p := Decode(captureLogger(&buf), []byte(`{"provider":"PCIC","submissionId":"S1","score":12.50}`))

	sp, ok := p.(StructuredPayload)
	if !ok {
		t.Fatalf("Decode returned %T, want StructuredPayload", p)
	}
	if sp.Fields["provider"] != "PCIC" || sp.Fields["submissionId"] != "S1" {
		t.Errorf("fields = %v", sp.Fields)
	}
	if n, ok := sp.Fields["score"].(json.Number); !ok || n.String() != "12.50" {
		t.Errorf("score = %#v, want json.Number 12.50", sp.Fields["score"])
	}
}

func TestDecodeEmptyObject(t *testing.T) {
	var buf bytes.Buffer
	p := Decode(captureLogger(&buf), []byte(`{}`))
	sp, ok := p.(StructuredPayload)
	if !ok || len(sp.Fields) != 0 {
		t.Fatalf("Decode({}) = %#v", p)
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"plain text", "not valid json"},
		{"empty", ""},
		{"truncated", `{"provider":"PCIC"`},
		{"trailing garbage", `{"provider":"PCIC"} extra`},
		{"invalid utf8", "\xff\xfe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := Decode(captureLogger(&buf), []byte(tt.input))

			raw, ok := p.(RawPayload)
			if !ok {
				t.Fatalf("Decode returned %T, want RawPayload", p)
			}
			if raw.Text != tt.input {
				t.Errorf("Text = %q, want %q", raw.Text, tt.input)
			}
			if n := countLogEntries(t, &buf, "WARN", "invalid JSON payload"); n != 1 {
				t.Errorf("logged %d decode warnings, want exactly 1", n)
			}
		})
	}
}

func TestDecodeNonObject(t *testing.T) {
	for _, input := range []string{`[1,2,3]`, `"PCIC"`, `42`, `null`, `true`} {
		var buf bytes.Buffer
		p := Decode(captureLogger(&buf), []byte(input))
		if raw, ok := p.(RawPayload); !ok || raw.Text != input {
			t.Errorf("Decode(%s) = %#v, want RawPayload", input, p)
		}
		if n := countLogEntries(t, &buf, "WARN", "invalid JSON payload"); n != 0 {
			t.Errorf("Decode(%s) logged a decode warning for valid JSON", input)
		}
	}
}

func TestDecodeBoundsLoggedPayload(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	body := strings.Repeat("not json ", 100000)

	p := Decode(logger, []byte(body))
	if raw, ok := p.(RawPayload); !ok || raw.Text != body {
		t.Fatal("payload text not kept in full")
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON log entry, got %q", buf.String())
	}
	logged, _ := entry["raw"].(string)
	if len(logged) > maxLoggedPayload+len("...") || !strings.HasSuffix(logged, "...") {
		t.Errorf("logged raw has %d bytes, want at most %d plus ellipsis", len(logged), maxLoggedPayload)
	}
	if size, _ := entry["size"].(float64); int(size) != len(body) {
		t.Errorf("size = %v, want %d", entry["size"], len(body))
	}
}

func TestPreview(t *testing.T) {
	if got := preview("short"); got != "short" {
		t.Errorf("preview(short) = %q", got)
	}
	s := strings.Repeat("€", maxLoggedPayload)
	got := preview(s)
	if !strings.HasSuffix(got, "...") || !utf8.ValidString(got) {
		t.Errorf("preview cut a rune: %q", got)
	}
}
