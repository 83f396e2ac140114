package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriterFormats(t *testing.T) {
	ctx := context.Background()

	var human bytes.Buffer
	l, err := NewWithWriter("human", slog.LevelInfo, &human)
	if err != nil {
		t.Fatalf("human logger: %v", err)
	}
	l.With("zone", "example.com").Info(ctx, "synced", "added", 2)
	l.Debug(ctx, "hidden")
	out := human.String()
	if strings.Contains(out, "time=") || !strings.Contains(out, "zone=example.com") || !strings.Contains(out, "added=2") {
		t.Fatalf("unexpected human output %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line logged at info level: %q", out)
	}

	var js bytes.Buffer
	l, err = NewWithWriter("json", slog.LevelDebug, &js)
	if err != nil {
		t.Fatalf("json logger: %v", err)
	}
	l.Warn(ctx, "slow transfer", "zone", "example.com")
	entry := map[string]any{}
	if err := json.Unmarshal(js.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", js.String(), err)
	}
	if entry["level"] != "WARN" || entry["msg"] != "slow transfer" || entry["zone"] != "example.com" {
		t.Fatalf("unexpected json entry %v", entry)
	}

	if _, err := NewWithWriter("xml", slog.LevelInfo, &js); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
