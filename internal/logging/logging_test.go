package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"loud", zerolog.NoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComponentJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Config{Level: "info", Format: "json", Output: &buf}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Init(DefaultConfig())

	log := Component("capture")
	log.Debug().Msg("hidden")
	log.Info().Int("ttl", 64).Msg("packet")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "capture" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["message"] != "packet" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["ttl"] != float64(64) {
		t.Errorf("ttl = %v", entry["ttl"])
	}
}

func TestInitRejectsUnknownFormat(t *testing.T) {
	if err := Init(Config{Format: "xml"}); err == nil {
		t.Fatal("Expected error for unknown format")
	}
}
