package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInit_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "alchemy.log")

	log, closer, err := Init("info", "json", path)
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	log.Info().Str("user_id", "u-1").Msg("session restored")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"user_id":"u-1"`) {
		t.Fatalf("log output = %q, want structured user_id field", data)
	}
}

func TestInit_EmptyPathDiscards(t *testing.T) {
	_, closer, err := Init("debug", "console", "")
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}
