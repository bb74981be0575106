package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitWritesLevelFilteredFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tg.log")
	if err := Init(true, "warn", path, false); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer func() { _ = Init(false, "", "", false) }()

	Infof("hidden %d", 1)
	Warnf("shown %d", 2)
	Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info line to be filtered, got %q", out)
	}
	if !strings.Contains(out, "shown 2") || !strings.Contains(out, "WARN") {
		t.Fatalf("expected warn line, got %q", out)
	}
}
