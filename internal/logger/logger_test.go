package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		level     Level
		wantDebug bool
		wantInfo  bool
	}{
		{LevelOff, false, false},
		{LevelNormal, false, true},
		{LevelVerbose, true, true},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		log := New(tt.level, &buf)
		log.Debug("debug %d", 1)
		log.Info("info %s", "two")

		out := buf.String()
		if got := strings.Contains(out, "debug 1"); got != tt.wantDebug {
			t.Errorf("level %d: debug present=%v, want %v (out=%q)", tt.level, got, tt.wantDebug, out)
		}
		if got := strings.Contains(out, "info two"); got != tt.wantInfo {
			t.Errorf("level %d: info present=%v, want %v (out=%q)", tt.level, got, tt.wantInfo, out)
		}
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(LevelOff, &buf)
	log.Error("hidden")
	log.SetLevel(LevelNormal)
	log.Error("shown")

	if log.GetLevel() != LevelNormal {
		t.Fatalf("expected LevelNormal, got %d", log.GetLevel())
	}
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("message logged while off: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("message missing after SetLevel: %q", out)
	}
}
