package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"
)

func newTestHistory(t *testing.T) *HistoryFile {
	t.Helper()
	return NewHistoryFile(filepath.Join(t.TempDir(), "conversation_history.json"), logger.New(logger.LevelOff, nil))
}

func TestHistoryMissingFile(t *testing.T) {
	h := newTestHistory(t)

	msgs, err := h.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != domain.RoleSystem || msgs[0].Content != domain.DefaultSystemPrompt {
		t.Errorf("Load() = %+v, want default system message", msgs)
	}
}

func TestHistoryCorruptFile(t *testing.T) {
	h := newTestHistory(t)
	if err := os.WriteFile(h.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	msgs, err := h.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != domain.RoleSystem {
		t.Errorf("Load() = %+v, want default history", msgs)
	}
}

func TestHistorySaveLoadClear(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	msgs := append(DefaultHistory(),
		domain.Message{Role: domain.RoleUser, Content: "hi"},
		domain.Message{Role: domain.RoleAssistant, Content: "Hello!"},
	)
	if err := h.Save(ctx, msgs); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := h.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[2].Content != "Hello!" || got[1].Role != domain.RoleUser {
		t.Errorf("Load() = %+v", got)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(h.Path()))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}

	if err := h.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := h.Clear(ctx); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	got, _ = h.Load(ctx)
	if len(got) != 1 {
		t.Errorf("after Clear Load() = %+v", got)
	}
}

func TestWindow(t *testing.T) {
	msgs := make([]domain.Message, 12)
	for i := range msgs {
		msgs[i] = domain.Message{Role: domain.RoleUser, Content: string(rune('a' + i))}
	}

	tests := []struct {
		n         int
		wantLen   int
		wantFirst string
	}{
		{10, 10, "c"},
		{12, 12, "a"},
		{50, 12, "a"},
		{1, 1, "l"},
		{0, 0, ""},
	}
	for _, tt := range tests {
		got := Window(msgs, tt.n)
		if len(got) != tt.wantLen {
			t.Errorf("Window(%d) len = %d, want %d", tt.n, len(got), tt.wantLen)
			continue
		}
		if tt.wantLen > 0 && got[0].Content != tt.wantFirst {
			t.Errorf("Window(%d)[0] = %q, want %q", tt.n, got[0].Content, tt.wantFirst)
		}
	}
}
