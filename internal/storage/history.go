package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"
)

var _ domain.HistoryStore = (*HistoryFile)(nil)

// HistoryFile stores the conversation transcript as a JSON array of
// {"role", "content"} objects.
type HistoryFile struct {
	mu   sync.Mutex
	path string
	log  *logger.Logger
}

// NewHistoryFile returns a history store backed by path.
func NewHistoryFile(path string, log *logger.Logger) *HistoryFile {
	return &HistoryFile{path: path, log: log}
}

// Path returns the backing file path.
func (h *HistoryFile) Path() string { return h.path }

// DefaultHistory is the transcript a fresh conversation starts from.
func DefaultHistory() []domain.Message {
	return []domain.Message{{Role: domain.RoleSystem, Content: domain.DefaultSystemPrompt}}
}

// Load returns the stored transcript. A missing, empty or corrupt file
// yields DefaultHistory.
func (h *HistoryFile) Load(ctx context.Context) ([]domain.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultHistory(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: reading history: %w", err)
	}

	var msgs []domain.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		h.log.Warn("[storage] history file %s is corrupt, starting fresh: %v", h.path, err)
		return DefaultHistory(), nil
	}
	if len(msgs) == 0 {
		return DefaultHistory(), nil
	}
	return msgs, nil
}

// Save writes msgs atomically: a temp file in the same directory is
// renamed over the target.
func (h *HistoryFile) Save(ctx context.Context, msgs []domain.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encoding history: %w", err)
	}

	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: creating history dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("storage: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: writing history: %w", err)
	}
	if err := os.Rename(tmp.Name(), h.path); err != nil {
		return fmt.Errorf("storage: replacing history: %w", err)
	}
	h.log.Debug("[storage] saved %d messages to %s", len(msgs), h.path)
	return nil
}

// Clear deletes the history file. A missing file is not an error.
func (h *HistoryFile) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.Remove(h.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: clearing history: %w", err)
	}
	return nil
}

// Window returns the last n messages of msgs. n <= 0 returns none.
func Window(msgs []domain.Message, n int) []domain.Message {
	if n <= 0 {
		return nil
	}
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
