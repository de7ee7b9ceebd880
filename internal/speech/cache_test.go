package speech

import (
	"path/filepath"
	"testing"

	"github.com/hammamikhairi/julian/internal/logger"
)

func TestAudioCacheMemory(t *testing.T) {
	c := NewAudioCache("", false, logger.New(logger.LevelOff, nil))

	if _, ok := c.Get("ava", "hi"); ok {
		t.Fatal("empty cache reported a hit")
	}
	c.Put("ava", "hi", []byte("wav"))
	if got, ok := c.Get("ava", "hi"); !ok || string(got) != "wav" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if c.Has("andrew", "hi") {
		t.Fatal("different voice must miss")
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Fatalf("stats = %d hits %d misses, want 1/1", hits, misses)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Len after Clear = %d", c.Len())
	}
}

func TestAudioCacheDisk(t *testing.T) {
	dir := t.TempDir()
	log := logger.New(logger.LevelOff, nil)

	writer := NewAudioCache(dir, true, log)
	writer.Put("ava", "hello", []byte("audio"))

	// A read-only cache over the same directory still sees the entry.
	reader := NewAudioCache(dir, false, log)
	if !reader.Has("ava", "hello") {
		t.Fatal("disk entry not visible")
	}
	got, ok := reader.Get("ava", "hello")
	if !ok || string(got) != "audio" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if reader.Len() != 1 {
		t.Fatal("disk hit should be promoted to memory")
	}

	reader.Put("ava", "fresh", []byte("x"))
	if writer.Has("ava", "fresh") {
		t.Fatal("read-only cache wrote to disk")
	}
}

func TestAudioCacheDiskLeavesOnlyEntries(t *testing.T) {
	dir := t.TempDir()
	c := NewAudioCache(dir, true, logger.New(logger.LevelOff, nil))
	c.Put("ava", "one", []byte("1"))
	c.Put("ava", "one", []byte("2"))
	c.Put("ava", "two", []byte("3"))

	files, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("cache dir holds %v, want two entries", files)
	}
	for _, f := range files {
		if filepath.Ext(f) != ".wav" {
			t.Errorf("unexpected file %s", f)
		}
	}
	if got, _ := NewAudioCache(dir, false, logger.New(logger.LevelOff, nil)).Get("ava", "one"); string(got) != "2" {
		t.Errorf("re-read entry = %q, want the latest write", got)
	}
}
