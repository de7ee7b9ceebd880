package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/hammamikhairi/julian/internal/logger"
)

// AudioCache keeps synthesized WAV audio in memory, backed by an optional
// directory. Entries are keyed by voice and text, so the same sentence in
// a different voice or prosody is a miss.
//
// The directory is always read when set; readOnly stops new entries from
// being written to it.
type AudioCache struct {
	log      *logger.Logger
	dir      string
	readOnly bool

	mu      sync.RWMutex
	entries map[string][]byte

	hits, misses atomic.Int64
}

// NewAudioCache creates a cache. An empty dir keeps everything in memory;
// with diskWrite false an existing dir is only read.
func NewAudioCache(dir string, diskWrite bool, log *logger.Logger) *AudioCache {
	if dir != "" && diskWrite {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("cache: creating %s: %v", dir, err)
		}
	}
	return &AudioCache{
		log:      log,
		dir:      dir,
		readOnly: !diskWrite,
		entries:  make(map[string][]byte),
	}
}

// Get returns the audio for text in voice. A disk hit is kept in memory.
func (c *AudioCache) Get(voice, text string) ([]byte, bool) {
	key := cacheKey(voice, text)
	if data, ok := c.memory(key); ok {
		c.hits.Add(1)
		return data, true
	}
	if data, err := c.readFile(key); err == nil {
		c.mu.Lock()
		c.entries[key] = data
		c.mu.Unlock()
		c.hits.Add(1)
		c.log.Debug("cache: disk hit %q (%d bytes)", truncate(text, 40), len(data))
		return data, true
	}
	c.misses.Add(1)
	return nil, false
}

// Put stores audio for text in voice.
func (c *AudioCache) Put(voice, text string, audio []byte) {
	key := cacheKey(voice, text)
	c.mu.Lock()
	c.entries[key] = audio
	c.mu.Unlock()

	if c.dir == "" || c.readOnly {
		return
	}
	if err := c.writeFile(key, audio); err != nil {
		c.log.Error("cache: writing %q: %v", truncate(text, 40), err)
	}
}

// Has reports whether audio for text in voice is cached. It does not count
// as a hit or miss.
func (c *AudioCache) Has(voice, text string) bool {
	key := cacheKey(voice, text)
	if _, ok := c.memory(key); ok {
		return true
	}
	if c.dir == "" {
		return false
	}
	_, err := os.Stat(c.path(key))
	return err == nil
}

// Len returns the number of entries held in memory.
func (c *AudioCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts since creation or the last Clear.
func (c *AudioCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Clear drops the in-memory entries and resets the counters. Files on disk
// are kept.
func (c *AudioCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string][]byte)
	c.mu.Unlock()
	c.hits.Store(0)
	c.misses.Store(0)
}

func (c *AudioCache) memory(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[key]
	return data, ok
}

func (c *AudioCache) path(key string) string {
	return filepath.Join(c.dir, key+".wav")
}

func (c *AudioCache) readFile(key string) ([]byte, error) {
	if c.dir == "" {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(c.path(key))
}

// writeFile replaces the entry atomically so a concurrent reader never
// sees a partial WAV.
func (c *AudioCache) writeFile(key string, audio []byte) error {
	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.path(key))
}

// cacheKey hashes voice and text into a file-safe name.
func cacheKey(voice, text string) string {
	h := sha256.Sum256([]byte(voice + "\x00" + text))
	return hex.EncodeToString(h[:])
}
