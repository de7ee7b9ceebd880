package speech

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"
)

var _ domain.Speaker = (*Mouth)(nil)

var (
	// ansiEscape matches terminal color sequences that must never reach TTS.
	ansiEscape  = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)
	sentenceEnd = regexp.MustCompile(`[.!?]+\s*`)
)

// MouthOption configures the Mouth.
type MouthOption func(*Mouth)

// WithQueueSize sets the internal notification channel capacity.
func WithQueueSize(n int) MouthOption {
	return func(m *Mouth) {
		m.notify = make(chan struct{}, n)
	}
}

// WithChunkSize sets the approximate max character count per TTS chunk.
// Text longer than this is split at sentence boundaries and synthesized
// in parallel so playback doesn't stall between sentences.
func WithChunkSize(n int) MouthOption {
	return func(m *Mouth) {
		m.chunkSize = n
	}
}

// WithCacheDir sets the filesystem directory used for persistent audio
// caching. If empty, the disk layer is disabled (pure in-memory).
func WithCacheDir(dir string) MouthOption {
	return func(m *Mouth) {
		m.cacheDir = dir
	}
}

// WithDiskWrite controls whether new cache entries are written to disk.
// Even when false, existing on-disk entries are still read.
func WithDiskWrite(enabled bool) MouthOption {
	return func(m *Mouth) {
		m.diskWrite = enabled
	}
}

// Mouth is the central speech dispatcher. It serializes all speech output
// through a single pipeline: queue -> chunk -> synthesize (parallel) -> play
// (sequential). Only one thing speaks at a time. Higher priority items are
// spoken first.
//
// Items of equal priority are spoken in the order they were queued. Every
// request carries the voice settings current at the time it was queued, so a
// profile change applies to the next line, not the one already playing.
//
// An internal AudioCache transparently avoids re-synthesizing identical text.
// Use Prefetch to pre-warm the cache for text that will be spoken soon.
type Mouth struct {
	tts    Synthesizer
	player AudioPlayer
	log    *logger.Logger
	cache  *AudioCache

	mu             sync.Mutex
	voice          domain.VoiceSettings
	queue          []SpeechRequest
	idle           chan struct{} // closed while nothing is queued or playing
	notify         chan struct{}
	speaking       bool
	interrupted    bool   // set by Interrupt(), checked between chunks
	chunkSize      int    // chars per TTS request, 0 = no chunking
	cacheDir       string // filesystem cache directory
	diskWrite      bool   // persist new cache entries to disk
	lastSpokenText string // most recent non-filler text spoken
}

// NewMouth creates a speech dispatcher with the given synthesizer and player.
func NewMouth(tts Synthesizer, player AudioPlayer, log *logger.Logger, opts ...MouthOption) *Mouth {
	m := &Mouth{
		tts:       tts,
		player:    player,
		log:       log,
		notify:    make(chan struct{}, 32),
		idle:      make(chan struct{}),
		chunkSize: 200, // roughly 2 sentences
		diskWrite: true,
	}
	close(m.idle)
	for _, opt := range opts {
		opt(m)
	}
	m.cache = NewAudioCache(m.cacheDir, m.diskWrite, log)
	return m
}

// Speak queues text at PriorityNormal with the current voice settings.
// It never blocks on playback; use Wait to block until the queue drains.
func (m *Mouth) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Say(text, PriorityNormal)
	return nil
}

// SetVoice changes the voice used for text queued from now on.
func (m *Mouth) SetVoice(vs domain.VoiceSettings) {
	m.mu.Lock()
	m.voice = vs
	m.mu.Unlock()
	m.log.Debug("mouth: voice set to %s", voiceKey(vs))
}

// Voice returns the current voice settings.
func (m *Mouth) Voice() domain.VoiceSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voice
}

// Say queues text to be spoken at the given priority. Non-blocking.
// When something at PriorityNormal or above is queued, any stale
// PriorityLow items are flushed since they're no longer relevant.
func (m *Mouth) Say(text string, priority Priority) {
	text = cleanForSpeech(text)
	if text == "" {
		return
	}

	m.mu.Lock()
	if priority >= PriorityNormal {
		m.flushLowLocked()
	}
	m.queue = append(m.queue, SpeechRequest{
		Text:     text,
		Priority: priority,
		Voice:    m.voice,
		QueuedAt: time.Now(),
	})
	m.markBusyLocked()
	qLen := len(m.queue)
	m.mu.Unlock()

	m.log.Debug("mouth: queued (priority=%d, queue_len=%d): %s", priority, qLen, truncate(text, 60))

	// Signal the processing goroutine.
	select {
	case m.notify <- struct{}{}:
	default: // already signaled
	}
}

// flushLowLocked removes all PriorityLow items from the queue.
// Must be called with m.mu held.
func (m *Mouth) flushLowLocked() {
	n := 0
	for _, item := range m.queue {
		if item.Priority > PriorityLow {
			m.queue[n] = item
			n++
		}
	}
	dropped := len(m.queue) - n
	m.queue = m.queue[:n]
	if dropped > 0 {
		m.log.Debug("mouth: flushed %d low-priority items", dropped)
	}
}

// markBusyLocked replaces a closed idle channel with an open one.
// Must be called with m.mu held.
func (m *Mouth) markBusyLocked() {
	select {
	case <-m.idle:
		m.idle = make(chan struct{})
	default:
	}
}

// markIdleLocked closes the idle channel if nothing is queued or playing.
// Must be called with m.mu held.
func (m *Mouth) markIdleLocked() {
	if m.speaking || len(m.queue) > 0 {
		return
	}
	select {
	case <-m.idle:
	default:
		close(m.idle)
	}
}

// Wait blocks until every queued item has been spoken or ctx is done.
func (m *Mouth) Wait(ctx context.Context) error {
	m.mu.Lock()
	idle := m.idle
	m.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsSpeaking returns true if the mouth is currently synthesizing or playing audio.
func (m *Mouth) IsSpeaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speaking
}

// QueueLen returns the number of pending speech requests.
func (m *Mouth) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Interrupt stops the currently playing audio, clears the queue, and
// causes any in-progress multi-chunk playback to abort. Use this when
// something more important needs to be spoken immediately.
func (m *Mouth) Interrupt() {
	m.mu.Lock()
	m.queue = m.queue[:0]
	m.interrupted = true
	m.markIdleLocked()
	m.mu.Unlock()

	// Stop the audio player mid-playback.
	m.player.Stop()

	m.log.Debug("mouth: interrupted, queue cleared and playback stopped")
}

// Start begins the speech processing goroutine. Non-blocking.
func (m *Mouth) Start(ctx context.Context) {
	go m.processLoop(ctx)
	m.log.Info("mouth started")
}

// processLoop waits for queued items and processes them one at a time.
func (m *Mouth) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.log.Info("mouth stopped")
			return
		case <-m.notify:
			m.drain(ctx)
		}
	}
}

// drain processes all queued items, highest priority first.
func (m *Mouth) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Clear the interrupted flag so we can process new items that
		// were queued after the interrupt.
		m.mu.Lock()
		m.interrupted = false
		m.mu.Unlock()

		item, ok := m.dequeue()
		if !ok {
			m.mu.Lock()
			m.markIdleLocked()
			m.mu.Unlock()
			return
		}

		m.process(ctx, item)

		// Track the last spoken text (skip fillers / very short acks).
		if len(item.Text) > 20 {
			m.mu.Lock()
			m.lastSpokenText = item.Text
			m.mu.Unlock()
		}

		m.mu.Lock()
		m.speaking = false
		m.mu.Unlock()
	}
}

// dequeue removes and returns the highest priority item from the queue.
func (m *Mouth) dequeue() (SpeechRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return SpeechRequest{}, false
	}

	// Strict comparison keeps FIFO order among equal priorities.
	bestIdx := 0
	for i, item := range m.queue {
		if item.Priority > m.queue[bestIdx].Priority {
			bestIdx = i
		}
	}

	item := m.queue[bestIdx]
	m.queue = append(m.queue[:bestIdx], m.queue[bestIdx+1:]...)
	m.speaking = true
	return item, true
}

// process synthesizes and plays a single speech request, using chunked
// parallel synthesis for long text.
func (m *Mouth) process(ctx context.Context, req SpeechRequest) {
	waitTime := time.Since(req.QueuedAt).Round(time.Millisecond)
	m.log.Debug("mouth: speaking (priority=%d, waited=%s): %s", req.Priority, waitTime, truncate(req.Text, 60))

	chunks := m.splitChunks(req.Text)
	if len(chunks) <= 1 {
		m.synthAndPlay(ctx, req.Text, req.Voice)
		return
	}

	m.log.Debug("mouth: synthesizing %d chunks in parallel", len(chunks))

	// A failed chunk is logged and skipped; the rest still play.
	audio := make([][]byte, len(chunks))
	var g errgroup.Group
	for i, chunk := range chunks {
		g.Go(func() error {
			data, err := m.synthesizeWithCache(ctx, chunk, req.Voice)
			if err != nil {
				m.log.Error("mouth: chunk %d synthesis failed: %v", i, err)
				return nil
			}
			audio[i] = data
			return nil
		})
	}
	_ = g.Wait()

	for i, data := range audio {
		if data == nil {
			continue
		}
		if ctx.Err() != nil || m.isInterrupted() {
			m.log.Debug("mouth: chunk playback aborted")
			return
		}
		if err := m.player.Play(data); err != nil {
			m.log.Error("mouth: chunk %d playback failed: %v", i, err)
		}
	}
}

func (m *Mouth) isInterrupted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interrupted
}

// synthAndPlay does a single synthesize-then-play for short text.
func (m *Mouth) synthAndPlay(ctx context.Context, text string, voice domain.VoiceSettings) {
	audioData, err := m.synthesizeWithCache(ctx, text, voice)
	if err != nil {
		m.log.Error("mouth: synthesis failed: %v", err)
		return
	}
	if err := m.player.Play(audioData); err != nil {
		m.log.Error("mouth: playback failed: %v", err)
	}
}

// synthesizeWithCache checks the cache first, otherwise calls the
// synthesizer and stores the result. Thread-safe.
func (m *Mouth) synthesizeWithCache(ctx context.Context, text string, voice domain.VoiceSettings) ([]byte, error) {
	key := voiceKey(voice)
	if audio, ok := m.cache.Get(key, text); ok {
		return audio, nil
	}
	audio, err := m.tts.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	m.cache.Put(key, text, audio)
	return audio, nil
}

// cleanForSpeech strips ANSI escapes and markdown emphasis.
func cleanForSpeech(s string) string {
	s = ansiEscape.ReplaceAllString(s, "")
	s = strings.NewReplacer("**", "", "__", "", "`", "", "#", "").Replace(s)
	return strings.TrimSpace(s)
}

// splitChunks groups sentences into chunks of about m.chunkSize
// characters. Short text, or a chunkSize of 0, comes back whole.
func (m *Mouth) splitChunks(text string) []string {
	if m.chunkSize <= 0 || len(text) <= m.chunkSize {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if c := strings.TrimSpace(cur.String()); c != "" {
			chunks = append(chunks, c)
		}
		cur.Reset()
	}
	for _, s := range splitSentences(text) {
		if cur.Len() > 0 && cur.Len()+len(s) > m.chunkSize {
			flush()
		}
		cur.WriteString(s)
	}
	flush()
	return chunks
}

// splitSentences cuts text after each run of . ! or ? and the whitespace
// that follows it.
func splitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		out = append(out, text[last:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// ── Prefetching / Cache ──────────────────────────────────────────

// Prefetch pre-synthesizes the given texts in background goroutines and
// stores the results in the audio cache. It skips texts that are already
// cached. Non-blocking: it launches goroutines and returns immediately.
//
// Call it any time you know what text will be spoken next (fillers, the
// greeting) so playback starts instantly when Say is called. Audio is
// rendered in the current voice.
func (m *Mouth) Prefetch(ctx context.Context, texts ...string) {
	voice := m.Voice()
	key := voiceKey(voice)
	for _, text := range texts {
		if text == "" {
			continue
		}

		// For long text, split into the same chunks Say would use.
		chunks := m.splitChunks(text)
		for _, chunk := range chunks {
			if m.cache.Has(key, chunk) {
				m.log.Debug("prefetch: already cached: %s", truncate(chunk, 50))
				continue
			}
			go func(t string) {
				m.log.Debug("prefetch: synthesizing: %s", truncate(t, 50))
				audio, err := m.tts.Synthesize(ctx, t, voice)
				if err != nil {
					m.log.Error("prefetch: synthesis failed: %v", err)
					return
				}
				m.cache.Put(key, t, audio)
				m.log.Debug("prefetch: cached %d bytes for: %s", len(audio), truncate(t, 50))
			}(chunk)
		}
	}
}

// LastSpoken returns the most recently spoken non-filler text.
func (m *Mouth) LastSpoken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSpokenText
}

// Cache returns the audio cache used by this Mouth. Useful for stats/logging.
func (m *Mouth) Cache() *AudioCache { return m.cache }
