package speech

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	audiotranscriber "github.com/sklyt/whisper/pkg"

	"github.com/hammamikhairi/julian/internal/logger"
)

// ChunkRecorder records audio for a fixed duration and returns its
// transcription. An empty string means nothing was heard.
type ChunkRecorder interface {
	Record(ctx context.Context, d time.Duration) (string, error)
}

// Busy reports whether speech output is active. Used to avoid
// transcribing the assistant's own voice.
type Busy interface {
	IsSpeaking() bool
	QueueLen() int
}

// ── Whisper recorder ─────────────────────────────────────────────

var _ ChunkRecorder = (*WhisperRecorder)(nil)

// WhisperRecorder records from the default microphone and transcribes with
// a local whisper-cli binary.
type WhisperRecorder struct {
	whisperBin string
	modelPath  string
	tempDir    string
	log        *logger.Logger
}

// NewWhisperRecorder creates a recorder.
//
//   - whisperBin: path to the whisper-cli executable
//   - modelPath:  path to the GGML model file
//   - tempDir:    directory for temporary WAV files
func NewWhisperRecorder(whisperBin, modelPath, tempDir string, log *logger.Logger) *WhisperRecorder {
	if _, err := exec.LookPath(whisperBin); err != nil {
		log.Error("ear: whisper binary %q not found in PATH: %v", whisperBin, err)
	}
	return &WhisperRecorder{
		whisperBin: whisperBin,
		modelPath:  modelPath,
		tempDir:    tempDir,
		log:        log,
	}
}

// Record does one recording cycle and returns the raw transcription.
func (w *WhisperRecorder) Record(ctx context.Context, d time.Duration) (string, error) {
	var result string
	var wg sync.WaitGroup
	wg.Add(1)

	callback := func(text string) {
		result = text
		wg.Done()
	}

	verbose := w.log.GetLevel() >= logger.LevelVerbose
	t, err := audiotranscriber.NewTranscriber(
		w.whisperBin,
		w.modelPath,
		w.tempDir,
		"wav",
		callback,
		verbose,
	)
	if err != nil {
		return "", fmt.Errorf("ear: transcriber init: %w", err)
	}

	if err := t.Start(); err != nil {
		return "", fmt.Errorf("ear: recording start: %w", err)
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
		t.Stop()
		wg.Wait()
		return "", ctx.Err()
	}

	t.Stop()
	wg.Wait()
	return result, nil
}

// ── Ear ──────────────────────────────────────────────────────────

// EarOption configures the Ear.
type EarOption func(*Ear)

// WithRecordDuration sets how long each recording chunk lasts.
func WithRecordDuration(d time.Duration) EarOption {
	return func(e *Ear) { e.recordDuration = d }
}

// WithSilenceChunks sets how many empty chunks in a row end an utterance.
func WithSilenceChunks(n int) EarOption {
	return func(e *Ear) { e.silenceChunks = n }
}

// WithMaxUtterance caps how long a single utterance may run before it is
// emitted regardless of silence.
func WithMaxUtterance(d time.Duration) EarOption {
	return func(e *Ear) { e.maxUtterance = d }
}

// WithBusy sets the speech output the Ear waits on before recording.
func WithBusy(b Busy) EarOption {
	return func(e *Ear) { e.busy = b }
}

// WithRetryDelay sets the pause after a failed recording.
func WithRetryDelay(d time.Duration) EarOption {
	return func(e *Ear) { e.retryDelay = d }
}

// Ear turns a stream of recorded chunks into utterances.
//
// It records fixed-length chunks, cleans each transcription, and collects
// non-empty chunks until silenceChunks empty chunks arrive in a row (or
// maxUtterance elapses). The joined text is sent on C(). The Ear knows
// nothing about wake phrases: deciding what an utterance means is up to
// the reader.
type Ear struct {
	rec  ChunkRecorder
	log  *logger.Logger
	busy Busy

	recordDuration time.Duration
	silenceChunks  int
	maxUtterance   time.Duration
	retryDelay     time.Duration

	mu     sync.Mutex
	muted  bool
	textCh chan string
}

// NewEar creates a voice input listener over rec.
func NewEar(rec ChunkRecorder, log *logger.Logger, opts ...EarOption) *Ear {
	e := &Ear{
		rec:            rec,
		log:            log,
		recordDuration: 2 * time.Second,
		silenceChunks:  1,
		maxUtterance:   20 * time.Second,
		retryDelay:     2 * time.Second,
		textCh:         make(chan string, 8),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.silenceChunks < 1 {
		e.silenceChunks = 1
	}
	return e
}

// C returns the channel that receives utterances. It is closed when Run
// returns.
func (e *Ear) C() <-chan string {
	return e.textCh
}

// Mute temporarily disables listening.
func (e *Ear) Mute() {
	e.mu.Lock()
	e.muted = true
	e.mu.Unlock()
	e.log.Debug("ear: muted")
}

// Unmute re-enables listening.
func (e *Ear) Unmute() {
	e.mu.Lock()
	e.muted = false
	e.mu.Unlock()
	e.log.Debug("ear: unmuted")
}

func (e *Ear) isMuted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

func (e *Ear) outputBusy() bool {
	return e.busy != nil && (e.busy.IsSpeaking() || e.busy.QueueLen() > 0)
}

// Run records until ctx is cancelled. Call this in a goroutine.
func (e *Ear) Run(ctx context.Context) {
	defer close(e.textCh)
	e.log.Info("ear: started (chunk=%s, silence=%d, max=%s)",
		e.recordDuration, e.silenceChunks, e.maxUtterance)

	var (
		parts   []string
		started time.Time
		empty   int
	)
	flush := func() {
		combined := strings.TrimSpace(strings.Join(parts, " "))
		parts, empty = nil, 0
		if combined == "" {
			return
		}
		e.log.Info("ear: heard %q", combined)
		select {
		case e.textCh <- combined:
		case <-ctx.Done():
		}
	}

	for {
		if ctx.Err() != nil {
			e.log.Info("ear: stopped")
			return
		}

		// Echo prevention: don't record while the mouth is speaking.
		if e.isMuted() || e.outputBusy() {
			sleepCtx(ctx, 200*time.Millisecond)
			continue
		}

		raw, err := e.rec.Record(ctx, e.recordDuration)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			e.log.Error("%v", err)
			sleepCtx(ctx, e.retryDelay)
			continue
		}

		// The mouth started during the recording; the audio is contaminated.
		if e.outputBusy() {
			e.log.Debug("ear: discarding chunk recorded over speech")
			continue
		}

		chunk := cleanTranscription(raw)
		if chunk == "" {
			if len(parts) == 0 {
				continue
			}
			empty++
			if empty >= e.silenceChunks {
				flush()
			}
			continue
		}

		e.log.Debug("ear: chunk %q", chunk)
		if len(parts) == 0 {
			started = time.Now()
		}
		parts = append(parts, chunk)
		empty = 0
		if e.maxUtterance > 0 && time.Since(started) >= e.maxUtterance {
			e.log.Debug("ear: max utterance length reached")
			flush()
		}
	}
}

// sleepCtx waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// ── Transcription cleanup ────────────────────────────────────────

var (
	// annotation matches whisper sound tags like "[BLANK_AUDIO]",
	// "(keyboard clicking)" or "(speaking French)".
	annotation = regexp.MustCompile(`[\(\[][A-Za-z][A-Za-z_\s]*[\)\]]`)
	// timestamp matches a segment prefix like "[00:00:00.000 --> 00:00:05.000]".
	timestamp = regexp.MustCompile(`(?m)^\s*\[[\d:.]+\s*-->\s*[\d:.]+\]`)
)

// hallucinations are transcriptions whisper produces from silence.
var hallucinations = map[string]bool{
	"...":                     true,
	"you":                     true,
	"thank you.":              true,
	"thanks for watching!":    true,
	"thank you for watching.": true,
	"bye.":                    true,
	"bye!":                    true,
	"the end.":                true,
}

// cleanTranscription strips timestamps and sound annotations from raw
// whisper output and collapses whitespace. Known silence hallucinations
// come back empty.
func cleanTranscription(s string) string {
	s = timestamp.ReplaceAllString(s, "")
	s = annotation.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	if hallucinations[strings.ToLower(s)] {
		return ""
	}
	return s
}
