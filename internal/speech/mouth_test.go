package speech

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"
)

type fakeSynth struct {
	mu     sync.Mutex
	calls  []string
	voices []domain.VoiceSettings
	fail   map[string]bool
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string, voice domain.VoiceSettings) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	f.voices = append(f.voices, voice)
	if f.fail[text] {
		return nil, errors.New("synth down")
	}
	return []byte(text), nil
}

func (f *fakeSynth) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePlayer struct {
	mu      sync.Mutex
	played  []string
	stopped int
}

func (f *fakePlayer) Play(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, string(data))
	return nil
}

func (f *fakePlayer) Stop() {
	f.mu.Lock()
	f.stopped++
	f.mu.Unlock()
}

func (f *fakePlayer) Played() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.played))
	copy(out, f.played)
	return out
}

func newTestMouth(t *testing.T, opts ...MouthOption) (*Mouth, *fakeSynth, *fakePlayer) {
	t.Helper()
	synth := &fakeSynth{}
	player := &fakePlayer{}
	m := NewMouth(synth, player, logger.New(logger.LevelOff, nil), opts...)
	return m, synth, player
}

func waitMouth(t *testing.T, m *Mouth) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestMouthPriorityOrder(t *testing.T) {
	m, _, player := newTestMouth(t)

	m.Say("filler", PriorityLow)
	m.Say("reply one", PriorityNormal) // flushes the filler
	m.Say("greeting", PriorityHigh)
	m.Say("reply two", PriorityNormal)

	if got := m.QueueLen(); got != 3 {
		t.Fatalf("QueueLen = %d, want 3", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	waitMouth(t, m)

	want := []string{"greeting", "reply one", "reply two"}
	if got := player.Played(); !reflect.DeepEqual(got, want) {
		t.Fatalf("played %v, want %v", got, want)
	}
	if m.IsSpeaking() {
		t.Fatal("still speaking after Wait")
	}
}

func TestMouthSpeakUsesCurrentVoice(t *testing.T) {
	m, synth, _ := newTestMouth(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	fr := domain.VoiceSettings{LanguageCode: "fr-FR", SpeakingRate: 1.2}
	m.SetVoice(fr)
	if err := m.Speak(ctx, "bonjour"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	waitMouth(t, m)

	synth.mu.Lock()
	defer synth.mu.Unlock()
	if len(synth.voices) != 1 || synth.voices[0] != fr {
		t.Fatalf("voices = %+v, want [%+v]", synth.voices, fr)
	}
}

func TestMouthCachesPerVoice(t *testing.T) {
	m, synth, player := newTestMouth(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	m.Say("hello", PriorityNormal)
	waitMouth(t, m)
	m.Say("hello", PriorityNormal)
	waitMouth(t, m)
	if got := synth.count(); got != 1 {
		t.Fatalf("synth calls = %d, want 1 (second should hit cache)", got)
	}

	m.SetVoice(domain.VoiceSettings{SpeakingRate: 1.5})
	m.Say("hello", PriorityNormal)
	waitMouth(t, m)
	if got := synth.count(); got != 2 {
		t.Fatalf("synth calls = %d, want 2 after voice change", got)
	}
	if got := len(player.Played()); got != 3 {
		t.Fatalf("played %d items, want 3", got)
	}
}

func TestMouthSkipsFailedChunk(t *testing.T) {
	m, synth, player := newTestMouth(t, WithChunkSize(10))
	synth.fail = map[string]bool{"Three four.": true}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	m.Say("One two. Three four. Five.", PriorityNormal)
	waitMouth(t, m)

	want := []string{"One two.", "Five."}
	if got := player.Played(); !reflect.DeepEqual(got, want) {
		t.Fatalf("played %v, want %v", got, want)
	}
}

func TestMouthInterruptClearsQueue(t *testing.T) {
	m, _, player := newTestMouth(t)
	m.Say("one", PriorityNormal)
	m.Say("two", PriorityNormal)
	m.Interrupt()

	if got := m.QueueLen(); got != 0 {
		t.Fatalf("QueueLen = %d after Interrupt", got)
	}
	if player.stopped != 1 {
		t.Fatalf("player.Stop called %d times, want 1", player.stopped)
	}
	waitMouth(t, m)
}

func TestMouthSpeakCancelled(t *testing.T) {
	m, _, _ := newTestMouth(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Speak(ctx, "late"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if m.QueueLen() != 0 {
		t.Fatal("cancelled Speak should not queue")
	}
}

func TestMouthIgnoresBlankText(t *testing.T) {
	m, _, _ := newTestMouth(t)
	m.Say("  \x1b[0m ", PriorityNormal)
	if m.QueueLen() != 0 {
		t.Fatal("blank text was queued")
	}
}

func TestPrefetchWarmsCache(t *testing.T) {
	m, synth, _ := newTestMouth(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Prefetch(ctx, "Listening.", "")
	deadline := time.Now().Add(5 * time.Second)
	for !m.Cache().Has(voiceKey(m.Voice()), "Listening.") {
		if time.Now().After(deadline) {
			t.Fatal("prefetch never cached the text")
		}
		time.Sleep(5 * time.Millisecond)
	}

	m.Prefetch(ctx, "Listening.")
	if got := synth.count(); got != 1 {
		t.Fatalf("synth calls = %d, want 1", got)
	}
}

func TestSplitChunks(t *testing.T) {
	m, _, _ := newTestMouth(t, WithChunkSize(10))

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"short", "Hi.", []string{"Hi."}},
		{"three sentences", "One two. Three four. Five.", []string{"One two.", "Three four.", "Five."}},
		{"no punctuation", "abcdefghijklmnop", []string{"abcdefghijklmnop"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.splitChunks(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("splitChunks(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanForSpeech(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"\x1b[32m**Hi**\x1b[0m", "Hi"},
		{"# Title", "Title"},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		if got := cleanForSpeech(tt.in); got != tt.want {
			t.Errorf("cleanForSpeech(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
