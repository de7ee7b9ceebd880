package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hammamikhairi/julian/internal/assistant"
	"github.com/hammamikhairi/julian/internal/config"
	"github.com/hammamikhairi/julian/internal/conversation"
	"github.com/hammamikhairi/julian/internal/display"
	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/gpt"
	"github.com/hammamikhairi/julian/internal/logger"
	"github.com/hammamikhairi/julian/internal/profile"
	"github.com/hammamikhairi/julian/internal/sentiment"
	"github.com/hammamikhairi/julian/internal/speech"
	"github.com/hammamikhairi/julian/internal/storage"
	"github.com/hammamikhairi/julian/internal/wakeword"
)

// goodbyeGrace is how long quitting waits for the last line to play.
const goodbyeGrace = 3 * time.Second

// runAssistant wires every component and blocks until the UI quits.
func runAssistant(ctx context.Context, cfg *config.Config) error {
	log, closeLog := openLog(cfg)
	defer closeLog()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := storage.OpenSQLite(cfg.DataDir, log)
	if err != nil {
		return fmt.Errorf("opening profile store: %w", err)
	}
	defer store.Close()

	prof, err := loadProfile(ctx, store, cfg.User, cfg.Profile.Validate, log)
	if err != nil {
		return err
	}

	ex, err := buildExtractor(cfg, log)
	if err != nil {
		return err
	}

	// The status func is polled by the UI only after Run starts, by which
	// time the assistant below is built.
	var a *assistant.Assistant
	var ear *speech.Ear
	ui := display.NewUI(func() display.Status {
		s := a.Status()
		return display.Status{
			State:   s.State,
			User:    s.User,
			Learned: s.LastLearned,
			Turns:   s.Turns,
			Voice:   ear != nil,
		}
	})

	notifier := conversation.NewCLINotifier(log, ui.Printf)
	parser := conversation.NewKeywordParser(log,
		conversation.WithWakePhrases(cfg.WakePhrase),
		conversation.WithSleepPhrases(cfg.SleepPhrase),
	)

	mouth := buildMouth(ctx, cfg, log)

	var speaker domain.Speaker = speech.NewNoOp(log)
	if mouth != nil {
		speaker = mouth
	}

	analyzer, closeAnalyzer := buildAnalyzer(cfg, log)
	defer closeAnalyzer()

	// Wake-word detector: it only needs to run while Julian is asleep.
	var detector *wakeword.Detector
	wakeCh := make(chan struct{}, 1)
	if cfg.Wakeword.Enabled {
		detector = wakeword.New(wakeword.Config{
			WakewordModel:  cfg.Wakeword.Model,
			MelspecModel:   cfg.Wakeword.Melspec,
			EmbeddingModel: cfg.Wakeword.Embedding,
			OnnxLib:        cfg.OnnxLib,
			Threshold:      cfg.Wakeword.Threshold,
		}, log)
		detector.OnDetected = func() {
			select {
			case wakeCh <- struct{}{}:
			default:
			}
		}
	}

	opts := []assistant.Option{
		assistant.WithSpeaker(speaker),
		assistant.WithAnalyzer(analyzer),
		assistant.WithHistory(storage.NewHistoryFile(historyPath(cfg), log)),
		assistant.WithProfileStore(store),
		assistant.WithPhrases(cfg.WakePhrase, cfg.SleepPhrase),
		assistant.WithStatusHook(func(s assistant.Status) {
			if detector == nil {
				return
			}
			if s.State == domain.StateListening {
				detector.Pause()
			} else {
				detector.Resume()
			}
		}),
	}
	if agent := buildAgent(cfg, log); agent != nil {
		opts = append(opts, assistant.WithAgent(agent))
	}

	a = assistant.New(parser, notifier, prof, ex, log, opts...)
	if err := a.Load(ctx); err != nil {
		log.Error("loading history, starting fresh: %v", err)
	}

	idle := assistant.NewIdleSupervisor(a, cfg.IdleTimeout, log)
	idle.Start(ctx)
	defer idle.Stop()

	if cfg.Voice.Enabled {
		ear, err = buildEar(cfg, mouth, log)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if ear != nil {
		g.Go(func() error {
			ear.Run(gctx)
			return nil
		})
	}
	if detector != nil {
		g.Go(func() error {
			// A broken detector is not fatal; the wake phrase still works
			// when typed or transcribed.
			if err := detector.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("wake-word detector stopped: %v", err)
			}
			return nil
		})
	}

	fmt.Println(display.RenderBanner())
	for _, line := range introLines(cfg, ear != nil, detector != nil) {
		fmt.Println(display.BannerStyle.Render("  " + line))
	}
	fmt.Println()

	r := &runner{a: a, ui: ui, mouth: mouth, ear: ear, wakeCh: wakeCh, log: log}
	g.Go(func() error {
		ui.WaitReady()
		defer ui.Quit()
		return r.loop(gctx)
	})

	// Bubble Tea owns the terminal and blocks until quit.
	if err := ui.Run(); err != nil {
		log.Error("display: %v", err)
	}
	cancel()
	return g.Wait()
}

// loadProfile restores the user's stored profile or starts a new one.
// With validate set, out-of-range voice settings are rejected instead of
// stored.
func loadProfile(ctx context.Context, store domain.ProfileStore, user string, validate bool, log *logger.Logger) (*profile.Profile, error) {
	var opts []profile.Option
	if validate {
		opts = append(opts, profile.WithValidator(profile.VoiceRangeValidator()))
	}

	rec, err := store.LoadProfile(ctx, user)
	switch {
	case err == nil:
		log.Info("loaded profile %q (%d preferences)", rec.Name, len(rec.Preferences))
		return profile.FromRecord(rec, opts...)
	case errors.Is(err, domain.ErrNotFound):
		log.Info("no stored profile for %q, starting a new one", user)
		return profile.New(user, opts...)
	default:
		return nil, fmt.Errorf("loading profile %q: %w", user, err)
	}
}

// buildMouth returns nil when speech output is off or unavailable.
func buildMouth(ctx context.Context, cfg *config.Config, log *logger.Logger) *speech.Mouth {
	if !cfg.Speech.Enabled() {
		if !cfg.Speech.Disabled {
			log.Info("TTS disabled: set %s and %s to enable", config.EnvAzureSpeechKey, config.EnvAzureSpeechRegion)
		}
		return nil
	}

	player, err := speech.NewPlayer(log)
	if err != nil {
		log.Error("audio player init failed, speech disabled: %v", err)
		return nil
	}

	tts := speech.NewAzureClient(cfg.Speech.Key, cfg.Speech.Region, log)
	mouth := speech.NewMouth(tts, player, log,
		speech.WithCacheDir(cfg.Speech.CacheDir),
		speech.WithDiskWrite(cfg.Speech.DiskCache),
	)
	mouth.Start(ctx)
	mouth.Prefetch(ctx, speech.ThinkingFillers()...)
	mouth.Prefetch(ctx, speech.ListeningFillers()...)
	log.Info("TTS enabled (region=%s)", cfg.Speech.Region)
	return mouth
}

// buildAgent returns nil when the chat model is not configured.
func buildAgent(cfg *config.Config, log *logger.Logger) *gpt.Agent {
	if !cfg.AI.Enabled() {
		if !cfg.AI.Disabled {
			log.Info("AI agent disabled: set %s and %s to enable", config.EnvGPTChatKey, config.EnvGPTChatEndpoint)
		}
		return nil
	}
	client := gpt.NewClient(cfg.AI.Endpoint, cfg.AI.Key, log, gpt.WithModel(cfg.AI.Model))
	log.Info("AI agent enabled (model=%s)", cfg.AI.Model)
	return gpt.NewAgent(client, log, gpt.WithWindow(cfg.AI.Window))
}

// buildAnalyzer prefers the ONNX classifier and falls back to the lexicon.
func buildAnalyzer(cfg *config.Config, log *logger.Logger) (sentiment.Analyzer, func()) {
	if cfg.Sentiment.Model == "" {
		return sentiment.NewLexicon(), func() {}
	}
	c, err := sentiment.NewClassifier(sentiment.ClassifierConfig{
		Model:     cfg.Sentiment.Model,
		Tokenizer: cfg.Sentiment.Tokenizer,
		OnnxLib:   cfg.OnnxLib,
	}, log)
	if err != nil {
		log.Error("sentiment classifier unavailable, using lexicon: %v", err)
		return sentiment.NewLexicon(), func() {}
	}
	return c, func() {
		if err := c.Close(); err != nil {
			log.Warn("closing sentiment classifier: %v", err)
		}
	}
}

// buildEar sets up microphone input. mouth may be nil.
func buildEar(cfg *config.Config, mouth *speech.Mouth, log *logger.Logger) (*speech.Ear, error) {
	if _, err := os.Stat(cfg.Voice.WhisperModel); err != nil {
		return nil, fmt.Errorf("whisper model not found at %s: %w", cfg.Voice.WhisperModel, err)
	}
	if err := os.MkdirAll(cfg.Voice.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", cfg.Voice.TempDir, err)
	}

	rec := speech.NewWhisperRecorder(cfg.Voice.WhisperBin, cfg.Voice.WhisperModel, cfg.Voice.TempDir, log)
	opts := []speech.EarOption{
		speech.WithRecordDuration(cfg.RecordDuration()),
		speech.WithSilenceChunks(cfg.Voice.SilenceChunks),
	}
	if mouth != nil {
		opts = append(opts, speech.WithBusy(mouth))
	}
	log.Info("voice input enabled (bin=%s, model=%s, chunk=%s)",
		cfg.Voice.WhisperBin, cfg.Voice.WhisperModel, cfg.RecordDuration())
	return speech.NewEar(rec, log, opts...), nil
}

func introLines(cfg *config.Config, voice, wakeword bool) []string {
	var lines []string
	switch {
	case wakeword:
		lines = append(lines, fmt.Sprintf("Wake word ON: say %q to wake me, or type.", cfg.WakePhrase))
	case voice:
		lines = append(lines, fmt.Sprintf("Voice mode ON: say %q to wake me, or type.", cfg.WakePhrase))
	default:
		lines = append(lines, fmt.Sprintf("Type %q to wake me.", cfg.WakePhrase))
	}
	lines = append(lines, "Type 'help' for commands, 'quit' to exit.")
	return lines
}

// runner feeds typed and spoken input to the assistant.
type runner struct {
	a      *assistant.Assistant
	ui     *display.UI
	mouth  *speech.Mouth // nil when TTS is disabled
	ear    *speech.Ear   // nil when voice input is disabled
	wakeCh <-chan struct{}
	log    *logger.Logger
}

func (r *runner) loop(ctx context.Context) error {
	// Receiving on a nil channel blocks forever, so a missing ear simply
	// leaves the keyboard case.
	var voiceCh <-chan string
	if r.ear != nil {
		voiceCh = r.ear.C()
	}
	uiCh := r.ui.InputChan()

	for {
		var input string
		select {
		case <-ctx.Done():
			return nil
		case <-r.wakeCh:
			r.log.Info("wake word detected")
			r.a.Wake(ctx)
			continue
		case line, ok := <-uiCh:
			if !ok {
				return nil
			}
			input = line
		case line, ok := <-voiceCh:
			if !ok {
				voiceCh = nil
				continue
			}
			r.ui.PrintVoice(line)
			input = line
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if r.a.Handle(ctx, input) {
			r.waitForSpeech(ctx)
			return nil
		}
	}
}

// waitForSpeech lets the goodbye line finish before the UI closes.
func (r *runner) waitForSpeech(ctx context.Context) {
	if r.mouth == nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, goodbyeGrace)
	defer cancel()
	if err := r.mouth.Wait(wctx); err != nil {
		r.log.Debug("goodbye cut short: %v", err)
	}
}
