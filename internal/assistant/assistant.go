// Package assistant runs Julian's interaction loop: it sleeps until the
// wake phrase, then learns from every utterance, asks the reply model and
// speaks the answer until the sleep phrase or an idle timeout.
package assistant

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/extract"
	"github.com/hammamikhairi/julian/internal/gpt"
	"github.com/hammamikhairi/julian/internal/logger"
	"github.com/hammamikhairi/julian/internal/profile"
	"github.com/hammamikhairi/julian/internal/sentiment"
	"github.com/hammamikhairi/julian/internal/speech"
)

// Replier produces the conversational answer for a turn. *gpt.Agent
// implements it.
type Replier interface {
	Reply(ctx context.Context, history []domain.Message, text, profile, tone string) (gpt.Reply, error)
}

var _ Replier = (*gpt.Agent)(nil)

// interrupter is implemented by speakers that can cut off playback.
type interrupter interface {
	Interrupt()
}

// prioritySpeaker is implemented by speakers with a priority queue.
type prioritySpeaker interface {
	Say(text string, priority speech.Priority)
}

// Status is a snapshot for the UI.
type Status struct {
	State       domain.State
	User        string
	LastLearned []string
	Turns       int
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithAgent enables model replies. Without it every utterance is answered
// with a notice that the AI is not configured.
func WithAgent(r Replier) Option {
	return func(a *Assistant) { a.agent = r }
}

// WithAnalyzer adds a tone note from the user's sentiment to each prompt.
func WithAnalyzer(an sentiment.Analyzer) Option {
	return func(a *Assistant) { a.analyzer = an }
}

// WithSpeaker sets the voice output. Defaults to a no-op speaker.
func WithSpeaker(s domain.Speaker) Option {
	return func(a *Assistant) { a.speaker = s }
}

// WithHistory persists the transcript after every turn.
func WithHistory(h domain.HistoryStore) Option {
	return func(a *Assistant) { a.history = h }
}

// WithProfileStore persists the profile after every turn.
func WithProfileStore(s domain.ProfileStore) Option {
	return func(a *Assistant) { a.profiles = s }
}

// WithStatusHook is called with a fresh snapshot whenever the state,
// the user, or the learned fields change.
func WithStatusHook(fn func(Status)) Option {
	return func(a *Assistant) { a.onStatus = fn }
}

// WithPhrases sets the wake and sleep phrases quoted in the help line.
func WithPhrases(wake, sleep string) Option {
	return func(a *Assistant) { a.wakePhrase, a.sleepPhrase = wake, sleep }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Assistant) { a.now = now }
}

// Assistant owns the conversation state.
type Assistant struct {
	parser    domain.IntentParser
	notifier  domain.Notifier
	profile   *profile.Profile
	extractor *extract.Extractor
	log       *logger.Logger

	agent    Replier
	analyzer sentiment.Analyzer
	speaker  domain.Speaker
	history  domain.HistoryStore
	profiles domain.ProfileStore
	onStatus func(Status)
	now      func() time.Time

	wakePhrase  string
	sleepPhrase string

	turnMu sync.Mutex // serializes Handle

	mu           sync.Mutex
	state        domain.State
	transcript   []domain.Message
	lastActivity time.Time
	lastLearned  []string
	turns        int
}

// New creates an assistant for prof. It starts asleep with the default
// transcript; call Load to restore a saved one.
func New(parser domain.IntentParser, notifier domain.Notifier, prof *profile.Profile, ex *extract.Extractor, log *logger.Logger, opts ...Option) *Assistant {
	a := &Assistant{
		parser:      parser,
		notifier:    notifier,
		profile:     prof,
		extractor:   ex,
		log:         log,
		now:         time.Now,
		wakePhrase:  "Hey Julian",
		sleepPhrase: "Goodbye Julian",
		state:       domain.StateSleeping,
		transcript:  []domain.Message{{Role: domain.RoleSystem, Content: domain.DefaultSystemPrompt}},
	}
	for _, o := range opts {
		o(a)
	}
	if a.speaker == nil {
		a.speaker = speech.NewNoOp(log)
	}
	a.speaker.SetVoice(prof.VoiceSettings())
	return a
}

// Load restores the transcript from the history store.
func (a *Assistant) Load(ctx context.Context) error {
	if a.history == nil {
		return nil
	}
	msgs, err := a.history.Load(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.transcript = msgs
	a.mu.Unlock()
	a.log.Info("assistant: restored %d history messages", len(msgs))
	return nil
}

// Handle processes one utterance. It reports true when the user asked to
// quit. Failures inside a turn are logged and never end the session.
func (a *Assistant) Handle(ctx context.Context, input string) (quit bool) {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()
	return a.dispatch(ctx, input)
}

func (a *Assistant) dispatch(ctx context.Context, input string) bool {
	intent, err := a.parser.Parse(ctx, input, a.State())
	if err != nil {
		a.log.Error("assistant: parsing input: %v", err)
		return false
	}
	a.log.Debug("assistant: intent %s (payload=%q)", intent.Type, intent.Payload)

	switch intent.Type {
	case domain.IntentUnknown:
	case domain.IntentIgnore:
		a.log.Debug("assistant: asleep, ignoring %q", intent.Payload)
	case domain.IntentQuit:
		a.interrupt()
		a.say(ctx, speech.LineBye())
		return true
	case domain.IntentWake:
		a.Wake(ctx)
		if intent.Payload != "" {
			return a.dispatch(ctx, intent.Payload)
		}
	case domain.IntentSleep:
		a.interrupt()
		a.Sleep(ctx, speech.LineSleep())
	case domain.IntentHelp:
		a.touch()
		a.say(ctx, speech.LineHelp(a.wakePhrase, a.sleepPhrase))
	case domain.IntentShowProfile:
		a.touch()
		a.say(ctx, speech.LineProfile(a.profile.Summary()))
	case domain.IntentUtterance:
		a.interrupt()
		a.converse(ctx, intent.Payload)
	}
	return false
}

// Wake switches to listening and greets the user. Waking while already
// listening only refreshes the idle timer. Safe to call from the wake-word
// detector goroutine.
func (a *Assistant) Wake(ctx context.Context) {
	a.mu.Lock()
	already := a.state == domain.StateListening
	a.state = domain.StateListening
	a.lastActivity = a.now()
	a.mu.Unlock()

	if already {
		return
	}
	a.log.Info("assistant: awake")
	a.interrupt()
	a.say(ctx, speech.LineGreeting(a.profile.DisplayName()))
	a.publish()
}

// Sleep switches to sleeping and says line, if any.
func (a *Assistant) Sleep(ctx context.Context, line string) {
	a.mu.Lock()
	was := a.state
	a.state = domain.StateSleeping
	a.mu.Unlock()

	if was == domain.StateSleeping {
		return
	}
	a.log.Info("assistant: going to sleep")
	if line != "" {
		a.say(ctx, line)
	}
	a.publish()
}

// converse runs a conversational turn.
func (a *Assistant) converse(ctx context.Context, text string) {
	turn := uuid.NewString()
	a.touch()
	a.log.Debug("assistant: turn %s: %q", turn, text)

	learned := a.learn(text)

	a.mu.Lock()
	prior := make([]domain.Message, len(a.transcript))
	copy(prior, a.transcript)
	a.transcript = append(a.transcript, domain.Message{Role: domain.RoleUser, Content: text})
	a.mu.Unlock()

	reply := a.reply(ctx, turn, prior, text)

	a.mu.Lock()
	a.transcript = append(a.transcript, domain.Message{Role: domain.RoleAssistant, Content: reply.Text})
	a.turns++
	if len(learned) > 0 {
		a.lastLearned = learned
	}
	a.mu.Unlock()

	if len(learned) > 0 {
		a.log.Info("assistant: turn %s learned %v", turn, learned)
	}
	a.say(ctx, reply.Text)
	if reply.FollowUp != "" {
		a.say(ctx, reply.FollowUp)
	}

	a.persist(ctx, turn)
	a.touch()
	a.publish()
}

// learn merges voice preferences and personal facts from text into the
// profile and returns the fields that were stored.
func (a *Assistant) learn(text string) []string {
	var learned []string

	voice, err := a.profile.UpdateVoiceFromText(a.extractor, text)
	if err != nil {
		a.log.Warn("assistant: voice preferences: %v", err)
	}
	if len(voice) > 0 {
		a.speaker.SetVoice(a.profile.VoiceSettings())
		learned = append(learned, a.stored(voice)...)
	}

	facts, err := a.profile.UpdateFromText(a.extractor, text)
	if err != nil {
		a.log.Warn("assistant: personal facts: %v", err)
	}
	learned = append(learned, a.stored(facts)...)

	sort.Strings(learned)
	return learned
}

// stored returns the fields of r the profile now holds with r's value.
// Fields the validator rejected are left out.
func (a *Assistant) stored(r extract.Result) []string {
	var out []string
	for _, f := range r.Fields() {
		if v, ok := a.profile.Preference(f); ok && v == r[f] {
			out = append(out, f)
		}
	}
	return out
}

func (a *Assistant) reply(ctx context.Context, turn string, history []domain.Message, text string) gpt.Reply {
	if a.agent == nil {
		return gpt.Reply{Text: speech.LineAIDisabled()}
	}

	if ps, ok := a.speaker.(prioritySpeaker); ok {
		ps.Say(speech.LineThinking(), speech.PriorityCritical)
	}

	var tone string
	if a.analyzer != nil {
		res, err := a.analyzer.Analyze(ctx, text)
		if err != nil {
			a.log.Warn("assistant: sentiment: %v", err)
		} else {
			a.log.Debug("assistant: turn %s sentiment %s (%.2f)", turn, res.Label, res.Score)
			tone = sentiment.ToneNote(res)
		}
	}

	r, err := a.agent.Reply(ctx, history, text, a.profile.Summary(), tone)
	if err != nil {
		a.log.Error("assistant: turn %s reply: %v", turn, err)
	}
	if r.Text == "" && r.FollowUp == "" {
		r.Text = speech.LineAIError()
	}
	return r
}

func (a *Assistant) persist(ctx context.Context, turn string) {
	if a.history != nil {
		if err := a.history.Save(ctx, a.Transcript()); err != nil {
			a.log.Error("assistant: turn %s saving history: %v", turn, err)
		}
	}
	if a.profiles != nil {
		if err := a.profiles.SaveProfile(ctx, a.profile.Record()); err != nil {
			a.log.Error("assistant: turn %s saving profile: %v", turn, err)
		}
	}
}

// say prints text and queues it for speech.
func (a *Assistant) say(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if err := a.notifier.Notify(ctx, text); err != nil {
		a.log.Error("assistant: notify: %v", err)
	}
	if err := a.speaker.Speak(ctx, text); err != nil {
		a.log.Error("assistant: speak: %v", err)
	}
}

func (a *Assistant) interrupt() {
	if i, ok := a.speaker.(interrupter); ok {
		i.Interrupt()
	}
}

func (a *Assistant) touch() {
	a.mu.Lock()
	a.lastActivity = a.now()
	a.mu.Unlock()
}

func (a *Assistant) publish() {
	if a.onStatus != nil {
		a.onStatus(a.Status())
	}
}

// State returns the current interaction mode.
func (a *Assistant) State() domain.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// LastActivity is when the user last said something while listening.
func (a *Assistant) LastActivity() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastActivity
}

// Transcript returns a copy of the conversation so far.
func (a *Assistant) Transcript() []domain.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Message, len(a.transcript))
	copy(out, a.transcript)
	return out
}

// Profile returns the user profile.
func (a *Assistant) Profile() *profile.Profile { return a.profile }

// Status returns a snapshot for the UI.
func (a *Assistant) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	learned := make([]string, len(a.lastLearned))
	copy(learned, a.lastLearned)
	return Status{
		State:       a.state,
		User:        a.profile.DisplayName(),
		LastLearned: learned,
		Turns:       a.turns,
	}
}
