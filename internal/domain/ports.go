package domain

import "context"

// IntentParser converts raw user input into structured intents. The parser
// sees the current state because the wake phrase only matters while asleep.
type IntentParser interface {
	Parse(ctx context.Context, input string, state State) (*Intent, error)
}

// Notifier delivers messages to the user. Implementations can write to
// stdout or also speak the message.
type Notifier interface {
	Notify(ctx context.Context, message string) error
	NotifyUrgent(ctx context.Context, message string) error
}

// Speaker sends text through the TTS pipeline. The no-op implementation is
// used when voice output is disabled.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	// SetVoice changes the voice used for subsequent Speak calls.
	SetVoice(vs VoiceSettings)
}

// HistoryStore persists the conversation transcript.
type HistoryStore interface {
	Load(ctx context.Context) ([]Message, error)
	Save(ctx context.Context, messages []Message) error
	Clear(ctx context.Context) error
}

// ProfileRecord is the persisted form of a user profile.
type ProfileRecord struct {
	Name        string
	Language    string
	Preferences map[string]any
}

// ProfileStore persists user profiles. Implementations can be in-memory or
// SQLite.
type ProfileStore interface {
	SaveProfile(ctx context.Context, rec ProfileRecord) error
	LoadProfile(ctx context.Context, name string) (ProfileRecord, error)
	DeleteProfile(ctx context.Context, name string) error
}
