// Package domain defines the core types and interfaces for the voice assistant.
// All other packages depend on domain; domain depends on nothing.
package domain

// Role constants for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultSystemPrompt seeds a fresh conversation transcript.
const DefaultSystemPrompt = "You are Julian, a helpful voice assistant."

// Message is one entry of the conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// State is the interaction mode of the assistant.
type State int

const (
	// StateSleeping waits for the wake phrase.
	StateSleeping State = iota
	// StateListening treats every utterance as part of the conversation.
	StateListening
)

// String returns a human-readable state.
func (s State) String() string {
	switch s {
	case StateSleeping:
		return "sleeping"
	case StateListening:
		return "listening"
	default:
		return "unknown"
	}
}
