// Package speech: lines.go centralises every spoken string.
// Edit this file to change Julian's personality. Keep lines short and
// direct; the TTS engine handles inflection.
package speech

import (
	"fmt"
	"math/rand"
	"strings"
)

// ── Greeting / Global ────────────────────────────────────────────

// LineGreeting is spoken when the wake phrase is heard.
func LineGreeting(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Hello! How can I help you today?"
	}
	return fmt.Sprintf("Hello, %s! How can I help you today?", name)
}

func LineSleep() string {
	return "Goodbye. Say my name when you need me."
}

func LineIdleSleep() string {
	return "I'll be here if you need me."
}

func LineBye() string {
	return "Bye."
}

func LineHelp(wake, sleep string) string {
	return fmt.Sprintf("Say %q to wake me and %q to send me to sleep. "+
		"Tell me about yourself and I'll remember it. "+
		"Ask \"what do you know about me\" to hear your profile, or say quit to exit.", wake, sleep)
}

// LineProfile reads back what is known about the user.
func LineProfile(summary string) string {
	if summary == "" {
		return "I don't know anything about you yet."
	}
	return strings.NewReplacer(":\n", ": ", "\n", ". ").Replace(summary) + "."
}

// LineLearned acknowledges newly extracted fields.
func LineLearned(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ReplaceAll(f, "_", " ")
	}
	return "Noted your " + joinSpoken(names) + "."
}

// ── AI agent ─────────────────────────────────────────────────────

func LineAIDisabled() string {
	return "The AI assistant is not available. Set GPT_CHAT_KEY and GPT_CHAT_ENDPOINT to enable it."
}

func LineAIError() string {
	return "Something went wrong with the AI. Try again."
}

// ── Thinking fillers ─────────────────────────────────────────────
// Spoken while waiting for the AI to respond. Randomized to avoid repetition.

var thinkingFillers = []string{
	"Let me think about that.",
	"Good question. Give me a second.",
	"Hmm, one moment.",
	"Let me look into that for you.",
	"Hang on, thinking.",
	"Bear with me a sec.",
	"One second.",
	"Okay, let me think.",
}

// LineThinking returns a random filler for when a question is being processed.
func LineThinking() string {
	return thinkingFillers[rand.Intn(len(thinkingFillers))]
}

// ThinkingFillers returns every filler string so they can be prefetched
// into the TTS cache at startup.
func ThinkingFillers() []string {
	out := make([]string, len(thinkingFillers))
	copy(out, thinkingFillers)
	return out
}

// ── Listening acknowledgment ─────────────────────────────────────

var listeningFillers = []string{
	"I'm listening.",
	"Listening.",
	"What do you need?",
	"I'm here.",
	"Yes?",
}

// LineListening returns a random acknowledgment for a bare wake word.
func LineListening() string {
	return listeningFillers[rand.Intn(len(listeningFillers))]
}

// ListeningFillers returns all listening acknowledgment strings so
// they can be prefetched into the TTS cache at startup.
func ListeningFillers() []string {
	out := make([]string, len(listeningFillers))
	copy(out, listeningFillers)
	return out
}

// ── Helpers ──────────────────────────────────────────────────────

// joinSpoken joins items as "a", "a and b" or "a, b, and c".
func joinSpoken(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	var b strings.Builder
	for i, s := range items {
		if i > 0 && i == len(items)-1 {
			b.WriteString(", and ")
		} else if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(s)
	}
	return b.String()
}
