package gpt

import (
	"context"
	"fmt"
	"strings"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"
)

// DefaultWindow is how many history messages are sent with each request.
const DefaultWindow = 10

// Chatter sends a conversation to a chat model. *Client implements it.
type Chatter interface {
	Chat(ctx context.Context, messages []domain.Message) (string, error)
}

var _ Chatter = (*Client)(nil)

// Reply is the model's answer split into the spoken answer and an optional
// follow-up question.
type Reply struct {
	Text     string
	FollowUp string
}

// AgentOption configures the Agent.
type AgentOption func(*Agent)

// WithWindow sets the number of history messages sent per request.
func WithWindow(n int) AgentOption {
	return func(a *Agent) { a.window = n }
}

// Agent builds prompts from the conversation and profile and parses the
// model's answer.
type Agent struct {
	chat   Chatter
	window int
	log    *logger.Logger
}

// NewAgent creates an agent backed by chat.
func NewAgent(chat Chatter, log *logger.Logger, opts ...AgentOption) *Agent {
	a := &Agent{chat: chat, window: DefaultWindow, log: log}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Reply answers text. history is the transcript so far (without text),
// profile is a summary of what is known about the user and tone an
// optional instruction about the user's mood; both may be empty.
//
// On failure Reply returns FallbackReply together with the error so the
// caller can still say something.
func (a *Agent) Reply(ctx context.Context, history []domain.Message, text, profile, tone string) (Reply, error) {
	messages := a.buildMessages(history, text, profile, tone)

	raw, err := a.chat.Chat(ctx, messages)
	if err != nil {
		a.log.Error("gpt: reply failed: %v", err)
		return Reply{Text: FallbackReply}, err
	}

	r := splitFollowUp(raw)
	if r.Text == "" && r.FollowUp == "" {
		return Reply{Text: FallbackReply}, fmt.Errorf("gpt: %w", domain.ErrEmptyReply)
	}
	a.log.Debug("gpt: reply %q follow-up %q", truncate(r.Text, 80), r.FollowUp)
	return r, nil
}

// buildMessages assembles persona, user context, the recent transcript and
// the new utterance. System entries of the stored transcript are replaced
// by the persona.
func (a *Agent) buildMessages(history []domain.Message, text, profile, tone string) []domain.Message {
	msgs := []domain.Message{{Role: domain.RoleSystem, Content: PromptPersona}}
	if profile != "" {
		msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: profile})
	}
	if tone != "" {
		msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: tone})
	}

	recent := history
	if a.window >= 0 && len(recent) > a.window {
		recent = recent[len(recent)-a.window:]
	}
	for _, m := range recent {
		if m.Role == domain.RoleSystem {
			continue
		}
		msgs = append(msgs, m)
	}

	return append(msgs, domain.Message{
		Role:    domain.RoleUser,
		Content: strings.TrimRight(strings.TrimSpace(text), ".") + answerSuffix,
	})
}

// splitFollowUp separates "answer Follow-up: question".
func splitFollowUp(raw string) Reply {
	raw = strings.TrimSpace(raw)
	text, follow, found := strings.Cut(raw, followUpMarker)
	if !found {
		return Reply{Text: raw}
	}
	return Reply{Text: strings.TrimSpace(text), FollowUp: strings.TrimSpace(follow)}
}
