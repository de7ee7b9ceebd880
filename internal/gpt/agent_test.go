package gpt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"
)

type fakeChat struct {
	reply string
	err   error
	got   []domain.Message
}

func (f *fakeChat) Chat(_ context.Context, msgs []domain.Message) (string, error) {
	f.got = msgs
	return f.reply, f.err
}

func history(n int) []domain.Message {
	msgs := []domain.Message{{Role: domain.RoleSystem, Content: domain.DefaultSystemPrompt}}
	for i := 0; i < n; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		msgs = append(msgs, domain.Message{Role: role, Content: fmt.Sprintf("m%d", i)})
	}
	return msgs
}

func TestReplyBuildsPrompt(t *testing.T) {
	chat := &fakeChat{reply: "Sure thing."}
	a := NewAgent(chat, logger.New(logger.LevelOff, nil))

	r, err := a.Reply(context.Background(), history(14), "tell me a joke", "Known facts about the user:\nname: Sam", "")
	if err != nil {
		t.Fatal(err)
	}
	if r.Text != "Sure thing." || r.FollowUp != "" {
		t.Errorf("reply = %+v", r)
	}

	got := chat.got
	// persona + profile + 10 window messages + final user message
	if len(got) != 13 {
		t.Fatalf("sent %d messages, want 13", len(got))
	}
	if got[0].Role != domain.RoleSystem || got[0].Content != PromptPersona {
		t.Errorf("first message = %+v", got[0])
	}
	if got[1].Role != domain.RoleSystem || !strings.Contains(got[1].Content, "name: Sam") {
		t.Errorf("profile message = %+v", got[1])
	}
	if got[2].Content != "m4" {
		t.Errorf("window starts at %q, want m4", got[2].Content)
	}
	last := got[len(got)-1]
	if last.Role != domain.RoleUser || last.Content != "tell me a joke. Please provide a detailed and concise answer." {
		t.Errorf("last message = %+v", last)
	}
}

func TestReplySkipsStoredSystemMessages(t *testing.T) {
	chat := &fakeChat{reply: "ok"}
	a := NewAgent(chat, logger.New(logger.LevelOff, nil), WithWindow(50))

	if _, err := a.Reply(context.Background(), history(2), "hi.", "", "Be gentle."); err != nil {
		t.Fatal(err)
	}
	// persona + tone + 2 history + user
	if len(chat.got) != 5 {
		t.Fatalf("sent %d messages: %+v", len(chat.got), chat.got)
	}
	for _, m := range chat.got[2:] {
		if m.Content == domain.DefaultSystemPrompt {
			t.Error("stored system prompt was forwarded")
		}
	}
	if chat.got[1].Content != "Be gentle." {
		t.Errorf("tone message = %+v", chat.got[1])
	}
	if got := chat.got[4].Content; got != "hi. Please provide a detailed and concise answer." {
		t.Errorf("user message = %q", got)
	}
}

func TestReplyFollowUp(t *testing.T) {
	tests := []struct {
		raw       string
		wantText  string
		wantQuest string
	}{
		{"Paris is the capital of France.", "Paris is the capital of France.", ""},
		{"Paris is lovely.\nFollow-up: Would you like travel tips?", "Paris is lovely.", "Would you like travel tips?"},
		{"  Answer.  Follow-up:   Anything else?  ", "Answer.", "Anything else?"},
	}
	for _, tt := range tests {
		chat := &fakeChat{reply: tt.raw}
		a := NewAgent(chat, logger.New(logger.LevelOff, nil))
		r, err := a.Reply(context.Background(), nil, "q", "", "")
		if err != nil {
			t.Fatal(err)
		}
		if r.Text != tt.wantText || r.FollowUp != tt.wantQuest {
			t.Errorf("Reply(%q) = %+v", tt.raw, r)
		}
	}
}

func TestReplyFallback(t *testing.T) {
	boom := errors.New("boom")
	a := NewAgent(&fakeChat{err: boom}, logger.New(logger.LevelOff, nil))

	r, err := a.Reply(context.Background(), nil, "hello", "", "")
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
	if r.Text != FallbackReply {
		t.Errorf("Text = %q, want fallback", r.Text)
	}

	a = NewAgent(&fakeChat{reply: "   "}, logger.New(logger.LevelOff, nil))
	r, err = a.Reply(context.Background(), nil, "hello", "", "")
	if !errors.Is(err, domain.ErrEmptyReply) {
		t.Errorf("error = %v, want ErrEmptyReply", err)
	}
	if r.Text != FallbackReply {
		t.Errorf("Text = %q, want fallback", r.Text)
	}
}
