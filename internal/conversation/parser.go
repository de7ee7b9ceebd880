// Package conversation provides intent parsing and user notification implementations.
package conversation

import (
	"context"
	"regexp"
	"strings"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"
)

// Compile-time interface check.
var _ domain.IntentParser = (*KeywordParser)(nil)

// Default phrases.
const (
	DefaultWakePhrase  = "Hey Julian"
	DefaultSleepPhrase = "Goodbye Julian"
)

// KeywordParser classifies input with wake/sleep phrases and a few command
// keywords. Everything else heard while listening is an utterance.
type KeywordParser struct {
	log      *logger.Logger
	wake     []*regexp.Regexp
	sleep    []*regexp.Regexp
	patterns []patternRule
}

type patternRule struct {
	regex  *regexp.Regexp
	intent domain.IntentType
}

// ParserOption configures a KeywordParser.
type ParserOption func(*KeywordParser)

// WithWakePhrases replaces the wake phrases.
func WithWakePhrases(phrases ...string) ParserOption {
	return func(p *KeywordParser) { p.wake = compilePhrases(phrases, false) }
}

// WithSleepPhrases replaces the sleep phrases.
func WithSleepPhrases(phrases ...string) ParserOption {
	return func(p *KeywordParser) { p.sleep = compilePhrases(phrases, true) }
}

// NewKeywordParser creates a keyword-based intent parser.
func NewKeywordParser(log *logger.Logger, opts ...ParserOption) *KeywordParser {
	p := &KeywordParser{
		log:   log,
		wake:  compilePhrases([]string{DefaultWakePhrase}, false),
		sleep: compilePhrases([]string{DefaultSleepPhrase}, true),
	}
	p.patterns = []patternRule{
		{regexp.MustCompile(`(?i)^(quit|exit|q)$`), domain.IntentQuit},
		{regexp.MustCompile(`(?i)^(help|h|\?|what can you do\??)$`), domain.IntentHelp},
		{regexp.MustCompile(`(?i)^(profile|show (my )?profile|what do you know about me\??)$`), domain.IntentShowProfile},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// compilePhrases turns each phrase into a pattern that tolerates the
// punctuation and spacing a transcriber inserts ("Hey, Julian."). Whole
// phrases must match the entire input.
func compilePhrases(phrases []string, whole bool) []*regexp.Regexp {
	var out []*regexp.Regexp
	for _, ph := range phrases {
		words := strings.Fields(ph)
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		body := strings.Join(words, `[\s,.!?]+`)
		if whole {
			out = append(out, regexp.MustCompile(`(?i)^[\s,.!?]*`+body+`[\s,.!?]*$`))
		} else {
			out = append(out, regexp.MustCompile(`(?i)\b`+body+`\b[\s,.!?]*`))
		}
	}
	return out
}

// Parse converts user input into an intent.
func (p *KeywordParser) Parse(ctx context.Context, input string, state domain.State) (*domain.Intent, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return &domain.Intent{Type: domain.IntentUnknown}, nil
	}

	p.log.Debug("parsing input (%s): %q", state, trimmed)

	// While listening a wake phrase only counts at the start; elsewhere it
	// is part of what the user is saying.
	if rest, ok := p.matchWake(trimmed, state != domain.StateSleeping); ok {
		p.log.Debug("matched wake phrase, remainder %q", rest)
		return &domain.Intent{Type: domain.IntentWake, Payload: rest}, nil
	}

	if state == domain.StateSleeping {
		if p.match(domain.IntentQuit, trimmed) {
			return &domain.Intent{Type: domain.IntentQuit}, nil
		}
		return &domain.Intent{Type: domain.IntentIgnore, Payload: trimmed}, nil
	}

	for _, re := range p.sleep {
		if re.MatchString(trimmed) {
			p.log.Debug("matched sleep phrase")
			return &domain.Intent{Type: domain.IntentSleep}, nil
		}
	}

	for _, rule := range p.patterns {
		if rule.regex.MatchString(trimmed) {
			p.log.Debug("matched intent: %s", rule.intent)
			return &domain.Intent{Type: rule.intent}, nil
		}
	}

	return &domain.Intent{Type: domain.IntentUtterance, Payload: trimmed}, nil
}

// matchWake finds a wake phrase in s and returns the text after it. With
// leading set the phrase must open s, ignoring punctuation.
func (p *KeywordParser) matchWake(s string, leading bool) (string, bool) {
	for _, re := range p.wake {
		loc := re.FindStringIndex(s)
		if loc == nil {
			continue
		}
		if leading && strings.Trim(s[:loc[0]], " \t,.!?") != "" {
			continue
		}
		return strings.TrimSpace(s[loc[1]:]), true
	}
	return "", false
}

func (p *KeywordParser) match(intent domain.IntentType, s string) bool {
	for _, rule := range p.patterns {
		if rule.intent == intent && rule.regex.MatchString(s) {
			return true
		}
	}
	return false
}
