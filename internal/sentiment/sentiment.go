// Package sentiment classifies the emotional tone of an utterance. The
// default analyzer is a small word lexicon; an ONNX text classifier can be
// used instead when a model is configured.
package sentiment

import (
	"context"
	"strings"
	"unicode"
)

// Labels.
const (
	Positive = "POSITIVE"
	Negative = "NEGATIVE"
	Neutral  = "NEUTRAL"
)

// Result is a sentiment classification. Score is the confidence in Label,
// between 0 and 1.
type Result struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Analyzer classifies text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Result, error)
}

// ToneNote returns an instruction for the reply model when the user sounds
// upset or pleased, or "" when the tone needs no adjustment.
func ToneNote(r Result) string {
	if r.Score < 0.5 {
		return ""
	}
	switch r.Label {
	case Negative:
		return "The user seems frustrated or upset. Be patient and reassuring."
	case Positive:
		return "The user is in a good mood. Keep the tone warm."
	}
	return ""
}

var _ Analyzer = (*Lexicon)(nil)

// Lexicon scores text by counting positive and negative words. A negator
// ("not", "never", ...) flips the polarity of the next sentiment word
// within the following three words.
type Lexicon struct {
	positive map[string]bool
	negative map[string]bool
	negators map[string]bool
}

// NewLexicon returns an analyzer over the built-in English word lists.
func NewLexicon() *Lexicon {
	return &Lexicon{
		positive: set(positiveWords),
		negative: set(negativeWords),
		negators: set(negatorWords),
	}
}

// Analyze classifies text. It never returns an error.
func (l *Lexicon) Analyze(_ context.Context, text string) (Result, error) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	var pos, neg float64
	flipWithin := 0
	for _, w := range words {
		polarity := 0
		switch {
		case l.positive[w]:
			polarity = 1
		case l.negative[w]:
			polarity = -1
		case l.negators[w]:
			flipWithin = 3
			continue
		}

		if polarity != 0 && flipWithin > 0 {
			polarity = -polarity
			flipWithin = 0
		} else if flipWithin > 0 {
			flipWithin--
		}

		if polarity > 0 {
			pos++
		} else if polarity < 0 {
			neg++
		}
	}

	if pos+neg == 0 {
		return Result{Label: Neutral, Score: 1}, nil
	}
	s := (pos - neg) / (pos + neg)
	switch {
	case s > 0:
		return Result{Label: Positive, Score: s}, nil
	case s < 0:
		return Result{Label: Negative, Score: -s}, nil
	}
	return Result{Label: Neutral, Score: 0.5}, nil
}

func set(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var positiveWords = []string{
	"good", "great", "excellent", "amazing", "awesome", "wonderful", "fantastic",
	"love", "loved", "like", "liked", "happy", "glad", "nice", "pleasant", "fun",
	"thanks", "thank", "perfect", "beautiful", "brilliant", "best", "better",
	"enjoy", "enjoyed", "cool", "helpful", "excited", "delighted", "pleased",
	"fine", "lovely", "superb", "yay", "impressive", "calm", "relaxed",
}

var negativeWords = []string{
	"bad", "terrible", "awful", "horrible", "hate", "hated", "dislike", "sad",
	"angry", "annoyed", "annoying", "upset", "worst", "worse", "poor", "boring",
	"stupid", "useless", "wrong", "broken", "frustrated", "frustrating", "tired",
	"sick", "hurt", "pain", "disappointed", "disappointing", "ugly",
	"stressed", "worried", "lonely", "miserable", "scared", "afraid", "fail",
	"failed",
}

var negatorWords = []string{
	"not", "no", "never", "nor", "hardly", "barely",
	"don't", "doesn't", "didn't", "isn't", "wasn't", "aren't", "weren't",
	"can't", "couldn't", "won't", "wouldn't", "shouldn't", "ain't",
}
