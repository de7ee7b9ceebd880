// Package extract pulls structured profile fields out of free-form
// utterances. A Catalog is an ordered table of Rules; the Extractor applies
// one catalog to one utterance and returns the matched fields.
package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is one named extraction pattern. Rules are immutable once built.
type Rule struct {
	Field   string
	Pattern *regexp.Regexp
	Group   int      // capture group holding the value, 0 = whole match
	Numeric bool     // value is converted to float64 after matching
	Exclude []string // captured values that never count as a match
}

// RuleOption configures a Rule built by NewRule.
type RuleOption func(*Rule)

// Numeric marks the rule's value as a floating-point number.
func Numeric() RuleOption {
	return func(r *Rule) { r.Numeric = true }
}

// Excluding lists captured values (case-insensitive) the rule must skip.
func Excluding(values ...string) RuleOption {
	return func(r *Rule) { r.Exclude = append(r.Exclude, values...) }
}

// CaptureGroup selects which capture group holds the value.
func CaptureGroup(n int) RuleOption {
	return func(r *Rule) { r.Group = n }
}

// NewRule compiles pattern case-insensitively. \w and \s match any
// Unicode letter, digit or space, not only ASCII. The value defaults to
// the first capture group, or the whole match when the pattern has none.
func NewRule(field, pattern string, opts ...RuleOption) (Rule, error) {
	if strings.TrimSpace(field) == "" {
		return Rule{}, fmt.Errorf("extract: rule has no field name")
	}
	pattern = widenClasses(pattern)
	if !strings.HasPrefix(pattern, "(?i)") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("extract: rule %q: %w", field, err)
	}

	r := Rule{Field: field, Pattern: re}
	if re.NumSubexp() > 0 {
		r.Group = 1
	}
	for _, o := range opts {
		o(&r)
	}
	if r.Group < 0 || r.Group > re.NumSubexp() {
		return Rule{}, fmt.Errorf("extract: rule %q: group %d out of range (pattern has %d)", field, r.Group, re.NumSubexp())
	}
	return r, nil
}

// Unicode replacements for \w and \s, indexed by whether the escape sits
// inside a bracketed class.
var (
	wordClass  = map[bool]string{false: `[\p{L}\p{N}_]`, true: `\p{L}\p{N}_`}
	spaceClass = map[bool]string{false: `[\s\p{Z}]`, true: `\s\p{Z}`}
)

// widenClasses rewrites the \w and \s escapes of pattern, which RE2 limits
// to ASCII, so that "José" or "São Paulo" is captured whole. Escaped
// backslashes, \Q...\E literals and POSIX classes are left alone.
func widenClasses(pattern string) string {
	var b strings.Builder
	inClass := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			i++
			switch next := pattern[i]; next {
			case 'w':
				b.WriteString(wordClass[inClass])
			case 's':
				b.WriteString(spaceClass[inClass])
			case 'Q':
				end := strings.Index(pattern[i+1:], `\E`)
				if end < 0 {
					b.WriteString(pattern[i-1:])
					return b.String()
				}
				b.WriteString(pattern[i-1 : i+end+3])
				i += end + 2
			default:
				b.WriteByte(c)
				b.WriteByte(next)
			}
		case c == '[' && !inClass:
			inClass = true
			b.WriteByte(c)
			// A leading ^ and a leading ] belong to the class.
			if i+1 < len(pattern) && pattern[i+1] == '^' {
				i++
				b.WriteByte('^')
			}
			if i+1 < len(pattern) && pattern[i+1] == ']' {
				i++
				b.WriteByte(']')
			}
		case c == '[' && inClass && strings.HasPrefix(pattern[i:], "[:"):
			end := strings.Index(pattern[i:], ":]")
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			b.WriteString(pattern[i : i+end+2])
			i += end + 1
		case c == ']' && inClass:
			inClass = false
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// MustRule is like NewRule but panics on error. Used for the built-in tables.
func MustRule(field, pattern string, opts ...RuleOption) Rule {
	r, err := NewRule(field, pattern, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// find returns the trimmed value of the first acceptable match in text.
func (r Rule) find(text string) (string, bool) {
	for _, m := range r.Pattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2*r.Group], m[2*r.Group+1]
		if start < 0 {
			continue
		}
		v := strings.TrimSpace(text[start:end])
		if v == "" || r.excluded(v) {
			continue
		}
		return v, true
	}
	return "", false
}

func (r Rule) excluded(v string) bool {
	for _, x := range r.Exclude {
		if strings.EqualFold(x, v) {
			return true
		}
	}
	return false
}
