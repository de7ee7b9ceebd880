package extract

import (
	"fmt"
	"sync"
)

// Catalog is an ordered, read-only set of rules with unique field names.
type Catalog struct {
	name  string
	rules []Rule
}

// NewCatalog builds a catalog. Field names must be unique.
func NewCatalog(name string, rules ...Rule) (*Catalog, error) {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.Pattern == nil {
			return nil, fmt.Errorf("extract: catalog %s: rule %q has no pattern", name, r.Field)
		}
		if seen[r.Field] {
			return nil, fmt.Errorf("extract: catalog %s: duplicate field %q", name, r.Field)
		}
		seen[r.Field] = true
	}
	out := make([]Rule, len(rules))
	copy(out, rules)
	return &Catalog{name: name, rules: out}, nil
}

// Name returns the catalog name.
func (c *Catalog) Name() string { return c.name }

// Len returns the number of rules.
func (c *Catalog) Len() int { return len(c.rules) }

// Rules returns a copy of the rules in order.
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Fields returns the field names in rule order.
func (c *Catalog) Fields() []string {
	out := make([]string, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.Field
	}
	return out
}

// With returns a copy of the catalog with rules appended. Appended rules
// may reuse an existing field name; when both match the same utterance the
// appended rule wins.
func (c *Catalog) With(rules ...Rule) *Catalog {
	out := make([]Rule, 0, len(c.rules)+len(rules))
	out = append(out, c.rules...)
	out = append(out, rules...)
	return &Catalog{name: c.name, rules: out}
}

// Words that follow "I am" / "I'm" but are not names.
var notNames = []string{
	"a", "an", "the", "in", "at", "from", "not", "so", "very", "really",
	"single", "married", "divorced", "widowed", "engaged", "separated", "dating",
	"going", "here", "there", "fine", "good", "ok", "okay", "sorry", "glad",
	"happy", "sad", "tired", "just", "still", "also", "looking", "trying",
	"feeling", "doing", "back", "done", "ready", "sure", "interested",
}

var (
	personalOnce = sync.OnceValue(func() *Catalog {
		c, err := NewCatalog("personal",
			MustRule("name", `(?:my name is|i am|i'm) ([a-z]\w*)`, Excluding(notNames...)),
			MustRule("age", `i am (\d+) years? old`),
			MustRule("location", `i live (?:in|at) ([\w\s]+)`),
			MustRule("job", `i work as (?:a |an )?([\w\s]+)`),
			MustRule("hobby", `my (?:hobby|hobbies) (?:is|are) ([\w\s]+)`),
			MustRule("pet", `i have (?:a |an )?([\w\s]+) (?:dog|cat|bird|fish)`),
			MustRule("favorite_food", `my (?:favorite|favourite) food is ([\w\s]+)`),
			MustRule("favorite_color", `my (?:favorite|favourite) colou?r is (\w+)`),
			MustRule("favorite_movie", `my (?:favorite|favourite) movie is ([\w\s]+)`),
			MustRule("favorite_music", `my (?:favorite|favourite) (?:music|genre|song|artist|band) is ([\w\s]+)`),
			MustRule("phone_number", `my phone number is (\d{3}[-.\s]??\d{3}[-.\s]??\d{4}|\(\d{3}\)\s*\d{3}[-.\s]??\d{4}|\d{3}[-.\s]??\d{4})`),
			MustRule("email", `my email (?:address )?is ([\w.-]+@[\w.-]+\.\w+)`),
			MustRule("birthdate", `my (?:birth(?:date)?|birthday) is (\d{1,2}[-./]\d{1,2}[-./]\d{2,4})`),
			MustRule("nationality", `i am (?:a |an )?([\w\s]+) (?:citizen|national)`),
			MustRule("favorite_book", `my (?:favorite|favourite) book is ([\w\s]+)`),
			MustRule("favorite_sport", `my (?:favorite|favourite) sport (?:is|would be) (\w+)`),
			MustRule("education", `i (?:studied|study) (?:at|in) ([\w\s]+)`),
			MustRule("siblings", `i have (\d+) (?:brothers?|sisters?|siblings)`),
			MustRule("marital_status", `i am (single|married|divorced|widowed|engaged|separated)\b`),
			MustRule("children", `i have (\d+) (?:kids?|children)`),
			MustRule("car", `i (?:own|drive) (?:a |an )?([\w\s]+) car`),
			MustRule("height", `i am (\d+(?:\.\d+)?) (?:cm|feet|ft|meters|m)\b`),
			MustRule("weight", `i weigh (\d+(?:\.\d+)?) (?:kg|pounds|lbs)\b`),
			MustRule("university", `i (?:studied|study) at ([\w\s]+) (?:university|college)`),
			MustRule("degree", `i have (?:a|an) ([\w\s]+) degree`),
			MustRule("relationship", `i am (in a relationship|single|dating|married|divorced|widowed|engaged|separated)\b`),
			MustRule("political_view", `my political view is (liberal|conservative|moderate|progressive|libertarian|socialist|green|other)\b`),
			MustRule("religion", `my religion is ([\w\s]+)`),
			MustRule("exercise", `i (?:exercise|work out) (\d+)(?: times)? a (?:week|month)`),
			MustRule("dream_job", `my dream job is (?:a |an )?([\w\s]+)`),
			MustRule("favorite_tv_show", `my (?:favorite|favourite) (?:tv show|series) is ([\w\s]+)`),
			MustRule("favorite_travel_destination", `my (?:favorite|favourite) (?:travel|vacation) destination is ([\w\s]+)`),
			MustRule("favorite_animal", `my (?:favorite|favourite) animal is ([\w\s]+)`),
			MustRule("favorite_season", `my (?:favorite|favourite) season is (spring|summer|fall|autumn|winter)\b`),
			MustRule("favorite_quote", `my (?:favorite|favourite) quote is "([\w\s]+)"`),
			MustRule("favorite_author", `my (?:favorite|favourite) author is ([\w\s]+)`),
			MustRule("favorite_actor", `my (?:favorite|favourite) actor is ([\w\s]+)`),
			MustRule("favorite_actress", `my (?:favorite|favourite) actress is ([\w\s]+)`),
			MustRule("favorite_director", `my (?:favorite|favourite) director is ([\w\s]+)`),
			MustRule("favorite_video_game", `my (?:favorite|favourite) video game is ([\w\s]+)`),
			MustRule("favorite_subject", `my (?:favorite|favourite) subject (?:is|was) ([\w\s]+)`),
		)
		if err != nil {
			panic(err)
		}
		return c
	})

	voiceOnce = sync.OnceValue(func() *Catalog {
		c, err := NewCatalog("voice",
			MustRule("language_code", `language code:\s*(\w{2}-\w{2})`),
			MustRule("ssml_gender", `ssml gender:\s*(\w+)`),
			MustRule("speaking_rate", `speaking rate:\s*(\d+(?:\.\d+)?)`, Numeric()),
			MustRule("voice_pitch", `voice pitch:\s*([-+]?\d+(?:\.\d+)?)`, Numeric()),
			MustRule("volume_gain_db", `volume gain(?: db)?:\s*([-+]?\d+(?:\.\d+)?)`, Numeric()),
		)
		if err != nil {
			panic(err)
		}
		return c
	})
)

// PersonalFacts returns the built-in catalog of self-descriptive phrasings
// ("my name is X", "I live in X", ...). Shared and read-only.
func PersonalFacts() *Catalog { return personalOnce() }

// VoicePreferences returns the built-in catalog of "<label>: <value>"
// voice output settings. Shared and read-only.
func VoicePreferences() *Catalog { return voiceOnce() }
