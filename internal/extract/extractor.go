package extract

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"
)

// Result maps field names to extracted values. Values are strings, or
// float64 for numeric rules.
type Result map[string]any

// Fields returns the matched field names in sorted order.
func (r Result) Fields() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MalformedNumericFieldError is returned when a numeric rule captured text
// that does not parse as a number.
type MalformedNumericFieldError struct {
	Field string
	Value string
	Err   error
}

func (e *MalformedNumericFieldError) Error() string {
	return fmt.Sprintf("extract: field %q: %q is not a number", e.Field, e.Value)
}

func (e *MalformedNumericFieldError) Unwrap() []error {
	return []error{domain.ErrMalformedNumeric, e.Err}
}

// Extractor applies rule catalogs to utterances. It holds no per-call state
// and is safe for concurrent use.
type Extractor struct {
	log      *logger.Logger
	personal *Catalog
	voice    *Catalog
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPersonalCatalog replaces the built-in personal facts catalog.
func WithPersonalCatalog(c *Catalog) Option {
	return func(e *Extractor) { e.personal = c }
}

// WithVoiceCatalog replaces the built-in voice preferences catalog.
func WithVoiceCatalog(c *Catalog) Option {
	return func(e *Extractor) { e.voice = c }
}

// New creates an Extractor over the built-in catalogs.
func New(log *logger.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		log:      log,
		personal: PersonalFacts(),
		voice:    VoicePreferences(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Apply runs every rule of c against text. Each matching rule contributes
// its field; when two rules share a field the later one wins. Numeric
// values are converted after all rules have run, in rule order, and a
// failed conversion aborts the whole call.
func (e *Extractor) Apply(c *Catalog, text string) (Result, error) {
	out := Result{}
	if text == "" {
		return out, nil
	}

	numeric := make(map[string]bool)
	for _, r := range c.rules {
		v, ok := r.find(text)
		if !ok {
			continue
		}
		out[r.Field] = v
		numeric[r.Field] = r.Numeric
	}

	// Rule order, so the first malformed field is always the one reported.
	for _, r := range c.rules {
		if !numeric[r.Field] {
			continue
		}
		raw, ok := out[r.Field].(string)
		if !ok {
			continue // converted already
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &MalformedNumericFieldError{Field: r.Field, Value: raw, Err: err}
		}
		out[r.Field] = f
	}

	if len(out) > 0 {
		e.log.Debug("[extract] %s: matched %v", c.Name(), out.Fields())
	}
	return out, nil
}

// ExtractPersonal applies the personal facts catalog.
func (e *Extractor) ExtractPersonal(text string) (Result, error) {
	return e.Apply(e.personal, text)
}

// ExtractVoice applies the voice preferences catalog.
func (e *Extractor) ExtractVoice(text string) (Result, error) {
	return e.Apply(e.voice, text)
}
