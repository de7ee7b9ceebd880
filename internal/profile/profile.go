// Package profile holds the user profile: a display name, a language and an
// open set of learned preferences. Extracted fields are merged in with
// last-write-wins semantics.
package profile

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/extract"
)

// DefaultLanguage is used when no language is given.
const DefaultLanguage = "en"

// Field names with special meaning to the profile.
const (
	FieldName         = "name"
	FieldLanguageCode = "language_code"
	FieldGender       = "ssml_gender"
	FieldSpeakingRate = "speaking_rate"
	FieldVoicePitch   = "voice_pitch"
	FieldVolumeGain   = "volume_gain_db"
)

// InvalidInformationError reports a field rejected by the profile validator.
type InvalidInformationError struct {
	Field string
	Value any
	Err   error
}

func (e *InvalidInformationError) Error() string {
	return fmt.Sprintf("profile: field %q rejected value %v: %v", e.Field, e.Value, e.Err)
}

func (e *InvalidInformationError) Unwrap() []error {
	return []error{domain.ErrInvalidInformation, e.Err}
}

// Validator checks a value before it is stored. A non-nil error rejects it.
type Validator func(field string, value any) error

// Profile is a single user's profile. It is owned by one session; the mutex
// only covers reads from the UI goroutine.
type Profile struct {
	mu       sync.RWMutex
	name     string
	language string
	prefs    map[string]any
	validate Validator
}

// Option configures a Profile.
type Option func(*Profile)

// WithLanguage sets the profile language. Empty keeps the default.
func WithLanguage(lang string) Option {
	return func(p *Profile) {
		if lang != "" {
			p.language = lang
		}
	}
}

// WithValidator installs a validator consulted by Merge.
func WithValidator(v Validator) Option {
	return func(p *Profile) { p.validate = v }
}

// WithPreferences seeds the preferences map. The map is copied.
func WithPreferences(prefs map[string]any) Option {
	return func(p *Profile) {
		for k, v := range prefs {
			p.prefs[k] = v
		}
	}
}

// New creates a profile. The name is required.
func New(name string, opts ...Option) (*Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("profile: name is required: %w", domain.ErrInvalidInformation)
	}
	p := &Profile{
		name:     name,
		language: DefaultLanguage,
		prefs:    make(map[string]any),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// FromRecord rebuilds a profile from its persisted form.
func FromRecord(rec domain.ProfileRecord, opts ...Option) (*Profile, error) {
	base := []Option{WithLanguage(rec.Language), WithPreferences(rec.Preferences)}
	return New(rec.Name, append(base, opts...)...)
}

// Record returns the persisted form of the profile.
func (p *Profile) Record() domain.ProfileRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return domain.ProfileRecord{
		Name:        p.name,
		Language:    p.language,
		Preferences: p.copyPrefs(),
	}
}

// Name returns the name the profile was created with.
func (p *Profile) Name() string { return p.name }

// Language returns the profile language.
func (p *Profile) Language() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.language
}

// UpdatePreference sets field to value, replacing any previous value.
func (p *Profile) UpdatePreference(field string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefs[field] = value
}

// Preference returns the stored value for field. The language_code field
// falls back to the profile language when it was never learned.
func (p *Profile) Preference(field string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.prefs[field]; ok {
		return v, true
	}
	if field == FieldLanguageCode {
		return p.language, true
	}
	return nil, false
}

// Preferences returns a copy of all stored preferences.
func (p *Profile) Preferences() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.copyPrefs()
}

func (p *Profile) copyPrefs() map[string]any {
	out := make(map[string]any, len(p.prefs))
	for k, v := range p.prefs {
		out[k] = v
	}
	return out
}

// Merge stores every field of r. Fields are applied in sorted order.
// Fields rejected by the validator are skipped; their errors are joined
// and returned after the remaining fields have been stored.
func (p *Profile) Merge(r extract.Result) error {
	var errs []error
	for _, field := range r.Fields() {
		v := r[field]
		if p.validate != nil {
			if err := p.validate(field, v); err != nil {
				errs = append(errs, &InvalidInformationError{Field: field, Value: v, Err: err})
				continue
			}
		}
		p.UpdatePreference(field, v)
	}
	return errors.Join(errs...)
}

// UpdateFromText extracts personal facts from text and merges them. The
// extraction result is returned even when some fields were rejected.
func (p *Profile) UpdateFromText(ex *extract.Extractor, text string) (extract.Result, error) {
	r, err := ex.ExtractPersonal(text)
	if err != nil {
		return nil, err
	}
	return r, p.Merge(r)
}

// UpdateVoiceFromText extracts voice preferences from text and merges them.
func (p *Profile) UpdateVoiceFromText(ex *extract.Extractor, text string) (extract.Result, error) {
	r, err := ex.ExtractVoice(text)
	if err != nil {
		return nil, err
	}
	return r, p.Merge(r)
}

// DisplayName is the learned name when there is one, else the profile name.
func (p *Profile) DisplayName() string {
	if v, ok := p.Preference(FieldName); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return p.name
}

// Summary renders the learned preferences as "field: value" lines in
// sorted order, for use in a system prompt. Empty when nothing is known.
func (p *Profile) Summary() string {
	prefs := p.Preferences()
	if len(prefs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(prefs))
	for k := range prefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Known facts about the user:")
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", strings.ReplaceAll(k, "_", " "), formatValue(prefs[k]))
	}
	return b.String()
}

// VoiceSettings returns the typed voice preferences. Values that are not
// numbers are ignored.
func (p *Profile) VoiceSettings() domain.VoiceSettings {
	var vs domain.VoiceSettings
	if v, ok := p.Preference(FieldLanguageCode); ok {
		vs.LanguageCode, _ = v.(string)
	}
	if v, ok := p.Preference(FieldGender); ok {
		if s, ok := v.(string); ok {
			vs.Gender = strings.ToUpper(s)
		}
	}
	if v, ok := p.Preference(FieldSpeakingRate); ok {
		vs.SpeakingRate, _ = toFloat(v)
	}
	if v, ok := p.Preference(FieldVoicePitch); ok {
		vs.Pitch, _ = toFloat(v)
	}
	if v, ok := p.Preference(FieldVolumeGain); ok {
		vs.VolumeGainDB, _ = toFloat(v)
	}
	return vs
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func formatValue(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}
