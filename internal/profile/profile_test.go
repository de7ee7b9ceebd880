package profile

import (
	"errors"
	"strings"
	"testing"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/extract"
	"github.com/hammamikhairi/julian/internal/logger"
)

func newTestProfile(t *testing.T, opts ...Option) *Profile {
	t.Helper()
	p, err := New("User", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func newExtractor() *extract.Extractor {
	return extract.New(logger.New(logger.LevelOff, nil))
}

func TestNewRequiresName(t *testing.T) {
	for _, name := range []string{"", "   "} {
		_, err := New(name)
		if !errors.Is(err, domain.ErrInvalidInformation) {
			t.Errorf("New(%q) error = %v, want ErrInvalidInformation", name, err)
		}
	}
}

func TestLanguageDefaultAndFallback(t *testing.T) {
	p := newTestProfile(t)
	if p.Language() != DefaultLanguage {
		t.Errorf("Language() = %q, want %q", p.Language(), DefaultLanguage)
	}

	v, ok := p.Preference("language_code")
	if !ok || v != "en" {
		t.Errorf("Preference(language_code) = %v, %v; want en, true", v, ok)
	}

	p.UpdatePreference("language_code", "fr-FR")
	v, _ = p.Preference("language_code")
	if v != "fr-FR" {
		t.Errorf("Preference(language_code) = %v, want fr-FR", v)
	}

	if _, ok := p.Preference("favorite_color"); ok {
		t.Error("Preference(favorite_color) reported present")
	}

	if got := newTestProfile(t, WithLanguage("de")).Language(); got != "de" {
		t.Errorf("WithLanguage: got %q", got)
	}
}

func TestUpdateFromTextAccumulates(t *testing.T) {
	p := newTestProfile(t)
	ex := newExtractor()

	if _, err := p.UpdateFromText(ex, "my name is Sam"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.UpdateFromText(ex, "I am 30 years old"); err != nil {
		t.Fatal(err)
	}

	if v, _ := p.Preference("name"); v != "Sam" {
		t.Errorf("name = %v, want Sam", v)
	}
	if v, _ := p.Preference("age"); v != "30" {
		t.Errorf("age = %v, want 30", v)
	}
}

func TestUpdateFromTextLastWriteWins(t *testing.T) {
	p := newTestProfile(t)
	ex := newExtractor()

	for _, text := range []string{"my name is Sam", "my name is Alex"} {
		if _, err := p.UpdateFromText(ex, text); err != nil {
			t.Fatal(err)
		}
	}
	if v, _ := p.Preference("name"); v != "Alex" {
		t.Errorf("name = %v, want Alex", v)
	}
	if p.DisplayName() != "Alex" {
		t.Errorf("DisplayName() = %q, want Alex", p.DisplayName())
	}
}

func TestUpdateVoiceFromText(t *testing.T) {
	p := newTestProfile(t)

	r, err := p.UpdateVoiceFromText(newExtractor(), "language code: en-US, speaking rate: 1.5")
	if err != nil {
		t.Fatal(err)
	}
	if len(r) != 2 {
		t.Errorf("result = %v, want 2 fields", r)
	}
	if v, _ := p.Preference("speaking_rate"); v != 1.5 {
		t.Errorf("speaking_rate = %#v, want 1.5", v)
	}

	vs := p.VoiceSettings()
	if vs.LanguageCode != "en-US" || vs.SpeakingRate != 1.5 {
		t.Errorf("VoiceSettings() = %+v", vs)
	}
}

func TestMergeValidator(t *testing.T) {
	p := newTestProfile(t, WithValidator(VoiceRangeValidator()))

	err := p.Merge(extract.Result{
		"speaking_rate": 9.0,
		"voice_pitch":   2.0,
		"email":         "not an address",
		"name":          "Sam",
	})
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !errors.Is(err, domain.ErrInvalidInformation) {
		t.Errorf("error %v does not wrap ErrInvalidInformation", err)
	}
	var iErr *InvalidInformationError
	if !errors.As(err, &iErr) {
		t.Fatalf("error %T has no *InvalidInformationError", err)
	}
	// Fields are applied in sorted order, so email fails first.
	if iErr.Field != "email" {
		t.Errorf("first rejected field = %q, want email", iErr.Field)
	}

	if _, ok := p.Preference("speaking_rate"); ok {
		t.Error("rejected speaking_rate was stored")
	}
	if v, _ := p.Preference("voice_pitch"); v != 2.0 {
		t.Errorf("voice_pitch = %v, want 2", v)
	}
	if v, _ := p.Preference("name"); v != "Sam" {
		t.Errorf("name = %v, want Sam", v)
	}
}

func TestMergeNoValidator(t *testing.T) {
	p := newTestProfile(t)
	if err := p.Merge(extract.Result{"speaking_rate": 9.0}); err != nil {
		t.Errorf("Merge: %v", err)
	}
	if err := p.Merge(extract.Result{}); err != nil {
		t.Errorf("Merge(empty): %v", err)
	}
}

func TestUpdateFromTextExtractionError(t *testing.T) {
	cat, err := extract.NewCatalog("voice", extract.MustRule("speaking_rate", `speaking rate:\s*(\w+)`, extract.Numeric()))
	if err != nil {
		t.Fatal(err)
	}
	ex := extract.New(logger.New(logger.LevelOff, nil), extract.WithVoiceCatalog(cat))
	p := newTestProfile(t)

	_, err = p.UpdateVoiceFromText(ex, "speaking rate: fast")
	if !errors.Is(err, domain.ErrMalformedNumeric) {
		t.Fatalf("error = %v, want ErrMalformedNumeric", err)
	}
	if len(p.Preferences()) != 0 {
		t.Errorf("preferences changed: %v", p.Preferences())
	}
}

func TestSummary(t *testing.T) {
	p := newTestProfile(t)
	if p.Summary() != "" {
		t.Errorf("Summary() of empty profile = %q", p.Summary())
	}

	p.UpdatePreference("name", "Sam")
	p.UpdatePreference("favorite_color", "blue")
	p.UpdatePreference("speaking_rate", 1.5)

	want := "Known facts about the user:\nfavorite color: blue\nname: Sam\nspeaking rate: 1.5"
	if got := p.Summary(); got != want {
		t.Errorf("Summary() =\n%s\nwant\n%s", got, want)
	}
}

func TestDisplayName(t *testing.T) {
	p := newTestProfile(t)
	if p.DisplayName() != "User" {
		t.Errorf("DisplayName() = %q, want User", p.DisplayName())
	}
	p.UpdatePreference("name", "")
	if p.DisplayName() != "User" {
		t.Errorf("empty learned name should not replace profile name")
	}
}

func TestVoiceSettings(t *testing.T) {
	p := newTestProfile(t)
	vs := p.VoiceSettings()
	if vs.LanguageCode != "en" || vs.SpeakingRate != 0 {
		t.Errorf("default VoiceSettings() = %+v", vs)
	}

	p.UpdatePreference("ssml_gender", "female")
	p.UpdatePreference("voice_pitch", "-2")
	p.UpdatePreference("volume_gain_db", 3.0)
	vs = p.VoiceSettings()
	if vs.Gender != "FEMALE" || vs.Pitch != -2 || vs.VolumeGainDB != 3 {
		t.Errorf("VoiceSettings() = %+v", vs)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	p := newTestProfile(t, WithLanguage("fr"))
	p.UpdatePreference("name", "Sam")
	p.UpdatePreference("speaking_rate", 1.2)

	rec := p.Record()
	rec.Preferences["name"] = "mutated"
	if v, _ := p.Preference("name"); v != "Sam" {
		t.Error("Record() shares the preferences map")
	}

	q, err := FromRecord(p.Record())
	if err != nil {
		t.Fatal(err)
	}
	if q.Name() != "User" || q.Language() != "fr" {
		t.Errorf("FromRecord: name %q language %q", q.Name(), q.Language())
	}
	if !strings.Contains(q.Summary(), "speaking rate: 1.2") {
		t.Errorf("FromRecord lost preferences: %s", q.Summary())
	}
}
