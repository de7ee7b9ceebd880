package extract

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog names accepted by the rule file's catalog key.
const (
	CatalogPersonal = "personal"
	CatalogVoice    = "voice"
)

type ruleFile struct {
	Rules []ruleDef `yaml:"rules"`
}

type ruleDef struct {
	Field   string   `yaml:"field"`
	Pattern string   `yaml:"pattern"`
	Catalog string   `yaml:"catalog"`
	Group   *int     `yaml:"group"`
	Numeric bool     `yaml:"numeric"`
	Exclude []string `yaml:"exclude"`
}

// RuleSet holds loaded rules by the catalog they extend.
type RuleSet struct {
	Personal []Rule
	Voice    []Rule
}

// Len returns the total number of rules.
func (s RuleSet) Len() int { return len(s.Personal) + len(s.Voice) }

// Options returns the Extractor options that append the set to the
// built-in catalogs.
func (s RuleSet) Options() []Option {
	var opts []Option
	if len(s.Personal) > 0 {
		opts = append(opts, WithPersonalCatalog(PersonalFacts().With(s.Personal...)))
	}
	if len(s.Voice) > 0 {
		opts = append(opts, WithVoiceCatalog(VoicePreferences().With(s.Voice...)))
	}
	return opts
}

// LoadRules decodes a YAML rule list. Rules extend the personal catalog
// unless catalog is "voice"; only voice rules may be numeric.
//
//	rules:
//	  - field: nickname
//	    pattern: 'call me (\w+)'
//	  - field: speech_volume
//	    catalog: voice
//	    pattern: 'speech volume:\s*(\d+)'
//	    numeric: true
func LoadRules(r io.Reader) (RuleSet, error) {
	var f ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return RuleSet{}, nil
		}
		return RuleSet{}, fmt.Errorf("extract: decode rules: %w", err)
	}

	var set RuleSet
	for i, d := range f.Rules {
		catalog := d.Catalog
		if catalog == "" {
			catalog = CatalogPersonal
		}
		if catalog != CatalogPersonal && catalog != CatalogVoice {
			return RuleSet{}, fmt.Errorf("extract: rule #%d: unknown catalog %q", i+1, d.Catalog)
		}
		if d.Numeric && catalog != CatalogVoice {
			return RuleSet{}, fmt.Errorf("extract: rule #%d: numeric rules belong to the %s catalog", i+1, CatalogVoice)
		}

		var opts []RuleOption
		if d.Numeric {
			opts = append(opts, Numeric())
		}
		if len(d.Exclude) > 0 {
			opts = append(opts, Excluding(d.Exclude...))
		}
		if d.Group != nil {
			opts = append(opts, CaptureGroup(*d.Group))
		}
		rule, err := NewRule(d.Field, d.Pattern, opts...)
		if err != nil {
			return RuleSet{}, fmt.Errorf("extract: rule #%d: %w", i+1, err)
		}
		if catalog == CatalogVoice {
			set.Voice = append(set.Voice, rule)
		} else {
			set.Personal = append(set.Personal, rule)
		}
	}
	return set, nil
}

// LoadRulesFile reads rules from a YAML file.
func LoadRulesFile(path string) (RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return RuleSet{}, err
	}
	defer f.Close()
	return LoadRules(f)
}
