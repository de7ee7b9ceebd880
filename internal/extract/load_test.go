package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testRules = `
rules:
  - field: nickname
    pattern: 'call me (\w+)'
  - field: shoe_size
    catalog: voice
    pattern: 'my shoe size is (\d+(?:\.\d+)?)'
    numeric: true
  - field: mood
    catalog: personal
    pattern: 'i feel (\w+)'
    exclude: [like]
`

func TestLoadRules(t *testing.T) {
	set, err := LoadRules(strings.NewReader(testRules))
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(set.Personal) != 2 || len(set.Voice) != 1 || set.Len() != 3 {
		t.Fatalf("got %d personal and %d voice rules, want 2 and 1", len(set.Personal), len(set.Voice))
	}

	ex := newTestExtractor(set.Options()...)
	const text = "Call me Red. My shoe size is 42.5 and I feel like I feel great"

	personal, err := ex.ExtractPersonal(text)
	if err != nil {
		t.Fatal(err)
	}
	if personal["nickname"] != "Red" {
		t.Errorf("nickname = %v", personal["nickname"])
	}
	if personal["mood"] != "great" {
		t.Errorf("mood = %v, want great", personal["mood"])
	}
	if _, ok := personal["shoe_size"]; ok {
		t.Error("voice rule applied to the personal catalog")
	}

	voice, err := ex.ExtractVoice(text)
	if err != nil {
		t.Fatal(err)
	}
	if voice["shoe_size"] != 42.5 {
		t.Errorf("shoe_size = %#v, want 42.5", voice["shoe_size"])
	}
	if _, ok := voice["nickname"]; ok {
		t.Error("personal rule applied to the voice catalog")
	}
}

func TestLoadRulesKeepsBuiltins(t *testing.T) {
	set, err := LoadRules(strings.NewReader(testRules))
	if err != nil {
		t.Fatal(err)
	}
	ex := newTestExtractor(set.Options()...)

	got, err := ex.ExtractVoice("speaking rate: 1.2")
	if err != nil {
		t.Fatal(err)
	}
	if got["speaking_rate"] != 1.2 {
		t.Errorf("speaking_rate = %#v", got["speaking_rate"])
	}
}

func TestLoadRulesErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "rules:\n  - field: a\n    pattern: 'x'\n    colour: red\n", "decode"},
		{"bad regexp", "rules:\n  - field: a\n    pattern: '(x'\n", "rule #1"},
		{"missing field", "rules:\n  - pattern: 'x'\n", "no field name"},
		{"bad group", "rules:\n  - field: a\n    pattern: '(x)'\n    group: 4\n", "out of range"},
		{"unknown catalog", "rules:\n  - field: a\n    pattern: 'x'\n    catalog: medical\n", "unknown catalog"},
		{"numeric personal rule", "rules:\n  - field: a\n    pattern: 'a is (\\d+)'\n    numeric: true\n", "numeric rules belong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadRulesEmpty(t *testing.T) {
	set, err := LoadRules(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 0 || len(set.Options()) != 0 {
		t.Errorf("got %d rules", set.Len())
	}
}

func TestLoadRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(testRules), 0o644); err != nil {
		t.Fatal(err)
	}
	set, err := LoadRulesFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 3 {
		t.Errorf("got %d rules", set.Len())
	}

	if _, err := LoadRulesFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
