package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "julian.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearCredentials(t *testing.T) {
	t.Helper()
	for _, env := range []string{EnvAzureSpeechKey, EnvAzureSpeechRegion, EnvGPTChatKey, EnvGPTChatEndpoint} {
		t.Setenv(env, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearCredentials(t)
	cfg, err := Load(writeConfig(t, "# empty\n"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.User != "friend" {
		t.Errorf("User = %q", cfg.User)
	}
	if cfg.IdleTimeout != 2*time.Minute {
		t.Errorf("IdleTimeout = %s", cfg.IdleTimeout)
	}
	if cfg.WakePhrase != "Hey Julian" || cfg.SleepPhrase != "Goodbye Julian" {
		t.Errorf("phrases = %q / %q", cfg.WakePhrase, cfg.SleepPhrase)
	}
	if !cfg.Speech.DiskCache {
		t.Error("disk cache should default on")
	}
	if cfg.Voice.RecordSecs != 2 || cfg.RecordDuration() != 2*time.Second {
		t.Errorf("record secs = %d", cfg.Voice.RecordSecs)
	}
	if cfg.Speech.Enabled() || cfg.AI.Enabled() {
		t.Error("speech and AI need credentials")
	}
	if cfg.Profile.Validate {
		t.Error("profile validation should default off")
	}
}

func TestLoadFile(t *testing.T) {
	clearCredentials(t)
	path := writeConfig(t, `
user: Gbemi
idle_timeout: 45s
speech:
  key: ${JULIAN_TEST_TTS_KEY}
  region: westeurope
ai:
  key: k
  endpoint: https://example.test/v1/
  window: 4
`)
	t.Setenv("JULIAN_TEST_TTS_KEY", "from-env")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.User != "Gbemi" {
		t.Errorf("User = %q", cfg.User)
	}
	if cfg.IdleTimeout != 45*time.Second {
		t.Errorf("IdleTimeout = %s", cfg.IdleTimeout)
	}
	if cfg.Speech.Key != "from-env" || !cfg.Speech.Enabled() {
		t.Errorf("speech = %+v", cfg.Speech)
	}
	if !cfg.AI.Enabled() || cfg.AI.Window != 4 {
		t.Errorf("ai = %+v", cfg.AI)
	}
}

func TestLoadCredentialEnv(t *testing.T) {
	clearCredentials(t)
	t.Setenv(EnvAzureSpeechKey, "azure-key")
	t.Setenv(EnvAzureSpeechRegion, "eastus")
	t.Setenv(EnvGPTChatKey, "gpt-key")
	t.Setenv(EnvGPTChatEndpoint, "https://gateway.test/")

	cfg, err := Load(writeConfig(t, "user: Sam\n"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Speech.Key != "azure-key" || cfg.Speech.Region != "eastus" {
		t.Errorf("speech = %+v", cfg.Speech)
	}
	if cfg.AI.Key != "gpt-key" || cfg.AI.Endpoint != "https://gateway.test/" {
		t.Errorf("ai = %+v", cfg.AI)
	}
}

func TestLoadPrefixedEnv(t *testing.T) {
	clearCredentials(t)
	t.Setenv("JULIAN_USER", "Ada")
	t.Setenv("JULIAN_AI_MODEL", "gpt-4o")

	cfg, err := Load(writeConfig(t, "user: Sam\n"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.User != "Ada" {
		t.Errorf("User = %q, env should beat the file", cfg.User)
	}
	if cfg.AI.Model != "gpt-4o" {
		t.Errorf("AI.Model = %q", cfg.AI.Model)
	}
}

func TestLoadFlags(t *testing.T) {
	clearCredentials(t)
	t.Setenv(EnvGPTChatKey, "k")
	t.Setenv(EnvGPTChatEndpoint, "https://gateway.test/")

	fs := pflag.NewFlagSet("julian", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse([]string{"--user", "Kemi", "--no-ai", "--idle-timeout", "30s", "--voice", "--validate-voice"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(writeConfig(t, "user: Sam\n"), fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.User != "Kemi" {
		t.Errorf("User = %q, flag should win", cfg.User)
	}
	if cfg.AI.Enabled() {
		t.Error("--no-ai should disable the agent")
	}
	if cfg.IdleTimeout != 30*time.Second {
		t.Errorf("IdleTimeout = %s", cfg.IdleTimeout)
	}
	if !cfg.Voice.Enabled {
		t.Error("--voice not applied")
	}
	if !cfg.Profile.Validate {
		t.Error("--validate-voice not applied")
	}
}

func TestLoadBadFile(t *testing.T) {
	clearCredentials(t)
	if _, err := Load(writeConfig(t, "user: [unterminated\n"), nil); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			User:        "Sam",
			DataDir:     ".julian",
			WakePhrase:  "Hey Julian",
			SleepPhrase: "Goodbye Julian",
			IdleTimeout: time.Minute,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{"valid", func(*Config) {}, nil},
		{"blank user", func(c *Config) { c.User = "  " }, []string{"user is required"}},
		{"negative timeout", func(c *Config) { c.IdleTimeout = -time.Second }, []string{"idle_timeout"}},
		{"voice without chunk length", func(c *Config) {
			c.Voice.Enabled = true
			c.Voice.WhisperModel = "m.bin"
		}, []string{"record_secs"}},
		{"wakeword without runtime", func(c *Config) { c.Wakeword.Enabled = true }, []string{"onnx_lib"}},
		{"sentiment model without tokenizer", func(c *Config) {
			c.Sentiment.Model = "model.onnx"
			c.OnnxLib = "lib.so"
		}, []string{"sentiment.tokenizer"}},
		{"several at once", func(c *Config) {
			c.User = ""
			c.Quiet, c.Verbose = true, true
		}, []string{"user is required", "mutually exclusive"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if len(tt.want) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q missing %q", err, w)
				}
			}
		})
	}
}
