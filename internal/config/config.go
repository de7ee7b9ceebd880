// Package config loads the Julian configuration from defaults, an optional
// julian.yaml, a .env file, JULIAN_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Credential environment variables. They are read without the JULIAN_
// prefix so existing Azure and gateway setups keep working.
const (
	EnvAzureSpeechKey    = "AZURE_SPEECH_KEY"
	EnvAzureSpeechRegion = "AZURE_SPEECH_REGION"
	EnvGPTChatKey        = "GPT_CHAT_KEY"
	EnvGPTChatEndpoint   = "GPT_CHAT_ENDPOINT"
)

// Config is the root configuration.
type Config struct {
	User        string        `mapstructure:"user"`
	DataDir     string        `mapstructure:"data_dir"`
	LogFile     string        `mapstructure:"log_file"` // "stderr" logs to the console
	Verbose     bool          `mapstructure:"verbose"`
	Quiet       bool          `mapstructure:"quiet"`
	WakePhrase  string        `mapstructure:"wake_phrase"`
	SleepPhrase string        `mapstructure:"sleep_phrase"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	Rules       string        `mapstructure:"rules"` // extra extraction rules (YAML)
	OnnxLib     string        `mapstructure:"onnx_lib"`

	Speech    SpeechConfig    `mapstructure:"speech"`
	Voice     VoiceConfig     `mapstructure:"voice"`
	Wakeword  WakewordConfig  `mapstructure:"wakeword"`
	AI        AIConfig        `mapstructure:"ai"`
	Sentiment SentimentConfig `mapstructure:"sentiment"`
	Profile   ProfileConfig   `mapstructure:"profile"`
}

// SpeechConfig configures Azure text-to-speech.
type SpeechConfig struct {
	Disabled  bool   `mapstructure:"disabled"`
	Key       string `mapstructure:"key"`
	Region    string `mapstructure:"region"`
	CacheDir  string `mapstructure:"cache_dir"`
	DiskCache bool   `mapstructure:"disk_cache"`
}

// Enabled reports whether speech output can be attempted.
func (s SpeechConfig) Enabled() bool {
	return !s.Disabled && s.Key != "" && s.Region != ""
}

// VoiceConfig configures microphone input through whisper.cpp.
type VoiceConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	WhisperBin    string `mapstructure:"whisper_bin"`
	WhisperModel  string `mapstructure:"whisper_model"`
	TempDir       string `mapstructure:"temp_dir"`
	RecordSecs    int    `mapstructure:"record_secs"`
	SilenceChunks int    `mapstructure:"silence_chunks"`
}

// WakewordConfig configures the ONNX wake-word detector.
type WakewordConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Model     string  `mapstructure:"model"`
	Melspec   string  `mapstructure:"melspec"`
	Embedding string  `mapstructure:"embedding"`
	Threshold float64 `mapstructure:"threshold"`
}

// AIConfig configures the chat model.
type AIConfig struct {
	Disabled bool   `mapstructure:"disabled"`
	Key      string `mapstructure:"key"`
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
	Window   int    `mapstructure:"window"`
}

// Enabled reports whether the chat model can be used.
func (a AIConfig) Enabled() bool {
	return !a.Disabled && a.Key != "" && a.Endpoint != ""
}

// SentimentConfig selects the sentiment analyzer. With no model the
// built-in lexicon is used.
type SentimentConfig struct {
	Model     string `mapstructure:"model"`
	Tokenizer string `mapstructure:"tokenizer"`
}

// ProfileConfig controls how learned preferences are stored.
type ProfileConfig struct {
	// Validate rejects voice settings outside what the TTS engine
	// accepts. Off by default: every extracted value is stored.
	Validate bool `mapstructure:"validate"`
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"user":            "user",
	"data-dir":        "data_dir",
	"log-file":        "log_file",
	"verbose":         "verbose",
	"quiet":           "quiet",
	"idle-timeout":    "idle_timeout",
	"rules":           "rules",
	"onnx-lib":        "onnx_lib",
	"no-speech":       "speech.disabled",
	"cache-dir":       "speech.cache_dir",
	"disk-cache":      "speech.disk_cache",
	"voice":           "voice.enabled",
	"whisper-bin":     "voice.whisper_bin",
	"whisper-model":   "voice.whisper_model",
	"record-secs":     "voice.record_secs",
	"wakeword":        "wakeword.enabled",
	"wakeword-model":  "wakeword.model",
	"no-ai":           "ai.disabled",
	"model":           "ai.model",
	"sentiment-model": "sentiment.model",
	"validate-voice":  "profile.validate",
}

// RegisterFlags adds the run flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("user", "friend", "profile to load and update")
	fs.String("data-dir", ".julian", "directory for the profile database and history")
	fs.String("log-file", ".julian/julian.log", `file to write logs to ("stderr" logs to the console)`)
	fs.BoolP("verbose", "v", false, "enable debug logging")
	fs.BoolP("quiet", "q", false, "disable all logging")
	fs.Duration("idle-timeout", 2*time.Minute, "go back to sleep after this long without input")
	fs.String("rules", "", "YAML file with extra extraction rules")
	fs.String("onnx-lib", "", "path to the ONNX Runtime shared library")
	fs.Bool("no-speech", false, "disable text-to-speech even if Azure keys are set")
	fs.String("cache-dir", ".julian/tts-cache", "directory for the TTS audio cache")
	fs.Bool("disk-cache", true, "persist synthesized audio to the cache directory")
	fs.Bool("voice", false, "enable voice input via local Whisper STT")
	fs.String("whisper-bin", "whisper-cli", "path to the whisper.cpp CLI binary")
	fs.String("whisper-model", "bin/ggml-small.bin", "path to the Whisper GGML model")
	fs.Int("record-secs", 2, "seconds per voice recording chunk")
	fs.Bool("wakeword", false, "listen for the wake word with the ONNX detector")
	fs.String("wakeword-model", "models/hey_julian.onnx", "wake-word ONNX model")
	fs.Bool("no-ai", false, "disable the AI agent even if GPT keys are set")
	fs.String("model", "gpt-4o-mini", "chat model name")
	fs.String("sentiment-model", "", "ONNX sentiment model (empty uses the lexicon)")
	fs.Bool("validate-voice", false, "reject voice settings outside the TTS engine's range")
}

// Load reads the configuration. If configFile is empty ./julian.yaml and
// ~/.config/julian/julian.yaml are searched; a missing file is not an
// error. flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("julian")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/julian")
		}
	}

	// JULIAN_USER, JULIAN_SPEECH_CACHE_DIR, JULIAN_AI_MODEL, ...
	v.SetEnvPrefix("JULIAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		"speech.key":    EnvAzureSpeechKey,
		"speech.region": EnvAzureSpeechRegion,
		"ai.key":        EnvGPTChatKey,
		"ai.endpoint":   EnvGPTChatEndpoint,
	} {
		if err := v.BindEnv(key, "JULIAN_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("config: binding %s: %w", env, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("config: binding --%s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}
	cfg.AI.Key = resolveEnvRef(cfg.AI.Key)
	cfg.Speech.Key = resolveEnvRef(cfg.Speech.Key)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("user", "friend")
	v.SetDefault("data_dir", ".julian")
	v.SetDefault("log_file", ".julian/julian.log")
	v.SetDefault("wake_phrase", "Hey Julian")
	v.SetDefault("sleep_phrase", "Goodbye Julian")
	v.SetDefault("idle_timeout", 2*time.Minute)
	v.SetDefault("speech.cache_dir", ".julian/tts-cache")
	v.SetDefault("speech.disk_cache", true)
	v.SetDefault("voice.whisper_bin", "whisper-cli")
	v.SetDefault("voice.whisper_model", "bin/ggml-small.bin")
	v.SetDefault("voice.temp_dir", ".julian/stt")
	v.SetDefault("voice.record_secs", 2)
	v.SetDefault("voice.silence_chunks", 1)
	v.SetDefault("wakeword.model", "models/hey_julian.onnx")
	v.SetDefault("wakeword.melspec", "bin/melspectrogram.onnx")
	v.SetDefault("wakeword.embedding", "bin/embedding_model.onnx")
	v.SetDefault("wakeword.threshold", 0.3)
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.window", 10)
	v.SetDefault("profile.validate", false)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.User) == "" {
		errs = append(errs, errors.New("config: user is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("config: data_dir is required"))
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: idle_timeout must not be negative, got %s", c.IdleTimeout))
	}
	if strings.TrimSpace(c.WakePhrase) == "" || strings.TrimSpace(c.SleepPhrase) == "" {
		errs = append(errs, errors.New("config: wake_phrase and sleep_phrase are required"))
	}
	if c.Voice.Enabled {
		if c.Voice.RecordSecs <= 0 {
			errs = append(errs, fmt.Errorf("config: voice.record_secs must be positive, got %d", c.Voice.RecordSecs))
		}
		if c.Voice.WhisperModel == "" {
			errs = append(errs, errors.New("config: voice.whisper_model is required with voice input"))
		}
	}
	if c.Wakeword.Enabled && c.OnnxLib == "" {
		errs = append(errs, errors.New("config: onnx_lib is required with the wake-word detector"))
	}
	if c.Sentiment.Model != "" && (c.Sentiment.Tokenizer == "" || c.OnnxLib == "") {
		errs = append(errs, errors.New("config: sentiment.model needs sentiment.tokenizer and onnx_lib"))
	}
	if c.Quiet && c.Verbose {
		errs = append(errs, errors.New("config: quiet and verbose are mutually exclusive"))
	}
	return errors.Join(errs...)
}

// RecordDuration is the length of one voice chunk.
func (c *Config) RecordDuration() time.Duration {
	return time.Duration(c.Voice.RecordSecs) * time.Second
}

// resolveEnvRef replaces a "${VAR_NAME}" value with the variable's value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		if envVal := os.Getenv(val[2 : len(val)-1]); envVal != "" {
			return envVal
		}
	}
	return val
}
