package speech

import (
	"strings"
	"time"

	"github.com/hammamikhairi/julian/internal/domain"
)

// DefaultVoice is used when the profile asks for a language or gender we
// have no voice for.
// Full list: https://learn.microsoft.com/en-us/azure/ai-services/speech-service/language-support
const (
	DefaultVoice    = "en-US-AvaNeural"
	DefaultLanguage = "en-US"
)

// Audio format returned by Azure and expected by the player.
const DefaultAudioFormat = "riff-24khz-16bit-mono-pcm"

// Audio parameters matching the default format.
const (
	SampleRate   = 24000
	ChannelCount = 1
	BitDepth     = 16
)

// Env var names for Azure Speech credentials.
const (
	EnvAzureSpeechKey    = "AZURE_SPEECH_KEY"
	EnvAzureSpeechRegion = "AZURE_SPEECH_REGION"
)

// voices maps a locale to its female and male neural voice.
var voices = map[string][2]string{
	"en-US": {"en-US-AvaNeural", "en-US-AndrewNeural"},
	"en-GB": {"en-GB-SoniaNeural", "en-GB-RyanNeural"},
	"en-AU": {"en-AU-NatashaNeural", "en-AU-WilliamNeural"},
	"fr-FR": {"fr-FR-DeniseNeural", "fr-FR-HenriNeural"},
	"de-DE": {"de-DE-KatjaNeural", "de-DE-ConradNeural"},
	"es-ES": {"es-ES-ElviraNeural", "es-ES-AlvaroNeural"},
	"it-IT": {"it-IT-ElsaNeural", "it-IT-DiegoNeural"},
	"pt-BR": {"pt-BR-FranciscaNeural", "pt-BR-AntonioNeural"},
	"yo-NG": {"yo-NG-AdetolaNeural", "yo-NG-AdeolaNeural"},
}

// languageDefaults expands a bare language to a locale.
var languageDefaults = map[string]string{
	"en": "en-US",
	"fr": "fr-FR",
	"de": "de-DE",
	"es": "es-ES",
	"it": "it-IT",
	"pt": "pt-BR",
	"yo": "yo-NG",
}

// ResolveVoice picks the locale and voice name for the settings. Unknown
// locales fall back to the default voice.
func ResolveVoice(vs domain.VoiceSettings) (locale, name string) {
	locale = normalizeLocale(vs.LanguageCode)
	pair, ok := voices[locale]
	if !ok {
		return DefaultLanguage, DefaultVoice
	}
	if strings.EqualFold(vs.Gender, "MALE") {
		return locale, pair[1]
	}
	return locale, pair[0]
}

// normalizeLocale turns "en", "EN-us" or "en_US" into "en-US".
func normalizeLocale(code string) string {
	code = strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	if code == "" {
		return DefaultLanguage
	}
	lang, region, found := strings.Cut(code, "-")
	lang = strings.ToLower(lang)
	if !found {
		if l, ok := languageDefaults[lang]; ok {
			return l
		}
		return lang
	}
	return lang + "-" + strings.ToUpper(region)
}

// Priority levels for speech requests. Higher value = speaks first.
type Priority int

const (
	PriorityLow      Priority = iota // fillers
	PriorityNormal                   // replies
	PriorityHigh                     // greetings, state changes
	PriorityCritical                 // errors
)

// SpeechRequest is a queued item waiting to be spoken.
type SpeechRequest struct {
	Text     string
	Priority Priority
	Voice    domain.VoiceSettings
	QueuedAt time.Time
}
