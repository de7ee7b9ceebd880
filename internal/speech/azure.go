package speech

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"
)

// Synthesizer converts text to WAV audio in the given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice domain.VoiceSettings) ([]byte, error)
}

var _ Synthesizer = (*AzureClient)(nil)

// AzureOption configures the Azure TTS client.
type AzureOption func(*AzureClient)

// WithAudioFormat sets the audio output format.
func WithAudioFormat(format string) AzureOption {
	return func(c *AzureClient) {
		c.format = format
	}
}

// WithHTTPTimeout sets the HTTP client timeout for TTS requests.
func WithHTTPTimeout(d time.Duration) AzureOption {
	return func(c *AzureClient) {
		c.httpClient.Timeout = d
	}
}

// WithEndpoint overrides the synthesis URL (tests, sovereign clouds).
func WithEndpoint(url string) AzureOption {
	return func(c *AzureClient) {
		c.endpoint = url
	}
}

// AzureClient handles text-to-speech synthesis via Azure Cognitive Services.
type AzureClient struct {
	subscriptionKey string
	endpoint        string
	format          string
	httpClient      *http.Client
	log             *logger.Logger
}

// NewAzureClient creates an Azure TTS client with the given credentials.
func NewAzureClient(key, region string, log *logger.Logger, opts ...AzureOption) *AzureClient {
	c := &AzureClient{
		subscriptionKey: key,
		endpoint:        fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		format:          DefaultAudioFormat,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize converts text to speech audio data (WAV bytes).
func (c *AzureClient) Synthesize(ctx context.Context, text string, voice domain.VoiceSettings) ([]byte, error) {
	ssml := BuildSSML(text, voice)
	c.log.Debug("azure tts: synthesizing %d chars: %s", len(text), ssml)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", c.format)
	req.Header.Set("User-Agent", "Julian/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("azure tts error %d: %s", resp.StatusCode, string(body))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio data: %w", err)
	}

	c.log.Debug("azure tts: got %d bytes of audio", len(audioData))
	return audioData, nil
}

// BuildSSML renders text as SSML for the voice. Prosody is emitted only
// for settings that differ from the voice default.
func BuildSSML(text string, vs domain.VoiceSettings) string {
	locale, name := ResolveVoice(vs)

	var body bytes.Buffer
	xml.EscapeText(&body, []byte(text))

	if attrs := prosodyAttrs(vs); attrs != "" {
		return fmt.Sprintf(
			`<speak version='1.0' xml:lang='%s'><voice xml:lang='%s' name='%s'><prosody%s>%s</prosody></voice></speak>`,
			locale, locale, name, attrs, body.String(),
		)
	}
	return fmt.Sprintf(
		`<speak version='1.0' xml:lang='%s'><voice xml:lang='%s' name='%s'>%s</voice></speak>`,
		locale, locale, name, body.String(),
	)
}

// prosodyAttrs returns the rate/pitch/volume attributes, each with a
// leading space. Rate is a multiplier (1 = normal) rendered as a relative
// percentage, pitch is in semitones and volume gain in dB is converted to
// a relative amplitude percentage.
func prosodyAttrs(vs domain.VoiceSettings) string {
	var b strings.Builder
	if vs.SpeakingRate > 0 && vs.SpeakingRate != 1 {
		fmt.Fprintf(&b, ` rate='%+.2f%%'`, (vs.SpeakingRate-1)*100)
	}
	if vs.Pitch != 0 {
		fmt.Fprintf(&b, ` pitch='%+.1fst'`, vs.Pitch)
	}
	if vs.VolumeGainDB != 0 {
		gain := math.Pow(10, vs.VolumeGainDB/20)
		fmt.Fprintf(&b, ` volume='%+.2f%%'`, (gain-1)*100)
	}
	return b.String()
}

// voiceKey identifies the rendered voice for caching: two settings with
// the same key produce the same audio for the same text.
func voiceKey(vs domain.VoiceSettings) string {
	_, name := ResolveVoice(vs)
	return name + prosodyAttrs(vs)
}
