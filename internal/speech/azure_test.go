package speech

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"
)

func TestResolveVoice(t *testing.T) {
	tests := []struct {
		name       string
		vs         domain.VoiceSettings
		wantLocale string
		wantVoice  string
	}{
		{"defaults", domain.VoiceSettings{}, "en-US", "en-US-AvaNeural"},
		{"bare language male", domain.VoiceSettings{LanguageCode: "fr", Gender: "MALE"}, "fr-FR", "fr-FR-HenriNeural"},
		{"underscore lower", domain.VoiceSettings{LanguageCode: "en_gb", Gender: "female"}, "en-GB", "en-GB-SoniaNeural"},
		{"mixed case", domain.VoiceSettings{LanguageCode: "EN-us", Gender: "male"}, "en-US", "en-US-AndrewNeural"},
		{"unknown locale", domain.VoiceSettings{LanguageCode: "xx-YY"}, "en-US", "en-US-AvaNeural"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locale, voice := ResolveVoice(tt.vs)
			if locale != tt.wantLocale || voice != tt.wantVoice {
				t.Fatalf("ResolveVoice = (%q, %q), want (%q, %q)", locale, voice, tt.wantLocale, tt.wantVoice)
			}
		})
	}
}

func TestBuildSSML(t *testing.T) {
	t.Run("default voice has no prosody", func(t *testing.T) {
		got := BuildSSML("Hi & bye", domain.VoiceSettings{})
		want := `<speak version='1.0' xml:lang='en-US'><voice xml:lang='en-US' name='en-US-AvaNeural'>Hi &amp; bye</voice></speak>`
		if got != want {
			t.Fatalf("BuildSSML =\n%s\nwant\n%s", got, want)
		}
	})

	t.Run("rate 1 is omitted", func(t *testing.T) {
		got := BuildSSML("x", domain.VoiceSettings{SpeakingRate: 1})
		if strings.Contains(got, "prosody") {
			t.Fatalf("unexpected prosody in %s", got)
		}
	})

	t.Run("prosody from profile", func(t *testing.T) {
		got := BuildSSML("salut", domain.VoiceSettings{
			LanguageCode: "fr-FR",
			Gender:       "MALE",
			SpeakingRate: 1.5,
			Pitch:        -2,
			VolumeGainDB: 6,
		})
		for _, want := range []string{
			`xml:lang='fr-FR'`,
			`name='fr-FR-HenriNeural'`,
			`rate='+50.00%'`,
			`pitch='-2.0st'`,
			`volume='+99.53%'`,
			`>salut</prosody>`,
		} {
			if !strings.Contains(got, want) {
				t.Errorf("SSML missing %q:\n%s", want, got)
			}
		}
	})

	t.Run("slower and quieter", func(t *testing.T) {
		got := BuildSSML("x", domain.VoiceSettings{SpeakingRate: 0.8, VolumeGainDB: -6})
		if !strings.Contains(got, `rate='-20.00%'`) || !strings.Contains(got, `volume='-49.88%'`) {
			t.Fatalf("unexpected prosody: %s", got)
		}
	})
}

func TestVoiceKeyDistinguishesProsody(t *testing.T) {
	a := voiceKey(domain.VoiceSettings{})
	b := voiceKey(domain.VoiceSettings{SpeakingRate: 1.5})
	if a == b {
		t.Fatalf("voiceKey should differ, both %q", a)
	}
	if a != voiceKey(domain.VoiceSettings{LanguageCode: "en"}) {
		t.Fatal("en and default should render the same voice")
	}
}

func TestAzureSynthesize(t *testing.T) {
	var gotBody, gotKey, gotFormat, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		gotFormat = r.Header.Get("X-Microsoft-OutputFormat")
		gotType = r.Header.Get("Content-Type")
		w.Write([]byte("RIFFfake"))
	}))
	defer srv.Close()

	c := NewAzureClient("secret", "westeurope", logger.New(logger.LevelOff, nil), WithEndpoint(srv.URL))
	audio, err := c.Synthesize(context.Background(), "hello", domain.VoiceSettings{Gender: "MALE"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "RIFFfake" {
		t.Fatalf("audio = %q", audio)
	}
	if gotKey != "secret" {
		t.Errorf("subscription key = %q", gotKey)
	}
	if gotFormat != DefaultAudioFormat {
		t.Errorf("output format = %q", gotFormat)
	}
	if gotType != "application/ssml+xml" {
		t.Errorf("content type = %q", gotType)
	}
	if !strings.Contains(gotBody, "en-US-AndrewNeural") {
		t.Errorf("body missing male voice: %s", gotBody)
	}
}

func TestAzureSynthesizeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewAzureClient("wrong", "westeurope", logger.New(logger.LevelOff, nil), WithEndpoint(srv.URL))
	_, err := c.Synthesize(context.Background(), "hello", domain.VoiceSettings{})
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("error should carry status: %v", err)
	}
}
