package app

import (
	"strings"
	"testing"

	"github.com/antoniostano/parley/internal/config"
)

func TestResolveVoiceProvidersAuto(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"no keys falls back to mock", config.Config{VoiceProvider: "auto"}, "mock"},
		{"openai key selects openai", config.Config{VoiceProvider: "auto", OpenAIAPIKey: "sk-test"}, "openai"},
		{"empty mode behaves like auto", config.Config{}, "mock"},
		{"explicit mock", config.Config{VoiceProvider: "mock", OpenAIAPIKey: "sk-test"}, "mock"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setup, err := resolveVoiceProviders(tc.cfg)
			if err != nil {
				t.Fatal(err)
			}
			if setup.resolvedProvider != tc.want {
				t.Fatalf("provider = %s, want %s", setup.resolvedProvider, tc.want)
			}
			if setup.transcriber == nil || setup.responder == nil || setup.synthesizer == nil {
				t.Fatal("all three stages must be populated")
			}
		})
	}
}

func TestResolveVoiceProvidersOpenAIRequiresKey(t *testing.T) {
	_, err := resolveVoiceProviders(config.Config{VoiceProvider: "openai"})
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestResolveVoiceProvidersElevenLabsOverride(t *testing.T) {
	setup, err := resolveVoiceProviders(config.Config{
		VoiceProvider:    "auto",
		OpenAIAPIKey:     "sk-test",
		ElevenLabsAPIKey: "el-test",
	})
	if err != nil {
		t.Fatal(err)
	}
	if setup.resolvedProvider != "openai+elevenlabs-tts" {
		t.Fatalf("provider = %s, want openai+elevenlabs-tts", setup.resolvedProvider)
	}
}

func TestResolveVoiceProvidersElevenLabsRequiresKey(t *testing.T) {
	_, err := resolveVoiceProviders(config.Config{VoiceProvider: "elevenlabs-tts"})
	if err == nil || !strings.Contains(err.Error(), "ELEVENLABS_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestResolveVoiceProvidersRejectsUnknownMode(t *testing.T) {
	_, err := resolveVoiceProviders(config.Config{VoiceProvider: "carrier-pigeon"})
	if err == nil || !strings.Contains(err.Error(), "VOICE_PROVIDER") {
		t.Fatalf("expected invalid mode error, got %v", err)
	}
}
