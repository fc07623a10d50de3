package app

import (
	"fmt"
	"log"
	"strings"

	"github.com/antoniostano/parley/internal/config"
	"github.com/antoniostano/parley/internal/voice"
)

type voiceSetup struct {
	transcriber      voice.Transcriber
	responder        voice.Responder
	synthesizer      voice.Synthesizer
	resolvedProvider string
}

// resolveVoiceProviders picks the stage adapter backends from config.
// "auto" prefers OpenAI when a key is present and falls back to the
// deterministic mock provider for local development.
func resolveVoiceProviders(cfg config.Config) (voiceSetup, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.VoiceProvider))
	if mode == "" {
		mode = "auto"
	}

	openAI := func() voiceSetup {
		p := voice.NewOpenAIProvider(voice.OpenAIConfig{
			APIKey:       cfg.OpenAIAPIKey,
			BaseURL:      cfg.OpenAIBaseURL,
			STTModel:     cfg.STTModel,
			ChatModel:    cfg.LLMModel,
			Temperature:  cfg.LLMTemperature,
			SystemPrompt: cfg.SystemPrompt,
			TTSModel:     cfg.TTSModel,
			TTSVoice:     cfg.TTSVoice,
		})
		return voiceSetup{
			transcriber:      p,
			responder:        p,
			synthesizer:      p,
			resolvedProvider: "openai",
		}
	}
	mock := func() voiceSetup {
		p := voice.NewMockProvider()
		return voiceSetup{
			transcriber:      p,
			responder:        p,
			synthesizer:      p,
			resolvedProvider: "mock",
		}
	}

	var setup voiceSetup
	switch mode {
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return voiceSetup{}, fmt.Errorf("VOICE_PROVIDER=openai but OPENAI_API_KEY is not set")
		}
		setup = openAI()
	case "mock":
		setup = mock()
	case "auto", "elevenlabs-tts":
		if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
			setup = openAI()
		} else {
			setup = mock()
			log.Printf("voice provider: mock (no OpenAI key configured)")
		}
	default:
		return voiceSetup{}, fmt.Errorf("invalid VOICE_PROVIDER: %q (expected auto|openai|elevenlabs-tts|mock)", cfg.VoiceProvider)
	}

	wantElevenLabs := mode == "elevenlabs-tts" || strings.TrimSpace(cfg.ElevenLabsAPIKey) != ""
	if wantElevenLabs {
		if strings.TrimSpace(cfg.ElevenLabsAPIKey) == "" {
			return voiceSetup{}, fmt.Errorf("VOICE_PROVIDER=elevenlabs-tts but ELEVENLABS_API_KEY is not set")
		}
		setup.synthesizer = voice.NewElevenLabsSynthesizer(voice.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			BaseURL: cfg.ElevenLabsBaseURL,
			VoiceID: cfg.ElevenLabsTTSVoice,
			ModelID: cfg.ElevenLabsTTSModel,
		})
		setup.resolvedProvider = setup.resolvedProvider + "+elevenlabs-tts"
	}

	log.Printf("voice provider: %s", setup.resolvedProvider)
	return setup, nil
}
