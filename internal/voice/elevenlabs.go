package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antoniostano/parley/internal/reliability"
)

type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	VoiceID string
	ModelID string
}

// ElevenLabsSynthesizer is an alternative Synthesizer backed by the
// ElevenLabs HTTP text-to-speech endpoint. It can be paired with the
// OpenAI transcriber/responder when a richer voice is wanted.
type ElevenLabsSynthesizer struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) *ElevenLabsSynthesizer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	return &ElevenLabsSynthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if strings.TrimSpace(s.cfg.VoiceID) == "" {
		return nil, "", stageErrorf(StageSynthesis, nil, "voice_id is required")
	}

	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(s.cfg.VoiceID)
	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": s.cfg.ModelID,
	})
	if err != nil {
		return nil, "", stageErrorf(StageSynthesis, err, "encode synthesis request")
	}

	audio, contentType, err := s.post(ctx, endpoint, body)
	if err == nil {
		return audio, contentType, nil
	}
	if se, ok := err.(*StageError); !ok || !se.retryable {
		return nil, "", err
	}
	select {
	case <-ctx.Done():
		return nil, "", err
	case <-time.After(reliability.ExponentialBackoff(0, providerRetryBase, 2*time.Second)):
	}
	return s.post(ctx, endpoint, body)
}

func (s *ElevenLabsSynthesizer) post(ctx context.Context, endpoint string, body []byte) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", stageErrorf(StageSynthesis, err, "build synthesis request")
	}
	req.Header.Set("xi-api-key", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", stageErrorf(StageSynthesis, err, "synthesis request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se := stageErrorf(StageSynthesis, nil, "synthesis status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		se.retryable = reliability.IsRetryableHTTPStatus(resp.StatusCode)
		return nil, "", se
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", stageErrorf(StageSynthesis, err, "read synthesis response")
	}
	if len(audio) == 0 {
		return nil, "", stageErrorf(StageSynthesis, nil, "synthesis returned no audio")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return audio, contentType, nil
}
