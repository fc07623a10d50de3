package voice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/antoniostano/parley/internal/memory"
	"github.com/antoniostano/parley/internal/reliability"
)

// OpenAIConfig configures the OpenAI-backed stage adapters. BaseURL may
// point at an Azure-style compatible gateway.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	STTModel     string
	ChatModel    string
	Temperature  float64
	SystemPrompt string
	TTSModel     string
	TTSVoice     string
}

// OpenAIProvider implements all three stage adapters against the OpenAI
// API: Whisper transcription, chat completion, speech synthesis.
type OpenAIProvider struct {
	client *openai.Client
	cfg    OpenAIConfig
}

const providerRetryBase = 300 * time.Millisecond

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if strings.TrimSpace(cfg.STTModel) == "" {
		cfg.STTModel = string(openai.Whisper1)
	}
	if strings.TrimSpace(cfg.ChatModel) == "" {
		cfg.ChatModel = "gpt-4.1-nano"
	}
	if strings.TrimSpace(cfg.TTSModel) == "" {
		cfg.TTSModel = string(openai.TTSModel1)
	}
	if strings.TrimSpace(cfg.TTSVoice) == "" {
		cfg.TTSVoice = string(openai.VoiceAlloy)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}
}

func (p *OpenAIProvider) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var resp openai.AudioResponse
	err := p.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = p.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:    p.cfg.STTModel,
			Reader:   bytes.NewReader(audio),
			FilePath: "input.wav",
		})
		return callErr
	})
	if err != nil {
		return "", stageErrorf(StageTranscription, err, "whisper transcription failed")
	}
	return strings.TrimSpace(resp.Text), nil
}

func (p *OpenAIProvider) Respond(ctx context.Context, userText string, prior []memory.Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(prior)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: p.cfg.SystemPrompt,
	})
	for _, turn := range prior {
		role := openai.ChatMessageRoleUser
		if turn.Role == memory.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	})

	var resp openai.ChatCompletionResponse
	err := p.withRetry(ctx, func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       p.cfg.ChatModel,
			Messages:    messages,
			Temperature: float32(p.cfg.Temperature),
		})
		return callErr
	})
	if err != nil {
		return "", stageErrorf(StageResponse, err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", stageErrorf(StageResponse, nil, "chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	var audio []byte
	err := p.withRetry(ctx, func() error {
		raw, callErr := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
			Model:          openai.SpeechModel(p.cfg.TTSModel),
			Input:          text,
			Voice:          openai.SpeechVoice(p.cfg.TTSVoice),
			ResponseFormat: openai.SpeechResponseFormatWav,
		})
		if callErr != nil {
			return callErr
		}
		defer raw.Close()
		audio, callErr = io.ReadAll(raw)
		return callErr
	})
	if err != nil {
		return nil, "", stageErrorf(StageSynthesis, err, "speech synthesis failed")
	}
	if len(audio) == 0 {
		return nil, "", stageErrorf(StageSynthesis, nil, "speech synthesis returned no audio")
	}
	return audio, "audio/wav", nil
}

// withRetry runs fn and retries once when the upstream status is
// classified retryable.
func (p *OpenAIProvider) withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !isRetryableAPIError(err) {
		return err
	}
	select {
	case <-ctx.Done():
		return err
	case <-time.After(reliability.ExponentialBackoff(0, providerRetryBase, 2*time.Second)):
	}
	return fn()
}

func isRetryableAPIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return reliability.IsRetryableHTTPStatus(apiErr.HTTPStatusCode)
	}
	return false
}
