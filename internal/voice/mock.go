package voice

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/antoniostano/parley/internal/audio"
	"github.com/antoniostano/parley/internal/memory"
)

// MockProvider is a deterministic local provider used when no API key
// is configured, and as the scriptable fake in tests. Each stage can be
// overridden per instance; call counts are tracked for assertions.
type MockProvider struct {
	mu sync.Mutex

	TranscribeFunc func(ctx context.Context, audio []byte) (string, error)
	RespondFunc    func(ctx context.Context, userText string, prior []memory.Turn) (string, error)
	SynthesizeFunc func(ctx context.Context, text string) ([]byte, string, error)

	transcribeCalls atomic.Int64
	respondCalls    atomic.Int64
	synthesizeCalls atomic.Int64
}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Transcribe(ctx context.Context, data []byte) (string, error) {
	p.transcribeCalls.Add(1)
	p.mu.Lock()
	fn := p.TranscribeFunc
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx, data)
	}
	if len(data) == 0 {
		return "", nil
	}
	return "simulated voice input", nil
}

func (p *MockProvider) Respond(ctx context.Context, userText string, prior []memory.Turn) (string, error) {
	p.respondCalls.Add(1)
	p.mu.Lock()
	fn := p.RespondFunc
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx, userText, prior)
	}
	return "You said: " + userText, nil
}

func (p *MockProvider) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	p.synthesizeCalls.Add(1)
	p.mu.Lock()
	fn := p.SynthesizeFunc
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx, text)
	}
	// Silent PCM sized to the reply keeps downstream players happy.
	pcm := make([]byte, 2*len(text)*16)
	wav, err := audio.EncodeWAVPCM16LE(pcm, 16000)
	if err != nil {
		return nil, "", stageErrorf(StageSynthesis, err, "encode mock wav")
	}
	return wav, "audio/wav", nil
}

func (p *MockProvider) TranscribeCalls() int64 { return p.transcribeCalls.Load() }
func (p *MockProvider) RespondCalls() int64    { return p.respondCalls.Load() }
func (p *MockProvider) SynthesizeCalls() int64 { return p.synthesizeCalls.Load() }
