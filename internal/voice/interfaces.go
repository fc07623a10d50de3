package voice

import (
	"context"
	"fmt"

	"github.com/antoniostano/parley/internal/memory"
)

// Stage identifies one pipeline stage bound to one external collaborator.
type Stage string

const (
	StageTranscription Stage = "transcription"
	StageResponse      Stage = "response-generation"
	StageSynthesis     Stage = "synthesis"
)

// StageError is a failure attributed to a pipeline stage. Providers
// return it so the orchestrator never has to sniff error strings.
type StageError struct {
	Stage  Stage
	Detail string
	Err    error

	retryable bool
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s stage: %s: %v", e.Stage, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s stage: %s", e.Stage, e.Detail)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErrorf(stage Stage, err error, format string, args ...any) *StageError {
	return &StageError{Stage: stage, Detail: fmt.Sprintf(format, args...), Err: err}
}

// Transcriber converts recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Responder generates the assistant reply for a user utterance, given
// the bounded prior conversation. The system instruction and sampling
// temperature are fixed at construction, not caller-supplied.
type Responder interface {
	Respond(ctx context.Context, userText string, prior []memory.Turn) (string, error)
}

// Synthesizer renders reply text as audio bytes plus a MIME type.
// Failure is signaled explicitly, never as a silent empty blob.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (audio []byte, contentType string, err error)
}
