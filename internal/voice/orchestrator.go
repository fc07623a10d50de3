package voice

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/antoniostano/parley/internal/artifact"
	"github.com/antoniostano/parley/internal/memory"
	"github.com/antoniostano/parley/internal/observability"
)

// Failure attributes a turn failure to one pipeline stage.
type Failure struct {
	Stage  Stage
	Detail string
}

// Result is the outcome of one conversational turn. Exactly one variant
// is populated: the success triple, or Failure.
type Result struct {
	Transcript string
	Response   string
	AudioRef   artifact.Ref

	Failure *Failure
}

func (r Result) Failed() bool { return r.Failure != nil }

func failure(stage Stage, detail string) Result {
	return Result{Failure: &Failure{Stage: stage, Detail: detail}}
}

// Orchestrator drives one turn through transcription, response
// generation and synthesis, short-circuiting on the first failed stage.
type Orchestrator struct {
	transcriber  Transcriber
	responder    Responder
	synthesizer  Synthesizer
	artifacts    artifact.Store
	history      *memory.Log
	metrics      *observability.Metrics
	stageTimeout time.Duration
}

func NewOrchestrator(
	transcriber Transcriber,
	responder Responder,
	synthesizer Synthesizer,
	artifacts artifact.Store,
	history *memory.Log,
	metrics *observability.Metrics,
	stageTimeout time.Duration,
) *Orchestrator {
	if stageTimeout <= 0 {
		stageTimeout = 30 * time.Second
	}
	return &Orchestrator{
		transcriber:  transcriber,
		responder:    responder,
		synthesizer:  synthesizer,
		artifacts:    artifacts,
		history:      history,
		metrics:      metrics,
		stageTimeout: stageTimeout,
	}
}

// RunTurn executes one complete turn for the given audio. An empty
// sessionID runs the turn without conversational memory.
func (o *Orchestrator) RunTurn(ctx context.Context, sessionID string, audioBytes []byte) Result {
	res := o.runTurn(ctx, sessionID, audioBytes)
	if res.Failed() {
		o.metrics.Turns.WithLabelValues("failed").Inc()
		o.metrics.StageFailures.WithLabelValues(string(res.Failure.Stage)).Inc()
	} else {
		o.metrics.Turns.WithLabelValues("completed").Inc()
	}
	return res
}

func (o *Orchestrator) runTurn(ctx context.Context, sessionID string, audioBytes []byte) Result {
	// Keep the raw recording around for the retention window as a
	// debugging trail; the turn does not depend on it after this point.
	if _, err := o.artifacts.Put(ctx, audioBytes, artifact.KindInputRecording); err != nil {
		log.Printf("turn: input artifact store failed: %v", err)
		return failure(StageTranscription, "could not store input recording: "+err.Error())
	}
	o.metrics.ArtifactsStored.WithLabelValues(string(artifact.KindInputRecording)).Inc()
	o.metrics.ArtifactBytes.Observe(float64(len(audioBytes)))

	transcript, err := o.callTranscribe(ctx, audioBytes)
	if err != nil {
		return failure(StageTranscription, stageDetail(err))
	}
	// An empty transcript is treated the same as a transcription error,
	// matching the relay's original behavior for silent input.
	if strings.TrimSpace(transcript) == "" {
		return failure(StageTranscription, "empty transcript")
	}

	response, err := o.callRespond(ctx, transcript, o.history.History(sessionID))
	if err != nil {
		return failure(StageResponse, stageDetail(err))
	}
	if strings.TrimSpace(response) == "" {
		return failure(StageResponse, "empty response")
	}

	// The exchange happened even if synthesis fails below, so record it
	// before the final stage.
	o.history.AppendExchange(sessionID, transcript, response)

	speech, _, err := o.callSynthesize(ctx, response)
	if err != nil {
		return failure(StageSynthesis, stageDetail(err))
	}

	outputRef, err := o.artifacts.Put(ctx, speech, artifact.KindSynthesizedSpeech)
	if err != nil {
		log.Printf("turn: output artifact store failed: %v", err)
		return failure(StageSynthesis, "could not store synthesized audio: "+err.Error())
	}
	o.metrics.ArtifactsStored.WithLabelValues(string(artifact.KindSynthesizedSpeech)).Inc()
	o.metrics.ArtifactBytes.Observe(float64(len(speech)))

	return Result{
		Transcript: transcript,
		Response:   response,
		AudioRef:   outputRef,
	}
}

func (o *Orchestrator) callTranscribe(ctx context.Context, audioBytes []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()
	start := time.Now()
	text, err := o.transcriber.Transcribe(ctx, audioBytes)
	o.metrics.ObserveStage(string(StageTranscription), time.Since(start))
	return text, wrapStageErr(StageTranscription, ctx, err)
}

func (o *Orchestrator) callRespond(ctx context.Context, userText string, prior []memory.Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()
	start := time.Now()
	text, err := o.responder.Respond(ctx, userText, prior)
	o.metrics.ObserveStage(string(StageResponse), time.Since(start))
	return text, wrapStageErr(StageResponse, ctx, err)
}

func (o *Orchestrator) callSynthesize(ctx context.Context, text string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()
	start := time.Now()
	data, contentType, err := o.synthesizer.Synthesize(ctx, text)
	o.metrics.ObserveStage(string(StageSynthesis), time.Since(start))
	if err == nil && len(data) == 0 {
		err = stageErrorf(StageSynthesis, nil, "synthesizer returned no audio")
	}
	return data, contentType, wrapStageErr(StageSynthesis, ctx, err)
}

// wrapStageErr maps a stage deadline expiry onto that stage's failure
// kind and ensures every provider error carries stage attribution.
func wrapStageErr(stage Stage, ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return stageErrorf(stage, err, "stage timed out")
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return stageErrorf(stage, err, "provider call failed")
}

func stageDetail(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		if se.Err != nil {
			return se.Detail + ": " + se.Err.Error()
		}
		return se.Detail
	}
	return err.Error()
}
