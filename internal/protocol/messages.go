package protocol

import (
	"github.com/antoniostano/parley/internal/voice"
)

// TurnSuccess is the JSON body returned for a completed turn.
type TurnSuccess struct {
	Transcript string `json:"transcript"`
	Response   string `json:"response"`
	AudioFile  string `json:"audio_file"`
}

// TurnError is the JSON body for a turn that failed at a known stage.
type TurnError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Fault is the JSON body for unexpected faults outside the three
// pipeline stages. It carries no stage attribution.
type Fault struct {
	Error string `json:"error"`
}

// Stage failure wording kept compatible with the relay's original API.
const (
	errTranscription = "Speech-to-text failed"
	errResponse      = "LLM failed"
	errSynthesis     = "Text-to-speech failed"
)

// StageErrorMessage maps a pipeline stage to its user-facing error string.
func StageErrorMessage(stage voice.Stage) string {
	switch stage {
	case voice.StageTranscription:
		return errTranscription
	case voice.StageResponse:
		return errResponse
	case voice.StageSynthesis:
		return errSynthesis
	default:
		return "Turn failed"
	}
}

// EncodeResult converts an orchestrator result into the wire variant for
// either channel adapter. baseURL prefixes the audio retrieval path.
func EncodeResult(res voice.Result, baseURL string) any {
	if res.Failed() {
		return TurnError{
			Error:   StageErrorMessage(res.Failure.Stage),
			Details: res.Failure.Detail,
		}
	}
	return TurnSuccess{
		Transcript: res.Transcript,
		Response:   res.Response,
		AudioFile:  baseURL + "/download/" + string(res.AudioRef),
	}
}
