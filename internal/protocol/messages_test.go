package protocol

import (
	"encoding/json"
	"testing"

	"github.com/antoniostano/parley/internal/voice"
)

func TestEncodeResultSuccess(t *testing.T) {
	res := voice.Result{
		Transcript: "hello",
		Response:   "hi there",
		AudioRef:   "abc123",
	}

	encoded := EncodeResult(res, "http://127.0.0.1:8080")
	success, ok := encoded.(TurnSuccess)
	if !ok {
		t.Fatalf("EncodeResult() = %T, want TurnSuccess", encoded)
	}
	if success.AudioFile != "http://127.0.0.1:8080/download/abc123" {
		t.Fatalf("AudioFile = %q, want download URL", success.AudioFile)
	}

	raw, err := json.Marshal(success)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"transcript", "response", "audio_file"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("success JSON missing %q: %s", key, raw)
		}
	}
}

func TestEncodeResultFailureNamesStage(t *testing.T) {
	cases := []struct {
		stage voice.Stage
		want  string
	}{
		{voice.StageTranscription, "Speech-to-text failed"},
		{voice.StageResponse, "LLM failed"},
		{voice.StageSynthesis, "Text-to-speech failed"},
	}
	for _, tc := range cases {
		res := voice.Result{Failure: &voice.Failure{Stage: tc.stage, Detail: "boom"}}
		encoded := EncodeResult(res, "http://x")
		failure, ok := encoded.(TurnError)
		if !ok {
			t.Fatalf("EncodeResult(%s) = %T, want TurnError", tc.stage, encoded)
		}
		if failure.Error != tc.want {
			t.Fatalf("Error = %q, want %q", failure.Error, tc.want)
		}
		if failure.Details != "boom" {
			t.Fatalf("Details = %q, want %q", failure.Details, "boom")
		}
	}
}
