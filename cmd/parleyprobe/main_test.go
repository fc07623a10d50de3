package main

import (
	"strings"
	"testing"
)

func TestSummarizeResultSuccess(t *testing.T) {
	line, ok := summarizeResult([]byte(`{"transcript":"hi","response":"hello","audio_file":"http://x/download/abc"}`))
	if !ok {
		t.Fatal("expected success")
	}
	if !strings.Contains(line, `transcript="hi"`) || !strings.Contains(line, "download/abc") {
		t.Fatalf("unexpected summary: %s", line)
	}
}

func TestSummarizeResultError(t *testing.T) {
	line, ok := summarizeResult([]byte(`{"error":"LLM failed","details":"empty response"}`))
	if ok {
		t.Fatal("expected failure")
	}
	if !strings.Contains(line, "LLM failed") || !strings.Contains(line, "empty response") {
		t.Fatalf("unexpected summary: %s", line)
	}
}

func TestSummarizeResultGarbage(t *testing.T) {
	if _, ok := summarizeResult([]byte("not json")); ok {
		t.Fatal("garbage should not read as success")
	}
}

func TestBuildMultipart(t *testing.T) {
	body, contentType, err := buildMultipart([]byte("RIFFdata"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		t.Fatalf("content type = %s", contentType)
	}
	if !strings.Contains(body.String(), `filename="probe.wav"`) {
		t.Fatal("missing form file part")
	}
}

func TestLoadAudioDefaultClip(t *testing.T) {
	data, err := loadAudio("")
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "RIFF" {
		t.Fatalf("default clip is not WAV, header %q", data[:4])
	}
}
