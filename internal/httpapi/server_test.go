package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/antoniostano/parley/internal/artifact"
	"github.com/antoniostano/parley/internal/config"
	"github.com/antoniostano/parley/internal/memory"
	"github.com/antoniostano/parley/internal/observability"
	"github.com/antoniostano/parley/internal/voice"
)

var testMetricsSeq atomic.Int64

type testRelay struct {
	server   *httptest.Server
	provider *voice.MockProvider
	store    artifact.Store
	history  *memory.Log
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()

	provider := voice.NewMockProvider()
	store := artifact.NewMemStore(time.Minute)
	history := memory.NewLog(6)
	metrics := observability.NewMetrics(fmt.Sprintf("test_httpapi_%d", testMetricsSeq.Add(1)))
	orch := voice.NewOrchestrator(provider, provider, provider, store, history, metrics, 5*time.Second)

	cfg := config.Config{
		PublicBaseURL:  "http://relay.test",
		AllowAnyOrigin: true,
	}
	srv := New(cfg, orch, provider, provider, provider, store, metrics)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testRelay{server: ts, provider: provider, store: store, history: history}
}

func multipartAudio(t *testing.T, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "input.wav")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(payload); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func TestConverseSuccessRoundTrip(t *testing.T) {
	relay := newTestRelay(t)
	relay.provider.TranscribeFunc = func(context.Context, []byte) (string, error) { return "hello", nil }
	relay.provider.RespondFunc = func(context.Context, string, []memory.Turn) (string, error) { return "hi there", nil }
	relay.provider.SynthesizeFunc = func(context.Context, string) ([]byte, string, error) {
		return []byte("WAV"), "audio/wav", nil
	}

	body, contentType := multipartAudio(t, []byte("pcm-bytes"))
	res, err := http.Post(relay.server.URL+"/converse", contentType, body)
	if err != nil {
		t.Fatalf("POST /converse error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["transcript"] != "hello" || payload["response"] != "hi there" {
		t.Fatalf("payload = %v, want transcript/response pair", payload)
	}
	audioURL := payload["audio_file"]
	if !strings.HasPrefix(audioURL, "http://relay.test/download/") {
		t.Fatalf("audio_file = %q, want download URL under public base", audioURL)
	}

	// The referenced artifact must be retrievable with the same bytes.
	id := strings.TrimPrefix(audioURL, "http://relay.test/download/")
	dlRes, err := http.Get(relay.server.URL + "/download/" + id)
	if err != nil {
		t.Fatalf("GET /download error = %v", err)
	}
	defer dlRes.Body.Close()
	if dlRes.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d, want %d", dlRes.StatusCode, http.StatusOK)
	}
	audio, _ := io.ReadAll(dlRes.Body)
	if !bytes.Equal(audio, []byte("WAV")) {
		t.Fatalf("downloaded audio = %q, want %q", audio, "WAV")
	}
	if got := dlRes.Header.Get("Content-Type"); got != "audio/wav" {
		t.Fatalf("download content type = %q, want audio/wav", got)
	}
}

func TestConverseStageFailureKeeps200WithAttribution(t *testing.T) {
	relay := newTestRelay(t)
	relay.provider.TranscribeFunc = func(context.Context, []byte) (string, error) { return "", nil }

	body, contentType := multipartAudio(t, []byte("silence"))
	res, err := http.Post(relay.server.URL+"/converse", contentType, body)
	if err != nil {
		t.Fatalf("POST /converse error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d for stage failure", res.StatusCode, http.StatusOK)
	}

	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["error"] != "Speech-to-text failed" {
		t.Fatalf("error = %q, want %q", payload["error"], "Speech-to-text failed")
	}
	if _, ok := payload["details"]; !ok {
		t.Fatalf("failure payload missing details: %v", payload)
	}
	if relay.provider.RespondCalls() != 0 {
		t.Fatalf("responder calls = %d, want 0", relay.provider.RespondCalls())
	}
}

func TestConverseEmptyBodyIsFault(t *testing.T) {
	relay := newTestRelay(t)

	res, err := http.Post(relay.server.URL+"/converse", "application/octet-stream", bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("POST /converse error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusInternalServerError)
	}
	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["error"] == "" {
		t.Fatalf("fault payload missing error: %v", payload)
	}
}

func TestConverseThreadsSessionID(t *testing.T) {
	relay := newTestRelay(t)
	relay.provider.TranscribeFunc = func(context.Context, []byte) (string, error) { return "hello", nil }

	body, contentType := multipartAudio(t, []byte("pcm"))
	res, err := http.Post(relay.server.URL+"/converse?session_id=abc", contentType, body)
	if err != nil {
		t.Fatalf("POST /converse error = %v", err)
	}
	res.Body.Close()

	if got := len(relay.history.History("abc")); got != 2 {
		t.Fatalf("session abc history length = %d, want 2", got)
	}
}

func TestDownloadMissYields404(t *testing.T) {
	relay := newTestRelay(t)

	res, err := http.Get(relay.server.URL + "/download/nosuchref")
	if err != nil {
		t.Fatalf("GET /download error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["error"] != "File not found." {
		t.Fatalf("error = %q, want %q", payload["error"], "File not found.")
	}
}

func TestSTTEndpoint(t *testing.T) {
	relay := newTestRelay(t)
	relay.provider.TranscribeFunc = func(context.Context, []byte) (string, error) { return "typed out", nil }

	body, contentType := multipartAudio(t, []byte("pcm"))
	res, err := http.Post(relay.server.URL+"/stt", contentType, body)
	if err != nil {
		t.Fatalf("POST /stt error = %v", err)
	}
	defer res.Body.Close()
	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["transcript"] != "typed out" {
		t.Fatalf("transcript = %q, want %q", payload["transcript"], "typed out")
	}
}

func TestChatEndpoint(t *testing.T) {
	relay := newTestRelay(t)
	relay.provider.RespondFunc = func(_ context.Context, text string, _ []memory.Turn) (string, error) {
		return "echo " + text, nil
	}

	res, err := http.Post(relay.server.URL+"/chat", "application/json",
		strings.NewReader(`{"text":"hi"}`))
	if err != nil {
		t.Fatalf("POST /chat error = %v", err)
	}
	defer res.Body.Close()
	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["response"] != "echo hi" {
		t.Fatalf("response = %q, want %q", payload["response"], "echo hi")
	}

	empty, err := http.Post(relay.server.URL+"/chat", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST /chat empty error = %v", err)
	}
	defer empty.Body.Close()
	if empty.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty text status = %d, want %d", empty.StatusCode, http.StatusBadRequest)
	}
}

func TestTTSEndpointReturnsAudio(t *testing.T) {
	relay := newTestRelay(t)
	relay.provider.SynthesizeFunc = func(context.Context, string) ([]byte, string, error) {
		return []byte("WAVDATA"), "audio/wav", nil
	}

	res, err := http.Post(relay.server.URL+"/tts", "application/json",
		strings.NewReader(`{"text":"say this"}`))
	if err != nil {
		t.Fatalf("POST /tts error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	data, _ := io.ReadAll(res.Body)
	if !bytes.Equal(data, []byte("WAVDATA")) {
		t.Fatalf("audio = %q, want %q", data, "WAVDATA")
	}
}
