// Command parleyprobe sends one or more audio turns at a running relay
// and reports what came back. It talks either to the single-shot HTTP
// endpoint or to the duplex websocket.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/parley/internal/audio"
)

type options struct {
	baseURL   string
	inputPath string
	sessionID string
	turns     int
	duplex    bool
	timeout   time.Duration
}

func main() {
	opts := parseFlags()

	payload, err := loadAudio(opts.inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audio input error: %v\n", err)
		os.Exit(1)
	}

	if opts.duplex {
		err = probeDuplex(opts, payload)
	} else {
		err = probeHTTP(opts, payload)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "probe failed: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.baseURL, "base-url", "http://127.0.0.1:8080", "relay base URL")
	flag.StringVar(&opts.inputPath, "in", "", "WAV file to send (default: 1s of silence)")
	flag.StringVar(&opts.sessionID, "session", "", "session id to thread through turns")
	flag.IntVar(&opts.turns, "turns", 1, "number of turns to send")
	flag.BoolVar(&opts.duplex, "ws", false, "use the duplex websocket instead of POST /converse")
	flag.DurationVar(&opts.timeout, "timeout", 60*time.Second, "per turn timeout")
	flag.Parse()
	if opts.turns < 1 {
		opts.turns = 1
	}
	return opts
}

// loadAudio reads the input WAV, or fabricates one second of silence so
// the probe works against the mock provider with no fixture on disk.
func loadAudio(path string) ([]byte, error) {
	if strings.TrimSpace(path) != "" {
		return os.ReadFile(path)
	}
	silence := make([]byte, 16000*2)
	return audio.EncodeWAVPCM16LE(silence, 16000)
}

func probeHTTP(opts options, payload []byte) error {
	client := &http.Client{Timeout: opts.timeout}
	target := strings.TrimRight(opts.baseURL, "/") + "/converse"
	if opts.sessionID != "" {
		target += "?session_id=" + opts.sessionID
	}

	for i := 0; i < opts.turns; i++ {
		body, contentType, err := buildMultipart(payload)
		if err != nil {
			return err
		}
		start := time.Now()
		res, err := client.Post(target, contentType, body)
		if err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
		data, err := io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			return fmt.Errorf("turn %d read: %w", i+1, err)
		}
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("turn %d: status %d: %s", i+1, res.StatusCode, data)
		}
		report(i+1, time.Since(start), data)
	}
	return nil
}

func probeDuplex(opts options, payload []byte) error {
	wsURL := "ws" + strings.TrimPrefix(strings.TrimRight(opts.baseURL, "/"), "http") + "/ws/converse"
	if opts.sessionID != "" {
		wsURL += "?session_id=" + opts.sessionID
	}
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	if res != nil {
		res.Body.Close()
	}
	defer conn.Close()

	for i := 0; i < opts.turns; i++ {
		start := time.Now()
		if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
			return fmt.Errorf("turn %d write: %w", i+1, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(opts.timeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("turn %d read: %w", i+1, err)
		}
		report(i+1, time.Since(start), data)
	}
	return nil
}

func buildMultipart(payload []byte) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "probe.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(payload); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &body, mw.FormDataContentType(), nil
}

func report(turn int, elapsed time.Duration, data []byte) {
	summary, ok := summarizeResult(data)
	status := "ok"
	if !ok {
		status = "failed"
	}
	fmt.Printf("turn %d [%s] %v %s\n", turn, status, elapsed.Round(time.Millisecond), summary)
}

// summarizeResult renders one relay result frame as a single line and
// reports whether the turn succeeded.
func summarizeResult(data []byte) (string, bool) {
	var payload map[string]string
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Sprintf("unparseable result: %s", data), false
	}
	if errMsg, ok := payload["error"]; ok && errMsg != "" {
		if details := payload["details"]; details != "" {
			return fmt.Sprintf("%s (%s)", errMsg, details), false
		}
		return errMsg, false
	}
	return fmt.Sprintf("transcript=%q response=%q audio=%s",
		payload["transcript"], payload["response"], payload["audio_file"]), true
}
