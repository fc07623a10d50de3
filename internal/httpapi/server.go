package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/parley/internal/artifact"
	"github.com/antoniostano/parley/internal/config"
	"github.com/antoniostano/parley/internal/observability"
	"github.com/antoniostano/parley/internal/protocol"
	"github.com/antoniostano/parley/internal/voice"
)

// Orchestrator runs one conversational turn per audio payload.
type Orchestrator interface {
	RunTurn(ctx context.Context, sessionID string, audio []byte) voice.Result
}

// maxAudioBytes bounds one inbound audio payload (HTTP body or duplex frame).
const maxAudioBytes = 25 << 20

type Server struct {
	cfg          config.Config
	orchestrator Orchestrator
	transcriber  voice.Transcriber
	responder    voice.Responder
	synthesizer  voice.Synthesizer
	artifacts    artifact.Store
	metrics      *observability.Metrics
	upgrader     websocket.Upgrader
}

func New(
	cfg config.Config,
	orchestrator Orchestrator,
	transcriber voice.Transcriber,
	responder voice.Responder,
	synthesizer voice.Synthesizer,
	artifacts artifact.Store,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		transcriber:  transcriber,
		responder:    responder,
		synthesizer:  synthesizer,
		artifacts:    artifacts,
		metrics:      metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so foreign pages cannot drive a mic session if
				// the relay is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"message": "Voice relay backend is running"})
	})
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/converse", s.handleConverse)
	r.Get("/download/{id}", s.handleDownload)
	r.Get("/ws/converse", s.handleConverseWS)

	r.Post("/stt", s.handleSTT)
	r.Post("/chat", s.handleChat)
	r.Post("/tts", s.handleTTS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleConverse is the single-shot channel adapter: one audio upload in,
// one turn result out. Stage failures keep HTTP 200 with an attributed
// error body; only faults outside the pipeline produce HTTP 500.
func (s *Server) handleConverse(w http.ResponseWriter, r *http.Request) {
	defer s.recoverFault(w)

	audio, err := readAudio(r)
	if err != nil {
		s.metrics.Turns.WithLabelValues("fault").Inc()
		respondJSON(w, http.StatusInternalServerError, protocol.Fault{
			Error: fmt.Sprintf("Unexpected server error: %v", err),
		})
		return
	}
	sessionID := strings.TrimSpace(r.FormValue("session_id"))
	if sessionID == "" {
		sessionID = strings.TrimSpace(r.URL.Query().Get("session_id"))
	}

	res := s.orchestrator.RunTurn(r.Context(), sessionID, audio)
	respondJSON(w, http.StatusOK, protocol.EncodeResult(res, s.cfg.PublicBaseURL))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	data, kind, err := s.artifacts.Get(r.Context(), artifact.Ref(id))
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, protocol.Fault{Error: "File not found."})
			return
		}
		respondJSON(w, http.StatusInternalServerError, protocol.Fault{Error: "artifact read failed"})
		return
	}
	w.Header().Set("Content-Type", kind.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleConverseWS is the duplex channel adapter: each binary frame is
// one turn, answered with one JSON result. A connection gets an implicit
// session so consecutive turns share memory; ?session_id= pins one.
func (s *Server) handleConverseWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		sessionID = newConnectionSessionID()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.ActiveDuplex.Inc()
	defer s.metrics.ActiveDuplex.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxAudioBytes)

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			// Connection closed; any in-flight turn result is dropped.
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		res := s.runDuplexTurn(ctx, sessionID, payload)
		if ctx.Err() != nil {
			return
		}
		if res == nil {
			// Unrecoverable fault: final error frame, then close.
			_ = conn.WriteJSON(protocol.Fault{Error: "Unexpected server error"})
			return
		}
		if err := conn.WriteJSON(res); err != nil {
			return
		}
	}
}

// runDuplexTurn isolates one turn so a panic faults the connection
// instead of the process. A nil return signals the fault.
func (s *Server) runDuplexTurn(ctx context.Context, sessionID string, payload []byte) (result any) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("duplex turn panic: %v", rec)
			s.metrics.Turns.WithLabelValues("fault").Inc()
			result = nil
		}
	}()
	res := s.orchestrator.RunTurn(ctx, sessionID, payload)
	return protocol.EncodeResult(res, s.cfg.PublicBaseURL)
}

// handleSTT exposes the transcription stage on its own.
func (s *Server) handleSTT(w http.ResponseWriter, r *http.Request) {
	audio, err := readAudio(r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, protocol.Fault{Error: err.Error()})
		return
	}
	transcript, err := s.transcriber.Transcribe(r.Context(), audio)
	if err != nil {
		respondJSON(w, http.StatusBadGateway, protocol.TurnError{
			Error:   protocol.StageErrorMessage(voice.StageTranscription),
			Details: err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"transcript": transcript})
}

// handleChat exposes the response-generation stage on its own. It runs
// without session memory; memory belongs to full conversational turns.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		respondJSON(w, http.StatusBadRequest, protocol.Fault{Error: "No text provided"})
		return
	}
	response, err := s.responder.Respond(r.Context(), req.Text, nil)
	if err != nil {
		respondJSON(w, http.StatusBadGateway, protocol.TurnError{
			Error:   protocol.StageErrorMessage(voice.StageResponse),
			Details: err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"response": response})
}

// handleTTS exposes the synthesis stage on its own, returning raw audio.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		respondJSON(w, http.StatusBadRequest, protocol.Fault{Error: "No text provided"})
		return
	}
	data, contentType, err := s.synthesizer.Synthesize(r.Context(), req.Text)
	if err != nil {
		respondJSON(w, http.StatusBadGateway, protocol.TurnError{
			Error:   protocol.StageErrorMessage(voice.StageSynthesis),
			Details: err.Error(),
		})
		return
	}
	if contentType == "" {
		contentType = "audio/wav"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) recoverFault(w http.ResponseWriter) {
	if rec := recover(); rec != nil {
		log.Printf("converse panic: %v", rec)
		s.metrics.Turns.WithLabelValues("fault").Inc()
		respondJSON(w, http.StatusInternalServerError, protocol.Fault{
			Error: fmt.Sprintf("Unexpected server error: %v", rec),
		})
	}
}

// readAudio extracts the audio payload from a multipart "file" field or,
// failing that, the raw request body.
func readAudio(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxAudioBytes)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing audio file field: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read audio upload: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio body: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty audio payload")
	}
	return data, nil
}

// newConnectionSessionID names the implicit session bound to one duplex
// connection's lifetime.
func newConnectionSessionID() string {
	return "conn-" + uuid.NewString()
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
