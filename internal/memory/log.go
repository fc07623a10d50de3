package memory

import "sync"

// Role identifies who produced a conversational turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single user or assistant utterance in a session.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Log keeps bounded per-session conversation history in memory.
// Sessions are created implicitly on first append and live for the
// process lifetime. Appends to one session serialize; distinct
// sessions are fully independent.
type Log struct {
	mu       sync.RWMutex
	sessions map[string]*sessionLog
	maxTurns int
}

type sessionLog struct {
	mu    sync.Mutex
	turns []Turn
}

// NewLog creates a Log retaining at most maxTurns exchanges
// (user+assistant pairs) per session.
func NewLog(maxTurns int) *Log {
	if maxTurns <= 0 {
		maxTurns = 6
	}
	return &Log{
		sessions: make(map[string]*sessionLog),
		maxTurns: maxTurns,
	}
}

// Append records one turn for the session. Empty session IDs carry no
// memory and are ignored.
func (l *Log) Append(sessionID string, role Role, content string) {
	if sessionID == "" {
		return
	}
	s := l.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Content: content})
	s.trim(l.maxTurns)
}

// AppendExchange records a user turn followed by the assistant reply as
// one unit, so concurrent turns on the same session cannot interleave
// between the two entries.
func (l *Log) AppendExchange(sessionID, userText, assistantText string) {
	if sessionID == "" {
		return
	}
	s := l.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns,
		Turn{Role: RoleUser, Content: userText},
		Turn{Role: RoleAssistant, Content: assistantText},
	)
	s.trim(l.maxTurns)
}

// History returns a copy of the session's turns in chronological order.
// Unknown or empty session IDs yield an empty history.
func (l *Log) History(sessionID string) []Turn {
	if sessionID == "" {
		return nil
	}
	l.mu.RLock()
	s, ok := l.sessions[sessionID]
	l.mu.RUnlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (l *Log) session(sessionID string) *sessionLog {
	l.mu.RLock()
	s, ok := l.sessions[sessionID]
	l.mu.RUnlock()
	if ok {
		return s
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok = l.sessions[sessionID]; ok {
		return s
	}
	s = &sessionLog{}
	l.sessions[sessionID] = s
	return s
}

// trim drops whole entries from the head until at most 2*maxTurns
// remain. Caller holds the session lock.
func (s *sessionLog) trim(maxTurns int) {
	limit := maxTurns * 2
	if len(s.turns) <= limit {
		return
	}
	keep := s.turns[len(s.turns)-limit:]
	trimmed := make([]Turn, limit)
	copy(trimmed, keep)
	s.turns = trimmed
}
