package session

import (
	"sync"
	"time"

	"agribot/internal/agent/ports"
)

// Transcript is the ordered per-session conversation history. Entries are
// append-only for the lifetime of the process; callers never mutate returned
// slices in place.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
}

// Entry is one message in a transcript.
type Entry struct {
	Role      string    `json:"role"` // user|assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Append adds one entry to the end of the transcript.
func (t *Transcript) Append(role, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{Role: role, Content: content, Timestamp: time.Now()})
}

// AppendTurn records a completed turn: the user message followed by the final
// assistant message, as a single atomic append so readers never observe a
// half-written turn.
func (t *Transcript) AppendTurn(userText, assistantText string) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries,
		Entry{Role: "user", Content: userText, Timestamp: now},
		Entry{Role: "assistant", Content: assistantText, Timestamp: now},
	)
}

// Entries returns a snapshot copy of the transcript in chronological order.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Messages converts the transcript into LLM message form.
func (t *Transcript) Messages() []ports.Message {
	entries := t.Entries()
	msgs := make([]ports.Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, ports.Message{Role: e.Role, Content: e.Content})
	}
	return msgs
}

// HistoryStore maps session ids to transcripts.
type HistoryStore interface {
	// GetOrCreate returns the transcript for sessionID, creating an empty one
	// on first access. Idempotent; concurrent first access for the same key
	// yields a single transcript.
	GetOrCreate(sessionID string) *Transcript

	// Sessions returns the known session ids in no particular order.
	Sessions() []string
}

// MemoryStore is the in-process HistoryStore. Transcripts live for the
// process lifetime; there is no eviction.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*Transcript
}

// NewMemoryStore creates an empty history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Transcript)}
}

// GetOrCreate implements HistoryStore. The check and create happen under one
// lock so a concurrent first access cannot produce duplicate transcripts.
func (s *MemoryStore) GetOrCreate(sessionID string) *Transcript {
	if sessionID == "" {
		sessionID = ports.DefaultSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.items[sessionID]; ok {
		return t
	}
	t := &Transcript{}
	s.items[sessionID] = t
	return t
}

// Sessions implements HistoryStore.
func (s *MemoryStore) Sessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.items))
	for id := range s.items {
		out = append(out, id)
	}
	return out
}
