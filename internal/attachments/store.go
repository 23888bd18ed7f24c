package attachments

import (
	"fmt"
	"sync"
)

// OutOfRangeError reports an attachment index outside the stored list. The
// message format is part of the tool-facing contract: the model sees it
// verbatim and relays it to the user.
type OutOfRangeError struct {
	Index int
	Have  int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("image_idx %d is out of range (have %d)", e.Index, e.Have)
}

// Store keeps the per-session attachment lists. Each Put replaces the
// session's list; only the latest turn's images are addressable. Entries live
// for the process lifetime.
type Store struct {
	mu     sync.RWMutex
	images map[string][][]byte
}

// NewStore creates an empty attachment store.
func NewStore() *Store {
	return &Store{images: make(map[string][][]byte)}
}

// Put replaces the attachment list for the session. A nil list is a no-op so
// a follow-up turn without images keeps the previous turn's images
// addressable by tool calls it triggers.
func (s *Store) Put(sessionID string, images [][]byte) {
	if images == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[sessionID] = images
}

// Get returns the attachment at idx for the session. Indices are zero-based;
// out-of-range lookups fail, including when the session has no attachments.
func (s *Store) Get(sessionID string, idx int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	imgs := s.images[sessionID]
	if idx < 0 || idx >= len(imgs) {
		return nil, &OutOfRangeError{Index: idx, Have: len(imgs)}
	}
	return imgs[idx], nil
}

// Count returns how many attachments the session currently has.
func (s *Store) Count(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images[sessionID])
}
