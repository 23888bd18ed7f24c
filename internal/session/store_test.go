package session

import (
	"sync"
	"testing"
)

func TestGetOrCreateIdempotent(t *testing.T) {
	store := NewMemoryStore()

	first := store.GetOrCreate("s1")
	second := store.GetOrCreate("s1")
	if first != second {
		t.Fatal("expected the same transcript instance for repeated access")
	}

	if store.GetOrCreate("s2") == first {
		t.Fatal("distinct sessions must get distinct transcripts")
	}
}

func TestGetOrCreateEmptyKeyUsesDefault(t *testing.T) {
	store := NewMemoryStore()
	a := store.GetOrCreate("")
	b := store.GetOrCreate("default")
	if a != b {
		t.Fatal("empty session id should map to the default session")
	}
}

func TestGetOrCreateConcurrentFirstAccess(t *testing.T) {
	store := NewMemoryStore()

	const workers = 32
	results := make([]*Transcript, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.GetOrCreate("racy")
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent first access produced duplicate transcripts")
		}
	}
}

func TestTranscriptOrdering(t *testing.T) {
	var tr Transcript
	tr.AppendTurn("hello", "hi there")
	tr.AppendTurn("how do I rotate crops?", "rotate legumes with cereals")

	entries := tr.Entries()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	wantRoles := []string{"user", "assistant", "user", "assistant"}
	for i, want := range wantRoles {
		if entries[i].Role != want {
			t.Fatalf("entry %d: role %q, want %q", i, entries[i].Role, want)
		}
	}

	msgs := tr.Messages()
	if len(msgs) != 4 || msgs[2].Content != "how do I rotate crops?" {
		t.Fatalf("unexpected message conversion: %+v", msgs)
	}
}

func TestEntriesReturnsSnapshot(t *testing.T) {
	var tr Transcript
	tr.Append("user", "one")

	snap := tr.Entries()
	tr.Append("assistant", "two")

	if len(snap) != 1 {
		t.Fatalf("snapshot mutated by later append: %+v", snap)
	}
}
