package ports

import (
	"context"
	"sync"
	"testing"
)

func TestSessionIDDefault(t *testing.T) {
	if got := SessionIDFromContext(context.Background()); got != DefaultSessionID {
		t.Fatalf("expected %q, got %q", DefaultSessionID, got)
	}
	if got := SessionIDFromContext(WithSessionID(context.Background(), "")); got != DefaultSessionID {
		t.Fatalf("empty id should fall back to default, got %q", got)
	}
}

func TestSessionIDRoundTrip(t *testing.T) {
	ctx := WithSessionID(context.Background(), "s1")
	if got := SessionIDFromContext(ctx); got != "s1" {
		t.Fatalf("expected s1, got %q", got)
	}
}

func TestSessionIDNoCrossTalk(t *testing.T) {
	// Concurrent turns on distinct sessions must each observe their own id.
	var wg sync.WaitGroup
	for _, id := range []string{"alpha", "beta", "gamma", "delta"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ctx := WithSessionID(context.Background(), id)
			for i := 0; i < 1000; i++ {
				if got := SessionIDFromContext(ctx); got != id {
					t.Errorf("session leak: expected %q, got %q", id, got)
					return
				}
			}
		}(id)
	}
	wg.Wait()
}
