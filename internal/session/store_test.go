package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/poorman/SynapseStrike/models"
)

func TestHistoryIsolation(t *testing.T) {
	store := NewStore()
	store.Append("a", models.ChatMessage{Role: "user", Content: "hi"})
	store.Append("b", models.ChatMessage{Role: "user", Content: "other"})

	if got := store.History("a"); len(got) != 1 || got[0].Content != "hi" {
		t.Errorf("History(a) = %+v", got)
	}
	if got := store.History("missing"); len(got) != 0 {
		t.Errorf("History(missing) = %+v, want empty", got)
	}

	// The returned slice is a copy.
	history := store.History("a")
	history[0].Content = "mutated"
	if store.History("a")[0].Content != "hi" {
		t.Error("History() returned an aliased slice")
	}
}

func TestAppendTrimsHistory(t *testing.T) {
	store := NewStore()
	for i := 0; i < 15; i++ {
		store.Append("s", models.ChatMessage{Role: "user", Content: fmt.Sprintf("msg-%d", i)})
	}

	history := store.History("s")
	if len(history) != maxHistory {
		t.Fatalf("len = %d, want %d", len(history), maxHistory)
	}
	if history[0].Content != "msg-5" || history[len(history)-1].Content != "msg-14" {
		t.Errorf("window = %s..%s, want msg-5..msg-14", history[0].Content, history[len(history)-1].Content)
	}
}

func TestClear(t *testing.T) {
	store := NewStore()
	store.Append("s", models.ChatMessage{Role: "user", Content: "hi"})
	store.Clear("s")
	if len(store.History("s")) != 0 {
		t.Error("session not cleared")
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", n%3)
			store.Append(id, models.ChatMessage{Role: "user", Content: "x"})
			store.History(id)
		}(i)
	}
	wg.Wait()
}
