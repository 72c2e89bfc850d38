package state

import (
	"sync"
	"testing"
	"time"

	"github.com/thinhng24/CollabSphere-sub001/internal/bus"
)

func TestStoreDispatchAndSnapshot(t *testing.T) {
	s := NewStore(nil)
	s.Dispatch(AddConversation{Conversation: conv("a", time.Now())})

	snap := s.Snapshot()
	if len(snap.Conversations) != 1 {
		t.Fatalf("got %d conversations, want 1", len(snap.Conversations))
	}
}

func TestStorePublishesStateChanged(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("state.", 10)
	defer unsub()

	s := NewStore(b)
	s.Dispatch(SetUserOnline{UserID: "u1"})

	select {
	case evt := <-ch:
		if evt.Kind != "state.changed" {
			t.Errorf("kind = %q, want state.changed", evt.Kind)
		}
		if evt.Payload != "set_user_online" {
			t.Errorf("payload = %v, want set_user_online", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for state.changed")
	}
}

func TestStoreReset(t *testing.T) {
	s := NewStore(nil)
	s.Dispatch(SetUserOnline{UserID: "u1"})
	s.Dispatch(AddConversation{Conversation: conv("a", time.Now())})

	s.Reset()

	snap := s.Snapshot()
	if len(snap.Conversations) != 0 || len(snap.Online) != 0 {
		t.Error("Reset should return to the initial snapshot")
	}
}

func TestStoreSerializesDispatch(t *testing.T) {
	s := NewStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Dispatch(SetUserOnline{UserID: string(rune('a' + n%26))})
		}(i)
	}
	wg.Wait()

	if got := len(s.Snapshot().Online); got != 26 {
		t.Errorf("online set size = %d, want 26", got)
	}
}
