package notify

import (
	"context"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan int) (int, bool) {
	t.Helper()
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
		return 0, false
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_PublishReachesOnlyKey(t *testing.T) {
	hub := NewHub[string, int]()
	defer hub.Close()

	alice, cancelAlice := hub.Subscribe(context.Background(), "alice")
	defer cancelAlice()
	bob, cancelBob := hub.Subscribe(context.Background(), "bob")
	defer cancelBob()

	hub.Publish("alice", 1)

	if v, ok := receive(t, alice); !ok || v != 1 {
		t.Errorf("alice got %d (ok=%v), want 1", v, ok)
	}
	select {
	case v := <-bob:
		t.Errorf("bob unexpectedly received %d", v)
	default:
	}
}

func TestHub_LatestValueWins(t *testing.T) {
	hub := NewHub[string, int]()
	defer hub.Close()

	ch, cancel := hub.Subscribe(context.Background(), "k")
	defer cancel()

	hub.Publish("k", 1)
	hub.Publish("k", 2)
	hub.Publish("k", 3)

	if v, _ := receive(t, ch); v != 3 {
		t.Errorf("got %d, want 3", v)
	}
}

func TestHub_SubscribeWithDeliversOnlyToNewSubscriber(t *testing.T) {
	hub := NewHub[string, int]()
	defer hub.Close()

	existing, cancelExisting := hub.Subscribe(context.Background(), "k")
	defer cancelExisting()
	joined, cancelJoined := hub.SubscribeWith(context.Background(), "k", 7)
	defer cancelJoined()

	if v, ok := receive(t, joined); !ok || v != 7 {
		t.Errorf("new subscriber got %d (ok=%v), want 7", v, ok)
	}
	select {
	case v := <-existing:
		t.Errorf("existing subscriber unexpectedly received %d", v)
	default:
	}

	hub.Publish("k", 8)
	if v, _ := receive(t, existing); v != 8 {
		t.Errorf("existing subscriber got %d, want 8", v)
	}
	if v, _ := receive(t, joined); v != 8 {
		t.Errorf("new subscriber got %d, want 8", v)
	}
}

func TestHub_SubscribeWithInitialIsReplacedByPublish(t *testing.T) {
	hub := NewHub[string, int]()
	defer hub.Close()

	ch, cancel := hub.SubscribeWith(context.Background(), "k", 1)
	defer cancel()
	hub.Publish("k", 2)

	if v, _ := receive(t, ch); v != 2 {
		t.Errorf("got %d, want 2", v)
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	hub := NewHub[string, int]()
	defer hub.Close()

	ch, cancel := hub.Subscribe(context.Background(), "k")
	if hub.Count("k") != 1 {
		t.Fatalf("Count = %d, want 1", hub.Count("k"))
	}

	cancel()
	cancel() // second call is a no-op

	if _, ok := receive(t, ch); ok {
		t.Error("expected closed channel")
	}
	if hub.Count("k") != 0 {
		t.Errorf("Count = %d after cancel, want 0", hub.Count("k"))
	}

	hub.Publish("k", 1) // must not panic on a closed subscriber
}

func TestHub_ContextCancellation(t *testing.T) {
	hub := NewHub[string, int]()
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := hub.Subscribe(ctx, "k")

	cancel()
	waitFor(t, func() bool { return hub.Total() == 0 })

	if _, ok := receive(t, ch); ok {
		t.Error("expected closed channel after context cancellation")
	}
}

func TestHub_Close(t *testing.T) {
	hub := NewHub[string, int]()

	ch, cancel := hub.Subscribe(context.Background(), "k")
	hub.Close()

	if _, ok := receive(t, ch); ok {
		t.Error("expected closed channel after hub close")
	}
	cancel() // safe after close

	late, _ := hub.Subscribe(context.Background(), "k")
	if _, ok := receive(t, late); ok {
		t.Error("expected subscription on closed hub to be closed")
	}
}
