package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"djpro-audio/server/internal/model"
)

func next(t *testing.T, s *Subscription, timeout time.Duration) (model.PositionEvent, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Next(ctx)
}

func TestNewBridgeInactive(t *testing.T) {
	b := NewBridge(4, DropOldest)
	if b.Active() {
		t.Error("new bridge should be inactive")
	}
}

func TestSubscribeUnsubscribeStates(t *testing.T) {
	b := NewBridge(4, DropOldest)
	s := b.Subscribe()
	if !b.Active() {
		t.Error("bridge should be active after Subscribe")
	}
	if s.ID == "" {
		t.Error("subscription has no ID")
	}
	b.Unsubscribe(s)
	if b.Active() {
		t.Error("bridge should be inactive after Unsubscribe")
	}
	// second unsubscribe is harmless
	b.Unsubscribe(s)
	b.Unsubscribe(nil)
}

func TestPublishDelivers(t *testing.T) {
	b := NewBridge(4, DropOldest)
	s := b.Subscribe()
	defer b.Unsubscribe(s)

	b.Publish(context.Background(), model.PositionEvent{Deck: "A", Position: 1.5})

	ev, ok := next(t, s, time.Second)
	if !ok {
		t.Fatal("Timeout waiting for event")
	}
	if ev.Deck != "A" || ev.Position != 1.5 {
		t.Errorf("got %+v", ev)
	}
}

func TestPublishWithoutSubscriberDiscards(t *testing.T) {
	b := NewBridge(4, DropOldest)
	b.Publish(context.Background(), model.PositionEvent{Deck: "A", Position: 1})

	s := b.Subscribe()
	defer b.Unsubscribe(s)
	if ev, ok := next(t, s, 50*time.Millisecond); ok {
		t.Errorf("got stale event %+v published before subscribe", ev)
	}
}

func TestNoEventsAfterUnsubscribe(t *testing.T) {
	b := NewBridge(8, DropOldest)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := make(chan model.PositionEvent)
	go b.Run(ctx, source)

	// steady producer
	go func() {
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		pos := 0.0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pos += 0.002
				select {
				case source <- model.PositionEvent{Deck: "A", Position: pos}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	s := b.Subscribe()
	if _, ok := next(t, s, time.Second); !ok {
		t.Fatal("no event while subscribed")
	}

	b.Unsubscribe(s)

	if ev, ok := next(t, s, 100*time.Millisecond); ok {
		t.Errorf("received %+v after unsubscribe", ev)
	}
}

func TestBufferedEventsNotDeliveredAfterUnsubscribe(t *testing.T) {
	b := NewBridge(8, DropOldest)
	s := b.Subscribe()
	for i := 0; i < 5; i++ {
		b.Publish(context.Background(), model.PositionEvent{Deck: "A", Position: float64(i)})
	}
	b.Unsubscribe(s)

	if ev, ok := next(t, s, 20*time.Millisecond); ok {
		t.Errorf("buffered event %+v delivered after unsubscribe", ev)
	}
}

func TestDropOldestKeepsNewest(t *testing.T) {
	b := NewBridge(3, DropOldest)
	s := b.Subscribe()
	defer b.Unsubscribe(s)

	for i := 1; i <= 10; i++ {
		b.Publish(context.Background(), model.PositionEvent{Deck: "A", Position: float64(i)})
	}

	var got []float64
	for i := 0; i < 3; i++ {
		ev, ok := next(t, s, time.Second)
		if !ok {
			t.Fatalf("only %d events buffered", i)
		}
		got = append(got, ev.Position)
	}
	if got[0] != 8 || got[1] != 9 || got[2] != 10 {
		t.Errorf("buffered = %v, want [8 9 10]", got)
	}
	if b.Dropped() != 7 {
		t.Errorf("Dropped() = %d, want 7", b.Dropped())
	}
}

func TestBlockPolicyLosesNothing(t *testing.T) {
	b := NewBridge(2, Block)
	s := b.Subscribe()
	defer b.Unsubscribe(s)

	const n = 50
	go func() {
		for i := 0; i < n; i++ {
			b.Publish(context.Background(), model.PositionEvent{Deck: "A", Position: float64(i)})
		}
	}()

	for i := 0; i < n; i++ {
		ev, ok := next(t, s, time.Second)
		if !ok {
			t.Fatalf("timed out at event %d", i)
		}
		if ev.Position != float64(i) {
			t.Fatalf("event %d position = %v", i, ev.Position)
		}
	}
	if b.Dropped() != 0 {
		t.Errorf("Dropped() = %d under Block", b.Dropped())
	}
}

func TestBlockPolicyReleasedByUnsubscribe(t *testing.T) {
	b := NewBridge(1, Block)
	s := b.Subscribe()

	b.Publish(context.Background(), model.PositionEvent{Position: 1}) // fills buffer

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Publish(context.Background(), model.PositionEvent{Position: 2}) // blocks
	}()

	time.Sleep(20 * time.Millisecond)
	b.Unsubscribe(s)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		// good
	case <-time.After(time.Second):
		t.Fatal("blocked Publish not released by Unsubscribe")
	}
}

func TestSubscribeReplacesPrevious(t *testing.T) {
	b := NewBridge(4, DropOldest)
	first := b.Subscribe()
	second := b.Subscribe()
	defer b.Unsubscribe(second)

	select {
	case <-first.Done():
		// good
	default:
		t.Fatal("first subscription not closed on replace")
	}

	b.Publish(context.Background(), model.PositionEvent{Deck: "B", Position: 2})
	if _, ok := next(t, first, 20*time.Millisecond); ok {
		t.Error("replaced subscription still receives events")
	}
	if ev, ok := next(t, second, time.Second); !ok || ev.Deck != "B" {
		t.Errorf("active subscription got (%+v, %v)", ev, ok)
	}

	// unsubscribing the stale one must not deactivate the new one
	b.Unsubscribe(first)
	if !b.Active() {
		t.Error("stale Unsubscribe deactivated the bridge")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	b := NewBridge(4, DropOldest)
	ctx, cancel := context.WithCancel(context.Background())
	source := make(chan model.PositionEvent)

	done := make(chan struct{})
	go func() {
		b.Run(ctx, source)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancel")
	}
}

func TestRunStopsOnSourceClose(t *testing.T) {
	b := NewBridge(4, DropOldest)
	source := make(chan model.PositionEvent)

	done := make(chan struct{})
	go func() {
		b.Run(context.Background(), source)
		close(done)
	}()
	close(source)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after source closed")
	}
}

func TestParseOverflow(t *testing.T) {
	for _, s := range []string{"drop-oldest", "block"} {
		if _, err := ParseOverflow(s); err != nil {
			t.Errorf("ParseOverflow(%q): %v", s, err)
		}
	}
	if _, err := ParseOverflow("drop-newest"); err == nil {
		t.Error("ParseOverflow accepted unknown policy")
	}
}
