package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"djpro-audio/server/internal/model"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestWaveformDataAnyDeck(t *testing.T) {
	e := NewStub(nil)
	want := []float64{0.2, 0.5, 0.8, 0.6, 0.3, 0.7, 0.9, 0.4}
	for _, deck := range []model.Deck{"A", "B", "", "Z9", "deck-unknown"} {
		if got := e.WaveformData(deck); !equalFloats(got, want) {
			t.Errorf("WaveformData(%q) = %v, want %v", deck, got, want)
		}
	}
}

func TestBeatPositionsAnyDeck(t *testing.T) {
	e := NewStub(nil)
	want := []float64{0.1, 0.3, 0.5, 0.7, 0.9}
	for _, deck := range []model.Deck{"A", "B", "", "C"} {
		if got := e.BeatPositions(deck); !equalFloats(got, want) {
			t.Errorf("BeatPositions(%q) = %v, want %v", deck, got, want)
		}
	}
}

func TestResultsAreCopies(t *testing.T) {
	e := NewStub(nil)
	w := e.WaveformData("A")
	w[0] = 99
	b := e.BeatPositions("A")
	b[0] = 99

	if got := e.WaveformData("A")[0]; got != 0.2 {
		t.Errorf("WaveformData mutated by caller: first = %v", got)
	}
	if got := e.BeatPositions("A")[0]; got != 0.1 {
		t.Errorf("BeatPositions mutated by caller: first = %v", got)
	}
}

func TestTransportClock(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	e := NewStub(clk.Now)

	if pos, playing := e.Position("A"); pos != 0 || playing {
		t.Fatalf("fresh deck = (%v, %v), want (0, false)", pos, playing)
	}

	e.Play("A")
	clk.Advance(2 * time.Second)
	if pos, playing := e.Position("A"); pos != 2 || !playing {
		t.Errorf("after 2s play = (%v, %v), want (2, true)", pos, playing)
	}

	e.Pause("A")
	clk.Advance(5 * time.Second)
	if pos, playing := e.Position("A"); pos != 2 || playing {
		t.Errorf("paused = (%v, %v), want (2, false)", pos, playing)
	}

	if err := e.Seek("A", 30); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	e.Play("A")
	clk.Advance(time.Second)
	if pos, _ := e.Position("A"); pos != 31 {
		t.Errorf("after seek+play = %v, want 31", pos)
	}

	// Deck B is independent.
	if pos, playing := e.Position("B"); pos != 0 || playing {
		t.Errorf("deck B = (%v, %v), want untouched", pos, playing)
	}
}

func TestPlayTwiceKeepsPosition(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	e := NewStub(clk.Now)
	e.Play("A")
	clk.Advance(3 * time.Second)
	e.Play("A")
	if pos, _ := e.Position("A"); pos != 3 {
		t.Errorf("second Play reset clock: pos = %v, want 3", pos)
	}
}

func TestSeekRejectsNegative(t *testing.T) {
	e := NewStub(nil)
	if err := e.Seek("A", -1); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("Seek(-1) err = %v, want ErrInvalidPosition", err)
	}
}

func TestPositionsOnlyPlayingDecks(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	e := NewStub(clk.Now)
	e.Play("B")
	e.Play("A")
	e.Seek("C", 4) // known but not playing

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := e.Positions(ctx, 10*time.Millisecond)

	var got []model.Deck
	for len(got) < 2 {
		select {
		case ev := <-ch:
			got = append(got, ev.Deck)
		case <-time.After(time.Second):
			t.Fatal("Timeout waiting for position events")
		}
	}
	if got[0] != "A" || got[1] != "B" {
		t.Errorf("tick order = %v, want [A B]", got)
	}
}

func TestPositionsNothingPlaying(t *testing.T) {
	e := NewStub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := e.Positions(ctx, 5*time.Millisecond)

	select {
	case ev := <-ch:
		t.Errorf("got event %+v with nothing playing", ev)
	case <-time.After(50 * time.Millisecond):
		// good
	}
}

func TestPositionsClosesOnCancel(t *testing.T) {
	e := NewStub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch := e.Positions(ctx, 5*time.Millisecond)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// drain a racing tick, then expect close
			if _, ok := <-ch; ok {
				t.Error("channel still open after cancel")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("Positions did not close after context cancel")
	}
}

func TestUnknownDeckNotTracked(t *testing.T) {
	e := NewStub(nil)
	e.Pause("ghost")
	if err := e.Seek("ghost2", 0); err != nil {
		t.Fatalf("Seek(0): %v", err)
	}
	e.Position("ghost3")

	if n := len(e.decks); n != 0 {
		t.Errorf("tracked %d decks after pause/seek(0)/position on unknown decks, want 0", n)
	}
}

func TestMaxDecks(t *testing.T) {
	e := NewStub(nil)
	for i := 0; i < MaxDecks; i++ {
		if err := e.Play(model.Deck(fmt.Sprintf("D%d", i))); err != nil {
			t.Fatalf("Play deck %d: %v", i, err)
		}
	}
	if err := e.Play("one-too-many"); !errors.Is(err, ErrTooManyDecks) {
		t.Errorf("Play past limit err = %v, want ErrTooManyDecks", err)
	}
	if err := e.Seek("one-too-many", 3); !errors.Is(err, ErrTooManyDecks) {
		t.Errorf("Seek past limit err = %v, want ErrTooManyDecks", err)
	}
	// known decks keep working
	if err := e.Play("D0"); err != nil {
		t.Errorf("Play on tracked deck: %v", err)
	}
	if n := len(e.decks); n != MaxDecks {
		t.Errorf("tracked %d decks, want %d", n, MaxDecks)
	}
}
