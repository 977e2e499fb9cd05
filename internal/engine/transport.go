package engine

import (
	"context"
	"sort"
	"time"

	"djpro-audio/server/internal/model"
)

// deckClock tracks elapsed position for one deck.
// While playing, position = base + (now - startedAt).
type deckClock struct {
	playing   bool
	base      float64
	startedAt time.Time
}

func (c *deckClock) position(now time.Time) float64 {
	if !c.playing {
		return c.base
	}
	return c.base + now.Sub(c.startedAt).Seconds()
}

// clock returns the deck clock, creating it while fewer than MaxDecks are tracked.
func (s *Stub) clock(deck model.Deck) (*deckClock, error) {
	c, ok := s.decks[deck]
	if ok {
		return c, nil
	}
	if len(s.decks) >= MaxDecks {
		return nil, ErrTooManyDecks
	}
	c = &deckClock{}
	s.decks[deck] = c
	return c, nil
}

// Play starts the deck clock. Playing an already playing deck is a no-op.
func (s *Stub) Play(deck model.Deck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.clock(deck)
	if err != nil {
		return err
	}
	if c.playing {
		return nil
	}
	c.playing = true
	c.startedAt = s.now()
	return nil
}

// Pause freezes the deck clock at its current position. Unknown decks are left untracked.
func (s *Stub) Pause(deck model.Deck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.decks[deck]
	if !ok || !c.playing {
		return
	}
	c.base = c.position(s.now())
	c.playing = false
}

// Seek moves the deck clock to position seconds, keeping its play state.
func (s *Stub) Seek(deck model.Deck, position float64) error {
	if position < 0 {
		return ErrInvalidPosition
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.decks[deck]; !ok && position == 0 {
		return nil // an untracked deck already sits at 0
	}
	c, err := s.clock(deck)
	if err != nil {
		return err
	}
	c.base = position
	c.startedAt = s.now()
	return nil
}

// Position reports the deck position and whether it is playing.
func (s *Stub) Position(deck model.Deck) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.decks[deck]
	if !ok {
		return 0, false
	}
	return c.position(s.now()), c.playing
}

// snapshot returns positions of playing decks in lexical deck order.
func (s *Stub) snapshot() []model.PositionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var out []model.PositionEvent
	for deck, c := range s.decks {
		if c.playing {
			out = append(out, model.PositionEvent{Deck: deck, Position: c.position(now)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deck < out[j].Deck })
	return out
}

// Positions emits a snapshot of every playing deck each interval.
// Nothing is emitted while no deck is playing. The channel closes when ctx is done.
func (s *Stub) Positions(ctx context.Context, interval time.Duration) <-chan model.PositionEvent {
	out := make(chan model.PositionEvent)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, ev := range s.snapshot() {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}
