package stream

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"djpro-audio/server/internal/model"
)

// Overflow selects what Publish does when the subscriber buffer is full.
type Overflow string

const (
	DropOldest Overflow = "drop-oldest" // evict the oldest buffered event
	Block      Overflow = "block"       // wait for the subscriber to read
)

// ParseOverflow validates an overflow policy name.
func ParseOverflow(s string) (Overflow, error) {
	switch Overflow(s) {
	case DropOldest, Block:
		return Overflow(s), nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", s)
	}
}

// Bridge forwards position events to at most one active subscriber.
type Bridge struct {
	size     int
	overflow Overflow
	dropped  atomic.Uint64

	mu     sync.Mutex
	active *Subscription
}

// Subscription receives position events until it is unsubscribed or replaced.
type Subscription struct {
	ID string

	c    chan model.PositionEvent
	done chan struct{}
	once sync.Once
}

// NewBridge creates an inactive bridge with a per-subscriber buffer of size events.
func NewBridge(size int, overflow Overflow) *Bridge {
	if size < 1 {
		size = 1
	}
	if overflow == "" {
		overflow = DropOldest
	}
	return &Bridge{size: size, overflow: overflow}
}

// Subscribe activates the bridge. Any previous subscription is closed.
func (b *Bridge) Subscribe() *Subscription {
	s := &Subscription{
		ID:   uuid.NewString(),
		c:    make(chan model.PositionEvent, b.size),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	prev := b.active
	b.active = s
	b.mu.Unlock()

	if prev != nil {
		log.Printf("[STREAM] Subscription %s replaced by %s", prev.ID, s.ID)
		prev.close()
	}
	return s
}

// Unsubscribe closes s and deactivates the bridge if s is the active subscription.
func (b *Bridge) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	b.mu.Lock()
	if b.active == s {
		b.active = nil
	}
	b.mu.Unlock()
	s.close()
}

// Active reports whether a subscriber is attached.
func (b *Bridge) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active != nil
}

// Dropped returns how many events were evicted under DropOldest.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

// Publish hands ev to the active subscriber. Without one, ev is discarded.
func (b *Bridge) Publish(ctx context.Context, ev model.PositionEvent) {
	b.mu.Lock()
	s := b.active
	b.mu.Unlock()
	if s == nil || s.closed() {
		return
	}

	if b.overflow == Block {
		select {
		case s.c <- ev:
		case <-s.done:
		case <-ctx.Done():
		}
		return
	}

	for {
		select {
		case s.c <- ev:
			return
		default:
		}
		select {
		case <-s.c:
			b.dropped.Add(1)
		default:
		}
		if s.closed() {
			return
		}
	}
}

// Run forwards events from source until ctx is done or source closes.
func (b *Bridge) Run(ctx context.Context, source <-chan model.PositionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-source:
			if !ok {
				return
			}
			b.Publish(ctx, ev)
		}
	}
}

// Next blocks for the next event. It returns false once the subscription
// is closed or ctx is done; no event is returned after close.
func (s *Subscription) Next(ctx context.Context) (model.PositionEvent, bool) {
	if s.closed() {
		return model.PositionEvent{}, false
	}
	select {
	case ev := <-s.c:
		if s.closed() {
			return model.PositionEvent{}, false
		}
		return ev, true
	case <-s.done:
		return model.PositionEvent{}, false
	case <-ctx.Done():
		return model.PositionEvent{}, false
	}
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
