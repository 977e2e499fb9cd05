package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"djpro-audio/server/internal/model"
)

// MaxDecks bounds how many deck clocks the stub tracks.
const MaxDecks = 16

var (
	// ErrInvalidPosition is returned by Seek for negative positions.
	ErrInvalidPosition = errors.New("position must be >= 0")
	// ErrTooManyDecks is returned when a new deck would exceed MaxDecks.
	ErrTooManyDecks = errors.New("too many decks")
)

// Engine is the audio collaborator behind the playback channels.
type Engine interface {
	WaveformData(deck model.Deck) []float64
	BeatPositions(deck model.Deck) []float64

	Play(deck model.Deck) error
	Pause(deck model.Deck)
	Seek(deck model.Deck, position float64) error
	Position(deck model.Deck) (float64, bool)

	// Positions emits one event per playing deck every interval until ctx is done.
	Positions(ctx context.Context, interval time.Duration) <-chan model.PositionEvent
}

// Placeholder analysis output. Waveform extraction and beat detection are not implemented.
var (
	stubWaveform = []float64{0.2, 0.5, 0.8, 0.6, 0.3, 0.7, 0.9, 0.4}
	stubBeats    = []float64{0.1, 0.3, 0.5, 0.7, 0.9}
)

var _ Engine = (*Stub)(nil)

// Stub implements Engine with fixed analysis data and a simulated transport clock.
type Stub struct {
	now func() time.Time

	mu    sync.Mutex
	decks map[model.Deck]*deckClock
}

// NewStub creates a stub engine. A nil now uses time.Now.
func NewStub(now func() time.Time) *Stub {
	if now == nil {
		now = time.Now
	}
	return &Stub{
		now:   now,
		decks: make(map[model.Deck]*deckClock),
	}
}

// WaveformData returns the placeholder waveform regardless of deck.
func (s *Stub) WaveformData(_ model.Deck) []float64 {
	return append([]float64(nil), stubWaveform...)
}

// BeatPositions returns the placeholder beat grid regardless of deck.
func (s *Stub) BeatPositions(_ model.Deck) []float64 {
	return append([]float64(nil), stubBeats...)
}
