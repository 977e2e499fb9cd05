package dispatch

import (
	"context"
	"fmt"

	"djpro-audio/server/internal/engine"
	"djpro-audio/server/internal/model"
)

// PositionResult is returned by getPosition.
type PositionResult struct {
	Deck     model.Deck `json:"deck"`
	Position float64    `json:"position"`
	Playing  bool       `json:"playing"`
}

// Dispatcher routes typed commands to the engine. It holds no per-call state.
type Dispatcher struct {
	engine engine.Engine
}

func NewDispatcher(e engine.Engine) *Dispatcher {
	return &Dispatcher{engine: e}
}

// Dispatch runs cmd synchronously and returns its single result.
func (d *Dispatcher) Dispatch(_ context.Context, cmd Command) (any, error) {
	switch c := cmd.(type) {
	case GetWaveformData:
		return d.engine.WaveformData(c.Deck), nil
	case GetBeatPositions:
		return d.engine.BeatPositions(c.Deck), nil
	case Play:
		if err := d.engine.Play(c.Deck); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		return d.position(c.Deck), nil
	case Pause:
		d.engine.Pause(c.Deck)
		return d.position(c.Deck), nil
	case Seek:
		if err := d.engine.Seek(c.Deck, c.Position); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		return d.position(c.Deck), nil
	case GetPosition:
		return d.position(c.Deck), nil
	case nil:
		return nil, fmt.Errorf("%w: nil command", ErrInvalidArgument)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotImplemented, cmd.Method())
	}
}

func (d *Dispatcher) position(deck model.Deck) PositionResult {
	pos, playing := d.engine.Position(deck)
	return PositionResult{Deck: deck, Position: pos, Playing: playing}
}
