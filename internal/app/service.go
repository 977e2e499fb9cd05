package app

import (
	"context"
	"log"

	"djpro-audio/server/internal/dispatch"
	"djpro-audio/server/internal/engine"
	"djpro-audio/server/internal/stream"
)

// Service implements the playback and position channels for the transports.
type Service struct {
	Engine     engine.Engine
	Dispatcher *dispatch.Dispatcher
	Bridge     *stream.Bridge

	defaults dispatch.Defaults
}

// NewService creates a new application service.
func NewService(e engine.Engine, b *stream.Bridge, d dispatch.Defaults) *Service {
	return &Service{
		Engine:     e,
		Dispatcher: dispatch.NewDispatcher(e),
		Bridge:     b,
		defaults:   d,
	}
}

// Call parses and dispatches one playback command.
func (s *Service) Call(ctx context.Context, method string, args map[string]interface{}) (any, error) {
	cmd, err := dispatch.Parse(method, args, s.defaults)
	if err != nil {
		log.Printf("[APP] Rejected %q: %v", method, err)
		return nil, err
	}
	res, err := s.Dispatcher.Dispatch(ctx, cmd)
	if err != nil {
		log.Printf("[APP] %s on deck %q failed: %v", cmd.Method(), cmd.Target(), err)
		return nil, err
	}
	return res, nil
}

// Listen attaches a position subscriber, replacing any current one.
func (s *Service) Listen() *stream.Subscription {
	sub := s.Bridge.Subscribe()
	log.Printf("[APP] Position listener %s attached", sub.ID)
	return sub
}

// Cancel detaches sub from the position stream.
func (s *Service) Cancel(sub *stream.Subscription) {
	if sub == nil {
		return
	}
	s.Bridge.Unsubscribe(sub)
	log.Printf("[APP] Position listener %s detached", sub.ID)
}

// Listening reports whether the position stream has a subscriber.
func (s *Service) Listening() bool {
	return s.Bridge.Active()
}

// Methods lists the recognized playback methods.
func (s *Service) Methods() []string {
	ms := dispatch.Methods()
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = string(m)
	}
	return out
}
