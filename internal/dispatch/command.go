package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"

	"djpro-audio/server/internal/model"
)

var (
	// ErrNotImplemented is returned for method names outside the recognized set.
	ErrNotImplemented = errors.New("method not implemented")
	// ErrInvalidArgument is returned when a required argument is missing or mistyped.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Method is a recognized playback channel method name.
type Method string

const (
	MethodGetWaveformData  Method = "getWaveformData"
	MethodGetBeatPositions Method = "getBeatPositions"
	MethodPlay             Method = "play"
	MethodPause            Method = "pause"
	MethodSeek             Method = "seek"
	MethodGetPosition      Method = "getPosition"
)

// Command is one of the closed set of playback commands below.
// The unexported isCommand keeps other packages from adding variants.
type Command interface {
	Method() Method
	Target() model.Deck
	isCommand()
}

type GetWaveformData struct{ Deck model.Deck }
type GetBeatPositions struct{ Deck model.Deck }
type Play struct{ Deck model.Deck }
type Pause struct{ Deck model.Deck }
type GetPosition struct{ Deck model.Deck }

// Seek moves a deck to Position seconds.
type Seek struct {
	Deck     model.Deck
	Position float64
}

func (GetWaveformData) Method() Method  { return MethodGetWaveformData }
func (GetBeatPositions) Method() Method { return MethodGetBeatPositions }
func (Play) Method() Method             { return MethodPlay }
func (Pause) Method() Method            { return MethodPause }
func (Seek) Method() Method             { return MethodSeek }
func (GetPosition) Method() Method      { return MethodGetPosition }

func (c GetWaveformData) Target() model.Deck  { return c.Deck }
func (c GetBeatPositions) Target() model.Deck { return c.Deck }
func (c Play) Target() model.Deck             { return c.Deck }
func (c Pause) Target() model.Deck            { return c.Deck }
func (c Seek) Target() model.Deck             { return c.Deck }
func (c GetPosition) Target() model.Deck      { return c.Deck }

func (GetWaveformData) isCommand()  {}
func (GetBeatPositions) isCommand() {}
func (Play) isCommand()             {}
func (Pause) isCommand()            {}
func (Seek) isCommand()             {}
func (GetPosition) isCommand()      {}

// Defaults holds the deck substitution rules applied at the boundary.
type Defaults struct {
	Missing   model.Deck // used when "deck" is absent or null
	WrongType model.Deck // used when "deck" is not a string
}

// DefaultDefaults substitutes deck "A" in both cases.
var DefaultDefaults = Defaults{Missing: "A", WrongType: "A"}

// Args is the loosely typed argument bag sent by the UI layer.
type Args map[string]interface{}

// Deck extracts the "deck" argument, applying d. Any string is accepted as is.
func (a Args) Deck(d Defaults) model.Deck {
	v, ok := a["deck"]
	if !ok || v == nil {
		return d.Missing
	}
	s, ok := v.(string)
	if !ok {
		return d.WrongType
	}
	return model.Deck(s)
}

// Float extracts a required numeric argument.
func (a Args) Float(key string) (float64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s required", ErrInvalidArgument, key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidArgument, key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidArgument, key, v)
	}
}

type parseFunc func(args Args, d Defaults) (Command, error)

var parsers = map[Method]parseFunc{
	MethodGetWaveformData: func(a Args, d Defaults) (Command, error) {
		return GetWaveformData{Deck: a.Deck(d)}, nil
	},
	MethodGetBeatPositions: func(a Args, d Defaults) (Command, error) {
		return GetBeatPositions{Deck: a.Deck(d)}, nil
	},
	MethodPlay: func(a Args, d Defaults) (Command, error) {
		return Play{Deck: a.Deck(d)}, nil
	},
	MethodPause: func(a Args, d Defaults) (Command, error) {
		return Pause{Deck: a.Deck(d)}, nil
	},
	MethodSeek: func(a Args, d Defaults) (Command, error) {
		pos, err := a.Float("position")
		if err != nil {
			return nil, err
		}
		return Seek{Deck: a.Deck(d), Position: pos}, nil
	},
	MethodGetPosition: func(a Args, d Defaults) (Command, error) {
		return GetPosition{Deck: a.Deck(d)}, nil
	},
}

// Methods lists every recognized method name in a stable order.
func Methods() []Method {
	return []Method{
		MethodGetWaveformData,
		MethodGetBeatPositions,
		MethodPlay,
		MethodPause,
		MethodSeek,
		MethodGetPosition,
	}
}

// Parse turns a method name and argument bag into a typed Command.
// Unknown names yield ErrNotImplemented. A nil args behaves like an empty bag.
func Parse(method string, args Args, d Defaults) (Command, error) {
	p, ok := parsers[Method(method)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotImplemented, method)
	}
	return p(args, d)
}
