package model

// Channel names shared with the UI layer.
const (
	ChannelPlayback         = "com.djpro.audio/playback"
	ChannelPlaybackPosition = "com.djpro.audio/playbackPosition"
)

// Deck identifies a playback slot ("A", "B", ...). Any string is accepted.
type Deck string

// RequestType selects what a Request asks of a channel.
type RequestType string

const (
	RequestCall   RequestType = "call"   // synchronous command on the playback channel
	RequestListen RequestType = "listen" // subscribe to the position stream
	RequestCancel RequestType = "cancel" // unsubscribe from the position stream
)

// Request represents a WebSocket message from the client.
type Request struct {
	RequestID string                 `json:"request_id"`
	Type      RequestType            `json:"type"`
	Channel   string                 `json:"channel,omitempty"`
	Method    string                 `json:"method,omitempty"`
	Args      map[string]interface{} `json:"args,omitempty"`
}

// Response codes. Zero is success, the rest follow HTTP numbering.
const (
	CodeOK             = 0
	CodeBadRequest     = 400
	CodeUnknownChannel = 404
	CodeInternal       = 500
	CodeNotImplemented = 501
)

// Response represents a WebSocket response to the client.
type Response struct {
	Type      string      `json:"type"`
	RequestID string      `json:"request_id"`
	Code      int         `json:"code"`    // 0 for success, non-zero for error
	Message   string      `json:"message"` // Error message or status
	Data      interface{} `json:"data,omitempty"`
}

// Event types pushed on the position channel.
const (
	EventPosition = "event"
	EventEnd      = "end" // stream closed from the server side
)

// Event is a push message on a stream channel.
type Event struct {
	Type    string  `json:"type"`
	Channel string  `json:"channel"`
	Deck    Deck    `json:"deck,omitempty"`
	Data    float64 `json:"data"`
}

// PositionEvent is one playback-position update for a deck, in seconds.
type PositionEvent struct {
	Deck     Deck
	Position float64
}
