package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"djpro-audio/server/internal/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// eventBuffer is how many stream events wait for a slow consumer.
const eventBuffer = 64

// ErrClosed is returned once the connection has gone away.
var ErrClosed = errors.New("client closed")

// CallError is a non-zero response code from the server.
type CallError struct {
	Code    int
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, e.Message)
}

// Client talks to a bridge server over one WebSocket connection.
type Client struct {
	conn   *websocket.Conn
	sendMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan model.Response
	events  chan model.Event
	err     error
	done    chan struct{}
}

// frame decodes either a Response or an Event.
type frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Channel   string          `json:"channel"`
	Deck      model.Deck      `json:"deck"`
}

// Dial connects to url (ws:// or wss://). A non-empty token is sent as Authorization.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		conn:    conn,
		pending: make(map[string]chan model.Response),
		events:  make(chan model.Event, eventBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.mu.Lock()
			c.err = err
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
			c.mu.Unlock()
			return
		}

		switch f.Type {
		case "response":
			c.mu.Lock()
			ch, ok := c.pending[f.RequestID]
			delete(c.pending, f.RequestID)
			c.mu.Unlock()
			if !ok {
				log.Printf("[CLIENT] Unmatched response %q", f.RequestID)
				continue
			}
			var data interface{}
			if len(f.Data) > 0 {
				if err := json.Unmarshal(f.Data, &data); err != nil {
					log.Printf("[CLIENT] Bad data in response %q: %v", f.RequestID, err)
					ch <- model.Response{Type: f.Type, RequestID: f.RequestID, Code: model.CodeInternal, Message: "malformed response data"}
					continue
				}
			}
			ch <- model.Response{Type: f.Type, RequestID: f.RequestID, Code: f.Code, Message: f.Message, Data: data}

		case model.EventPosition, model.EventEnd:
			ev := model.Event{Type: f.Type, Channel: f.Channel, Deck: f.Deck}
			if len(f.Data) > 0 {
				if err := json.Unmarshal(f.Data, &ev.Data); err != nil {
					log.Printf("[CLIENT] Skipping event with bad data: %v", err)
					continue
				}
			}
			c.pushEvent(ev)
		}
	}
}

// pushEvent queues ev, evicting the oldest buffered position when full.
// End events are never evicted. Only readLoop sends on c.events.
func (c *Client) pushEvent(ev model.Event) {
	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		select {
		case old := <-c.events:
			if old.Type == model.EventEnd {
				// Room for exactly one: keep the end, drop ev.
				c.events <- old
				return
			}
		default:
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, req model.Request) (model.Response, error) {
	req.RequestID = uuid.NewString()
	ch := make(chan model.Response, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return model.Response{}, ErrClosed
	}
	c.pending[req.RequestID] = ch
	c.mu.Unlock()

	c.sendMu.Lock()
	err := c.conn.WriteJSON(req)
	c.sendMu.Unlock()
	if err != nil {
		c.forget(req.RequestID)
		return model.Response{}, fmt.Errorf("send: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return model.Response{}, ErrClosed
		}
		if resp.Code != model.CodeOK {
			return resp, &CallError{Code: resp.Code, Message: resp.Message}
		}
		return resp, nil
	case <-ctx.Done():
		c.forget(req.RequestID)
		return model.Response{}, ctx.Err()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Call invokes a playback method and returns the decoded result.
func (c *Client) Call(ctx context.Context, method string, args map[string]interface{}) (interface{}, error) {
	resp, err := c.roundTrip(ctx, model.Request{
		Type:    model.RequestCall,
		Channel: model.ChannelPlayback,
		Method:  method,
		Args:    args,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Listen subscribes to the position stream. Events arrive on the returned
// channel, which closes when the connection ends.
func (c *Client) Listen(ctx context.Context) (<-chan model.Event, error) {
	_, err := c.roundTrip(ctx, model.Request{Type: model.RequestListen, Channel: model.ChannelPlaybackPosition})
	if err != nil {
		return nil, err
	}
	return c.events, nil
}

// Cancel unsubscribes from the position stream.
func (c *Client) Cancel(ctx context.Context) error {
	_, err := c.roundTrip(ctx, model.Request{Type: model.RequestCancel, Channel: model.ChannelPlaybackPosition})
	return err
}

// Close sends a close frame and waits for the read loop to exit.
func (c *Client) Close() error {
	c.sendMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.sendMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}
