package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"djpro-audio/server/internal/app"
	"djpro-audio/server/internal/dispatch"
	"djpro-audio/server/internal/model"
	"djpro-audio/server/internal/stream"

	"github.com/gorilla/websocket"
)

// Handler handles a single WebSocket connection.
type Handler struct {
	Conn   *websocket.Conn
	App    *app.Service
	SendMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	subMu sync.Mutex
	sub   *stream.Subscription
	wg    sync.WaitGroup
}

// NewHandler creates a new WebSocket handler.
func NewHandler(conn *websocket.Conn, app *app.Service) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		Conn:   conn,
		App:    app,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Send writes v as one JSON frame.
func (h *Handler) Send(v any) error {
	h.SendMu.Lock()
	defer h.SendMu.Unlock()
	return h.Conn.WriteJSON(v)
}

// Loop starts the read loop for the connection.
func (h *Handler) Loop() {
	defer func() {
		h.stopListening() // Cancel the position stream if connection drops
		h.cancel()
		h.wg.Wait()
		h.Conn.Close()
	}()

	for {
		_, b, err := h.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Read error: %v", err)
			}
			return
		}

		var req model.Request
		if err := json.Unmarshal(b, &req); err != nil {
			log.Printf("[WS] Bad request: %v", err)
			h.Send(model.Response{Type: "response", Code: model.CodeBadRequest, Message: "bad request"})
			continue
		}

		h.Send(h.handleRequest(req))
	}
}

func (h *Handler) handleRequest(req model.Request) (resp model.Response) {
	resp.Type = "response"
	resp.RequestID = req.RequestID

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WS] Panic handling %s %q: %v", req.Type, req.Method, r)
			resp.Code = model.CodeInternal
			resp.Message = fmt.Sprintf("internal error: %v", r)
			resp.Data = nil
		}
	}()

	var err error
	var data interface{}

	switch req.Type {
	case model.RequestCall:
		if req.Channel != "" && req.Channel != model.ChannelPlayback {
			err = unknownChannel(req.Channel)
			break
		}
		data, err = h.App.Call(h.ctx, req.Method, req.Args)

	case model.RequestListen:
		if req.Channel != model.ChannelPlaybackPosition {
			err = unknownChannel(req.Channel)
			break
		}
		h.startListening()
		data = "listening"

	case model.RequestCancel:
		if req.Channel != model.ChannelPlaybackPosition {
			err = unknownChannel(req.Channel)
			break
		}
		h.stopListening()
		data = "cancelled"

	default:
		err = logAndError("unknown request type: " + string(req.Type))
	}

	if err != nil {
		resp.Code = codeFor(err)
		resp.Message = err.Error()
	} else {
		resp.Code = model.CodeOK
		resp.Message = "success"
		resp.Data = data
	}
	return resp
}

// startListening subscribes this connection, replacing any subscription it already holds.
func (h *Handler) startListening() {
	h.subMu.Lock()
	prev := h.sub
	sub := h.App.Listen()
	h.sub = sub
	h.subMu.Unlock()

	if prev != nil {
		h.App.Cancel(prev)
	}

	h.wg.Add(1)
	go h.forward(sub)
}

func (h *Handler) stopListening() {
	h.subMu.Lock()
	sub := h.sub
	h.sub = nil
	h.subMu.Unlock()
	h.App.Cancel(sub)
}

// forward pushes events from sub to the client until sub ends.
// If the subscription was closed from elsewhere, the client gets an end event.
func (h *Handler) forward(sub *stream.Subscription) {
	defer h.wg.Done()
	for {
		ev, ok := sub.Next(h.ctx)
		if !ok {
			break
		}
		if err := h.sendPosition(sub, ev); err != nil {
			log.Printf("[WS] Event write failed: %v", err)
			h.App.Cancel(sub)
			return
		}
	}

	// h.sub still pointing at sub means neither stopListening nor
	// startListening closed it: another listener took over the stream.
	h.subMu.Lock()
	closedElsewhere := h.sub == sub
	if closedElsewhere {
		h.sub = nil
	}
	h.subMu.Unlock()
	if closedElsewhere && h.ctx.Err() == nil {
		h.Send(model.Event{Type: model.EventEnd, Channel: model.ChannelPlaybackPosition})
	}
}

// sendPosition writes ev unless sub ended first. Holding SendMu orders it
// against the response to a cancel request.
func (h *Handler) sendPosition(sub *stream.Subscription, ev model.PositionEvent) error {
	h.SendMu.Lock()
	defer h.SendMu.Unlock()
	select {
	case <-sub.Done():
		return nil
	default:
	}
	return h.Conn.WriteJSON(model.Event{
		Type:    model.EventPosition,
		Channel: model.ChannelPlaybackPosition,
		Deck:    ev.Deck,
		Data:    ev.Position,
	})
}

func codeFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrNotImplemented):
		return model.CodeNotImplemented
	case errors.Is(err, dispatch.ErrInvalidArgument):
		return model.CodeBadRequest
	case errors.Is(err, errUnknownChannel):
		return model.CodeUnknownChannel
	default:
		var appErr *AppError
		if errors.As(err, &appErr) {
			return model.CodeBadRequest
		}
		return model.CodeInternal
	}
}

var errUnknownChannel = errors.New("unknown channel")

func unknownChannel(name string) error {
	log.Printf("[WS] Error: unknown channel %q", name)
	return fmt.Errorf("%w: %q", errUnknownChannel, name)
}

func logAndError(msg string) error {
	log.Printf("[WS] Error: %s", msg)
	return &AppError{Msg: msg}
}

type AppError struct {
	Msg string
}

func (e *AppError) Error() string {
	return e.Msg
}
