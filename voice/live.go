package voice

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

const (
	DefaultModel = "models/gemini-2.0-flash-live-001"
	DefaultVoice = "Puck"

	liveEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	outboundBuffer = 128
	eventBuffer    = 32
)

// Live connects to the hosted bidirectional speech API.
type Live struct {
	apiKey   string
	endpoint string
}

func NewLive(apiKey string) *Live {
	return &Live{apiKey: apiKey, endpoint: liveEndpoint}
}

// WithEndpoint overrides the service URL, used by tests against a local
// websocket server.
func (l *Live) WithEndpoint(endpoint string) *Live {
	l.endpoint = endpoint
	return l
}

func (l *Live) Name() string { return "live" }

// Connect dials the service and writes the session setup. Failure here is a
// handshake failure; the session never existed. After Connect returns, the
// Opened event signals readiness for audio.
func (l *Live) Connect(ctx context.Context, params SessionParams) (Conn, error) {
	if params.Model == "" {
		params.Model = DefaultModel
	}
	if params.Voice == "" {
		params.Voice = DefaultVoice
	}

	endpoint, err := url.Parse(l.endpoint)
	if err != nil {
		return nil, err
	}
	q := endpoint.Query()
	q.Set("key", l.apiKey)
	endpoint.RawQuery = q.Encode()

	connectStart := time.Now()
	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ws, _, err := websocket.Dial(ctx, endpoint.String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dialing speech service: %w", err)
	}
	// Synthesized audio chunks run well past the default limit.
	ws.SetReadLimit(1 << 22)

	setup, err := buildSetup(params)
	if err != nil {
		cancel()
		ws.Close(websocket.StatusInternalError, "setup encode failed")
		return nil, err
	}
	if err := ws.Write(ctx, websocket.MessageText, setup); err != nil {
		cancel()
		ws.Close(websocket.StatusInternalError, "setup write failed")
		return nil, fmt.Errorf("writing session setup: %w", err)
	}

	c := &liveConn{
		ws:       ws,
		ctx:      connCtx,
		cancel:   cancel,
		outbound: make(chan []byte, outboundBuffer),
		events:   make(chan Event, eventBuffer),
	}
	c.stats.ConnectMs = float64(time.Since(connectStart).Milliseconds())
	go c.runSender()
	go c.runReceiver()
	return c, nil
}

type liveConn struct {
	ws     *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	outbound chan []byte
	events   chan Event

	mu      sync.Mutex
	closing bool
	stats   Stats
}

func (c *liveConn) SendAudio(pcm []byte) error {
	msg, err := buildAudio(pcm)
	if err != nil {
		return err
	}
	if err := c.enqueue(msg); err != nil {
		return err
	}
	c.mu.Lock()
	c.stats.SentFrames++
	c.stats.SentBytes += uint64(len(pcm))
	c.mu.Unlock()
	return nil
}

func (c *liveConn) SendText(text string, endTurn bool) error {
	msg, err := buildText(text, endTurn)
	if err != nil {
		return err
	}
	return c.enqueue(msg)
}

// enqueue preserves send order: all outbound messages funnel through one
// buffered channel drained by a single sender goroutine.
func (c *liveConn) enqueue(msg []byte) error {
	select {
	case c.outbound <- msg:
		return nil
	case <-c.ctx.Done():
		return fmt.Errorf("connection closed")
	}
}

func (c *liveConn) Events() <-chan Event { return c.events }

func (c *liveConn) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *liveConn) runSender() {
	for {
		select {
		case msg := <-c.outbound:
			if err := c.ws.Write(c.ctx, websocket.MessageText, msg); err != nil {
				// The receiver surfaces the terminal event; the
				// sender just stops.
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *liveConn) runReceiver() {
	defer close(c.events)
	for {
		_, data, err := c.ws.Read(c.ctx)
		if err != nil {
			c.mu.Lock()
			closing := c.closing
			c.mu.Unlock()
			if closing {
				return
			}
			if status := websocket.CloseStatus(err); status != -1 {
				c.deliver(Event{Type: EventClosed, Reason: fmt.Sprintf("remote closed (%d)", status)})
			} else {
				c.deliver(Event{Type: EventError, Err: err})
			}
			return
		}

		events, err := parseServerMessage(data)
		if err != nil {
			c.deliver(Event{Type: EventError, Err: err})
			return
		}
		for _, ev := range events {
			c.count(ev)
			if ev.Type == EventClosed {
				c.deliver(ev)
				return
			}
			c.deliver(ev)
		}
	}
}

func (c *liveConn) count(ev Event) {
	c.mu.Lock()
	switch ev.Type {
	case EventAudio:
		c.stats.RecvChunks++
		c.stats.RecvBytes += uint64(len(ev.Audio))
	case EventTurnComplete:
		c.stats.Turns++
	case EventCitations:
		c.stats.Citations += len(ev.Citations)
	}
	c.mu.Unlock()
}

func (c *liveConn) deliver(ev Event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

func (c *liveConn) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.mu.Unlock()

	err := c.ws.Close(websocket.StatusNormalClosure, "")
	c.cancel()
	return err
}
