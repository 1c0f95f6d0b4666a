package voice

import (
	"context"
	"sync"
)

// FakeService scripts the remote side for controller tests.
type FakeService struct {
	ConnectErr error

	mu    sync.Mutex
	conns []*FakeConn
}

func NewFakeService() *FakeService { return &FakeService{} }

func (f *FakeService) Name() string { return "fake" }

func (f *FakeService) Connect(_ context.Context, params SessionParams) (Conn, error) {
	if f.ConnectErr != nil {
		return nil, f.ConnectErr
	}
	c := &FakeConn{
		Params: params,
		events: make(chan Event, 64),
	}
	f.mu.Lock()
	f.conns = append(f.conns, c)
	f.mu.Unlock()
	return c, nil
}

// LastConn returns the most recently opened connection, or nil.
func (f *FakeService) LastConn() *FakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

func (f *FakeService) ConnCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

type FakeConn struct {
	Params SessionParams

	mu        sync.Mutex
	events    chan Event
	audio     [][]byte
	texts     []string
	closed    bool
	closeOnce sync.Once
}

// Emit injects a server event. Safe after Close; the event is dropped.
func (c *FakeConn) Emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.events <- ev
}

func (c *FakeConn) SendAudio(pcm []byte) error {
	c.mu.Lock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	c.audio = append(c.audio, cp)
	c.mu.Unlock()
	return nil
}

func (c *FakeConn) SendText(text string, _ bool) error {
	c.mu.Lock()
	c.texts = append(c.texts, text)
	c.mu.Unlock()
	return nil
}

func (c *FakeConn) Events() <-chan Event { return c.events }

func (c *FakeConn) Stats() Stats { return Stats{} }

func (c *FakeConn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.events)
	})
	return nil
}

func (c *FakeConn) SentAudioFrames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.audio)
}

func (c *FakeConn) SentTexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.texts))
	copy(out, c.texts)
	return out
}

func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
