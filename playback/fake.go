package playback

import (
	"io"
	"sync"
	"time"
)

// FakeClock is a manually advanced Clock for scheduler tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *FakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// FakeOutput records every played buffer instead of producing sound.
type FakeOutput struct {
	mu     sync.Mutex
	played [][]byte
	closed int
}

func (o *FakeOutput) Play(pcm []byte) (io.Closer, error) {
	o.mu.Lock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	o.played = append(o.played, cp)
	o.mu.Unlock()
	return fakePlayer{o}, nil
}

func (o *FakeOutput) Close() error { return nil }

func (o *FakeOutput) Played() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([][]byte, len(o.played))
	copy(out, o.played)
	return out
}

func (o *FakeOutput) ClosedPlayers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

type fakePlayer struct {
	out *FakeOutput
}

func (p fakePlayer) Close() error {
	p.out.mu.Lock()
	p.out.closed++
	p.out.mu.Unlock()
	return nil
}
