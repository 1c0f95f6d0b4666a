// Package playback buffers synthesized audio chunks from the remote speech
// service and schedules them for gapless output.
package playback

import (
	"io"
	"time"
)

// Downlink format. The speech service synthesizes 24 kHz mono PCM16LE.
const (
	SampleRate     = 24000
	Channels       = 1
	bytesPerSample = 2
)

// PCMDuration returns the play time of a raw PCM16 buffer.
func PCMDuration(n int) time.Duration {
	samples := n / bytesPerSample / Channels
	return time.Duration(samples) * time.Second / SampleRate
}

// Clock is a monotonic output clock. The zero point is arbitrary; only
// differences matter. Injectable so scheduler tests control time.
type Clock interface {
	Now() time.Duration
}

type realClock struct {
	epoch time.Time
}

func NewClock() Clock {
	return realClock{epoch: time.Now()}
}

func (c realClock) Now() time.Duration {
	return time.Since(c.epoch)
}

// Output starts immediate playback of a PCM buffer. The returned closer
// stops and releases the underlying player.
type Output interface {
	Play(pcm []byte) (io.Closer, error)
	Close() error
}
