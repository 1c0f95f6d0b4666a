package main

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"frontdesk/audio"
)

const (
	// silenceThreshold is RMS on a [-1,1] normalized scale. Frames above
	// it count as speech.
	silenceThreshold = 0.01
	// speechHangover keeps forwarding after the last speech frame so
	// trailing syllables are not clipped.
	speechHangover = 800 * time.Millisecond

	gateFrameMs    = 20
	gateFrameBytes = audio.SampleRate * gateFrameMs / 1000 * 2 // 640 bytes
)

// voiceGate is the per-session transmit filter. It slices the capture
// callback's byte stream into fixed 20ms frames, measures each frame's RMS
// energy, and forwards a frame only while within the hangover window of the
// last detected speech. Everything else is dropped, which is what keeps
// remote usage cost down during silence.
type voiceGate struct {
	forward  func(frame []byte)
	onSpeech func()
	now      func() time.Time

	mu         sync.Mutex
	buf        []byte
	lastSpeech time.Time
	level      float64
	forwarded  int
	dropped    int
}

func newVoiceGate(forward func([]byte), onSpeech func()) *voiceGate {
	return &voiceGate{
		forward:  forward,
		onSpeech: onSpeech,
		now:      time.Now,
	}
}

// Process consumes one capture callback's worth of PCM16LE bytes. Leftover
// bytes that don't fill a frame are held for the next call.
func (g *voiceGate) Process(data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.buf = append(g.buf, data...)
	for len(g.buf) >= gateFrameBytes {
		frame := make([]byte, gateFrameBytes)
		copy(frame, g.buf[:gateFrameBytes])
		g.buf = g.buf[gateFrameBytes:]
		g.processFrame(frame)
	}
}

func (g *voiceGate) processFrame(frame []byte) {
	rms := frameRMS(frame)
	g.level = rms
	now := g.now()

	if rms > silenceThreshold {
		// lastSpeech only moves forward.
		if now.After(g.lastSpeech) {
			g.lastSpeech = now
		}
		if g.onSpeech != nil {
			g.onSpeech()
		}
	}

	// Forward while inside the hangover window, whether or not this
	// particular frame crossed the threshold.
	if now.Sub(g.lastSpeech) < speechHangover && !g.lastSpeech.IsZero() {
		g.forwarded++
		if g.forward != nil {
			g.forward(frame)
		}
	} else {
		g.dropped++
	}
}

func frameRMS(frame []byte) float64 {
	if len(frame) < 2 {
		return 0
	}
	var sumSquares float64
	n := len(frame) / 2
	for i := 0; i+1 < len(frame); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(frame[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(n))
}

// Level returns the most recent frame's RMS, for the UI meter.
func (g *voiceGate) Level() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.level
}

func (g *voiceGate) LastSpeech() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSpeech
}

// Counts reports forwarded and dropped frame totals for the call log.
func (g *voiceGate) Counts() (forwarded, dropped int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.forwarded, g.dropped
}
