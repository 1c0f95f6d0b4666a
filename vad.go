package main

import (
	"sync"
	"time"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"frontdesk/audio"
)

const (
	vadMode       = 3
	vadFrameMs    = 20
	vadFrameBytes = audio.SampleRate * vadFrameMs / 1000 * 2 // 640 bytes
	vadDebounce   = 3                                        // consecutive speech frames to confirm voice
)

// vadProcessor classifies capture audio with the WebRTC VAD. It backs the
// advisory no-voice warning only; the transmit decision is the RMS gate's,
// and session closure is the idle watchdog's.
type vadProcessor struct {
	vad *webrtcvad.VAD

	mu           sync.Mutex
	buf          []byte
	speechRun    int
	totalFrames  int
	speechFrames int
	tickTotal    int
	tickSpeech   int
}

func newVADProcessor() (*vadProcessor, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &vadProcessor{vad: v}, nil
}

func (p *vadProcessor) Process(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, data...)
	for len(p.buf) >= vadFrameBytes {
		frame := p.buf[:vadFrameBytes]
		p.buf = p.buf[vadFrameBytes:]

		active, err := p.vad.Process(audio.SampleRate, frame)
		if err != nil {
			continue
		}
		p.totalFrames++
		if active {
			p.speechRun++
			if p.speechRun >= vadDebounce {
				p.speechFrames++
			}
		} else {
			p.speechRun = 0
		}
	}
}

const speechTickRatio = 0.10 // 10% of frames must be speech to count the tick

// HasSpeechTick reports whether the interval since the previous call
// contained enough speech frames, consuming the interval's counters.
func (p *vadProcessor) HasSpeechTick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.totalFrames - p.tickTotal
	s := p.speechFrames - p.tickSpeech
	p.tickTotal, p.tickSpeech = p.totalFrames, p.speechFrames
	if t == 0 {
		return false
	}
	return float64(s)/float64(t) >= speechTickRatio
}

func (p *vadProcessor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = p.buf[:0]
	p.speechRun = 0
	p.totalFrames, p.speechFrames = 0, 0
	p.tickTotal, p.tickSpeech = 0, 0
}

const (
	monitorTick      = 100 * time.Millisecond
	noVoiceWarnAfter = 8 * time.Second
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type noVoiceEvent int

const (
	noVoiceNone noVoiceEvent = iota
	noVoiceWarn
	noVoiceClear
)

// noVoiceMonitor raises an advisory warning when a connected call goes
// quiet on the caller side for a sustained stretch, which usually means a
// muted or mis-selected microphone. Hysteresis keeps the warning from
// flickering at the threshold.
type noVoiceMonitor struct {
	warnAt   int
	windowSz int

	ticks  int
	window []bool
	warned bool
}

func newNoVoiceMonitor() *noVoiceMonitor {
	warnAt := int(noVoiceWarnAfter / monitorTick)
	return &noVoiceMonitor{
		warnAt:   warnAt,
		windowSz: warnAt,
		window:   make([]bool, warnAt),
	}
}

func (m *noVoiceMonitor) ratio() float64 {
	n := m.windowSz
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *noVoiceMonitor) Tick(hasSpeech bool) noVoiceEvent {
	m.window[m.ticks%m.windowSz] = hasSpeech
	m.ticks++

	r := m.ratio()
	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		return noVoiceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return noVoiceClear
	}
	return noVoiceNone
}
