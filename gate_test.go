package main

import (
	"encoding/binary"
	"testing"
	"time"
)

func pcmFrame(amplitude int16, bytes int) []byte {
	frame := make([]byte, bytes)
	for i := 0; i+1 < len(frame); i += 2 {
		binary.LittleEndian.PutUint16(frame[i:], uint16(amplitude))
	}
	return frame
}

func TestGateDropsSilenceBeforeFirstSpeech(t *testing.T) {
	var sent [][]byte
	g := newVoiceGate(func(f []byte) { sent = append(sent, f) }, nil)

	for i := 0; i < 10; i++ {
		g.Process(pcmFrame(0, gateFrameBytes))
	}

	if len(sent) != 0 {
		t.Errorf("forwarded %d silent frames, want 0", len(sent))
	}
	forwarded, dropped := g.Counts()
	if forwarded != 0 || dropped != 10 {
		t.Errorf("counts = (%d, %d), want (0, 10)", forwarded, dropped)
	}
}

func TestGateForwardsSpeechAndFiresCallback(t *testing.T) {
	var sent [][]byte
	speechCalls := 0
	g := newVoiceGate(func(f []byte) { sent = append(sent, f) }, func() { speechCalls++ })

	g.Process(pcmFrame(8000, gateFrameBytes))

	if len(sent) != 1 {
		t.Fatalf("forwarded %d frames, want 1", len(sent))
	}
	if speechCalls != 1 {
		t.Errorf("speech callback fired %d times, want 1", speechCalls)
	}
}

func TestGateHangoverWindow(t *testing.T) {
	var sent int
	g := newVoiceGate(func([]byte) { sent++ }, nil)

	base := time.Now()
	clock := base
	g.now = func() time.Time { return clock }

	g.Process(pcmFrame(8000, gateFrameBytes)) // speech

	// Quiet frames inside the hangover still go out.
	clock = base.Add(400 * time.Millisecond)
	g.Process(pcmFrame(0, gateFrameBytes))
	if sent != 2 {
		t.Fatalf("forwarded %d frames inside hangover, want 2", sent)
	}

	// Past the hangover they are dropped.
	clock = base.Add(900 * time.Millisecond)
	g.Process(pcmFrame(0, gateFrameBytes))
	if sent != 2 {
		t.Errorf("forwarded %d frames after hangover, want 2", sent)
	}

	// New speech reopens the window.
	clock = base.Add(time.Second)
	g.Process(pcmFrame(8000, gateFrameBytes))
	if sent != 3 {
		t.Errorf("forwarded %d frames after new speech, want 3", sent)
	}
}

func TestGateBuffersPartialFrames(t *testing.T) {
	var sent int
	g := newVoiceGate(func([]byte) { sent++ }, nil)

	loud := pcmFrame(8000, gateFrameBytes)
	g.Process(loud[:300])
	if sent != 0 {
		t.Fatalf("forwarded with only 300 bytes buffered")
	}
	g.Process(loud[300:])
	if sent != 1 {
		t.Errorf("forwarded %d frames after completing one, want 1", sent)
	}
}

func TestFrameRMS(t *testing.T) {
	for _, tt := range []struct {
		name      string
		amplitude int16
		loud      bool
	}{
		{"silence", 0, false},
		{"noise floor", 100, false},
		{"speech", 1000, true},
		{"shouting", 20000, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rms := frameRMS(pcmFrame(tt.amplitude, gateFrameBytes))
			if got := rms > silenceThreshold; got != tt.loud {
				t.Errorf("rms %.4f crosses threshold = %v, want %v", rms, got, tt.loud)
			}
		})
	}
}
