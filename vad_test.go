package main

import "testing"

func TestNoVoiceMonitorWarnsAfterSustainedSilence(t *testing.T) {
	m := newNoVoiceMonitor()

	var warned bool
	for i := 0; i < m.warnAt; i++ {
		if m.Tick(false) == noVoiceWarn {
			warned = true
		}
	}
	if !warned {
		t.Fatal("no warning after a full silent window")
	}

	// Warning fires once, not on every silent tick.
	for i := 0; i < 10; i++ {
		if m.Tick(false) == noVoiceWarn {
			t.Fatal("warning repeated")
		}
	}
}

func TestNoVoiceMonitorDoesNotWarnDuringSpeech(t *testing.T) {
	m := newNoVoiceMonitor()
	for i := 0; i < m.warnAt*2; i++ {
		// Every other tick has speech, well above the warn ratio.
		if ev := m.Tick(i%2 == 0); ev == noVoiceWarn {
			t.Fatal("warned while speech was present")
		}
	}
}

func TestNoVoiceMonitorClearsWithHysteresis(t *testing.T) {
	m := newNoVoiceMonitor()
	for i := 0; i < m.warnAt; i++ {
		m.Tick(false)
	}

	// A single speech tick is below the clear ratio.
	if ev := m.Tick(true); ev == noVoiceClear {
		t.Fatal("cleared on a single speech tick")
	}

	var cleared bool
	for i := 0; i < m.windowSz && !cleared; i++ {
		cleared = m.Tick(true) == noVoiceClear
	}
	if !cleared {
		t.Fatal("never cleared despite sustained speech")
	}
}
