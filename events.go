package main

import "frontdesk/voice"

// Status is the user-visible call state. Speaking and listening both mean
// connected; the split follows the playback scheduler's in-flight set.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusListening
	StatusSpeaking
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusListening:
		return "listening"
	case StatusSpeaking:
		return "speaking"
	default:
		return "disconnected"
	}
}

// EventSink abstracts the display layer so the Bubble Tea TUI and the
// headless test harness receive the same call events.
type EventSink interface {
	CallStatus(status Status)
	CallError(message string)
	AudioLevel(level float64)
	NoVoiceWarning(active bool)
	Citations(citations []voice.Citation)
	ModeLine(text string)
	DeviceLine(text string)
}

type nopSink struct{}

func (nopSink) CallStatus(Status)             {}
func (nopSink) CallError(string)              {}
func (nopSink) AudioLevel(float64)            {}
func (nopSink) NoVoiceWarning(bool)           {}
func (nopSink) Citations([]voice.Citation)    {}
func (nopSink) ModeLine(string)               {}
func (nopSink) DeviceLine(string)             {}
