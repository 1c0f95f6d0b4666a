package main

import (
	"errors"
	"fmt"

	"frontdesk/audio"
)

// ErrorKind classifies call failures. Every fatal kind maps to exactly one
// user-visible message; decode errors never end the call and are only
// counted.
type ErrorKind int

const (
	KindDevice ErrorKind = iota
	KindConnect
	KindTransport
	KindRemoteClosed
	KindIdle
	KindDecode
)

type CallError struct {
	Kind ErrorKind
	Err  error
}

func (e *CallError) Error() string {
	if e.Err == nil {
		return e.UserMessage()
	}
	return fmt.Sprintf("%s: %v", e.UserMessage(), e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// UserMessage is the single human-readable status line shown for this
// failure class.
func (e *CallError) UserMessage() string {
	switch e.Kind {
	case KindDevice:
		if errors.Is(e.Err, audio.ErrPermission) {
			return "Microphone access denied. Allow microphone access and try again."
		}
		return "Microphone unavailable. Check your input device and try again."
	case KindConnect:
		return "Could not connect. Please try again."
	case KindTransport:
		return "Connection interrupted."
	case KindRemoteClosed:
		return "Session timed out, please resume."
	case KindIdle:
		return "Call ended due to inactivity."
	default:
		return "Call error."
	}
}

func callErr(kind ErrorKind, err error) *CallError {
	return &CallError{Kind: kind, Err: err}
}
