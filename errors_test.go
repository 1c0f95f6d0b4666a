package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"frontdesk/audio"
)

func TestCallErrorUserMessages(t *testing.T) {
	for _, tt := range []struct {
		name string
		err  *CallError
		want string
	}{
		{"device", callErr(KindDevice, errors.New("no such device")), "Microphone unavailable"},
		{"device permission", callErr(KindDevice, fmt.Errorf("opening stream: %w", audio.ErrPermission)), "Microphone access denied"},
		{"connect", callErr(KindConnect, errors.New("dial tcp: timeout")), "Could not connect"},
		{"transport", callErr(KindTransport, errors.New("ws read: EOF")), "Connection interrupted"},
		{"remote closed", callErr(KindRemoteClosed, nil), "Session timed out"},
		{"idle", callErr(KindIdle, nil), "inactivity"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.UserMessage(); !strings.Contains(got, tt.want) {
				t.Errorf("UserMessage = %q, want substring %q", got, tt.want)
			}
		})
	}
}

func TestCallErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := callErr(KindTransport, fmt.Errorf("sending: %w", inner))
	if !errors.Is(err, inner) {
		t.Error("wrapped cause not reachable through errors.Is")
	}

	var cerr *CallError
	if !errors.As(error(err), &cerr) || cerr.Kind != KindTransport {
		t.Error("errors.As did not recover the call error")
	}
}

func TestStatusStrings(t *testing.T) {
	for _, tt := range []struct {
		status Status
		want   string
	}{
		{StatusDisconnected, "disconnected"},
		{StatusConnecting, "connecting"},
		{StatusListening, "listening"},
		{StatusSpeaking, "speaking"},
	} {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
