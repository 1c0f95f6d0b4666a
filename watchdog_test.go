package main

import (
	"testing"
	"time"
)

func TestWatchdogExpires(t *testing.T) {
	w := newIdleWatchdog(20 * time.Millisecond)
	w.Reset()

	select {
	case <-w.Expired():
	case <-time.After(time.Second):
		t.Fatal("watchdog never expired")
	}
}

func TestWatchdogResetDefersExpiry(t *testing.T) {
	w := newIdleWatchdog(50 * time.Millisecond)
	w.Reset()

	// Keep resetting faster than the timeout.
	for i := 0; i < 5; i++ {
		time.Sleep(20 * time.Millisecond)
		w.Reset()
	}

	select {
	case <-w.Expired():
		t.Fatal("expired despite resets")
	default:
	}

	select {
	case <-w.Expired():
	case <-time.After(time.Second):
		t.Fatal("watchdog never expired after resets stopped")
	}
}

func TestWatchdogStopSuppressesExpiry(t *testing.T) {
	w := newIdleWatchdog(10 * time.Millisecond)
	w.Reset()
	w.Stop()
	w.Stop() // idempotent

	select {
	case <-w.Expired():
		t.Fatal("expired after Stop")
	case <-time.After(50 * time.Millisecond):
	}

	// Reset after Stop is a no-op.
	w.Reset()
	select {
	case <-w.Expired():
		t.Fatal("expired after Stop then Reset")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchdogUnarmedDoesNotExpire(t *testing.T) {
	w := newIdleWatchdog(10 * time.Millisecond)
	select {
	case <-w.Expired():
		t.Fatal("expired without Reset")
	case <-time.After(50 * time.Millisecond):
	}
}
