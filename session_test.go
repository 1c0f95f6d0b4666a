package main

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"strings"
	"sync"
	"testing"
	"time"

	"frontdesk/audio"
	"frontdesk/config"
	"frontdesk/playback"
	"frontdesk/voice"
)

type testSink struct {
	mu       sync.Mutex
	statuses []Status
	errors   []string
}

func (s *testSink) CallStatus(st Status) {
	s.mu.Lock()
	s.statuses = append(s.statuses, st)
	s.mu.Unlock()
}

func (s *testSink) CallError(msg string) {
	s.mu.Lock()
	s.errors = append(s.errors, msg)
	s.mu.Unlock()
}

func (s *testSink) AudioLevel(float64)         {}
func (s *testSink) NoVoiceWarning(bool)        {}
func (s *testSink) Citations([]voice.Citation) {}
func (s *testSink) ModeLine(string)            {}
func (s *testSink) DeviceLine(string)          {}

func (s *testSink) lastStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return StatusDisconnected
	}
	return s.statuses[len(s.statuses)-1]
}

func (s *testSink) sawStatus(want Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.statuses {
		if st == want {
			return true
		}
	}
	return false
}

func (s *testSink) lastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errors) == 0 {
		return ""
	}
	return s.errors[len(s.errors)-1]
}

func testProfile() *config.BusinessProfile {
	return &config.BusinessProfile{
		Name:  "Kowalski Plumbing",
		Trade: "plumber",
	}
}

func loudPCM(dur time.Duration) []byte {
	samples := int(float64(audio.SampleRate) * dur.Seconds())
	pcm := make([]byte, samples*2)
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(8000)))
	}
	return pcm
}

type callFixture struct {
	ctrl *Controller
	svc  *voice.FakeService
	sink *testSink
	out  *playback.FakeOutput
}

func newCallFixture(t *testing.T, pcm []byte, tweak func(*CallConfig)) *callFixture {
	t.Helper()
	f := &callFixture{
		svc:  voice.NewFakeService(),
		sink: &testSink{},
		out:  &playback.FakeOutput{},
	}
	cfg := CallConfig{
		Profile:     testProfile(),
		Service:     f.svc,
		Voice:       voice.DefaultVoice,
		AudioCtx:    audio.NewFakePCMContext(pcm, false),
		Output:      f.out,
		Sink:        f.sink,
		IdleTimeout: 5 * time.Second,
		MicDelay:    30 * time.Millisecond,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	f.ctrl = NewController(cfg)
	return f
}

func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestCallGreetsBeforeOpeningMicrophone(t *testing.T) {
	f := newCallFixture(t, loudPCM(500*time.Millisecond), func(cfg *CallConfig) {
		cfg.MicDelay = 150 * time.Millisecond
	})
	if err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.ctrl.Stop()

	conn := f.svc.LastConn()
	conn.Emit(voice.Event{Type: voice.EventOpened})

	// The greeting instruction goes out immediately on open.
	waitUntil(t, func() bool { return len(conn.SentTexts()) > 0 }, "no greeting sent")
	greeting := testProfile().Greeting()
	if got := conn.SentTexts()[0]; !strings.Contains(got, greeting) {
		t.Errorf("greeting instruction %q does not contain %q", got, greeting)
	}

	// The microphone must still be held off at this point.
	time.Sleep(40 * time.Millisecond)
	if got := conn.SentAudioFrames(); got != 0 {
		t.Fatalf("%d audio frames sent before the attach delay elapsed", got)
	}

	waitUntil(t, func() bool { return conn.SentAudioFrames() > 0 }, "no audio after attach delay")
}

func TestIdleTimeoutEndsCallAndReleasesEverything(t *testing.T) {
	silent := make([]byte, audio.SampleRate/2*2)
	f := newCallFixture(t, silent, func(cfg *CallConfig) {
		cfg.IdleTimeout = 100 * time.Millisecond
		cfg.MicDelay = 10 * time.Millisecond
	})
	if err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn := f.svc.LastConn()
	conn.Emit(voice.Event{Type: voice.EventOpened})

	waitUntil(t, func() bool { return !f.ctrl.Connected() }, "call never ended on idle")
	waitUntil(t, func() bool { return conn.Closed() }, "transport not closed after idle")

	if got := f.sink.lastError(); got != "Call ended due to inactivity." {
		t.Errorf("idle message = %q", got)
	}
	if got := f.sink.lastStatus(); got != StatusDisconnected {
		t.Errorf("final status = %v, want disconnected", got)
	}

	// A fresh call can start after the idle closure: total teardown.
	if err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("restart after idle: %v", err)
	}
	f.ctrl.Stop()
}

func TestRemoteCloseSurfacesResumeMessage(t *testing.T) {
	f := newCallFixture(t, nil, nil)
	if err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn := f.svc.LastConn()
	conn.Emit(voice.Event{Type: voice.EventOpened})
	conn.Emit(voice.Event{Type: voice.EventClosed, Reason: "server going away"})

	waitUntil(t, func() bool { return !f.ctrl.Connected() }, "call survived remote close")
	if got := f.sink.lastError(); got != "Session timed out, please resume." {
		t.Errorf("remote-close message = %q", got)
	}
}

func TestStartWhileConnectedFails(t *testing.T) {
	f := newCallFixture(t, nil, nil)
	if err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.ctrl.Stop()

	if err := f.ctrl.Start(context.Background()); err == nil {
		t.Fatal("second Start succeeded during an active call")
	}
	if got := f.svc.ConnCount(); got != 1 {
		t.Errorf("opened %d connections, want 1", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	f := newCallFixture(t, nil, nil)
	if err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.ctrl.Stop()
	f.ctrl.Stop()
	f.ctrl.Stop()

	if f.ctrl.Connected() {
		t.Error("still connected after Stop")
	}
	if !f.svc.LastConn().Closed() {
		t.Error("transport left open after Stop")
	}

	// A user hangup is not an error.
	if got := f.sink.lastError(); got != "" {
		t.Errorf("hangup surfaced error %q", got)
	}

	// Stop with no call at all is also fine.
	f.ctrl.Stop()
}

func TestConnectFailureReportsAndRecovers(t *testing.T) {
	f := newCallFixture(t, nil, func(cfg *CallConfig) {})
	f.svc.ConnectErr = context.DeadlineExceeded

	err := f.ctrl.Start(context.Background())
	if err == nil {
		t.Fatal("Start succeeded with failing service")
	}
	cerr, ok := err.(*CallError)
	if !ok || cerr.Kind != KindConnect {
		t.Fatalf("error = %v, want connect kind", err)
	}
	if got := f.sink.lastError(); got != "Could not connect. Please try again." {
		t.Errorf("connect message = %q", got)
	}

	// The failed attempt holds nothing: a retry works once the service does.
	f.svc.ConnectErr = nil
	if err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	f.ctrl.Stop()
}

func TestRemoteAudioPlaysAndDrivesSpeakingStatus(t *testing.T) {
	f := newCallFixture(t, nil, nil)
	if err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.ctrl.Stop()

	conn := f.svc.LastConn()
	conn.Emit(voice.Event{Type: voice.EventOpened})

	chunk := base64.StdEncoding.EncodeToString(make([]byte, 480)) // 10ms
	conn.Emit(voice.Event{Type: voice.EventAudio, Audio: chunk})

	waitUntil(t, func() bool { return len(f.out.Played()) > 0 }, "chunk never played")
	waitUntil(t, func() bool { return f.sink.sawStatus(StatusSpeaking) }, "speaking status never shown")
	waitUntil(t, func() bool { return f.sink.lastStatus() == StatusListening }, "never returned to listening")
}

func TestUndecodableChunkDoesNotEndCall(t *testing.T) {
	f := newCallFixture(t, nil, nil)
	if err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.ctrl.Stop()

	conn := f.svc.LastConn()
	conn.Emit(voice.Event{Type: voice.EventOpened})
	conn.Emit(voice.Event{Type: voice.EventAudio, Audio: "%%%not audio%%%"})

	good := base64.StdEncoding.EncodeToString(make([]byte, 480))
	conn.Emit(voice.Event{Type: voice.EventAudio, Audio: good})

	waitUntil(t, func() bool { return len(f.out.Played()) > 0 }, "call did not survive bad chunk")
	if !f.ctrl.Connected() {
		t.Error("call ended on a decode error")
	}
}

func TestCitationsReachSink(t *testing.T) {
	f := newCallFixture(t, nil, nil)

	var mu sync.Mutex
	var got []voice.Citation
	sink := &citationSink{testSink: f.sink, fn: func(cs []voice.Citation) {
		mu.Lock()
		got = cs
		mu.Unlock()
	}}
	f.ctrl.cfg.Sink = sink

	if err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.ctrl.Stop()

	conn := f.svc.LastConn()
	conn.Emit(voice.Event{Type: voice.EventOpened})
	conn.Emit(voice.Event{
		Type:      voice.EventCitations,
		Citations: []voice.Citation{{Title: "Price list", URL: "https://example.com/prices"}},
	})

	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, "citations never delivered")
}

type citationSink struct {
	*testSink
	fn func([]voice.Citation)
}

func (s *citationSink) Citations(cs []voice.Citation) { s.fn(cs) }
