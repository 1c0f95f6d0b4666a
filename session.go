package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"frontdesk/audio"
	"frontdesk/config"
	"frontdesk/encoder"
	"frontdesk/log"
	"frontdesk/playback"
	"frontdesk/voice"
)

const (
	// keepaliveInterval paces zero-gain tones through the output device
	// while the remote side is quiet, so platform audio stacks don't
	// suspend the stream mid-call.
	keepaliveInterval = 4000 * time.Millisecond

	// micAttachDelay holds the microphone off after session open so the
	// greeting plays without the caller's first words colliding with it.
	micAttachDelay = 800 * time.Millisecond
)

type callState int

const (
	stateDisconnected callState = iota
	stateConnecting
	stateConnected
)

// CallConfig carries everything a Controller needs to run calls: the
// business profile, the remote service, and the local audio endpoints.
type CallConfig struct {
	Profile *config.BusinessProfile
	Service voice.Service
	Voice   string

	AudioCtx audio.Context
	Device   *audio.DeviceInfo
	Output   playback.Output

	RecordDir string // empty disables call recording
	Sink      EventSink

	// Zero values take the production defaults.
	IdleTimeout time.Duration
	MicDelay    time.Duration
}

// Controller runs at most one call at a time through the state machine
// disconnected -> connecting -> connected -> disconnected. A failed or
// ended call never reconnects on its own; the caller starts a fresh one.
type Controller struct {
	cfg CallConfig

	mu    sync.Mutex
	state callState
	sess  *callSession
	// abort marks a Stop that arrived while dialing; the completed dial
	// discards its result instead of going connected.
	abort bool
}

func NewController(cfg CallConfig) *Controller {
	if cfg.Sink == nil {
		cfg.Sink = nopSink{}
	}
	return &Controller{cfg: cfg}
}

func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != stateDisconnected
}

// Start begins a call. It fails fast if one is already connecting or
// connected; the device and the remote session are both acquired before the
// controller reports connected.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != stateDisconnected {
		c.mu.Unlock()
		return fmt.Errorf("call already in progress")
	}
	c.state = stateConnecting
	c.abort = false
	c.mu.Unlock()

	c.cfg.Sink.CallStatus(StatusConnecting)

	sess, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = stateDisconnected
		c.mu.Unlock()
		c.cfg.Sink.CallStatus(StatusDisconnected)
		var cerr *CallError
		if e, ok := err.(*CallError); ok {
			cerr = e
		} else {
			cerr = callErr(KindConnect, err)
		}
		c.cfg.Sink.CallError(cerr.UserMessage())
		log.Errorf("call start failed: %v", cerr)
		return cerr
	}

	c.mu.Lock()
	if c.abort {
		c.abort = false
		c.state = stateDisconnected
		c.mu.Unlock()
		sess.cancelled.Store(true)
		sess.conn.Close()
		sess.releaseLocal()
		c.cfg.Sink.CallStatus(StatusDisconnected)
		return nil
	}
	c.state = stateConnected
	c.sess = sess
	c.mu.Unlock()

	c.cfg.Sink.CallStatus(StatusListening)
	go sess.run()
	return nil
}

// Stop ends the current call, if any. Safe to call at any time, including
// while a connect is still in flight.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == stateConnecting && c.sess == nil {
		c.abort = true
		c.mu.Unlock()
		return
	}
	sess := c.sess
	c.mu.Unlock()
	if sess != nil {
		sess.cancelled.Store(true)
		sess.teardown("hangup", nil)
	}
}

// dial acquires the capture device and the remote session, in that order.
// On any failure everything already acquired is released before returning.
func (c *Controller) dial(ctx context.Context) (*callSession, error) {
	capture, err := c.cfg.AudioCtx.NewCapture(c.cfg.Device, audio.DefaultCaptureConfig())
	if err != nil {
		return nil, callErr(KindDevice, err)
	}

	sess := &callSession{
		ctrl:    c,
		capture: capture,
		sink:    c.cfg.Sink,
		speakCh: make(chan bool, 4),
		stopCh:  make(chan struct{}),
	}

	sess.sched = playback.NewScheduler(c.cfg.Output, nil, func(speaking bool) {
		select {
		case sess.speakCh <- speaking:
		default:
		}
	})
	timeout := c.cfg.IdleTimeout
	if timeout == 0 {
		timeout = idleTimeout
	}
	sess.watchdog = newIdleWatchdog(timeout)
	sess.gate = newVoiceGate(sess.sendFrame, sess.watchdog.Reset)
	if vp, err := newVADProcessor(); err == nil {
		sess.vad = vp
		sess.monitor = newNoVoiceMonitor()
	} else {
		log.Warnf("voice activity monitor unavailable: %v", err)
	}

	if c.cfg.RecordDir != "" {
		rec, err := encoder.NewCallRecorder(c.cfg.RecordDir)
		if err != nil {
			log.Warnf("call recording disabled: %v", err)
		} else {
			sess.recorder = rec
		}
	}

	params := voice.SessionParams{
		Model:             voice.DefaultModel,
		Voice:             c.cfg.Voice,
		SystemInstruction: c.cfg.Profile.SystemInstruction(),
		Grounding:         c.cfg.Profile.GroundingEnabled(),
	}
	dialStart := time.Now()
	conn, err := c.cfg.Service.Connect(ctx, params)
	if err != nil {
		sess.releaseLocal()
		return nil, callErr(KindConnect, err)
	}
	sess.conn = conn
	sess.started = dialStart

	log.CallStart(c.cfg.Service.Name(), params.Model, params.Voice, params.Grounding)
	return sess, nil
}

// callSession owns every resource of one call. All of it is released by
// teardown exactly once, in every exit path: hangup, remote close,
// transport fault, or idle expiry.
type callSession struct {
	ctrl *Controller
	sink EventSink

	capture  audio.CaptureDevice
	conn     voice.Conn
	sched    *playback.Scheduler
	gate     *voiceGate
	watchdog *idleWatchdog
	vad      *vadProcessor
	monitor  *noVoiceMonitor
	recorder *encoder.CallRecorder

	speakCh chan bool
	stopCh  chan struct{}
	started time.Time

	micTimerMu sync.Mutex
	micTimer   *time.Timer

	cancelled atomic.Bool
	closeOnce sync.Once
}

// run is the per-call event loop. It exits on the first terminal condition
// and tears the whole session down.
func (s *callSession) run() {
	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()
	monitor := time.NewTicker(monitorTick)
	defer monitor.Stop()

	s.watchdog.Reset()

	for {
		select {
		case ev, ok := <-s.conn.Events():
			if !ok {
				s.finish(KindTransport, fmt.Errorf("event stream ended"))
				return
			}
			if done := s.handleEvent(ev); done {
				return
			}

		case <-s.watchdog.Expired():
			log.Info("call idle, closing")
			s.teardown("idle", callErr(KindIdle, nil))
			return

		case <-keepalive.C:
			if !s.sched.Speaking() {
				s.sched.Keepalive()
			}

		case speaking := <-s.speakCh:
			if speaking {
				s.sink.CallStatus(StatusSpeaking)
			} else {
				s.sink.CallStatus(StatusListening)
			}

		case <-monitor.C:
			s.sink.AudioLevel(s.gate.Level())
			if s.vad != nil {
				switch s.monitor.Tick(s.vad.HasSpeechTick()) {
				case noVoiceWarn:
					s.sink.NoVoiceWarning(true)
				case noVoiceClear:
					s.sink.NoVoiceWarning(false)
				}
			}

		case <-s.stopCh:
			return
		}
	}
}

// handleEvent processes one server event. It returns true when the event
// was terminal and the session has been torn down.
func (s *callSession) handleEvent(ev voice.Event) bool {
	switch ev.Type {
	case voice.EventOpened:
		s.onOpened()
	case voice.EventAudio:
		s.watchdog.Reset()
		if err := s.sched.Enqueue(ev.Audio); err != nil {
			log.Warnf("dropped undecodable chunk: %v", err)
		}
	case voice.EventCitations:
		s.sink.Citations(ev.Citations)
	case voice.EventTurnComplete:
		// Status follows the in-flight set, nothing to do here.
	case voice.EventClosed:
		if s.cancelled.Load() {
			return true
		}
		s.teardown("remote close", callErr(KindRemoteClosed, fmt.Errorf("%s", ev.Reason)))
		return true
	case voice.EventError:
		if s.cancelled.Load() {
			return true
		}
		s.teardown("transport error", callErr(KindTransport, ev.Err))
		return true
	}
	return false
}

// onOpened runs the greeting protocol: instruct the remote voice to open
// with the exact greeting line, then attach the microphone only after a
// short delay so the greeting is not talked over.
func (s *callSession) onOpened() {
	greeting := s.ctrl.cfg.Profile.Greeting()
	instruction := fmt.Sprintf("Greet the caller now. Say exactly: %q", greeting)
	if err := s.conn.SendText(instruction, true); err != nil {
		log.Warnf("greeting send failed: %v", err)
	}
	log.Transcript("assistant", greeting)

	if err := playChime(s.ctrl.cfg.Output, playback.ConnectChime()); err != nil {
		log.Warnf("connect chime: %v", err)
	}

	delay := s.ctrl.cfg.MicDelay
	if delay == 0 {
		delay = micAttachDelay
	}
	s.micTimerMu.Lock()
	s.micTimer = time.AfterFunc(delay, s.attachMic)
	s.micTimerMu.Unlock()
}

func (s *callSession) attachMic() {
	if s.cancelled.Load() {
		return
	}
	s.capture.SetCallback(func(data []byte, _ uint32) {
		if s.recorder != nil {
			s.recorder.Write(data)
		}
		s.gate.Process(data)
		if s.vad != nil {
			s.vad.Process(data)
		}
	})
	if err := s.capture.Start(); err != nil {
		log.Errorf("capture start failed: %v", err)
		s.teardown("device fault", callErr(KindDevice, err))
		return
	}
	log.Info("microphone attached")
}

// sendFrame is the gate's forward hook, pushing one speech frame uplink.
func (s *callSession) sendFrame(frame []byte) {
	if err := s.conn.SendAudio(frame); err != nil {
		log.Warnf("uplink send failed: %v", err)
	}
}

// finish is teardown for faults noticed by the loop itself.
func (s *callSession) finish(kind ErrorKind, err error) {
	if s.cancelled.Load() {
		s.teardown("hangup", nil)
		return
	}
	s.teardown("fault", callErr(kind, err))
}

// teardown releases every session resource and returns the controller to
// disconnected. Total and idempotent: any path may call it, only the first
// call does work, and after the first call everything is released whether or
// not the other paths fire later.
func (s *callSession) teardown(reason string, cerr *CallError) {
	s.closeOnce.Do(func() {
		close(s.stopCh)

		s.micTimerMu.Lock()
		if s.micTimer != nil {
			s.micTimer.Stop()
		}
		s.micTimerMu.Unlock()

		s.watchdog.Stop()
		s.capture.ClearCallback()
		s.capture.Stop()
		s.capture.Close()
		s.sched.Stop()
		if s.conn != nil {
			s.conn.Close()
		}
		if s.recorder != nil {
			if err := s.recorder.Close(); err != nil {
				log.Warnf("closing recording: %v", err)
			}
		}

		if err := playChime(s.ctrl.cfg.Output, playback.DisconnectChime()); err != nil {
			log.Warnf("disconnect chime: %v", err)
		}

		s.logCallEnd(reason)

		s.ctrl.mu.Lock()
		s.ctrl.state = stateDisconnected
		if s.ctrl.sess == s {
			s.ctrl.sess = nil
		}
		s.ctrl.mu.Unlock()

		s.sink.CallStatus(StatusDisconnected)
		s.sink.NoVoiceWarning(false)
		if cerr != nil {
			s.sink.CallError(cerr.UserMessage())
			if cerr.Err != nil {
				log.Errorf("call ended: %v", cerr)
			}
		}
	})
}

// releaseLocal frees resources acquired before the remote connect, for the
// dial failure path where run never starts.
func (s *callSession) releaseLocal() {
	s.capture.Close()
	s.sched.Stop()
	s.watchdog.Stop()
	if s.recorder != nil {
		s.recorder.Close()
	}
}

func (s *callSession) logCallEnd(reason string) {
	var stats voice.Stats
	if s.conn != nil {
		stats = s.conn.Stats()
	}
	forwarded, dropped := s.gate.Counts()
	dur := time.Since(s.started)
	log.CallEnd(reason, dur)
	log.StreamMetrics(log.StreamMetricsData{
		ConnectMs:     stats.ConnectMs,
		TotalMs:       float64(dur.Milliseconds()),
		SentFrames:    forwarded,
		SentKB:        float64(stats.SentBytes) / 1024,
		DroppedFrames: dropped,
		RecvChunks:    stats.RecvChunks,
		RecvKB:        float64(stats.RecvBytes) / 1024,
		Turns:         stats.Turns,
		Citations:     stats.Citations,
		DecodeErrors:  s.sched.DecodeErrors(),
	})
}

// playChime plays a short tone directly on the output, outside the
// scheduler so it never reads as remote speech.
func playChime(out playback.Output, pcm []byte) error {
	player, err := out.Play(pcm)
	if err != nil {
		return err
	}
	time.AfterFunc(playback.PCMDuration(len(pcm))+50*time.Millisecond, func() {
		player.Close()
	})
	return nil
}
