package playback

import (
	"encoding/base64"
	"fmt"
	"io"
	"sync"
	"time"
)

// Scheduler turns the remote service's base64 audio chunks into a gapless
// output stream. Each chunk is scheduled at max(next start, clock now) on the
// monotonic output clock and tracked in an in-flight set until its playback
// window elapses. Start offsets never decrease and never overlap, so chunks
// play in arrival order regardless of decode timing.
//
// The in-flight set is the authoritative speaking/listening signal: the
// session is "speaking" exactly while the set is non-empty.
type Scheduler struct {
	out   Output
	clock Clock

	// onSpeaking fires on empty<->non-empty transitions of the in-flight
	// set, under the scheduler lock. It must not call back into the
	// scheduler; post to a channel instead.
	onSpeaking func(bool)

	mu       sync.Mutex
	next     time.Duration
	seq      int
	inflight map[int]*pendingChunk

	decodeErrs int
}

type pendingChunk struct {
	startTimer *time.Timer
	doneTimer  *time.Timer
	player     io.Closer
}

func NewScheduler(out Output, clock Clock, onSpeaking func(bool)) *Scheduler {
	if clock == nil {
		clock = NewClock()
	}
	return &Scheduler{
		out:        out,
		clock:      clock,
		onSpeaking: onSpeaking,
		inflight:   make(map[int]*pendingChunk),
	}
}

// Enqueue decodes one chunk and schedules it. A decode failure drops only
// that chunk: the error is returned for logging and the next start offset is
// left untouched so later chunks are unaffected.
func (s *Scheduler) Enqueue(b64 string) error {
	pcm, err := decodeChunk(b64)
	if err != nil {
		s.mu.Lock()
		s.decodeErrs++
		s.mu.Unlock()
		return err
	}

	dur := PCMDuration(len(pcm))

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	start := s.next
	if start < now {
		start = now
	}
	s.next = start + dur

	id := s.seq
	s.seq++
	pc := &pendingChunk{}
	s.inflight[id] = pc
	if len(s.inflight) == 1 && s.onSpeaking != nil {
		s.onSpeaking(true)
	}

	pc.startTimer = time.AfterFunc(start-now, func() { s.startPlayback(id, pcm) })
	pc.doneTimer = time.AfterFunc(start-now+dur, func() { s.finishPlayback(id) })
	return nil
}

func (s *Scheduler) startPlayback(id int, pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.inflight[id]
	if !ok {
		// Stopped between scheduling and start.
		return
	}
	player, err := s.out.Play(pcm)
	if err != nil {
		return
	}
	pc.player = player
}

func (s *Scheduler) finishPlayback(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.inflight[id]
	if !ok {
		return
	}
	delete(s.inflight, id)
	if pc.player != nil {
		pc.player.Close()
	}
	if len(s.inflight) == 0 && s.onSpeaking != nil {
		s.onSpeaking(false)
	}
}

// Speaking reports whether any chunk is queued or audible.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight) > 0
}

// NextStart exposes the scheduling cursor for tests and diagnostics.
func (s *Scheduler) NextStart() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Scheduler) DecodeErrors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decodeErrs
}

// Keepalive plays the zero-gain tone directly on the output, bypassing the
// in-flight set so it never reads as "speaking".
func (s *Scheduler) Keepalive() {
	player, err := s.out.Play(KeepaliveTone())
	if err != nil {
		return
	}
	time.AfterFunc(PCMDuration(len(KeepaliveTone())), func() { player.Close() })
}

// Stop cancels every pending and audible chunk and resets the scheduling
// cursor to zero. Safe to call twice; the teardown path relies on that.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	wasSpeaking := len(s.inflight) > 0
	for id, pc := range s.inflight {
		if pc.startTimer != nil {
			pc.startTimer.Stop()
		}
		if pc.doneTimer != nil {
			pc.doneTimer.Stop()
		}
		if pc.player != nil {
			pc.player.Close()
		}
		delete(s.inflight, id)
	}
	s.next = 0
	if wasSpeaking && s.onSpeaking != nil {
		s.onSpeaking(false)
	}
	s.mu.Unlock()
}

func decodeChunk(b64 string) ([]byte, error) {
	if b64 == "" {
		return nil, fmt.Errorf("empty audio chunk")
	}
	pcm, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decoding audio chunk: %w", err)
	}
	if len(pcm) < bytesPerSample || len(pcm)%bytesPerSample != 0 {
		return nil, fmt.Errorf("audio chunk not aligned to PCM16 samples (%d bytes)", len(pcm))
	}
	return pcm, nil
}
