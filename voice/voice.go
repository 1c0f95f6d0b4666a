// Package voice owns the bidirectional channel to the remote conversational
// speech service: connect, stream microphone frames up, receive synthesized
// audio and grounding citations back.
package voice

import "context"

// Citation is a (title, URL) pair naming a web source the remote service
// used to ground a reply.
type Citation struct {
	Title string
	URL   string
}

type EventType int

const (
	// EventOpened fires once the remote service has accepted the session
	// setup and is ready for audio.
	EventOpened EventType = iota
	// EventAudio carries one base64-encoded chunk of synthesized PCM16
	// at the playback sample rate.
	EventAudio
	// EventCitations carries grounding citations for the current turn.
	EventCitations
	// EventTurnComplete marks the end of a remote speaking turn.
	EventTurnComplete
	// EventClosed reports a remote- or infrastructure-initiated close.
	EventClosed
	// EventError reports a mid-session transport or protocol fault.
	EventError
)

type Event struct {
	Type      EventType
	Audio     string // EventAudio: base64 PCM16
	Citations []Citation
	Reason    string // EventClosed
	Err       error  // EventError
}

// SessionParams configure one remote session.
type SessionParams struct {
	Model string
	// Voice selects the prebuilt synthesized-voice identity.
	Voice string
	// SystemInstruction is the assembled business instruction text.
	SystemInstruction string
	// Grounding enables the web-search tool for the session.
	Grounding bool
}

// Stats accumulate per-connection traffic counters for the call log.
type Stats struct {
	ConnectMs  float64
	SentFrames int
	SentBytes  uint64
	RecvChunks int
	RecvBytes  uint64
	Turns      int
	Citations  int
}

type Service interface {
	Name() string
	Connect(ctx context.Context, params SessionParams) (Conn, error)
}

// Conn is one live bidirectional session. Events() delivers the tagged
// server stream and is closed after a terminal Closed or Error event.
// SendAudio preserves call order; frames are never reordered.
type Conn interface {
	SendAudio(pcm []byte) error
	// SendText pushes a synthetic client text turn, used for the greeting
	// instruction right after open.
	SendText(text string, endTurn bool) error
	Events() <-chan Event
	Stats() Stats
	Close() error
}
