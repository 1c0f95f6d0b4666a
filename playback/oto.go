package playback

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
)

type otoOutput struct {
	ctx *oto.Context
}

// NewOutput opens the shared audio output context. oto owns the device
// handle process-wide; calling this twice returns an error from the library.
func NewOutput() (Output, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   50 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("oto init: %w", err)
	}
	<-ready
	return &otoOutput{ctx: ctx}, nil
}

func (o *otoOutput) Play(pcm []byte) (io.Closer, error) {
	player := o.ctx.NewPlayer(bytes.NewReader(pcm))
	player.Play()
	return otoPlayer{player}, nil
}

func (o *otoOutput) Close() error {
	// oto v3 keeps its context for the process lifetime.
	return nil
}

type otoPlayer struct {
	p *oto.Player
}

func (w otoPlayer) Close() error {
	return w.p.Close()
}
