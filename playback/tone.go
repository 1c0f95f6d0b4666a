package playback

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

// Tone generates a decaying sine tick as PCM16 at the output sample rate.
// volume 0 produces a buffer of digital silence with the same length, which
// is what the keepalive path wants: it exercises the output device without
// being audible.
func Tone(freq float64, duration time.Duration, volume float64, decay float64) []byte {
	samples := int(float64(SampleRate) * duration.Seconds())
	buf := new(bytes.Buffer)
	for i := 0; i < samples; i++ {
		t := float64(i) / float64(SampleRate)
		envelope := math.Exp(-t * decay)
		sample := int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
		binary.Write(buf, binary.LittleEndian, sample)
	}
	return buf.Bytes()
}

var (
	// connectChime/disconnectChime bracket the call audibly, like a handset
	// pickup and hangup click.
	connectChime    = Tone(1200, 30*time.Millisecond, 0.5, 60)
	disconnectChime = Tone(900, 50*time.Millisecond, 0.5, 40)

	// keepaliveTone holds the output path open between remote turns. Zero
	// gain: the device sees samples, the caller hears nothing.
	keepaliveTone = Tone(440, 100*time.Millisecond, 0, 1)
)

func ConnectChime() []byte    { return connectChime }
func DisconnectChime() []byte { return disconnectChime }
func KeepaliveTone() []byte   { return keepaliveTone }
