package encoder

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CallRecorder streams the caller-side PCM of one call into a timestamped
// FLAC file. Writes after Close are dropped, which lets the capture
// callback race the teardown path safely.
type CallRecorder struct {
	mu      sync.Mutex
	file    *os.File
	enc     *FlacEncoder
	pending []int16
	closed  bool
}

func NewCallRecorder(dir string) (*CallRecorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating recording directory: %w", err)
	}
	name := fmt.Sprintf("call_%s.flac", time.Now().Format("20060102_150405"))
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating recording file: %w", err)
	}
	enc, err := NewFlac(f)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &CallRecorder{file: f, enc: enc}, nil
}

func (r *CallRecorder) Path() string {
	return r.file.Name()
}

// Write appends PCM16LE bytes, encoding in full blocks.
func (r *CallRecorder) Write(pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		r.pending = append(r.pending, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	for len(r.pending) >= BlockSize {
		block := r.pending[:BlockSize]
		if err := r.enc.EncodeBlock(block); err != nil {
			// A failed block loses that block only; the file stays
			// valid up to the last good frame.
			r.pending = r.pending[:0]
			return
		}
		r.pending = r.pending[BlockSize:]
	}
}

// Close flushes the partial tail block and finalizes the file. Idempotent.
func (r *CallRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if len(r.pending) > 0 {
		r.enc.EncodeBlock(r.pending)
		r.pending = nil
	}
	encErr := r.enc.Close()
	fileErr := r.file.Close()
	if encErr != nil {
		return encErr
	}
	return fileErr
}
