package sim

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/oto/v2"
	"github.com/smallnest/ringbuffer"
)

// Sink consumes rendered interleaved stereo float32 frames.
type Sink interface {
	Write(ctx context.Context, frames []float32) error
	Close() error
}

// WAVSink encodes 16-bit stereo PCM.
type WAVSink struct {
	enc *wav.Encoder
	buf audio.IntBuffer
}

// NewWAVSink writes to w, which must stay open until Close returns.
func NewWAVSink(w io.WriteSeeker, sampleRate int) *WAVSink {
	return &WAVSink{
		enc: wav.NewEncoder(w, sampleRate, 16, 2, 1),
		buf: audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}
}

func (s *WAVSink) Write(_ context.Context, frames []float32) error {
	s.buf.Data = s.buf.Data[:0]
	for _, v := range frames {
		s.buf.Data = append(s.buf.Data, int(math.Round(float64(clampUnit(v))*math.MaxInt16)))
	}
	return s.enc.Write(&s.buf)
}

// Close finalizes the WAV headers. The underlying writer is left open.
func (s *WAVSink) Close() error {
	return s.enc.Close()
}

func clampUnit(v float32) float32 {
	return min(max(v, -1), 1)
}

// bytesPerFrame is one stereo float32 frame.
const bytesPerFrame = 2 * 4

// PlayerSink streams frames to the default output device. Rendering pushes
// into a ring buffer; the device pulls from it and hears silence on underrun.
type PlayerSink struct {
	ctx    *oto.Context
	player oto.Player
	ring   *ringbuffer.RingBuffer

	mu      sync.Mutex
	scratch []byte
}

// NewPlayerSink opens the audio device. buffer is how much audio may be queued ahead.
func NewPlayerSink(sampleRate int, buffer time.Duration) (*PlayerSink, error) {
	otoCtx, ready, err := oto.NewContext(sampleRate, 2, oto.FormatFloat32LE)
	if err != nil {
		return nil, err
	}
	<-ready

	size := int(buffer.Seconds()*float64(sampleRate)) * bytesPerFrame
	p := &PlayerSink{
		ctx:  otoCtx,
		ring: ringbuffer.New(max(size, 4096*bytesPerFrame)),
	}
	p.player = otoCtx.NewPlayer(ringReader{p.ring})
	p.player.Play()
	return p, nil
}

// Write queues frames, waiting while the ring buffer is full.
func (p *PlayerSink) Write(ctx context.Context, frames []float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.scratch = encodeFloat32LE(p.scratch[:0], frames)
	b := p.scratch
	for len(b) > 0 {
		// A partial write reports an error too; only a write with no
		// progress waits for the device.
		n, err := p.ring.Write(b)
		b = b[n:]
		if n > 0 || len(b) == 0 {
			continue
		}
		if err != nil && !errors.Is(err, ringbuffer.ErrIsFull) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
	return nil
}

// Close waits for queued audio to drain and releases the player.
func (p *PlayerSink) Close() error {
	for !p.ring.IsEmpty() {
		time.Sleep(10 * time.Millisecond)
	}
	return p.player.Close()
}

// ringReader feeds the device from the ring, padding underruns with silence.
type ringReader struct {
	ring *ringbuffer.RingBuffer
}

func (r ringReader) Read(b []byte) (int, error) {
	n, err := r.ring.Read(b)
	if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
		return n, err
	}
	clear(b[n:])
	return len(b), nil
}

func encodeFloat32LE(dst []byte, frames []float32) []byte {
	for _, v := range frames {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}
