// Package mixer is a software audio.Engine: it decodes WAV samples into
// memory and mixes playing channels into interleaved stereo float32.
package mixer

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog"

	"github.com/vehiclesfx/extension/internal/audio"
)

// DefaultSampleRate is the output rate used by the CLI.
const DefaultSampleRate = 44100

var errNotPCM = errors.New("not a PCM wav file")

// Engine mixes every live channel relative to a single listener. All methods
// are safe for concurrent use; Render usually runs on a playback goroutine.
type Engine struct {
	mu         sync.Mutex
	sampleRate int
	listener   audio.Listener
	channels   []*channel
	closed     bool

	log zerolog.Logger
}

// New creates an engine rendering at sampleRate frames per second.
func New(sampleRate int, log zerolog.Logger) *Engine {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Engine{
		sampleRate: sampleRate,
		listener: audio.Listener{
			Forward: audio.Vec3{Y: 1},
			Up:      audio.Vec3{Z: 1},
		},
		log: log.With().Str("component", "mixer").Logger(),
	}
}

// SampleRate is the output rate.
func (e *Engine) SampleRate() int { return e.sampleRate }

// CreateSound decodes the WAV file at path. Multi-channel files are folded to mono.
func (e *Engine) CreateSound(path, name string, mode audio.Mode) (audio.Sound, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, audio.ErrNoEngine
	}

	pcm, rate, err := decodeWAV(path)
	if err != nil {
		return nil, fmt.Errorf("createSound %s: %w", path, err)
	}
	e.log.Debug().Str("asset", name).Int("frames", len(pcm)).Int("rate", rate).Msg("Sound decoded")
	return &sound{eng: e, name: name, mode: mode, pcm: pcm, rate: rate}, nil
}

func decodeWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return nil, 0, err
		}
		return nil, 0, errNotPCM
	}
	if d.WavAudioFormat != 1 {
		return nil, 0, fmt.Errorf("%w: format %d", errNotPCM, d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}

	chans := max(buf.Format.NumChannels, 1)
	depth := int(d.BitDepth)
	scale := float32(int64(1) << (depth - 1))
	offset := 0
	if depth == 8 {
		// 8-bit PCM is unsigned
		offset = 128
	}

	frames := len(buf.Data) / chans
	pcm := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := range chans {
			sum += float32(buf.Data[i*chans+c]-offset) / scale
		}
		pcm[i] = sum / float32(chans)
	}
	return pcm, buf.Format.SampleRate, nil
}

// Play creates a channel for s, optionally paused.
func (e *Engine) Play(s audio.Sound, paused bool) (audio.Channel, error) {
	snd, ok := s.(*sound)
	if !ok || snd == nil {
		return nil, audio.ErrInvalidHandle
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, audio.ErrNoEngine
	}
	if snd.released {
		return nil, audio.ErrInvalidHandle
	}
	ch := &channel{
		eng:    e,
		snd:    snd,
		volume: 1,
		pitch:  1,
		paused: paused,
		min:    1,
		max:    10000,
	}
	e.channels = append(e.channels, ch)
	return ch, nil
}

// SetListener places the ear used by Render.
func (e *Engine) SetListener(l audio.Listener) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return audio.ErrNoEngine
	}
	e.listener = l
	return nil
}

// Update forgets channels that were stopped or ran to their end.
func (e *Engine) Update() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return audio.ErrNoEngine
	}
	live := e.channels[:0]
	for _, ch := range e.channels {
		if !ch.stopped && !ch.done {
			live = append(live, ch)
		}
	}
	clear(e.channels[len(live):])
	e.channels = live
	return nil
}

// Active is the number of channels Render would currently mix.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ch := range e.channels {
		if ch.audible() {
			n++
		}
	}
	return n
}

// Close stops every channel. Further calls fail with audio.ErrNoEngine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.channels {
		ch.stopped = true
	}
	e.channels = nil
	e.closed = true
	return nil
}

// sound fields other than name are guarded by eng.mu.
type sound struct {
	eng      *Engine
	name     string
	mode     audio.Mode
	pcm      []float32
	rate     int
	released bool
}

func (s *sound) Name() string { return s.name }

func (s *sound) Mode() audio.Mode {
	s.eng.mu.Lock()
	defer s.eng.mu.Unlock()
	return s.mode
}

func (s *sound) SetMode(m audio.Mode) error {
	s.eng.mu.Lock()
	defer s.eng.mu.Unlock()
	if s.released {
		return audio.ErrInvalidHandle
	}
	s.mode = m
	return nil
}

func (s *sound) Length() (time.Duration, error) {
	s.eng.mu.Lock()
	defer s.eng.mu.Unlock()
	if s.released {
		return 0, audio.ErrInvalidHandle
	}
	if s.rate <= 0 {
		return 0, nil
	}
	return time.Duration(len(s.pcm)) * time.Second / time.Duration(s.rate), nil
}

func (s *sound) Release() error {
	s.eng.mu.Lock()
	defer s.eng.mu.Unlock()
	if s.released {
		return audio.ErrInvalidHandle
	}
	s.released = true
	s.pcm = nil
	return nil
}
