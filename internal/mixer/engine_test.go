package mixer

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vaudio "github.com/vehiclesfx/extension/internal/audio"
)

const testRate = 8000

func writeWAV(t *testing.T, name string, bitDepth, chans int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, testRate, bitDepth, chans, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: chans, SampleRate: testRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}))
	require.NoError(t, enc.Close())
	return path
}

func constant(n, v int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(testRate, zerolog.Nop())
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func load(t *testing.T, e *Engine, data []int, mode vaudio.Mode) vaudio.Sound {
	t.Helper()
	s, err := e.CreateSound(writeWAV(t, "s", 16, 1, data), "s", mode)
	require.NoError(t, err)
	return s
}

func TestCreateSound_Decodes(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		chans int
		data  []int
		want  []float32
	}{
		{"16-bit mono", 16, 1, []int{0, 16384, -16384}, []float32{0, 0.5, -0.5}},
		{"16-bit stereo folds", 16, 2, []int{16384, 0, -32768, 0}, []float32{0.25, -0.5}},
		{"8-bit unsigned", 8, 1, []int{128, 192, 64}, []float32{0, 0.5, -0.5}},
		{"24-bit", 24, 1, []int{1 << 22}, []float32{0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t)
			s, err := e.CreateSound(writeWAV(t, "a", tt.depth, tt.chans, tt.data), "a", vaudio.Mode2D)
			require.NoError(t, err)
			snd := s.(*sound)
			assert.Equal(t, testRate, snd.rate)
			assert.InDeltaSlice(t, tt.want, snd.pcm, 1e-6)
		})
	}
}

func TestCreateSound_Length(t *testing.T) {
	e := newEngine(t)
	s := load(t, e, constant(testRate/2, 0), vaudio.Mode2D)
	d, err := s.Length()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)
}

func TestCreateSound_Errors(t *testing.T) {
	e := newEngine(t)

	_, err := e.CreateSound(filepath.Join(t.TempDir(), "missing.wav"), "x", vaudio.Mode2D)
	assert.ErrorIs(t, err, os.ErrNotExist)

	junk := filepath.Join(t.TempDir(), "junk.wav")
	require.NoError(t, os.WriteFile(junk, []byte("not a riff file at all"), 0644))
	_, err = e.CreateSound(junk, "x", vaudio.Mode2D)
	assert.Error(t, err)
}

func TestRender_2DIsCentered(t *testing.T) {
	e := newEngine(t)
	s := load(t, e, constant(64, 16384), vaudio.Mode2D|vaudio.ModeLoop)
	ch, err := e.Play(s, false)
	require.NoError(t, err)
	require.NoError(t, ch.SetVolume(0.8))

	buf := make([]float32, 32)
	e.Render(buf)
	want := float32(math.Tanh(0.5 * 0.8 * centerGain))
	for _, v := range buf {
		assert.InDelta(t, want, v, 1e-6)
	}
}

func TestRender_OneShotFinishes(t *testing.T) {
	e := newEngine(t)
	s := load(t, e, constant(100, 16384), vaudio.Mode2D|vaudio.ModeLoopOff)
	ch, err := e.Play(s, false)
	require.NoError(t, err)
	require.NoError(t, ch.SetPitch(2))

	buf := make([]float32, 2*60)
	e.Render(buf)

	playing, err := ch.IsPlaying()
	require.NoError(t, err)
	assert.False(t, playing)
	assert.NotZero(t, buf[2*49])
	assert.Zero(t, buf[2*50], "silence after the last source frame")

	require.NoError(t, e.Update())
	assert.Zero(t, e.Active())
	assert.ErrorIs(t, ch.SetVolume(1), vaudio.ErrInvalidHandle)
}

func TestRender_LoopWraps(t *testing.T) {
	e := newEngine(t)
	s := load(t, e, constant(10, 16384), vaudio.Mode2D|vaudio.ModeLoop)
	ch, err := e.Play(s, false)
	require.NoError(t, err)

	buf := make([]float32, 2*100)
	e.Render(buf)
	playing, err := ch.IsPlaying()
	require.NoError(t, err)
	assert.True(t, playing)
	assert.NotZero(t, buf[len(buf)-1])
}

func TestRender_PausedIsSilent(t *testing.T) {
	e := newEngine(t)
	s := load(t, e, constant(64, 16384), vaudio.Mode2D|vaudio.ModeLoop)
	ch, err := e.Play(s, true)
	require.NoError(t, err)

	buf := make([]float32, 16)
	e.Render(buf)
	assert.Equal(t, make([]float32, 16), buf)
	assert.Zero(t, e.Active())

	playing, err := ch.IsPlaying()
	require.NoError(t, err)
	assert.True(t, playing, "paused channels are still alive")

	require.NoError(t, ch.SetPaused(false))
	assert.Equal(t, 1, e.Active())
}

func TestRender_Spatial(t *testing.T) {
	tests := []struct {
		name        string
		pos         audio3
		min, max    float64
		left, right float64
	}{
		{"right of listener", audio3{5, 0, 0}, 10, 100, 0, 1},
		{"left of listener", audio3{-5, 0, 0}, 10, 100, 1, 0},
		{"ahead, attenuated", audio3{0, 20, 0}, 1, 300, centerGain / 20, centerGain / 20},
		{"beyond max is frozen", audio3{0, 1000, 0}, 1, 100, centerGain / 100, centerGain / 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t)
			s := load(t, e, constant(64, 16384), vaudio.Mode3D|vaudio.ModeLoop)
			ch, err := e.Play(s, false)
			require.NoError(t, err)
			require.NoError(t, ch.Set3DMinMaxDistance(tt.min, tt.max))
			require.NoError(t, ch.Set3DAttributes(vaudio.Vec3{X: tt.pos[0], Y: tt.pos[1], Z: tt.pos[2]}, vaudio.Vec3{}))

			buf := make([]float32, 2)
			e.Render(buf)
			assert.InDelta(t, math.Tanh(0.5*tt.left), buf[0], 1e-6)
			assert.InDelta(t, math.Tanh(0.5*tt.right), buf[1], 1e-6)
		})
	}
}

type audio3 [3]float64

func TestEngine_Lifecycle(t *testing.T) {
	e := New(testRate, zerolog.Nop())
	s := load(t, e, constant(16, 0), vaudio.Mode2D)

	ch, err := e.Play(s, false)
	require.NoError(t, err)
	require.NoError(t, ch.Stop())
	assert.ErrorIs(t, ch.Stop(), vaudio.ErrInvalidHandle)
	_, err = ch.IsPlaying()
	assert.ErrorIs(t, err, vaudio.ErrInvalidHandle)

	require.NoError(t, s.Release())
	_, err = e.Play(s, false)
	assert.ErrorIs(t, err, vaudio.ErrInvalidHandle)

	require.NoError(t, e.Close())
	_, err = e.CreateSound("x.wav", "x", vaudio.Mode2D)
	assert.ErrorIs(t, err, vaudio.ErrNoEngine)
	assert.ErrorIs(t, e.Update(), vaudio.ErrNoEngine)
}

func TestSet3DMinMaxDistance_Rejects(t *testing.T) {
	e := newEngine(t)
	ch, err := e.Play(load(t, e, constant(4, 0), vaudio.Mode3D), false)
	require.NoError(t, err)

	var ee *vaudio.EngineError
	assert.ErrorAs(t, ch.Set3DMinMaxDistance(0, 10), &ee)
	assert.ErrorAs(t, ch.Set3DMinMaxDistance(5, 1), &ee)
}
