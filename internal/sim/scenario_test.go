package sim

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const driveYAML = `
model: 411
tickRate: 50
segments:
  - duration: 2s
    gear: 1
    throttle: 1
    speedFrom: 0
    speedTo: 20
    gearMax: 40
  - duration: 500ms
    gear: 2
    paused: true
    speedFrom: 20
    speedTo: 20
  - duration: 1s
    destroy: true
`

func TestParse(t *testing.T) {
	sc, err := Parse(strings.NewReader(driveYAML))
	require.NoError(t, err)

	assert.Equal(t, 411, sc.Model)
	assert.Equal(t, 50, sc.TickRate)
	assert.Equal(t, 44100, sc.SampleRate, "default sample rate")
	require.Len(t, sc.Segments, 3)
	assert.Equal(t, 2*time.Second, sc.Segments[0].Duration)
	assert.Equal(t, 500*time.Millisecond, sc.Segments[1].Duration)
	assert.True(t, sc.Segments[1].Paused)
	assert.True(t, sc.Segments[2].Destroy)

	assert.Equal(t, 3500*time.Millisecond, sc.Duration())
	assert.Equal(t, 175, sc.Ticks())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "model: 1\nsegments:\n  - duration: 1s\n    gaer: 2\n"},
		{"no segments", "model: 1\n"},
		{"zero duration", "model: 1\nsegments:\n  - gear: 1\n"},
		{"throttle above one", "model: 1\nsegments:\n  - duration: 1s\n    throttle: 2\n"},
		{"bad tick rate", "model: 1\ntickRate: -5\nsegments:\n  - duration: 1s\n"},
		{"not yaml", "model: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestDrive_FollowsSegments(t *testing.T) {
	sc, err := Parse(strings.NewReader(driveYAML))
	require.NoError(t, err)
	d := NewDrive(sc)

	f := d.Frame(50) // 1s into the first segment
	assert.Equal(t, time.Second, f.Now)
	assert.InDelta(t, 0.02, f.Dt, 1e-12)
	assert.True(t, f.HasPlayer)
	assert.False(t, f.Paused)
	assert.InDelta(t, 255, f.PadAccelerate, 1e-9)

	speed, err := d.SpeedProxy(PlayerID)
	require.NoError(t, err)
	assert.InDelta(t, 10, speed, 1e-9)
	gearMax, err := d.PerGearMaxProxy(PlayerID, 1)
	require.NoError(t, err)
	assert.Equal(t, 40.0, gearMax)

	st, err := d.State(PlayerID)
	require.NoError(t, err)
	assert.True(t, st.Valid())
	assert.Equal(t, 411, st.ModelID)
	assert.Equal(t, 1, st.Gear)

	f = d.Frame(110) // 2.2s, paused segment
	assert.True(t, f.Paused)
	assert.Zero(t, f.PadAccelerate)

	f = d.Frame(150) // 3s, destroyed
	assert.False(t, f.HasPlayer)
	assert.False(t, d.Alive(PlayerID))
	_, err = d.State(PlayerID)
	assert.Error(t, err)
	assert.Error(t, d.MuteBuiltinAudio(PlayerID))
}

func TestDrive_Wrecked(t *testing.T) {
	sc, err := Parse(strings.NewReader("model: 2\nsegments:\n  - duration: 1s\n    wrecked: true\n"))
	require.NoError(t, err)
	d := NewDrive(sc)
	d.Frame(0)

	st, err := d.State(PlayerID)
	require.NoError(t, err)
	assert.False(t, st.Valid())
	assert.True(t, d.Alive(PlayerID), "a wreck stays in the pool")
	assert.False(t, d.Alive(PlayerID+1))
}

func TestDrive_CameraFollows(t *testing.T) {
	sc, err := Parse(strings.NewReader("model: 2\ntickRate: 10\nsegments:\n  - duration: 1s\n    speedFrom: 10\n    speedTo: 10\n"))
	require.NoError(t, err)
	d := NewDrive(sc)

	var last float64
	for i := range 10 {
		f := d.Frame(i)
		st, err := d.State(PlayerID)
		require.NoError(t, err)
		assert.Greater(t, st.Position.Y, last)
		assert.InDelta(t, st.Position.Y-6, f.Camera.Position.Y, 1e-9)
		last = st.Position.Y
	}
	assert.InDelta(t, 10, last, 1e-9)
}
