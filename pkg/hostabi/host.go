package hostabi

/*
#include <stdlib.h>
#include "hostabi.h"
*/
import "C"

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/vehiclesfx/extension/internal/audio"
	"github.com/vehiclesfx/extension/internal/host"
)

// Host is the function table the game-side loader hands over at init. It is
// both the audio engine and the vehicle telemetry provider. The table is
// owned by the host and must outlive the plugin.
type Host struct {
	api *C.vsfx_host_api
}

func newHost(api *C.vsfx_host_api) *Host {
	return &Host{api: api}
}

func vec(v audio.Vec3) C.vsfx_vec3 {
	return C.vsfx_vec3{x: C.double(v.X), y: C.double(v.Y), z: C.double(v.Z)}
}

func goVec(v C.vsfx_vec3) audio.Vec3 {
	return audio.Vec3{X: float64(v.x), Y: float64(v.y), Z: float64(v.z)}
}

// CreateSound loads path through the host engine. Mode bits are passed as is.
func (h *Host) CreateSound(path, name string, mode audio.Mode) (audio.Sound, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	var ptr unsafe.Pointer
	rc := C.vsfx_create_sound(h.api, cpath, C.uint32_t(mode), &ptr)
	if err := audio.Failed("createSound", int(rc)); err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, fmt.Errorf("createSound %s: %w", name, audio.ErrInvalidHandle)
	}
	return &sound{api: h.api, ptr: ptr, name: name, mode: mode}, nil
}

func (h *Host) Play(s audio.Sound, paused bool) (audio.Channel, error) {
	snd, ok := s.(*sound)
	if !ok || snd.ptr == nil {
		return nil, audio.ErrInvalidHandle
	}
	var ptr unsafe.Pointer
	rc := C.vsfx_play_sound(h.api, snd.ptr, cbool(paused), &ptr)
	if err := audio.Failed("playSound", int(rc)); err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, audio.ErrInvalidHandle
	}
	return &channel{api: h.api, ptr: ptr}, nil
}

func (h *Host) SetListener(l audio.Listener) error {
	pos, vel, fwd, up := vec(l.Position), vec(l.Velocity), vec(l.Forward), vec(l.Up)
	return audio.Failed("set3DListenerAttributes", int(C.vsfx_set_listener(h.api, &pos, &vel, &fwd, &up)))
}

func (h *Host) Update() error {
	return audio.Failed("update", int(C.vsfx_update(h.api)))
}

func (h *Host) Close() error {
	return audio.Failed("close", int(C.vsfx_close(h.api)))
}

func (h *Host) Alive(id host.VehicleID) bool {
	return C.vsfx_vehicle_alive(h.api, C.uint64_t(id)) != 0
}

func (h *Host) State(id host.VehicleID) (host.VehicleState, error) {
	var out C.vsfx_vehicle_state
	if err := audio.Failed("vehicleState", int(C.vsfx_get_vehicle_state(h.api, C.uint64_t(id), &out))); err != nil {
		return host.VehicleState{}, err
	}
	return host.VehicleState{
		ModelID:   int(out.model_id),
		Position:  goVec(out.position),
		Velocity:  goVec(out.velocity),
		Gear:      int(out.gear),
		GasPedal:  float64(out.gas_pedal),
		Health:    float64(out.health),
		WheelSpin: float64(out.wheel_spin),
		Drivable:  out.drivable != 0,
		Wrecked:   out.wrecked != 0,
		Drowning:  out.drowning != 0,
	}, nil
}

func (h *Host) SpeedProxy(id host.VehicleID) (float64, error) {
	var out C.double
	if err := audio.Failed("speedProxy", int(C.vsfx_speed_proxy(h.api, C.uint64_t(id), &out))); err != nil {
		return 0, err
	}
	return float64(out), nil
}

func (h *Host) PerGearMaxProxy(id host.VehicleID, gear int) (float64, error) {
	var out C.double
	if err := audio.Failed("gearMaxProxy", int(C.vsfx_gear_max_proxy(h.api, C.uint64_t(id), C.int32_t(gear), &out))); err != nil {
		return 0, err
	}
	return float64(out), nil
}

func (h *Host) MuteBuiltinAudio(id host.VehicleID) error {
	return audio.Failed("muteBuiltinAudio", int(C.vsfx_mute_builtin_audio(h.api, C.uint64_t(id))))
}

type sound struct {
	api  *C.vsfx_host_api
	ptr  unsafe.Pointer
	name string
	mode audio.Mode
}

func (s *sound) Name() string     { return s.name }
func (s *sound) Mode() audio.Mode { return s.mode }

func (s *sound) SetMode(m audio.Mode) error {
	if s.ptr == nil {
		return audio.ErrInvalidHandle
	}
	if err := audio.Failed("setMode", int(C.vsfx_sound_set_mode(s.api, s.ptr, C.uint32_t(m)))); err != nil {
		return err
	}
	s.mode = m
	return nil
}

func (s *sound) Length() (time.Duration, error) {
	if s.ptr == nil {
		return 0, audio.ErrInvalidHandle
	}
	var ms C.uint32_t
	if err := audio.Failed("getLength", int(C.vsfx_sound_length_ms(s.api, s.ptr, &ms))); err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (s *sound) Release() error {
	if s.ptr == nil {
		return audio.ErrInvalidHandle
	}
	err := audio.Failed("release", int(C.vsfx_sound_release(s.api, s.ptr)))
	s.ptr = nil
	return err
}

// channel handles are owned by the host engine; a finished channel reports
// an engine error rather than crashing.
type channel struct {
	api *C.vsfx_host_api
	ptr unsafe.Pointer
}

func (c *channel) SetVolume(v float64) error {
	return audio.Failed("setVolume", int(C.vsfx_channel_set_volume(c.api, c.ptr, C.float(v))))
}

func (c *channel) Volume() (float64, error) {
	var v C.float
	if err := audio.Failed("getVolume", int(C.vsfx_channel_get_volume(c.api, c.ptr, &v))); err != nil {
		return 0, err
	}
	return float64(v), nil
}

func (c *channel) SetPitch(p float64) error {
	return audio.Failed("setPitch", int(C.vsfx_channel_set_pitch(c.api, c.ptr, C.float(p))))
}

func (c *channel) Set3DAttributes(pos, vel audio.Vec3) error {
	p, v := vec(pos), vec(vel)
	return audio.Failed("set3DAttributes", int(C.vsfx_channel_set_3d(c.api, c.ptr, &p, &v)))
}

func (c *channel) Set3DMinMaxDistance(minDist, maxDist float64) error {
	return audio.Failed("set3DMinMaxDistance", int(C.vsfx_channel_set_min_max(c.api, c.ptr, C.float(minDist), C.float(maxDist))))
}

func (c *channel) SetPaused(paused bool) error {
	return audio.Failed("setPaused", int(C.vsfx_channel_set_paused(c.api, c.ptr, cbool(paused))))
}

func (c *channel) IsPlaying() (bool, error) {
	var playing C.int32_t
	if err := audio.Failed("isPlaying", int(C.vsfx_channel_is_playing(c.api, c.ptr, &playing))); err != nil {
		return false, err
	}
	return playing != 0, nil
}

func (c *channel) Stop() error {
	return audio.Failed("stop", int(C.vsfx_channel_stop(c.api, c.ptr)))
}

func cbool(b bool) C.int32_t {
	if b {
		return 1
	}
	return 0
}

// frame converts the host's per-tick frame.
func frame(f *C.vsfx_frame) host.Frame {
	return host.Frame{
		Now:           time.Duration(f.now_ms) * time.Millisecond,
		Dt:            float64(f.dt),
		Paused:        f.paused != 0,
		Player:        host.VehicleID(f.player),
		HasPlayer:     f.has_player != 0,
		PadAccelerate: float64(f.pad_accelerate),
		Camera: host.Camera{
			Position: goVec(f.cam_position),
			Forward:  goVec(f.cam_forward),
			Up:       goVec(f.cam_up),
		},
	}
}

var (
	_ audio.Engine   = (*Host)(nil)
	_ host.Telemetry = (*Host)(nil)
)
