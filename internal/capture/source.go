// Package capture defines the contracts a screen/audio capture backend
// must satisfy, plus a registry so a host process can select a backend
// by name at startup.
//
// Grounded on thesyncim-media's source.go (VideoSource/AudioSource
// interfaces, sourceRegistry), generalized from camera/microphone
// capture to screen and system-audio capture.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/streamlinux/streamlinux/internal/media"
)

// ErrNotSupported is returned by optional operations a backend doesn't implement.
var ErrNotSupported = errors.New("capture: operation not supported")

// ErrCaptureReadFailed is returned when a read from the underlying display
// or audio server fails transiently.
var ErrCaptureReadFailed = errors.New("capture: read failed")

// ErrPermissionDenied is returned when the display/audio server refuses
// the capture request (missing portal grant, PipeWire denial, etc).
var ErrPermissionDenied = errors.New("capture: permission denied")

// MonitorInfo describes one enumerable capture target.
type MonitorInfo struct {
	ID        int
	Name      string
	Width     int
	Height    int
	Primary   bool
}

// VideoFrameCallback delivers a frame in push mode.
type VideoFrameCallback func(frame *media.RawVideoFrame)

// AudioSamplesCallback delivers samples in push mode.
type AudioSamplesCallback func(samples *media.RawAudioFrame)

// ScreenCaptureSource produces raw video frames from a monitor or window.
// Implementations may deliver frames in pull mode (ReadFrame) or push mode
// (SetCallback); a given backend picks one and documents it.
type ScreenCaptureSource interface {
	// Start begins capture. The context governs the capture session's
	// lifetime; cancelling it must cause ReadFrame to return ctx.Err()
	// and any push-mode delivery to stop.
	Start(ctx context.Context) error

	// Stop halts capture without releasing backend resources.
	Stop() error

	// Close releases all backend resources. Start after Close is an error.
	Close() error

	// IsRunning reports whether the source is between Start and Stop.
	IsRunning() bool

	// ReadFrame reads the next frame (pull mode, blocking).
	ReadFrame(ctx context.Context) (*media.RawVideoFrame, error)

	// SetCallback switches the source into push mode.
	SetCallback(cb VideoFrameCallback)

	// GetMonitors enumerates capturable monitors. Must be callable before Start.
	GetMonitors(ctx context.Context) ([]MonitorInfo, error)

	// Config reports the source's current output format.
	Config() SourceConfig
}

// AudioCaptureSource produces raw audio samples, typically system/loopback
// audio rather than a microphone.
type AudioCaptureSource interface {
	Start(ctx context.Context) error
	Stop() error
	Close() error
	IsRunning() bool

	ReadSamples(ctx context.Context) (*media.RawAudioFrame, error)
	SetCallback(cb AudioSamplesCallback)

	SampleRate() int
	Channels() int
}

// SourceConfig describes a capture source's negotiated output format.
type SourceConfig struct {
	Width  int
	Height int
	FPS    int
	Format media.PixelFormat
}

// Backend names a registered capture implementation.
type Backend string

const (
	BackendTestPattern Backend = "test-pattern"
	BackendX11         Backend = "x11"
	BackendWayland      Backend = "wayland"
)

type videoFactory func(config any) (ScreenCaptureSource, error)
type audioFactory func(config any) (AudioCaptureSource, error)

type registry struct {
	mu    sync.RWMutex
	video map[Backend]videoFactory
	audio map[Backend]audioFactory
}

var global = &registry{
	video: make(map[Backend]videoFactory),
	audio: make(map[Backend]audioFactory),
}

// RegisterVideoBackend registers a ScreenCaptureSource factory under a name.
func RegisterVideoBackend(b Backend, factory videoFactory) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.video[b] = factory
}

// RegisterAudioBackend registers an AudioCaptureSource factory under a name.
func RegisterAudioBackend(b Backend, factory audioFactory) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.audio[b] = factory
}

// NewVideoSource creates a registered ScreenCaptureSource by backend name.
// X11/Wayland backends are external collaborators (see doc.go) and are not
// registered by this repository; requesting them returns ErrNotSupported.
func NewVideoSource(b Backend, config any) (ScreenCaptureSource, error) {
	global.mu.RLock()
	factory, ok := global.video[b]
	global.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("capture: video backend %q: %w", b, ErrNotSupported)
	}
	return factory(config)
}

// NewAudioSource creates a registered AudioCaptureSource by backend name.
func NewAudioSource(b Backend, config any) (AudioCaptureSource, error) {
	global.mu.RLock()
	factory, ok := global.audio[b]
	global.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("capture: audio backend %q: %w", b, ErrNotSupported)
	}
	return factory(config)
}

// AvailableVideoBackends lists registered video backend names.
func AvailableVideoBackends() []Backend {
	global.mu.RLock()
	defer global.mu.RUnlock()
	out := make([]Backend, 0, len(global.video))
	for b := range global.video {
		out = append(out, b)
	}
	return out
}
