// Package codec defines the VideoEncoder/AudioEncoder/VideoDecoder/
// AudioDecoder contracts and a provider registry, grounded on
// thesyncim-media's encoder.go (VideoEncoderConfig, EncoderStats,
// provider-aware registry) generalized to this system's codec scope
// (H.264/H.265/VP9/AV1 video, Opus-only audio) and state machine.
package codec

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/streamlinux/streamlinux/internal/media"
)

var (
	ErrBufferTooSmall    = errors.New("codec: buffer too small")
	ErrProviderNotFound  = errors.New("codec: provider not available")
	ErrCodecNotSupported = errors.New("codec: codec not supported by provider")
	ErrEncodingFailed    = errors.New("codec: encoding failed")
	ErrHardwareFailed    = errors.New("codec: hardware encoder failed")
	ErrInvalidState      = errors.New("codec: invalid state transition")
)

// HWAccel selects a hardware acceleration backend for the encoder.
type HWAccel int

const (
	HWAccelNone HWAccel = iota
	HWAccelVAAPI
	HWAccelNVENC
	HWAccelAMF
	HWAccelQSV
)

func (h HWAccel) String() string {
	switch h {
	case HWAccelVAAPI:
		return "VAAPI"
	case HWAccelNVENC:
		return "NVENC"
	case HWAccelAMF:
		return "AMF"
	case HWAccelQSV:
		return "QSV"
	default:
		return "none"
	}
}

// EncoderState models the video encoder lifecycle from spec §4.3.
type EncoderState int32

const (
	StateUninitialized EncoderState = iota
	StateReady
	StateEncoding
	StateKeyframePending
	StateFlushing
	StateClosed
)

func (s EncoderState) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateReady:
		return "Ready"
	case StateEncoding:
		return "Encoding"
	case StateKeyframePending:
		return "KeyframePending"
	case StateFlushing:
		return "Flushing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// VideoEncoderConfig configures a VideoEncoder.
type VideoEncoderConfig struct {
	Codec    media.VideoCodec
	Provider media.Provider

	Width, Height int
	FPS           int
	BitrateBps    int
	GOPSize       int // keyframe interval, frames
	BFrames       int // always 0 for this system's low-latency preset
	HWAccel       HWAccel

	Threads     int
	PayloadType uint8
}

// DefaultVideoEncoderConfig returns the low-latency preset defaults.
func DefaultVideoEncoderConfig(c media.VideoCodec, width, height int) VideoEncoderConfig {
	return VideoEncoderConfig{
		Codec:      c,
		Provider:   media.ProviderAuto,
		Width:      width,
		Height:     height,
		FPS:        30,
		BitrateBps: 4_000_000,
		GOPSize:    60,
		BFrames:    0,
		HWAccel:    HWAccelNone,
		PayloadType: c.DefaultPayloadType(),
	}
}

// EncoderStats reports encoding metrics.
type EncoderStats struct {
	FramesEncoded    uint64
	KeyframesEncoded uint64
	BytesEncoded     uint64
	DroppedFrames    uint64
	HardwareFallbacks uint64
}

// VideoEncoder matches spec §4.3. Implementations must convert unsupported
// raw pixel formats via a scaler before encoding.
type VideoEncoder interface {
	io.Closer

	// Encode consumes one raw frame. Returns nil if the encoder is
	// buffering and has no output ready yet.
	Encode(frame *media.RawVideoFrame) (*media.EncodedVideoFrame, error)

	// RequestKeyframe forces the next encoded frame to be a keyframe.
	// Idempotent within one frame interval.
	RequestKeyframe()

	// SetBitrate updates the target bitrate. Takes effect within at
	// most GOPSize frames and must not introduce a discontinuity.
	SetBitrate(bitrateBps int) error

	// SetResolution updates the encoding resolution dynamically.
	SetResolution(width, height int) error

	Provider() media.Provider
	Config() VideoEncoderConfig
	Codec() media.VideoCodec
	Stats() EncoderStats
	State() EncoderState

	// Flush drains any buffered frames, transitioning to StateFlushing
	// and back to StateReady.
	Flush() ([]*media.EncodedVideoFrame, error)
}

// AudioEncoderConfig configures an AudioEncoder. FEC and DTX are fixed
// off per §4.4's latency-over-resilience requirement.
type AudioEncoderConfig struct {
	Provider    media.Provider
	SampleRate  int
	Channels    int
	BitrateBps  int
	FrameSizeMs int
	PayloadType uint8
}

// DefaultAudioEncoderConfig returns the default Opus-style configuration.
func DefaultAudioEncoderConfig() AudioEncoderConfig {
	return AudioEncoderConfig{
		Provider:    media.ProviderAuto,
		SampleRate:  48000,
		Channels:    2,
		BitrateBps:  64000,
		FrameSizeMs: 20,
		PayloadType: media.AudioCodecOpus.DefaultPayloadType(),
	}
}

// AudioEncoderStats reports audio encoding metrics.
type AudioEncoderStats struct {
	FramesEncoded  uint64
	BytesEncoded   uint64
	SamplesEncoded uint64
}

// AudioEncoder matches spec §4.4: one encoded packet per input frame of
// exactly the configured duration.
type AudioEncoder interface {
	io.Closer
	Encode(frame *media.RawAudioFrame) (*media.EncodedAudioFrame, error)
	Provider() media.Provider
	Config() AudioEncoderConfig
	Stats() AudioEncoderStats
}

type videoEncoderFactory func(VideoEncoderConfig) (VideoEncoder, error)
type audioEncoderFactory func(AudioEncoderConfig) (AudioEncoder, error)

type encoderRegistry struct {
	mu             sync.RWMutex
	videoProviders map[media.VideoCodec]map[media.Provider]videoEncoderFactory
	audioProviders map[media.Provider]audioEncoderFactory
	videoDefaults  map[media.VideoCodec]media.Provider
	audioDefault   media.Provider
}

var globalEncoderRegistry = &encoderRegistry{
	videoProviders: make(map[media.VideoCodec]map[media.Provider]videoEncoderFactory),
	audioProviders: make(map[media.Provider]audioEncoderFactory),
	videoDefaults:  make(map[media.VideoCodec]media.Provider),
}

// RegisterVideoEncoder registers a VideoEncoder factory for a codec+provider.
func RegisterVideoEncoder(c media.VideoCodec, p media.Provider, factory videoEncoderFactory) {
	globalEncoderRegistry.mu.Lock()
	defer globalEncoderRegistry.mu.Unlock()
	if globalEncoderRegistry.videoProviders[c] == nil {
		globalEncoderRegistry.videoProviders[c] = make(map[media.Provider]videoEncoderFactory)
	}
	globalEncoderRegistry.videoProviders[c][p] = factory
	current, exists := globalEncoderRegistry.videoDefaults[c]
	if !exists || (p.License().Permissive() && !current.License().Permissive()) {
		globalEncoderRegistry.videoDefaults[c] = p
	}
}

// RegisterAudioEncoder registers an AudioEncoder factory for a provider.
func RegisterAudioEncoder(p media.Provider, factory audioEncoderFactory) {
	globalEncoderRegistry.mu.Lock()
	defer globalEncoderRegistry.mu.Unlock()
	globalEncoderRegistry.audioProviders[p] = factory
	if globalEncoderRegistry.audioDefault == media.ProviderAuto || p.License().Permissive() {
		globalEncoderRegistry.audioDefault = p
	}
}

// NewVideoEncoder resolves a provider (ProviderAuto picks the registry
// default) and constructs a VideoEncoder.
func NewVideoEncoder(config VideoEncoderConfig) (VideoEncoder, error) {
	globalEncoderRegistry.mu.RLock()
	defer globalEncoderRegistry.mu.RUnlock()

	providers := globalEncoderRegistry.videoProviders[config.Codec]
	if providers == nil {
		return nil, fmt.Errorf("%w: no providers for %s", ErrCodecNotSupported, config.Codec)
	}
	p := config.Provider
	if p == media.ProviderAuto {
		p = globalEncoderRegistry.videoDefaults[config.Codec]
	}
	factory, ok := providers[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s for %s", ErrProviderNotFound, p, config.Codec)
	}
	return factory(config)
}

// NewAudioEncoder resolves a provider and constructs an AudioEncoder.
func NewAudioEncoder(config AudioEncoderConfig) (AudioEncoder, error) {
	globalEncoderRegistry.mu.RLock()
	defer globalEncoderRegistry.mu.RUnlock()

	p := config.Provider
	if p == media.ProviderAuto {
		p = globalEncoderRegistry.audioDefault
	}
	factory, ok := globalEncoderRegistry.audioProviders[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, p)
	}
	return factory(config)
}
