package codec

import (
	"errors"
	"io"
	"sync"

	"github.com/streamlinux/streamlinux/internal/media"
)

// ErrDecodingFailed reports a transient decode error.
var ErrDecodingFailed = errors.New("codec: decoding failed")

// KeyframeNeededFunc is invoked by a decoder after an unrecoverable
// error to request upstream send a new keyframe (§4.7).
type KeyframeNeededFunc func()

// VideoDecoderConfig configures a VideoDecoder before the first frame.
// ParameterSets carries codec-specific out-of-band metadata (SPS/PPS for
// H.264) when the transport delivers it separately from the bitstream.
type VideoDecoderConfig struct {
	Codec          media.VideoCodec
	Provider       media.Provider
	ParameterSets  []byte
	OnKeyframeNeeded KeyframeNeededFunc
}

// VideoDecoder matches spec §4.7.
type VideoDecoder interface {
	io.Closer

	// Decode consumes one encoded frame, returning a display-ready raw
	// frame or nil if the decoder is still buffering reference frames.
	Decode(frame *media.EncodedVideoFrame) (*media.RawVideoFrame, error)

	// Flush discards buffered decoder state, used on resync.
	Flush() error

	Codec() media.VideoCodec
	Provider() media.Provider
}

// AudioDecoderConfig configures an AudioDecoder.
type AudioDecoderConfig struct {
	Provider   media.Provider
	SampleRate int
	Channels   int
}

// AudioDecoder matches spec §4.7.
type AudioDecoder interface {
	io.Closer
	Decode(frame *media.EncodedAudioFrame) (*media.RawAudioFrame, error)
	Flush() error
	Provider() media.Provider
}

type videoDecoderFactory func(VideoDecoderConfig) (VideoDecoder, error)
type audioDecoderFactory func(AudioDecoderConfig) (AudioDecoder, error)

// RegisterVideoDecoder registers a VideoDecoder factory for a codec+provider.
func RegisterVideoDecoder(c media.VideoCodec, p media.Provider, factory videoDecoderFactory) {
	globalDecoderRegistry.mu.Lock()
	defer globalDecoderRegistry.mu.Unlock()
	if globalDecoderRegistry.video[c] == nil {
		globalDecoderRegistry.video[c] = make(map[media.Provider]videoDecoderFactory)
	}
	globalDecoderRegistry.video[c][p] = factory
}

// RegisterAudioDecoder registers an AudioDecoder factory for a provider.
func RegisterAudioDecoder(p media.Provider, factory audioDecoderFactory) {
	globalDecoderRegistry.mu.Lock()
	defer globalDecoderRegistry.mu.Unlock()
	globalDecoderRegistry.audio[p] = factory
}

// NewVideoDecoder constructs a VideoDecoder for the requested codec+provider.
func NewVideoDecoder(config VideoDecoderConfig) (VideoDecoder, error) {
	globalDecoderRegistry.mu.RLock()
	defer globalDecoderRegistry.mu.RUnlock()
	providers := globalDecoderRegistry.video[config.Codec]
	if providers == nil {
		return nil, ErrCodecNotSupported
	}
	p := config.Provider
	if p == media.ProviderAuto {
		for candidate := range providers {
			p = candidate
			break
		}
	}
	factory, ok := providers[p]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return factory(config)
}

// NewAudioDecoder constructs an AudioDecoder for the requested provider.
func NewAudioDecoder(config AudioDecoderConfig) (AudioDecoder, error) {
	globalDecoderRegistry.mu.RLock()
	defer globalDecoderRegistry.mu.RUnlock()
	p := config.Provider
	if p == media.ProviderAuto {
		for candidate := range globalDecoderRegistry.audio {
			p = candidate
			break
		}
	}
	factory, ok := globalDecoderRegistry.audio[p]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return factory(config)
}

type decoderRegistry struct {
	mu    sync.RWMutex
	video map[media.VideoCodec]map[media.Provider]videoDecoderFactory
	audio map[media.Provider]audioDecoderFactory
}

var globalDecoderRegistry = &decoderRegistry{
	video: make(map[media.VideoCodec]map[media.Provider]videoDecoderFactory),
	audio: make(map[media.Provider]audioDecoderFactory),
}
