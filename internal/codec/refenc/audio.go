package refenc

import (
	"fmt"
	"sync"

	"github.com/streamlinux/streamlinux/internal/codec"
	"github.com/streamlinux/streamlinux/internal/media"
)

// AudioEncoder is a software reference AudioEncoder: an Opus-frame-shaped
// passthrough that repacks each input frame's samples as-is, but keeps
// real framing and PTS bookkeeping. FEC and DTX are not offered by this
// encoder at all — it has no concept of either — which mirrors §4.4's
// "FEC and DTX permanently disabled" requirement by construction rather
// than by a runtime switch.
type AudioEncoder struct {
	mu    sync.Mutex
	cfg   codec.AudioEncoderConfig
	stats codec.AudioEncoderStats
}

// NewAudioEncoder constructs a reference AudioEncoder.
func NewAudioEncoder(cfg codec.AudioEncoderConfig) (*AudioEncoder, error) {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return nil, fmt.Errorf("refenc: invalid audio config %+v", cfg)
	}
	if cfg.FrameSizeMs <= 0 {
		cfg.FrameSizeMs = 20
	}
	return &AudioEncoder{cfg: cfg}, nil
}

func (e *AudioEncoder) Encode(frame *media.RawAudioFrame) (*media.EncodedAudioFrame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data := make([]byte, len(frame.Data)*4+4)
	spc := frame.SamplesPerChannel
	data[0] = byte(spc)
	data[1] = byte(spc >> 8)
	data[2] = byte(spc >> 16)
	data[3] = byte(spc >> 24)
	for i, s := range frame.Data {
		bits := float32bits(s)
		o := 4 + i*4
		data[o] = byte(bits)
		data[o+1] = byte(bits >> 8)
		data[o+2] = byte(bits >> 16)
		data[o+3] = byte(bits >> 24)
	}

	e.stats.FramesEncoded++
	e.stats.BytesEncoded += uint64(len(data))
	e.stats.SamplesEncoded += uint64(len(frame.Data))

	return &media.EncodedAudioFrame{
		Data:  data,
		PTS:   frame.PTS,
		Codec: media.AudioCodecOpus,
	}, nil
}

func (e *AudioEncoder) Provider() media.Provider { return media.ProviderReference }
func (e *AudioEncoder) Config() codec.AudioEncoderConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

func (e *AudioEncoder) Stats() codec.AudioEncoderStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *AudioEncoder) Close() error { return nil }

var _ codec.AudioEncoder = (*AudioEncoder)(nil)

// AudioDecoder is the matching reference AudioDecoder.
type AudioDecoder struct {
	sampleRate, channels int
}

// NewAudioDecoder constructs a reference AudioDecoder.
func NewAudioDecoder(cfg codec.AudioDecoderConfig) (*AudioDecoder, error) {
	return &AudioDecoder{sampleRate: cfg.SampleRate, channels: cfg.Channels}, nil
}

func (d *AudioDecoder) Decode(frame *media.EncodedAudioFrame) (*media.RawAudioFrame, error) {
	if len(frame.Data) < 4 || (len(frame.Data)-4)%4 != 0 {
		return nil, fmt.Errorf("%w: truncated sample data", codec.ErrDecodingFailed)
	}
	spc := int(frame.Data[0]) | int(frame.Data[1])<<8 | int(frame.Data[2])<<16 | int(frame.Data[3])<<24
	samples := make([]float32, (len(frame.Data)-4)/4)
	for i := range samples {
		o := 4 + i*4
		bits := uint32(frame.Data[o]) | uint32(frame.Data[o+1])<<8 |
			uint32(frame.Data[o+2])<<16 | uint32(frame.Data[o+3])<<24
		samples[i] = float32frombits(bits)
	}
	return &media.RawAudioFrame{
		Data:              samples,
		SampleRate:        d.sampleRate,
		Channels:           d.channels,
		SamplesPerChannel: spc,
		PTS:               frame.PTS,
	}, nil
}

func (d *AudioDecoder) Flush() error             { return nil }
func (d *AudioDecoder) Provider() media.Provider { return media.ProviderReference }
func (d *AudioDecoder) Close() error             { return nil }

var _ codec.AudioDecoder = (*AudioDecoder)(nil)

func init() {
	codec.RegisterAudioEncoder(media.ProviderReference, func(cfg codec.AudioEncoderConfig) (codec.AudioEncoder, error) {
		return NewAudioEncoder(cfg)
	})
	codec.RegisterAudioDecoder(media.ProviderReference, func(cfg codec.AudioDecoderConfig) (codec.AudioDecoder, error) {
		return NewAudioDecoder(cfg)
	})
}
