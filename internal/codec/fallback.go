package codec

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/streamlinux/streamlinux/internal/media"
)

// FallbackEncoder wraps a hardware VideoEncoder and a software VideoEncoder,
// implementing the single-automatic-fallback rule of §4.3: the first
// ErrHardwareFailed from the hardware encoder switches permanently to the
// software encoder; subsequent hardware failures never happen again because
// the hardware path is no longer consulted, and subsequent software
// failures are surfaced to the caller unmodified.
type FallbackEncoder struct {
	hw, sw   VideoEncoder
	fellBack atomic.Bool
	mu       sync.Mutex
	stats    EncoderStats
}

// NewFallbackEncoder returns a FallbackEncoder. hw may be nil, in which
// case the software encoder is used from the start. This repository ships
// no hardware backend, and nothing builds a FallbackEncoder from
// VideoEncoderConfig.HWAccel; that field is not consulted.
func NewFallbackEncoder(hw, sw VideoEncoder) *FallbackEncoder {
	f := &FallbackEncoder{hw: hw, sw: sw}
	if hw == nil {
		f.fellBack.Store(true)
	}
	return f
}

func (f *FallbackEncoder) active() VideoEncoder {
	if f.fellBack.Load() {
		return f.sw
	}
	return f.hw
}

func (f *FallbackEncoder) Encode(frame *media.RawVideoFrame) (*media.EncodedVideoFrame, error) {
	enc, err := f.active().Encode(frame)
	if err != nil {
		if !f.fellBack.Load() && errors.Is(err, ErrHardwareFailed) {
			f.fellBack.Store(true)
			f.mu.Lock()
			f.stats.HardwareFallbacks++
			f.mu.Unlock()
			return f.sw.Encode(frame)
		}
		return nil, err
	}
	return enc, nil
}

func (f *FallbackEncoder) RequestKeyframe()               { f.active().RequestKeyframe() }
func (f *FallbackEncoder) SetBitrate(bps int) error        { return f.active().SetBitrate(bps) }
func (f *FallbackEncoder) SetResolution(w, h int) error     { return f.active().SetResolution(w, h) }
func (f *FallbackEncoder) Provider() media.Provider         { return f.active().Provider() }
func (f *FallbackEncoder) Config() VideoEncoderConfig       { return f.active().Config() }
func (f *FallbackEncoder) Codec() media.VideoCodec          { return f.active().Codec() }
func (f *FallbackEncoder) State() EncoderState              { return f.active().State() }
func (f *FallbackEncoder) Flush() ([]*media.EncodedVideoFrame, error) { return f.active().Flush() }

func (f *FallbackEncoder) Stats() EncoderStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.active().Stats()
	s.HardwareFallbacks = f.stats.HardwareFallbacks
	return s
}

func (f *FallbackEncoder) Close() error {
	var err error
	if f.hw != nil {
		err = f.hw.Close()
	}
	if swErr := f.sw.Close(); swErr != nil {
		err = swErr
	}
	return err
}

var _ VideoEncoder = (*FallbackEncoder)(nil)
