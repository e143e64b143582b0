// Package refenc provides the one software codec backend this
// repository ships: a placeholder bitstream with real GOP/keyframe/PTS
// bookkeeping, standing in for libx264/libvpx/libaom/libopus. Grounded on
// thesyncim-media's encoder.go state-keeping and registry-registration
// pattern (init() self-registration, media.setProviderAvailable-style
// availability).
package refenc

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/streamlinux/streamlinux/internal/codec"
	"github.com/streamlinux/streamlinux/internal/media"
)

// VideoEncoder is a software reference VideoEncoder. Its bitstream is a
// flate-compressed copy of an 8-byte little-endian width/height header
// followed by the raw frame planes; the keyframe flag travels on
// EncodedVideoFrame, not in the bitstream. Not a real codec, but real
// enough to round trip through VideoDecoder with genuine GOP/keyframe/PTS
// semantics.
type VideoEncoder struct {
	mu      sync.Mutex
	cfg     codec.VideoEncoderConfig
	state   atomic.Int32
	stats   codec.EncoderStats
	framesSinceKey int
	keyframeRequested atomic.Bool
	pendingBitrate    atomic.Int64
}

// NewVideoEncoder constructs a reference VideoEncoder in StateReady.
func NewVideoEncoder(cfg codec.VideoEncoderConfig) (*VideoEncoder, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("refenc: invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.GOPSize <= 0 {
		cfg.GOPSize = 60
	}
	e := &VideoEncoder{cfg: cfg}
	e.state.Store(int32(codec.StateReady))
	e.pendingBitrate.Store(int64(cfg.BitrateBps))
	e.keyframeRequested.Store(true) // first frame is always a keyframe
	return e, nil
}

func (e *VideoEncoder) Encode(frame *media.RawVideoFrame) (*media.EncodedVideoFrame, error) {
	st := codec.EncoderState(e.state.Load())
	if st == codec.StateClosed || st == codec.StateUninitialized {
		return nil, codec.ErrInvalidState
	}
	e.state.Store(int32(codec.StateEncoding))

	keyframe := e.keyframeRequested.Swap(false) || e.framesSinceKey >= e.cfg.GOPSize
	if keyframe {
		e.framesSinceKey = 1
	} else {
		e.framesSinceKey++
	}

	var raw bytes.Buffer
	var header [8]byte
	header[0] = byte(frame.Width)
	header[1] = byte(frame.Width >> 8)
	header[2] = byte(frame.Width >> 16)
	header[3] = byte(frame.Width >> 24)
	header[4] = byte(frame.Height)
	header[5] = byte(frame.Height >> 8)
	header[6] = byte(frame.Height >> 16)
	header[7] = byte(frame.Height >> 24)
	raw.Write(header[:])
	for _, plane := range frame.Data {
		raw.Write(plane)
	}

	var compressed bytes.Buffer
	w, _ := flate.NewWriter(&compressed, flate.BestSpeed)
	if _, err := w.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: %v", codec.ErrEncodingFailed, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", codec.ErrEncodingFailed, err)
	}

	out := &media.EncodedVideoFrame{
		Data:     compressed.Bytes(),
		PTS:      frame.PTS,
		DTS:      frame.PTS,
		Keyframe: keyframe,
		Codec:    e.cfg.Codec,
	}

	e.mu.Lock()
	e.stats.FramesEncoded++
	e.stats.BytesEncoded += uint64(len(out.Data))
	if keyframe {
		e.stats.KeyframesEncoded++
	}
	e.mu.Unlock()

	e.state.Store(int32(codec.StateEncoding))
	return out, nil
}

func (e *VideoEncoder) RequestKeyframe() {
	e.keyframeRequested.Store(true)
	e.state.CompareAndSwap(int32(codec.StateEncoding), int32(codec.StateKeyframePending))
}

// SetBitrate applies on the next encoded frame (the "mid-GOP" resolution
// of the §9 Open Question) since the reference codec has no rate control
// loop spanning a GOP to smooth the transition against.
func (e *VideoEncoder) SetBitrate(bps int) error {
	if bps <= 0 {
		return fmt.Errorf("refenc: invalid bitrate %d", bps)
	}
	e.pendingBitrate.Store(int64(bps))
	e.mu.Lock()
	e.cfg.BitrateBps = bps
	e.mu.Unlock()
	return nil
}

func (e *VideoEncoder) SetResolution(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("refenc: invalid resolution %dx%d", w, h)
	}
	e.mu.Lock()
	e.cfg.Width, e.cfg.Height = w, h
	e.mu.Unlock()
	e.RequestKeyframe()
	return nil
}

func (e *VideoEncoder) Provider() media.Provider       { return media.ProviderReference }
func (e *VideoEncoder) Config() codec.VideoEncoderConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}
func (e *VideoEncoder) Codec() media.VideoCodec { return e.cfg.Codec }
func (e *VideoEncoder) State() codec.EncoderState { return codec.EncoderState(e.state.Load()) }

func (e *VideoEncoder) Stats() codec.EncoderStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *VideoEncoder) Flush() ([]*media.EncodedVideoFrame, error) {
	e.state.Store(int32(codec.StateFlushing))
	e.state.Store(int32(codec.StateReady))
	return nil, nil
}

func (e *VideoEncoder) Close() error {
	e.state.Store(int32(codec.StateClosed))
	return nil
}

var _ codec.VideoEncoder = (*VideoEncoder)(nil)

// VideoDecoder is the matching reference VideoDecoder.
type VideoDecoder struct {
	mu      sync.Mutex
	codecID media.VideoCodec
	onKeyframeNeeded codec.KeyframeNeededFunc
	haveKeyframe  bool
}

// NewVideoDecoder constructs a reference VideoDecoder.
func NewVideoDecoder(cfg codec.VideoDecoderConfig) (*VideoDecoder, error) {
	return &VideoDecoder{codecID: cfg.Codec, onKeyframeNeeded: cfg.OnKeyframeNeeded}, nil
}

func (d *VideoDecoder) Decode(frame *media.EncodedVideoFrame) (*media.RawVideoFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.haveKeyframe && !frame.Keyframe {
		if d.onKeyframeNeeded != nil {
			d.onKeyframeNeeded()
		}
		return nil, fmt.Errorf("%w: waiting for keyframe", codec.ErrDecodingFailed)
	}
	if frame.Keyframe {
		d.haveKeyframe = true
	}

	r := flate.NewReader(bytes.NewReader(frame.Data))
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		d.haveKeyframe = false
		if d.onKeyframeNeeded != nil {
			d.onKeyframeNeeded()
		}
		return nil, fmt.Errorf("%w: %v", codec.ErrDecodingFailed, err)
	}
	if len(raw) < 8 {
		return nil, fmt.Errorf("%w: short payload", codec.ErrDecodingFailed)
	}
	width := int(raw[0]) | int(raw[1])<<8 | int(raw[2])<<16 | int(raw[3])<<24
	height := int(raw[4]) | int(raw[5])<<8 | int(raw[6])<<16 | int(raw[7])<<24

	planes := raw[8:]
	ySize := width * height
	cSize := (width / 2) * (height / 2)
	if len(planes) != ySize+2*cSize {
		return nil, fmt.Errorf("%w: plane data does not match %dx%d YUV420P", codec.ErrDecodingFailed, width, height)
	}

	return &media.RawVideoFrame{
		Data:   [][]byte{planes[:ySize], planes[ySize : ySize+cSize], planes[ySize+cSize:]},
		Stride: []int{width, width / 2, width / 2},
		Width:  width,
		Height: height,
		Format: media.PixelFormatYUV420P,
		PTS:    frame.PTS,
	}, nil
}

func (d *VideoDecoder) Flush() error {
	d.mu.Lock()
	d.haveKeyframe = false
	d.mu.Unlock()
	return nil
}

func (d *VideoDecoder) Codec() media.VideoCodec  { return d.codecID }
func (d *VideoDecoder) Provider() media.Provider { return media.ProviderReference }
func (d *VideoDecoder) Close() error             { return nil }

var _ codec.VideoDecoder = (*VideoDecoder)(nil)

func init() {
	for _, c := range []media.VideoCodec{media.VideoCodecH264, media.VideoCodecH265, media.VideoCodecVP9, media.VideoCodecAV1} {
		c := c
		codec.RegisterVideoEncoder(c, media.ProviderReference, func(cfg codec.VideoEncoderConfig) (codec.VideoEncoder, error) {
			cfg.Codec = c
			return NewVideoEncoder(cfg)
		})
		codec.RegisterVideoDecoder(c, media.ProviderReference, func(cfg codec.VideoDecoderConfig) (codec.VideoDecoder, error) {
			cfg.Codec = c
			return NewVideoDecoder(cfg)
		})
	}
}
