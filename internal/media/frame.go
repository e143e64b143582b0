// Package media defines the core frame, timestamp and codec-agnostic
// contract types shared by every pipeline stage.
//
// Grounded on thesyncim-media's frame.go/codec.go/encoder.go, generalized
// from a camera/WebRTC transcoding library to the screen+audio capture
// and A/V-synchronized transport domain of this repository.
package media

import "fmt"

// PTS is a presentation timestamp: microseconds on a monotonic clock,
// sampled at the moment a frame is produced by its source. PTS values
// within one stream are strictly non-decreasing; PTS values across
// streams share the same time base and are directly comparable.
type PTS int64

// Sub returns p - q as a duration in microseconds.
func (p PTS) Sub(q PTS) int64 { return int64(p - q) }

// PixelFormat enumerates the raw video pixel layouts this system accepts.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatRGB24
	PixelFormatRGBA32
	PixelFormatBGR24
	PixelFormatBGRA32
	PixelFormatNV12
	PixelFormatYUV420P
	PixelFormatYUV444P
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatRGB24:
		return "RGB24"
	case PixelFormatRGBA32:
		return "RGBA32"
	case PixelFormatBGR24:
		return "BGR24"
	case PixelFormatBGRA32:
		return "BGRA32"
	case PixelFormatNV12:
		return "NV12"
	case PixelFormatYUV420P:
		return "YUV420P"
	case PixelFormatYUV444P:
		return "YUV444P"
	default:
		return "Unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatYUV420P, PixelFormatYUV444P:
		return 3
	case PixelFormatNV12:
		return 2
	case PixelFormatRGB24, PixelFormatRGBA32, PixelFormatBGR24, PixelFormatBGRA32:
		return 1
	default:
		return 0
	}
}

// RawVideoFrame owns a pixel buffer captured by a ScreenCaptureSource.
// It is exclusively owned by the encoder stage while encoding, then
// released back to the capture source's pool (if any) or discarded.
type RawVideoFrame struct {
	Data         [][]byte    // Plane data, PlaneCount(Format) slices
	Stride       []int       // Per-plane stride in bytes
	Width        int
	Height       int
	Format       PixelFormat
	PTS          PTS
	KeyframeHint bool // advisory; usually false for raw input
}

// Clone deep-copies the frame, including plane data.
func (f *RawVideoFrame) Clone() *RawVideoFrame {
	c := &RawVideoFrame{
		Data:         make([][]byte, len(f.Data)),
		Stride:       append([]int(nil), f.Stride...),
		Width:        f.Width,
		Height:       f.Height,
		Format:       f.Format,
		PTS:          f.PTS,
		KeyframeHint: f.KeyframeHint,
	}
	for i, plane := range f.Data {
		if plane != nil {
			c.Data[i] = append([]byte(nil), plane...)
		}
	}
	return c
}

// VideoCodec identifies the video codec used by an EncodedVideoFrame.
type VideoCodec int

const (
	VideoCodecUnknown VideoCodec = iota
	VideoCodecH264
	VideoCodecH265
	VideoCodecVP9
	VideoCodecAV1
)

func (c VideoCodec) String() string {
	switch c {
	case VideoCodecH264:
		return "H264"
	case VideoCodecH265:
		return "H265"
	case VideoCodecVP9:
		return "VP9"
	case VideoCodecAV1:
		return "AV1"
	default:
		return "Unknown"
	}
}

// EncodedVideoFrame owns an opaque encoded byte string produced by a
// VideoEncoder. Every stream begins with a keyframe; no non-keyframe may
// reference a frame the sender has already discarded.
type EncodedVideoFrame struct {
	Data      []byte
	PTS       PTS
	DTS       PTS // equals PTS: this system never produces B-frames
	Keyframe  bool
	Codec     VideoCodec
}

// IsKeyframe reports whether this frame is independently decodable.
func (f *EncodedVideoFrame) IsKeyframe() bool { return f.Keyframe }

// Clone deep-copies the encoded frame.
func (f *EncodedVideoFrame) Clone() *EncodedVideoFrame {
	c := &EncodedVideoFrame{PTS: f.PTS, DTS: f.DTS, Keyframe: f.Keyframe, Codec: f.Codec}
	if f.Data != nil {
		c.Data = append([]byte(nil), f.Data...)
	}
	return c
}

// RawAudioFrame owns an interleaved 32-bit float sample buffer produced
// by an AudioCaptureSource. SampleRate and Channels are constant for the
// lifetime of a capture session.
type RawAudioFrame struct {
	Data              []float32 // interleaved, len == SamplesPerChannel*Channels
	SampleRate        int
	Channels          int
	SamplesPerChannel int
	PTS               PTS
}

// Clone deep-copies the sample buffer.
func (f *RawAudioFrame) Clone() *RawAudioFrame {
	c := &RawAudioFrame{
		SampleRate:        f.SampleRate,
		Channels:          f.Channels,
		SamplesPerChannel: f.SamplesPerChannel,
		PTS:               f.PTS,
	}
	if f.Data != nil {
		c.Data = append([]float32(nil), f.Data...)
	}
	return c
}

// AudioCodec identifies the audio codec used by an EncodedAudioFrame.
// This system carries only Opus (or an Opus-equivalent low-delay codec).
type AudioCodec int

const (
	AudioCodecUnknown AudioCodec = iota
	AudioCodecOpus
)

func (c AudioCodec) String() string {
	switch c {
	case AudioCodecOpus:
		return "Opus"
	default:
		return "Unknown"
	}
}

// EncodedAudioFrame owns an Opus packet (or equivalent). Its implicit
// duration is the encoder's configured frame size; PTS values advance
// by exactly that duration frame to frame.
type EncodedAudioFrame struct {
	Data  []byte
	PTS   PTS
	Codec AudioCodec
}

// Clone deep-copies the encoded audio frame.
func (f *EncodedAudioFrame) Clone() *EncodedAudioFrame {
	c := &EncodedAudioFrame{PTS: f.PTS, Codec: f.Codec}
	if f.Data != nil {
		c.Data = append([]byte(nil), f.Data...)
	}
	return c
}

// SyncedFrames is the value aggregate the AVSynchronizer emits: an
// optional encoded video half and an optional encoded audio half, sharing
// one presentation time. At least one half is always present.
type SyncedFrames struct {
	Video        *EncodedVideoFrame
	Audio        *EncodedAudioFrame
	PresentTime  PTS
	VideoValid   bool
	AudioValid   bool
}

// Desync returns |Audio.PTS - Video.PTS| when both halves are valid, or
// false if either half is absent.
func (s SyncedFrames) Desync() (int64, bool) {
	if !s.VideoValid || !s.AudioValid || s.Video == nil || s.Audio == nil {
		return 0, false
	}
	d := s.Audio.PTS.Sub(s.Video.PTS)
	if d < 0 {
		d = -d
	}
	return d, true
}

func (s SyncedFrames) String() string {
	return fmt.Sprintf("SyncedFrames{pt=%d video=%v audio=%v}", s.PresentTime, s.VideoValid, s.AudioValid)
}
