package refenc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamlinux/streamlinux/internal/codec"
	"github.com/streamlinux/streamlinux/internal/media"
)

func makeRawFrame(pts media.PTS) *media.RawVideoFrame {
	return &media.RawVideoFrame{
		Data:   [][]byte{make([]byte, 64), make([]byte, 16), make([]byte, 16)},
		Width:  8,
		Height: 8,
		Format: media.PixelFormatYUV420P,
		PTS:    pts,
	}
}

func TestVideoEncoder_FirstFrameIsKeyframe(t *testing.T) {
	enc, err := NewVideoEncoder(codec.DefaultVideoEncoderConfig(media.VideoCodecH264, 8, 8))
	require.NoError(t, err)
	defer enc.Close()

	out, err := enc.Encode(makeRawFrame(0))
	require.NoError(t, err)
	require.True(t, out.Keyframe)
}

func TestVideoEncoder_GOPBoundaryProducesKeyframe(t *testing.T) {
	cfg := codec.DefaultVideoEncoderConfig(media.VideoCodecH264, 8, 8)
	cfg.GOPSize = 3
	enc, err := NewVideoEncoder(cfg)
	require.NoError(t, err)
	defer enc.Close()

	var keyframes int
	for i := 0; i < 9; i++ {
		out, err := enc.Encode(makeRawFrame(media.PTS(i * 1000)))
		require.NoError(t, err)
		if out.Keyframe {
			keyframes++
		}
	}
	require.Equal(t, 3, keyframes)
}

func TestVideoEncoder_RequestKeyframeForcesNext(t *testing.T) {
	cfg := codec.DefaultVideoEncoderConfig(media.VideoCodecH264, 8, 8)
	cfg.GOPSize = 100
	enc, err := NewVideoEncoder(cfg)
	require.NoError(t, err)
	defer enc.Close()

	_, err = enc.Encode(makeRawFrame(0))
	require.NoError(t, err)

	enc.RequestKeyframe()
	out, err := enc.Encode(makeRawFrame(1000))
	require.NoError(t, err)
	require.True(t, out.Keyframe)
}

func TestVideoEncodeDecode_RoundTrip(t *testing.T) {
	enc, err := NewVideoEncoder(codec.DefaultVideoEncoderConfig(media.VideoCodecH264, 8, 8))
	require.NoError(t, err)
	defer enc.Close()

	dec, err := NewVideoDecoder(codec.VideoDecoderConfig{Codec: media.VideoCodecH264})
	require.NoError(t, err)
	defer dec.Close()

	raw := makeRawFrame(12345)
	encoded, err := enc.Encode(raw)
	require.NoError(t, err)

	decoded, err := dec.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, raw.Width, decoded.Width)
	require.Equal(t, raw.Height, decoded.Height)
	require.Equal(t, raw.PTS, decoded.PTS)
}

func TestVideoDecoder_RejectsNonKeyframeBeforeFirstKeyframe(t *testing.T) {
	var keyframeRequested bool
	dec, err := NewVideoDecoder(codec.VideoDecoderConfig{
		Codec:            media.VideoCodecH264,
		OnKeyframeNeeded: func() { keyframeRequested = true },
	})
	require.NoError(t, err)
	defer dec.Close()

	_, err = dec.Decode(&media.EncodedVideoFrame{Data: []byte("garbage"), Keyframe: false})
	require.Error(t, err)
	require.True(t, keyframeRequested)
}

func TestFallbackEncoder_SwitchesOnHardwareError(t *testing.T) {
	hw := &failingEncoder{}
	sw, err := NewVideoEncoder(codec.DefaultVideoEncoderConfig(media.VideoCodecH264, 8, 8))
	require.NoError(t, err)

	fb := codec.NewFallbackEncoder(hw, sw)
	out, err := fb.Encode(makeRawFrame(0))
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Equal(t, uint64(1), fb.Stats().HardwareFallbacks)

	out2, err := fb.Encode(makeRawFrame(1000))
	require.NoError(t, err)
	require.NotNil(t, out2)
	require.Equal(t, 1, hw.calls)
}

type failingEncoder struct{ calls int }

func (f *failingEncoder) Encode(*media.RawVideoFrame) (*media.EncodedVideoFrame, error) {
	f.calls++
	return nil, codec.ErrHardwareFailed
}
func (f *failingEncoder) RequestKeyframe()                                   {}
func (f *failingEncoder) SetBitrate(int) error                               { return nil }
func (f *failingEncoder) SetResolution(int, int) error                      { return nil }
func (f *failingEncoder) Provider() media.Provider                          { return media.ProviderX264 }
func (f *failingEncoder) Config() codec.VideoEncoderConfig                  { return codec.VideoEncoderConfig{} }
func (f *failingEncoder) Codec() media.VideoCodec                           { return media.VideoCodecH264 }
func (f *failingEncoder) Stats() codec.EncoderStats                         { return codec.EncoderStats{} }
func (f *failingEncoder) State() codec.EncoderState                         { return codec.StateEncoding }
func (f *failingEncoder) Flush() ([]*media.EncodedVideoFrame, error)        { return nil, nil }
func (f *failingEncoder) Close() error                                      { return nil }

var _ codec.VideoEncoder = (*failingEncoder)(nil)
