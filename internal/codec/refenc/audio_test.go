package refenc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamlinux/streamlinux/internal/codec"
	"github.com/streamlinux/streamlinux/internal/media"
)

func TestAudioEncodeDecode_RoundTrip(t *testing.T) {
	enc, err := NewAudioEncoder(codec.DefaultAudioEncoderConfig())
	require.NoError(t, err)
	defer enc.Close()

	dec, err := NewAudioDecoder(codec.AudioDecoderConfig{SampleRate: 48000, Channels: 2})
	require.NoError(t, err)
	defer dec.Close()

	raw := &media.RawAudioFrame{
		Data:              []float32{0.1, -0.2, 0.3, -0.4},
		SampleRate:        48000,
		Channels:          2,
		SamplesPerChannel: 2,
		PTS:               9000,
	}

	encoded, err := enc.Encode(raw)
	require.NoError(t, err)
	require.Equal(t, media.AudioCodecOpus, encoded.Codec)
	require.Equal(t, raw.PTS, encoded.PTS)

	decoded, err := dec.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, raw.Data, decoded.Data)
	require.Equal(t, raw.SamplesPerChannel, decoded.SamplesPerChannel)
	require.Equal(t, raw.PTS, decoded.PTS)
}

func TestAudioEncoder_OnePacketPerFrame(t *testing.T) {
	enc, err := NewAudioEncoder(codec.DefaultAudioEncoderConfig())
	require.NoError(t, err)
	defer enc.Close()

	for i := 0; i < 5; i++ {
		out, err := enc.Encode(&media.RawAudioFrame{
			Data:              make([]float32, 960),
			SampleRate:        48000,
			Channels:          2,
			SamplesPerChannel: 480,
			PTS:               media.PTS(i * 20000),
		})
		require.NoError(t, err)
		require.NotNil(t, out)
	}
	require.Equal(t, uint64(5), enc.Stats().FramesEncoded)
}
