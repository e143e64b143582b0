package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamlinux/streamlinux/internal/media"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	e := &Envelope{
		PTS:      123456,
		StreamID: StreamVideo,
		Sequence: 7,
		Keyframe: true,
		Payload:  []byte("encoded-frame-bytes"),
	}
	data, err := e.Marshal(nil)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, e.PTS, got.PTS)
	require.Equal(t, e.StreamID, got.StreamID)
	require.Equal(t, e.Sequence, got.Sequence)
	require.True(t, got.Keyframe)
	require.Equal(t, e.Payload, got.Payload)
}

func TestEnvelope_ConfigEpochPrependsAnnexBStartCode(t *testing.T) {
	e := &Envelope{
		PTS:         0,
		StreamID:    StreamVideo,
		Keyframe:    true,
		ConfigEpoch: true,
		Payload:     []byte{0xAA, 0xBB},
	}
	parameterSets := []byte{0x67, 0x42} // fake SPS
	data, err := e.Marshal(parameterSets)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	require.True(t, got.ConfigEpoch)
	require.Equal(t, []byte{0, 0, 0, 1, 0x67, 0x42, 0xAA, 0xBB}, got.Payload)
}

func TestEnvelope_UnmarshalRejectsTruncated(t *testing.T) {
	_, err := Unmarshal([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrTruncated)
}

func TestEnvelope_MarshalRejectsOversizedPayload(t *testing.T) {
	e := &Envelope{Payload: make([]byte, MaxPayloadSize+1)}
	_, err := e.Marshal(nil)
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestSequencer_PerStreamMonotonic(t *testing.T) {
	var s Sequencer
	require.Equal(t, uint32(0), s.Next(StreamVideo))
	require.Equal(t, uint32(1), s.Next(StreamVideo))
	require.Equal(t, uint32(0), s.Next(StreamAudio))
	require.Equal(t, uint32(2), s.Next(StreamVideo))
}

func TestEnvelope_PTSPreservedExactly(t *testing.T) {
	e := &Envelope{PTS: media.PTS(-1), StreamID: StreamAudio}
	data, err := e.Marshal(nil)
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, e.PTS, got.PTS)
}
