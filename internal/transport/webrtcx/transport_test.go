package webrtcx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamlinux/streamlinux/internal/transport"
)

func TestNew_ConstructsInNewState(t *testing.T) {
	tr, err := New(DefaultConfig())
	require.NoError(t, err)
	defer tr.Close()

	require.Equal(t, transport.StateNew, tr.ConnectionState())
	require.NotNil(t, tr.PeerConnection())
}

func TestDefaultConfig_UsesSystemCodecs(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "video/H264", cfg.VideoMimeType)
	require.Equal(t, "audio/opus", cfg.AudioMimeType)
}
