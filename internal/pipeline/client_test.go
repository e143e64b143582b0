package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/streamlinux/streamlinux/internal/codec"
	_ "github.com/streamlinux/streamlinux/internal/codec/refenc"
	"github.com/streamlinux/streamlinux/internal/control"
	"github.com/streamlinux/streamlinux/internal/media"
	"github.com/streamlinux/streamlinux/internal/present"
	"github.com/streamlinux/streamlinux/internal/transport/wire"
)

func newTestClientPipeline(t *testing.T, tr *fakeTransport) (*ClientPipeline, *[]*media.RawVideoFrame) {
	t.Helper()
	videoDecoder, err := codec.NewVideoDecoder(codec.VideoDecoderConfig{Codec: media.VideoCodecH264, Provider: media.ProviderReference})
	require.NoError(t, err)
	audioDecoder, err := codec.NewAudioDecoder(codec.AudioDecoderConfig{Provider: media.ProviderReference})
	require.NoError(t, err)

	clock := present.NewMasterClock(func() int64 { return time.Now().UnixMicro() })
	scheduler := present.NewScheduler(clock, present.DefaultConfig())

	var mu sync.Mutex
	var displayed []*media.RawVideoFrame

	c, err := NewClientPipeline(ClientConfig{
		Transport:       tr,
		VideoDecoder:    videoDecoder,
		AudioDecoder:    audioDecoder,
		Clock:           clock,
		Scheduler:       scheduler,
		AudioQueue:      present.NewAudioPlayoutQueue(),
		PresentInterval: time.Millisecond,
		OnVideoFrame: func(f *media.RawVideoFrame) {
			mu.Lock()
			displayed = append(displayed, f)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	return c, &displayed
}

func encodeVideoFixture(t *testing.T, pts media.PTS, keyframe bool) *media.EncodedVideoFrame {
	t.Helper()
	enc, err := codec.NewVideoEncoder(codec.DefaultVideoEncoderConfig(media.VideoCodecH264, 64, 64))
	require.NoError(t, err)
	defer enc.Close()
	if keyframe {
		enc.RequestKeyframe()
	}
	frame := &media.RawVideoFrame{
		Data:   [][]byte{make([]byte, 64*64), make([]byte, 32*32), make([]byte, 32*32)},
		Stride: []int{64, 32, 32},
		Width:  64, Height: 64,
		Format: media.PixelFormatYUV420P,
		PTS:    pts,
	}
	out, err := enc.Encode(frame)
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func TestClientPipeline_DecodesAndDisplaysFragmentsFromTransport(t *testing.T) {
	tr := newFakeTransport()
	c, displayed := newTestClientPipeline(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	defer func() {
		cancel()
		c.Stop()
	}()

	require.NotNil(t, tr.fragCb)

	encoded := encodeVideoFixture(t, media.PTS(0), true)
	c.cfg.Clock.Sync(encoded.PTS, time.Now().UnixMicro())
	tr.fragCb(int(wire.StreamVideo), encoded.PTS, true, encoded.Data)

	require.Eventually(t, func() bool {
		return len(*displayed) > 0
	}, time.Second, 2*time.Millisecond)
}

func TestClientPipeline_RequestKeyframeSendsControlMessage(t *testing.T) {
	tr := newFakeTransport()
	c, _ := newTestClientPipeline(t, tr)

	c.RequestKeyframe()

	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.Len(t, tr.ctrl, 1)
	require.Equal(t, control.TypeRequestKeyframe, tr.ctrl[0].Type)
}

func TestClientPipeline_DropsControlFromUnauthorizedPeer(t *testing.T) {
	tr := newFakeTransport()
	c, _ := newTestClientPipeline(t, tr)

	payload, err := json.Marshal(control.StatePayload{Status: "paused"})
	require.NoError(t, err)

	applied, err := c.dispatcher.Dispatch("someone-else", control.Message{Type: control.TypeState, Payload: payload})
	require.NoError(t, err)
	require.False(t, applied)
}
