package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/streamlinux/streamlinux/internal/avsync"
	"github.com/streamlinux/streamlinux/internal/capture"
	"github.com/streamlinux/streamlinux/internal/codec"
	_ "github.com/streamlinux/streamlinux/internal/codec/refenc"
	"github.com/streamlinux/streamlinux/internal/control"
	"github.com/streamlinux/streamlinux/internal/media"
	"github.com/streamlinux/streamlinux/internal/transport"
)

// fakeTransport is an in-memory transport.Transport double recording
// every SyncedFrames tuple handed to SendSynced, for pipeline tests that
// have no real network transport available.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []media.SyncedFrames
	ctrl    []control.Message
	fragCb  transport.FragmentCallback
	ctrlCb  transport.ControlCallback
	state   transport.ConnectionState
	sendErr error
}

func newFakeTransport() *fakeTransport { return &fakeTransport{state: transport.StateConnected} }

func (f *fakeTransport) SendSynced(ctx context.Context, frames media.SyncedFrames) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, frames)
	return nil
}

func (f *fakeTransport) SendControl(ctx context.Context, msg control.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctrl = append(f.ctrl, msg)
	return nil
}

func (f *fakeTransport) OnFragment(cb transport.FragmentCallback)                   { f.fragCb = cb }
func (f *fakeTransport) OnControl(cb transport.ControlCallback)                     { f.ctrlCb = cb }
func (f *fakeTransport) ConnectionState() transport.ConnectionState                 { return f.state }
func (f *fakeTransport) Close() error                                               { return nil }

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestHostPipeline(t *testing.T, tr *fakeTransport) *HostPipeline {
	t.Helper()
	videoEncoder, err := codec.NewVideoEncoder(codec.DefaultVideoEncoderConfig(media.VideoCodecH264, 320, 240))
	require.NoError(t, err)
	audioEncoder, err := codec.NewAudioEncoder(codec.DefaultAudioEncoderConfig())
	require.NoError(t, err)

	h, err := NewHostPipeline(HostConfig{
		VideoSource:  capture.NewTestPatternSource(capture.TestPatternConfig{Width: 320, Height: 240, FPS: 60, Pattern: capture.PatternColorBars}),
		AudioSource:  capture.NewToneSource(capture.DefaultToneConfig()),
		VideoEncoder: videoEncoder,
		AudioEncoder: audioEncoder,
		Synchronizer: avsync.New(avsync.DefaultConfig()),
		Transport:    tr,
		PullInterval: time.Millisecond,
	})
	require.NoError(t, err)
	return h
}

func TestHostPipeline_StreamsSyncedFramesToTransport(t *testing.T) {
	tr := newFakeTransport()
	h := newTestHostPipeline(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.Start(ctx))
	defer func() {
		cancel()
		h.Stop()
	}()

	require.Eventually(t, func() bool { return tr.count() > 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHostPipeline_PauseStopsEncoding(t *testing.T) {
	tr := newFakeTransport()
	h := newTestHostPipeline(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.Start(ctx))
	defer func() {
		cancel()
		h.Stop()
	}()

	require.Eventually(t, func() bool { return tr.count() > 0 }, 2*time.Second, 5*time.Millisecond)

	h.Pause()
	time.Sleep(20 * time.Millisecond)
	before := tr.count()
	time.Sleep(50 * time.Millisecond)
	after := tr.count()
	require.InDelta(t, before, after, 1, "pause should halt new frame production almost immediately")
}

func TestHostPipeline_RequestKeyframeDelegatesToEncoder(t *testing.T) {
	tr := newFakeTransport()
	h := newTestHostPipeline(t, tr)
	frame := &media.RawVideoFrame{
		Data:   [][]byte{make([]byte, 320*240), make([]byte, 160*120), make([]byte, 160*120)},
		Stride: []int{320, 160, 160},
		Width:  320, Height: 240,
		Format: media.PixelFormatYUV420P,
	}
	_, err := h.cfg.VideoEncoder.Encode(frame) // first frame is always a keyframe
	require.NoError(t, err)

	h.RequestKeyframe()
	out, err := h.cfg.VideoEncoder.Encode(frame)
	require.NoError(t, err)
	require.True(t, out.Keyframe)
}

func TestHostPipeline_DispatchesControlMessagesFromTransport(t *testing.T) {
	tr := newFakeTransport()
	h := newTestHostPipeline(t, tr)
	require.NotNil(t, tr.ctrlCb)

	tr.ctrlCb(control.Message{Type: control.TypePause})
	require.True(t, h.paused.Load())

	tr.ctrlCb(control.Message{Type: control.TypeResume})
	require.False(t, h.paused.Load())
}
