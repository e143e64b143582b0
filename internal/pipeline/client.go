package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/streamlinux/streamlinux/internal/codec"
	"github.com/streamlinux/streamlinux/internal/control"
	"github.com/streamlinux/streamlinux/internal/media"
	"github.com/streamlinux/streamlinux/internal/present"
	"github.com/streamlinux/streamlinux/internal/transport"
	"github.com/streamlinux/streamlinux/internal/transport/wire"
)

// videoQueueCapacity buffers decoded frames between the fragment
// callback (driven by the transport's own read goroutine) and the
// present-tick stage, matching the synchronizer's sender-side
// VideoCapacity default (~0.5s at 30fps).
const videoQueueCapacity = 15

// VideoFrameSink receives a display-ready raw video frame. Rendering to
// a surface handle is an external collaborator per spec §1; the sink is
// the seam a cmd/ entrypoint or a GUI wires a renderer into.
type VideoFrameSink func(frame *media.RawVideoFrame)

// AudioSamplesSink receives a decoded PCM buffer for playback.
type AudioSamplesSink func(frame *media.RawAudioFrame)

// ClientConfig wires one receiver-side DAG: transport -> decode ->
// schedule/present, per spec §2's package map.
type ClientConfig struct {
	Transport    transport.Transport
	VideoDecoder codec.VideoDecoder
	AudioDecoder codec.AudioDecoder
	Clock        *present.MasterClock
	Scheduler    *present.Scheduler
	AudioQueue   *present.AudioPlayoutQueue
	Authorizer   *control.Authorizer
	Logger       *logrus.Logger

	OnVideoFrame VideoFrameSink
	OnAudioFrame AudioSamplesSink

	// PresentInterval paces the video-present tick; defaults to 4ms
	// (250Hz), finer than any supported display refresh rate so the
	// scheduler's own PTS-vs-clock comparison governs cadence.
	PresentInterval time.Duration
}

// ClientPipeline runs the receiver-side DAG under one Supervisor and
// implements control.Effects for symmetry with HostPipeline, though a
// receiver typically only emits ping/pong and state reports.
type ClientPipeline struct {
	cfg        ClientConfig
	log        *logrus.Entry
	supervisor *Supervisor
	dispatcher *control.Dispatcher

	videoQueue chan decodedVideoFrame
}

// decodedVideoFrame pairs a decoded raw frame with the keyframe flag
// its EncodedVideoFrame carried, since that flag doesn't survive
// decode onto RawVideoFrame.KeyframeHint (decoder-specific, advisory).
type decodedVideoFrame struct {
	frame    *media.RawVideoFrame
	keyframe bool
}

// NewClientPipeline constructs a ClientPipeline. Call Start to begin
// receiving.
func NewClientPipeline(cfg ClientConfig) (*ClientPipeline, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("pipeline: client requires a transport")
	}
	if cfg.VideoDecoder == nil || cfg.AudioDecoder == nil {
		return nil, fmt.Errorf("pipeline: client requires a video and audio decoder")
	}
	if cfg.Clock == nil || cfg.Scheduler == nil || cfg.AudioQueue == nil {
		return nil, fmt.Errorf("pipeline: client requires a clock, scheduler and audio queue")
	}
	if cfg.PresentInterval <= 0 {
		cfg.PresentInterval = 4 * time.Millisecond
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = control.NewAuthorizer(SessionPeer)
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &ClientPipeline{
		cfg:        cfg,
		log:        log.WithField("component", "client-pipeline"),
		videoQueue: make(chan decodedVideoFrame, videoQueueCapacity),
	}
	c.dispatcher = control.NewDispatcher(cfg.Authorizer, c)
	c.supervisor = NewSupervisor(log, []Stage{
		{Name: "present-tick", Run: c.runPresentStage},
	})
	cfg.Transport.OnFragment(c.handleFragment)
	cfg.Transport.OnControl(c.handleControl)
	return c, nil
}

// Start launches the present-tick stage; fragment/control delivery is
// driven by the transport's own callbacks and runs regardless of Start.
func (c *ClientPipeline) Start(ctx context.Context) error { return c.supervisor.Start(ctx) }

// Stop halts the present-tick stage.
func (c *ClientPipeline) Stop() { c.supervisor.Stop() }

// State reports the supervisor's state.
func (c *ClientPipeline) State() State { return c.supervisor.State() }

func (c *ClientPipeline) handleFragment(streamID int, pts media.PTS, keyframe bool, payload []byte) {
	switch wire.StreamID(streamID) {
	case wire.StreamVideo:
		c.decodeVideo(pts, keyframe, payload)
	case wire.StreamAudio:
		c.decodeAudio(pts, payload)
	}
}

func (c *ClientPipeline) decodeVideo(pts media.PTS, keyframe bool, payload []byte) {
	encoded := &media.EncodedVideoFrame{Data: payload, PTS: pts, DTS: pts, Keyframe: keyframe, Codec: c.cfg.VideoDecoder.Codec()}
	frame, err := c.cfg.VideoDecoder.Decode(encoded)
	if err != nil {
		c.log.WithError(err).Warn("video decode failed")
		return
	}
	if frame == nil {
		return
	}
	c.cfg.Clock.Sync(pts, nowMicros())
	entry := decodedVideoFrame{frame: frame, keyframe: keyframe}
	select {
	case c.videoQueue <- entry:
	default:
		<-c.videoQueue
		c.videoQueue <- entry
	}
}

func (c *ClientPipeline) decodeAudio(pts media.PTS, payload []byte) {
	encoded := &media.EncodedAudioFrame{Data: payload, PTS: pts, Codec: media.AudioCodecOpus}
	frame, err := c.cfg.AudioDecoder.Decode(encoded)
	if err != nil {
		c.log.WithError(err).Warn("audio decode failed")
		return
	}
	if frame == nil {
		return
	}
	c.cfg.AudioQueue.Push(frame, nowMicros())
	if out := c.cfg.AudioQueue.Pull(); out != nil && c.cfg.OnAudioFrame != nil {
		c.cfg.OnAudioFrame(out)
	}
}

func (c *ClientPipeline) runPresentStage(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PresentInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			select {
			case entry := <-c.videoQueue:
				if out := c.cfg.Scheduler.Present(entry.frame, entry.keyframe, nowMicros()); out != nil && c.cfg.OnVideoFrame != nil {
					c.cfg.OnVideoFrame(out)
				}
			default:
			}
		}
	}
}

func (c *ClientPipeline) handleControl(msg control.Message) {
	if _, err := c.dispatcher.Dispatch(SessionPeer, msg); err != nil {
		c.log.WithError(err).WithField("type", msg.Type).Warn("control message rejected")
	}
}

// Pause implements control.Effects; a receiver has no capture to pause.
func (c *ClientPipeline) Pause() {}

// Resume implements control.Effects.
func (c *ClientPipeline) Resume() {}

// SetResolution implements control.Effects; the receiver only decodes
// what the sender chooses to send.
func (c *ClientPipeline) SetResolution(width, height int) {}

// SetBitrate implements control.Effects.
func (c *ClientPipeline) SetBitrate(bitrateBps int) {}

// SetQuality implements control.Effects.
func (c *ClientPipeline) SetQuality(params control.QualityPresetParams) {}

// SelectMonitor implements control.Effects.
func (c *ClientPipeline) SelectMonitor(id int) {}

// RequestKeyframe implements control.Effects; a receiver requests a
// keyframe FROM its peer rather than acting on one locally.
func (c *ClientPipeline) RequestKeyframe() {
	msg := control.Message{Type: control.TypeRequestKeyframe, Timestamp: nowMicros()}
	if err := c.cfg.Transport.SendControl(context.Background(), msg); err != nil {
		c.log.WithError(err).Warn("send keyframe request failed")
	}
}

// Pong implements control.Effects.
func (c *ClientPipeline) Pong(echoSequence uint64) {
	msg := control.Message{Type: control.TypePong, Sequence: echoSequence, Timestamp: nowMicros()}
	if err := c.cfg.Transport.SendControl(context.Background(), msg); err != nil {
		c.log.WithError(err).Warn("send pong failed")
	}
}

// Report implements control.Effects.
func (c *ClientPipeline) Report(state string) {
	c.log.WithField("state", state).Info("peer reported state")
}
