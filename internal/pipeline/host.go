package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/streamlinux/streamlinux/internal/avsync"
	"github.com/streamlinux/streamlinux/internal/capture"
	"github.com/streamlinux/streamlinux/internal/codec"
	"github.com/streamlinux/streamlinux/internal/control"
	"github.com/streamlinux/streamlinux/internal/transport"
)

// SessionPeer is the peer identity used to authorize control messages.
// Each Transport implementation carries exactly one connected peer (one
// PeerConnection, one remote signaling partner), so the single-peer
// authorization model of spec §4.10 collapses to this constant rather
// than a per-connection identity negotiated at handshake time.
const SessionPeer control.PeerID = "session-peer"

// HostConfig wires one sender-side DAG: capture -> encode -> synchronize
// -> transport, per spec §2's package map.
type HostConfig struct {
	VideoSource capture.ScreenCaptureSource
	AudioSource capture.AudioCaptureSource
	VideoEncoder codec.VideoEncoder
	AudioEncoder codec.AudioEncoder
	Synchronizer *avsync.Synchronizer
	Transport    transport.Transport
	Authorizer   *control.Authorizer
	Logger       *logrus.Logger

	// PullInterval is how often the synchronizer is polled for a ready
	// tuple to send. Defaults to 5ms (200Hz, shorter than one video frame
	// interval up to 200 FPS; above that, up to the 240 FPS maximum, it
	// is longer).
	PullInterval time.Duration
}

// HostPipeline runs the sender-side DAG under one Supervisor and
// implements control.Effects so inbound control messages reach the
// capture/encoder stages directly.
type HostPipeline struct {
	cfg        HostConfig
	log        *logrus.Entry
	supervisor *Supervisor
	dispatcher *control.Dispatcher

	paused atomic.Bool
}

// NewHostPipeline constructs a HostPipeline. Call Start to launch its stages.
func NewHostPipeline(cfg HostConfig) (*HostPipeline, error) {
	if cfg.VideoSource == nil || cfg.AudioSource == nil {
		return nil, fmt.Errorf("pipeline: host requires a video and audio source")
	}
	if cfg.VideoEncoder == nil || cfg.AudioEncoder == nil {
		return nil, fmt.Errorf("pipeline: host requires a video and audio encoder")
	}
	if cfg.Synchronizer == nil || cfg.Transport == nil {
		return nil, fmt.Errorf("pipeline: host requires a synchronizer and transport")
	}
	if cfg.PullInterval <= 0 {
		cfg.PullInterval = 5 * time.Millisecond
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = control.NewAuthorizer(SessionPeer)
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	h := &HostPipeline{cfg: cfg, log: log.WithField("component", "host-pipeline")}
	h.dispatcher = control.NewDispatcher(cfg.Authorizer, h)
	h.supervisor = NewSupervisor(log, []Stage{
		{Name: "video-capture-encode", Run: h.runVideoStage},
		{Name: "audio-capture-encode", Run: h.runAudioStage},
		{Name: "sync-send", Run: h.runSendStage},
	})
	cfg.Transport.OnControl(h.handleControl)
	return h, nil
}

// Start launches all stages.
func (h *HostPipeline) Start(ctx context.Context) error { return h.supervisor.Start(ctx) }

// Stop halts all stages and the underlying capture sources.
func (h *HostPipeline) Stop() {
	h.supervisor.Stop()
	h.cfg.VideoSource.Stop()
	h.cfg.AudioSource.Stop()
}

// State reports the supervisor's state.
func (h *HostPipeline) State() State { return h.supervisor.State() }

func (h *HostPipeline) runVideoStage(ctx context.Context) error {
	if err := h.cfg.VideoSource.Start(ctx); err != nil {
		return fmt.Errorf("start video source: %w", err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if h.paused.Load() {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}
		frame, err := h.cfg.VideoSource.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read video frame: %w", err)
		}
		encoded, err := h.cfg.VideoEncoder.Encode(frame)
		if err != nil {
			h.log.WithError(err).Warn("video encode failed, dropping frame")
			continue
		}
		if encoded == nil {
			continue
		}
		h.cfg.Synchronizer.PushVideo(encoded, nowMicros())
	}
}

func (h *HostPipeline) runAudioStage(ctx context.Context) error {
	if err := h.cfg.AudioSource.Start(ctx); err != nil {
		return fmt.Errorf("start audio source: %w", err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if h.paused.Load() {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}
		frame, err := h.cfg.AudioSource.ReadSamples(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read audio samples: %w", err)
		}
		encoded, err := h.cfg.AudioEncoder.Encode(frame)
		if err != nil {
			h.log.WithError(err).Warn("audio encode failed, dropping frame")
			continue
		}
		if err := h.cfg.Synchronizer.PushAudio(encoded, nowMicros()); err != nil {
			h.log.WithError(err).Debug("audio handoff full, dropping frame")
		}
	}
}

func (h *HostPipeline) runSendStage(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.PullInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tuple, ok := h.cfg.Synchronizer.Pull()
			if !ok {
				continue
			}
			if err := h.cfg.Transport.SendSynced(ctx, tuple); err != nil {
				h.log.WithError(err).Warn("send synced frames failed")
			}
		}
	}
}

func (h *HostPipeline) handleControl(msg control.Message) {
	if _, err := h.dispatcher.Dispatch(SessionPeer, msg); err != nil {
		h.log.WithError(err).WithField("type", msg.Type).Warn("control message rejected")
	}
}

// Pause implements control.Effects.
func (h *HostPipeline) Pause() { h.paused.Store(true) }

// Resume implements control.Effects. Forces the next encoded video
// frame to a keyframe so a client resuming mid-stream doesn't wait on
// the encoder's normal GOP cadence.
func (h *HostPipeline) Resume() {
	h.paused.Store(false)
	h.cfg.VideoEncoder.RequestKeyframe()
}

// SetResolution implements control.Effects.
func (h *HostPipeline) SetResolution(width, height int) {
	if err := h.cfg.VideoEncoder.SetResolution(width, height); err != nil {
		h.log.WithError(err).Warn("set resolution failed")
	}
}

// SetBitrate implements control.Effects.
func (h *HostPipeline) SetBitrate(bitrateBps int) {
	if err := h.cfg.VideoEncoder.SetBitrate(bitrateBps); err != nil {
		h.log.WithError(err).Warn("set bitrate failed")
	}
}

// SetQuality implements control.Effects.
func (h *HostPipeline) SetQuality(params control.QualityPresetParams) {
	h.SetResolution(params.Width, params.Height)
	h.SetBitrate(params.BitrateBps)
}

// SelectMonitor implements control.Effects. The concrete source swap is
// left to a higher-level reconfiguration since ScreenCaptureSource has
// no monitor-select method of its own; this records intent via a log
// and forces a keyframe so the client's decoder recovers cleanly once
// the new monitor's frames start arriving.
func (h *HostPipeline) SelectMonitor(id int) {
	h.log.WithField("monitor", id).Info("monitor selection requested")
	h.cfg.VideoEncoder.RequestKeyframe()
}

// RequestKeyframe implements control.Effects.
func (h *HostPipeline) RequestKeyframe() { h.cfg.VideoEncoder.RequestKeyframe() }

// Pong implements control.Effects.
func (h *HostPipeline) Pong(echoSequence uint64) {
	msg := control.Message{Type: control.TypePong, Sequence: echoSequence, Timestamp: nowMicros()}
	if err := h.cfg.Transport.SendControl(context.Background(), msg); err != nil {
		h.log.WithError(err).Warn("send pong failed")
	}
}

// Report implements control.Effects.
func (h *HostPipeline) Report(state string) {
	h.log.WithField("state", state).Info("peer reported state")
}

func nowMicros() int64 { return time.Now().UnixMicro() }
