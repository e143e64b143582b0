// Package webrtcx implements internal/transport.Transport on top of
// github.com/pion/webrtc/v4 — the teacher's transport dependency. One
// TrackLocal/TrackRemote pair per media stream carries the wire
// envelope inside RTP sample payloads; an ordered DataChannel carries
// control.Message JSON. Signaling and ICE negotiation are an external
// collaborator: CreateOffer/AcceptOffer/AcceptAnswer/AddICECandidate take
// or return SessionDescriptions and candidates exchanged by a
// caller-supplied signaling client, grounded on the original
// signaling-server's mdns/hub/qr pairing flow and webrtc_transport.hpp's
// LANDiscovery.
package webrtcx

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
	"github.com/sirupsen/logrus"

	"github.com/streamlinux/streamlinux/internal/control"
	"github.com/streamlinux/streamlinux/internal/media"
	"github.com/streamlinux/streamlinux/internal/transport"
	"github.com/streamlinux/streamlinux/internal/transport/wire"
)

// maxLateRTPPackets bounds how many packets samplebuilder holds while
// waiting for a fragmented sample's missing packets before giving up
// on it, per pion's own SampleBuilder usage convention.
const maxLateRTPPackets = 200

// Config configures a Transport's underlying PeerConnection.
type Config struct {
	ICEServers []webrtc.ICEServer
	VideoMimeType string // e.g. "video/H264"
	AudioMimeType string // e.g. "audio/opus"
	Logger        *logrus.Logger
}

// DefaultConfig returns a Config with no ICE servers (LAN-only, per §1's
// exclusion of cloud signaling/relay infrastructure) and the system's
// default codecs.
func DefaultConfig() Config {
	return Config{VideoMimeType: "video/H264", AudioMimeType: "audio/opus", Logger: logrus.StandardLogger()}
}

// Transport is a pion/webrtc-backed transport.Transport.
type Transport struct {
	cfg Config
	log *logrus.Entry

	pc *webrtc.PeerConnection

	videoTrack *webrtc.TrackLocalStaticSample
	audioTrack *webrtc.TrackLocalStaticSample
	control    *webrtc.DataChannel

	sequencer wire.Sequencer

	mu           sync.Mutex
	fragmentCb   transport.FragmentCallback
	controlCb    transport.ControlCallback
	state        atomic.Int32
	videoConfigEpoch atomic.Bool
	audioConfigEpoch atomic.Bool
}

// New constructs a Transport with a fresh PeerConnection and local
// tracks, but does not yet connect — call CreateOffer, AcceptOffer or
// AcceptAnswer with SessionDescriptions exchanged out-of-band via
// signaling.
func New(cfg Config) (*Transport, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: cfg.ICEServers})
	if err != nil {
		return nil, fmt.Errorf("webrtcx: create peer connection: %w", err)
	}

	videoTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: cfg.VideoMimeType, ClockRate: 90000},
		"video", "streamlinux")
	if err != nil {
		return nil, fmt.Errorf("webrtcx: create video track: %w", err)
	}
	if _, err := pc.AddTrack(videoTrack); err != nil {
		return nil, fmt.Errorf("webrtcx: add video track: %w", err)
	}

	audioTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: cfg.AudioMimeType, ClockRate: 48000, Channels: 2},
		"audio", "streamlinux")
	if err != nil {
		return nil, fmt.Errorf("webrtcx: create audio track: %w", err)
	}
	if _, err := pc.AddTrack(audioTrack); err != nil {
		return nil, fmt.Errorf("webrtcx: add audio track: %w", err)
	}

	ordered := true
	dc, err := pc.CreateDataChannel("control", &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, fmt.Errorf("webrtcx: create control channel: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	t := &Transport{
		cfg:        cfg,
		log:        log.WithField("component", "webrtcx"),
		pc:         pc,
		videoTrack: videoTrack,
		audioTrack: audioTrack,
		control:    dc,
	}
	t.videoConfigEpoch.Store(true)
	t.audioConfigEpoch.Store(true)
	t.state.Store(int32(transport.StateNew))
	t.wireCallbacks()
	return t, nil
}

func (t *Transport) wireCallbacks() {
	t.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateConnecting:
			t.state.Store(int32(transport.StateConnecting))
		case webrtc.PeerConnectionStateConnected:
			t.state.Store(int32(transport.StateConnected))
		case webrtc.PeerConnectionStateDisconnected:
			t.state.Store(int32(transport.StateDisconnected))
		case webrtc.PeerConnectionStateFailed:
			t.state.Store(int32(transport.StateFailed))
		case webrtc.PeerConnectionStateClosed:
			t.state.Store(int32(transport.StateClosed))
		}
		t.log.WithField("state", s.String()).Debug("connection state changed")
	})

	t.control.OnMessage(func(msg webrtc.DataChannelMessage) {
		m, err := control.Unmarshal(msg.Data)
		if err != nil {
			t.log.WithError(err).Warn("dropping malformed control message")
			return
		}
		t.mu.Lock()
		cb := t.controlCb
		t.mu.Unlock()
		if cb != nil {
			cb(m)
		}
	})

	t.pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		streamID := int(wire.StreamVideo)
		if remote.Kind() == webrtc.RTPCodecTypeAudio {
			streamID = int(wire.StreamAudio)
		}
		go t.readTrack(streamID, remote)
	})
}

// readTrack reassembles the RTP packets pion's payloader fragments
// outbound samples into (one envelope can span several FU-A/Opus
// packets above the MTU) before handing whole sample payloads to
// wire.Unmarshal.
func (t *Transport) readTrack(streamID int, remote *webrtc.TrackRemote) {
	var depacketizer rtp.Depacketizer
	if streamID == int(wire.StreamVideo) {
		depacketizer = &codecs.H264Packet{}
	} else {
		depacketizer = &codecs.OpusPacket{}
	}
	sb := samplebuilder.New(maxLateRTPPackets, depacketizer, remote.Codec().ClockRate)

	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			t.log.WithError(err).Debug("remote track ended")
			return
		}
		sb.Push(pkt)
		for sample := sb.Pop(); sample != nil; sample = sb.Pop() {
			env, err := wire.Unmarshal(sample.Data)
			if err != nil {
				t.log.WithError(err).Warn("dropping malformed envelope")
				continue
			}
			t.mu.Lock()
			cb := t.fragmentCb
			t.mu.Unlock()
			if cb != nil {
				cb(streamID, env.PTS, env.Keyframe, env.Payload)
			}
		}
	}
}

// PeerConnection exposes the underlying pion PeerConnection for a
// caller-supplied signaling client to perform offer/answer exchange.
func (t *Transport) PeerConnection() *webrtc.PeerConnection { return t.pc }

// SendSynced implements transport.Transport.
func (t *Transport) SendSynced(ctx context.Context, frames media.SyncedFrames) error {
	if frames.VideoValid {
		epoch := t.videoConfigEpoch.CompareAndSwap(true, false)
		env := &wire.Envelope{
			PTS:         frames.Video.PTS,
			StreamID:    wire.StreamVideo,
			Sequence:    t.sequencer.Next(wire.StreamVideo),
			Keyframe:    frames.Video.Keyframe,
			ConfigEpoch: epoch && frames.Video.Keyframe,
			Payload:     frames.Video.Data,
		}
		data, err := env.Marshal(nil)
		if err != nil {
			return fmt.Errorf("webrtcx: marshal video envelope: %w", err)
		}
		if err := t.videoTrack.WriteSample(pionmedia.Sample{Data: data}); err != nil {
			return fmt.Errorf("webrtcx: write video sample: %w", err)
		}
	}
	if frames.AudioValid {
		env := &wire.Envelope{
			PTS:      frames.Audio.PTS,
			StreamID: wire.StreamAudio,
			Sequence: t.sequencer.Next(wire.StreamAudio),
			Payload:  frames.Audio.Data,
		}
		data, err := env.Marshal(nil)
		if err != nil {
			return fmt.Errorf("webrtcx: marshal audio envelope: %w", err)
		}
		if err := t.audioTrack.WriteSample(pionmedia.Sample{Data: data}); err != nil {
			return fmt.Errorf("webrtcx: write audio sample: %w", err)
		}
	}
	return nil
}

// SendControl implements transport.Transport.
func (t *Transport) SendControl(ctx context.Context, msg control.Message) error {
	data, err := control.Marshal(msg)
	if err != nil {
		return fmt.Errorf("webrtcx: marshal control message: %w", err)
	}
	return t.control.Send(data)
}

// OnFragment implements transport.Transport.
func (t *Transport) OnFragment(cb transport.FragmentCallback) {
	t.mu.Lock()
	t.fragmentCb = cb
	t.mu.Unlock()
}

// OnControl implements transport.Transport.
func (t *Transport) OnControl(cb transport.ControlCallback) {
	t.mu.Lock()
	t.controlCb = cb
	t.mu.Unlock()
}

// ConnectionState implements transport.Transport.
func (t *Transport) ConnectionState() transport.ConnectionState {
	return transport.ConnectionState(t.state.Load())
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	return t.pc.Close()
}
