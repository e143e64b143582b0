// Package transport defines the Transport contract of spec §4.6: the
// sender/receiver's abstraction over the actual network path, with one
// concrete implementation (internal/transport/webrtcx) built on
// pion/webrtc.
package transport

import (
	"context"

	"github.com/streamlinux/streamlinux/internal/control"
	"github.com/streamlinux/streamlinux/internal/media"
)

// ConnectionState mirrors spec §4.6's connection state machine.
type ConnectionState int

const (
	StateNew ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateDisconnected:
		return "Disconnected"
	case StateFailed:
		return "Failed"
	case StateClosed:
		return "Closed"
	default:
		return "New"
	}
}

// FragmentCallback is invoked for each received media fragment, already
// decoded from the wire envelope.
type FragmentCallback func(streamID int, pts media.PTS, keyframe bool, payload []byte)

// ControlCallback is invoked for each received control message.
type ControlCallback func(msg control.Message)

// Transport matches spec §4.6. PTS is preserved exactly across the
// wire; receive order may differ from send order; delivery is lossy
// but carries per-stream sequence numbers for loss detection.
type Transport interface {
	// SendSynced transmits one SyncedFrames tuple, encoding each valid
	// half through the wire envelope.
	SendSynced(ctx context.Context, frames media.SyncedFrames) error

	// SendControl transmits one control message over the transport's
	// ordered control channel.
	SendControl(ctx context.Context, msg control.Message) error

	// OnFragment registers the callback invoked for received media
	// fragments.
	OnFragment(cb FragmentCallback)

	// OnControl registers the callback invoked for received control
	// messages.
	OnControl(cb ControlCallback)

	ConnectionState() ConnectionState

	Close() error
}
