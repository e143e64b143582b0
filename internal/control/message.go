// Package control implements the ControlPlane message table of spec
// §4.10 — JSON-framed, size-capped, peer-authorized messages carried on
// the transport's control channel. Grounded on
// original_source/linux-host/src/control/control_channel.cpp and the
// message-typing style of babelcloud-gbox's
// device_connect/protocol/control.go.
package control

import (
	"encoding/json"
	"fmt"
)

// Type enumerates the recognized control message types of spec §4.10.
type Type string

const (
	TypePause           Type = "pause"
	TypeResume          Type = "resume"
	TypeSetResolution    Type = "set_resolution"
	TypeSetBitrate       Type = "set_bitrate"
	TypeSetQuality        Type = "set_quality"
	TypeSelectMonitor     Type = "select_monitor"
	TypeRequestKeyframe   Type = "request_keyframe"
	TypePing              Type = "ping"
	TypePong              Type = "pong"
	TypeState             Type = "state"
	TypeError             Type = "error"
)

// MaxMessageSize caps one control message's marshaled size, per §6.
const MaxMessageSize = 64 * 1024

// QualityPreset enumerates the set_quality presets of spec §4.10.
type QualityPreset string

const (
	QualityAuto   QualityPreset = "auto"
	QualityLow    QualityPreset = "low"
	QualityMedium QualityPreset = "medium"
	QualityHigh   QualityPreset = "high"
	QualityUltra  QualityPreset = "ultra"
)

// Message is one control-channel message: `{type, sequence?, timestamp, payload?}`.
type Message struct {
	Type      Type            `json:"type"`
	Sequence  uint64          `json:"sequence,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ResolutionPayload is the payload of a set_resolution message.
type ResolutionPayload struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BitratePayload is the payload of a set_bitrate message.
type BitratePayload struct {
	BitrateBps int `json:"bitrate"`
}

// QualityPayload is the payload of a set_quality message.
type QualityPayload struct {
	Preset QualityPreset `json:"preset"`
}

// MonitorPayload is the payload of a select_monitor message.
type MonitorPayload struct {
	ID int `json:"id"`
}

// PingPayload is the payload of ping/pong messages.
type PingPayload struct {
	EchoSequence uint64 `json:"echo_sequence,omitempty"`
}

// StatePayload/ErrorPayload report status to the user.
type StatePayload struct {
	Status string `json:"status"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Marshal encodes msg to its JSON wire form, rejecting messages that
// would exceed MaxMessageSize.
func Marshal(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxMessageSize {
		return nil, fmt.Errorf("control: message of %d bytes exceeds %d byte cap", len(data), MaxMessageSize)
	}
	return data, nil
}

// Unmarshal decodes a wire-form control message, rejecting oversized input.
func Unmarshal(data []byte) (Message, error) {
	if len(data) > MaxMessageSize {
		return Message{}, fmt.Errorf("control: message of %d bytes exceeds %d byte cap", len(data), MaxMessageSize)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
