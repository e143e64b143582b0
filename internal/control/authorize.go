package control

import (
	"encoding/json"
	"fmt"
)

const (
	minWidth, maxWidth   = 64, 7680
	minHeight, maxHeight = 64, 4320
	minBitrateBps        = 100_000
	maxBitrateBps        = 100_000_000
)

// PeerID identifies a session's remote peer.
type PeerID string

// Authorizer enforces spec §4.10's "each message is authenticated
// against a single authorized peer identity established at session
// start; messages from other peers are silently dropped" rule.
type Authorizer struct {
	authorized PeerID
}

// NewAuthorizer fixes the session's single authorized peer.
func NewAuthorizer(peer PeerID) *Authorizer {
	return &Authorizer{authorized: peer}
}

// Allow reports whether a message from peer should be processed. A
// message from any other peer is silently dropped by the caller, not
// reported as an error, per spec §4.10 (Scenario F).
func (a *Authorizer) Allow(peer PeerID) bool {
	return peer == a.authorized
}

// ValidateResolution range-checks a set_resolution payload against
// spec §4.10's [64,7680]x[64,4320] bound.
func ValidateResolution(p ResolutionPayload) error {
	if p.Width < minWidth || p.Width > maxWidth {
		return fmt.Errorf("control: width %d outside [%d,%d]", p.Width, minWidth, maxWidth)
	}
	if p.Height < minHeight || p.Height > maxHeight {
		return fmt.Errorf("control: height %d outside [%d,%d]", p.Height, minHeight, maxHeight)
	}
	return nil
}

// ValidateBitrate range-checks a set_bitrate payload against spec
// §4.10's [1e5, 1e8] bound.
func ValidateBitrate(p BitratePayload) error {
	if p.BitrateBps < minBitrateBps || p.BitrateBps > maxBitrateBps {
		return fmt.Errorf("control: bitrate %d outside [%d,%d]", p.BitrateBps, minBitrateBps, maxBitrateBps)
	}
	return nil
}

// QualityPresetParams maps a preset to the concrete (resolution,
// bitrate, fps) it applies, per spec §4.10's set_quality row.
type QualityPresetParams struct {
	Width, Height int
	BitrateBps    int
	FPS           int
}

// ResolvePreset maps a QualityPreset to its concrete parameters.
func ResolvePreset(p QualityPreset) (QualityPresetParams, error) {
	switch p {
	case QualityLow:
		return QualityPresetParams{Width: 1280, Height: 720, BitrateBps: 1_500_000, FPS: 24}, nil
	case QualityMedium, QualityAuto:
		return QualityPresetParams{Width: 1920, Height: 1080, BitrateBps: 4_000_000, FPS: 30}, nil
	case QualityHigh:
		return QualityPresetParams{Width: 2560, Height: 1440, BitrateBps: 8_000_000, FPS: 60}, nil
	case QualityUltra:
		return QualityPresetParams{Width: 3840, Height: 2160, BitrateBps: 20_000_000, FPS: 60}, nil
	default:
		return QualityPresetParams{}, fmt.Errorf("control: unknown quality preset %q", p)
	}
}

// DecodePayload unmarshals msg.Payload into v, the typed payload struct
// matching msg.Type.
func DecodePayload(msg Message, v any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("control: %s message has no payload", msg.Type)
	}
	return json.Unmarshal(msg.Payload, v)
}
