package webrtcx

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// CreateOffer generates a local offer and sets it as the local
// description, for a caller-supplied signaling client to deliver to
// the remote peer out-of-band (spec §1: signaling stays an external
// collaborator).
func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("webrtcx: create offer: %w", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("webrtcx: set local description: %w", err)
	}
	return offer, nil
}

// AcceptOffer applies a remote offer and generates the matching local
// answer.
func (t *Transport) AcceptOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := t.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("webrtcx: set remote description: %w", err)
	}
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("webrtcx: create answer: %w", err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("webrtcx: set local description: %w", err)
	}
	return answer, nil
}

// AcceptAnswer applies the remote peer's answer to a previously sent offer.
func (t *Transport) AcceptAnswer(answer webrtc.SessionDescription) error {
	if err := t.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("webrtcx: set remote description: %w", err)
	}
	return nil
}

// AddICECandidate forwards one trickled ICE candidate from the
// signaling channel to the underlying PeerConnection.
func (t *Transport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}
