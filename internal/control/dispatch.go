package control

import "fmt"

// Effects is the set of pipeline actions a Dispatcher invokes in
// response to authorized messages, one method per row of spec §4.10's
// message table. A Dispatcher calls these methods; internal/pipeline's
// HostPipeline and ClientPipeline implement the interface.
type Effects interface {
	Pause()
	Resume()
	SetResolution(width, height int)
	SetBitrate(bitrateBps int)
	SetQuality(params QualityPresetParams)
	SelectMonitor(id int)
	RequestKeyframe()
	Pong(echoSequence uint64)
	Report(state string)
}

// Dispatcher authorizes and applies inbound control messages against
// Effects, per spec §4.10.
type Dispatcher struct {
	auth    *Authorizer
	effects Effects
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(auth *Authorizer, effects Effects) *Dispatcher {
	return &Dispatcher{auth: auth, effects: effects}
}

// Dispatch authorizes msg against peer and, if authorized, applies its
// effect. An unauthorized message is silently dropped (returns false,
// nil) per Scenario F; any other error reports a malformed or
// out-of-range payload.
func (d *Dispatcher) Dispatch(peer PeerID, msg Message) (applied bool, err error) {
	if !d.auth.Allow(peer) {
		return false, nil
	}

	switch msg.Type {
	case TypePause:
		d.effects.Pause()
	case TypeResume:
		d.effects.Resume()
	case TypeSetResolution:
		var p ResolutionPayload
		if err := DecodePayload(msg, &p); err != nil {
			return false, err
		}
		if err := ValidateResolution(p); err != nil {
			return false, err
		}
		d.effects.SetResolution(p.Width, p.Height)
	case TypeSetBitrate:
		var p BitratePayload
		if err := DecodePayload(msg, &p); err != nil {
			return false, err
		}
		if err := ValidateBitrate(p); err != nil {
			return false, err
		}
		d.effects.SetBitrate(p.BitrateBps)
	case TypeSetQuality:
		var p QualityPayload
		if err := DecodePayload(msg, &p); err != nil {
			return false, err
		}
		params, err := ResolvePreset(p.Preset)
		if err != nil {
			return false, err
		}
		d.effects.SetQuality(params)
	case TypeSelectMonitor:
		var p MonitorPayload
		if err := DecodePayload(msg, &p); err != nil {
			return false, err
		}
		d.effects.SelectMonitor(p.ID)
	case TypeRequestKeyframe:
		d.effects.RequestKeyframe()
	case TypePing:
		var p PingPayload
		_ = DecodePayload(msg, &p) // ping carries no payload in the minimal form
		d.effects.Pong(msg.Sequence)
	case TypeState, TypeError:
		var p StatePayload
		if err := DecodePayload(msg, &p); err == nil {
			d.effects.Report(p.Status)
		}
	default:
		return false, fmt.Errorf("control: unrecognized message type %q", msg.Type)
	}

	return true, nil
}
