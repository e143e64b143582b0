// Package wire implements the PTS-carrying media envelope of spec §6,
// grounded on the teacher's rtp.go RTP re-exports and packetizer_h264.go's
// Annex-B handling, generalized from "pack into pion RTP packets" to
// "pack into this system's own envelope, which webrtcx then carries
// inside RTP payloads."
package wire

import (
	"encoding/binary"
	"errors"

	"github.com/streamlinux/streamlinux/internal/media"
)

// StreamID identifies which media stream an envelope carries.
type StreamID uint8

const (
	StreamVideo StreamID = 0
	StreamAudio StreamID = 1
)

var (
	// ErrTruncated reports an envelope shorter than its fixed header.
	ErrTruncated = errors.New("wire: truncated envelope")
	// ErrPayloadTooLarge reports a payload exceeding MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("wire: payload too large")
)

// annexBStartCode prefixes parameter-set data on a configuration-epoch
// keyframe (SPS/PPS for H.264), per spec §6.
var annexBStartCode = []byte{0, 0, 0, 1}

// MaxPayloadSize bounds one envelope's payload at 1 MiB. This is far
// above typical path MTUs; the transport splits larger envelopes across
// several packets.
const MaxPayloadSize = 1 << 20

// headerSize is the fixed-size prefix: pts(8) + streamID(1) + sequence(4) + flags(1).
const headerSize = 14

const (
	flagKeyframe byte = 1 << iota
	flagConfigEpoch
)

// Envelope is the wire-level unit exchanged between sender and
// receiver: one PTS-tagged, sequenced, optionally-keyframe-flagged
// payload per spec §6.
type Envelope struct {
	PTS          media.PTS
	StreamID     StreamID
	Sequence     uint32
	Keyframe     bool
	ConfigEpoch  bool // configuration-epoch keyframe; Marshal prepends parameter sets only if non-empty
	Payload      []byte
}

// Marshal encodes the envelope to bytes. If ConfigEpoch is set and
// parameterSets is non-empty, parameterSets is prepended to the payload
// with an Annex-B start code, per spec §6's "SPS/PPS start-code prefix
// on configuration-epoch keyframes".
func (e *Envelope) Marshal(parameterSets []byte) ([]byte, error) {
	payload := e.Payload
	if e.ConfigEpoch && len(parameterSets) > 0 {
		combined := make([]byte, 0, len(annexBStartCode)+len(parameterSets)+len(payload))
		combined = append(combined, annexBStartCode...)
		combined = append(combined, parameterSets...)
		combined = append(combined, payload...)
		payload = combined
	}
	if len(payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint64(buf[0:8], uint64(e.PTS))
	buf[8] = byte(e.StreamID)
	binary.BigEndian.PutUint32(buf[9:13], e.Sequence)

	var flags byte
	if e.Keyframe {
		flags |= flagKeyframe
	}
	if e.ConfigEpoch {
		flags |= flagConfigEpoch
	}
	buf[13] = flags

	copy(buf[headerSize:], payload)
	return buf, nil
}

// Unmarshal decodes an envelope from bytes.
func Unmarshal(data []byte) (*Envelope, error) {
	if len(data) < headerSize {
		return nil, ErrTruncated
	}
	e := &Envelope{
		PTS:      media.PTS(binary.BigEndian.Uint64(data[0:8])),
		StreamID: StreamID(data[8]),
		Sequence: binary.BigEndian.Uint32(data[9:13]),
	}
	flags := data[13]
	e.Keyframe = flags&flagKeyframe != 0
	e.ConfigEpoch = flags&flagConfigEpoch != 0
	e.Payload = append([]byte(nil), data[headerSize:]...)
	return e, nil
}

// Sequencer generates per-stream monotonic sequence numbers, one per
// StreamID, matching spec §6's "per-stream uint32 sequence".
type Sequencer struct {
	next [2]uint32
}

// Next returns the next sequence number for id and advances it.
func (s *Sequencer) Next(id StreamID) uint32 {
	v := s.next[id]
	s.next[id]++
	return v
}
