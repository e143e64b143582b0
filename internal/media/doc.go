// Package media defines the frame, codec and provider vocabulary shared
// by capture, encode, synchronize, transport and present stages.
//
// It owns no goroutines and performs no I/O: it is the common data model
// that internal/capture, internal/avsync, internal/transport and
// internal/present build on.
//
// # Data model
//
//	RawVideoFrame, RawAudioFrame   -- produced by capture sources
//	EncodedVideoFrame, EncodedAudioFrame -- produced by encoders, consumed by decoders
//	SyncedFrames                    -- emitted by the AV synchronizer
//
// # Codecs
//
// Video: H.264, H.265, VP9, AV1. Audio: Opus only. Concrete encoder and
// decoder implementations are external collaborators (native codec
// libraries or platform media frameworks); this package only defines the
// Provider registry they register themselves into.
package media
