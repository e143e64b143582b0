package avsync

import (
	"sync"

	"github.com/streamlinux/streamlinux/internal/media"
)

// Config configures a Synchronizer per spec §4.5.
type Config struct {
	TargetOffsetUs      int64
	MaxDesyncUs         int64
	JitterBufferMs       int64
	EnableDriftCorrection bool
	AllowFrameDrop       bool
	AllowFrameDuplicate  bool

	// VideoCapacity/AudioCapacity size video_buf/audio_buf. Defaults
	// (0.5s at 30fps, 1s at 50 audio-frames/s) are applied by
	// DefaultConfig; callers targeting a different fps/frame size
	// should scale these explicitly.
	VideoCapacity int
	AudioCapacity int
}

// DefaultConfig returns spec §4.5's defaults.
func DefaultConfig() Config {
	return Config{
		TargetOffsetUs:        0,
		MaxDesyncUs:           100000,
		JitterBufferMs:        50,
		EnableDriftCorrection: true,
		AllowFrameDrop:        true,
		AllowFrameDuplicate:   false,
		VideoCapacity:         15,
		AudioCapacity:         50,
	}
}

// SyncStats reports synchronizer health, refreshed each Pull when drift
// correction is enabled.
type SyncStats struct {
	VideoDroppedLate uint64
	AudioDroppedLate uint64
	TuplesEmitted    uint64
	AudioDriftPPM    float64
	VideoDriftPPM    float64
	CrossStreamOffsetUs int64
}

// Synchronizer implements the sender-side pair-assembly algorithm of
// spec §4.5, ground-truthed on av_synchronizer.cpp.
type Synchronizer struct {
	cfg Config

	bufMu   sync.Mutex
	videoBuf *BoundedHandoff[*media.EncodedVideoFrame]
	audioBuf *BoundedHandoff[*media.EncodedAudioFrame]
	sawVideoKeyframe bool
	lastVideoPTS media.PTS
	lastAudioPTS media.PTS

	statsMu sync.Mutex
	stats   SyncStats

	videoDrift *DriftEstimator
	audioDrift *DriftEstimator
}

// New constructs a Synchronizer.
func New(cfg Config) *Synchronizer {
	return &Synchronizer{
		cfg:      cfg,
		videoBuf: NewBoundedHandoff[*media.EncodedVideoFrame](cfg.VideoCapacity, true),
		audioBuf: NewBoundedHandoff[*media.EncodedAudioFrame](cfg.AudioCapacity, false),
		videoDrift: NewDriftEstimator(),
		audioDrift: NewDriftEstimator(),
	}
}

// PushVideo enqueues an encoded video frame onto video_buf.
func (s *Synchronizer) PushVideo(frame *media.EncodedVideoFrame, localTimeUs int64) {
	s.videoBuf.Push(frame)
	s.videoDrift.Add(DriftSample{PTS: frame.PTS, LocalTimeUs: localTimeUs})
}

// PushAudio enqueues an encoded audio frame onto audio_buf. Returns
// ErrFull if the buffer is full — audio is never dropped silently, so
// the caller (the audio encoder's input path) must apply backpressure.
func (s *Synchronizer) PushAudio(frame *media.EncodedAudioFrame, localTimeUs int64) error {
	s.audioDrift.Add(DriftSample{PTS: frame.PTS, LocalTimeUs: localTimeUs})
	return s.audioBuf.Push(frame)
}

// Pull runs one iteration of the pair-assembly algorithm, returning the
// next SyncedFrames tuple or ok=false if neither buffer has anything
// assemblable yet (the caller should retry after a timeout).
func (s *Synchronizer) Pull() (media.SyncedFrames, bool) {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()

	// Non-keyframes queued ahead of the first keyframe cannot be decoded
	// and are discarded until a keyframe reaches the head of the buffer.
	if !s.sawVideoKeyframe {
		for {
			head, ok := s.videoBuf.Peek()
			if !ok {
				return media.SyncedFrames{}, false
			}
			if head.Keyframe {
				s.sawVideoKeyframe = true
				break
			}
			s.videoBuf.Pop()
		}
	}

	refPTS := media.PTS(int64(maxPTS(s.lastVideoPTS, s.lastAudioPTS)) - s.cfg.JitterBufferMs*1000 + s.cfg.TargetOffsetUs)

	var tuple media.SyncedFrames
	tuple.PresentTime = refPTS

	for {
		head, ok := s.videoBuf.Peek()
		if !ok {
			break
		}
		diff := head.PTS.Sub(refPTS)
		switch {
		case absDiff(diff) < s.cfg.MaxDesyncUs || head.Keyframe:
			v, _ := s.videoBuf.Pop()
			tuple.Video = v
			tuple.VideoValid = true
			s.lastVideoPTS = v.PTS
		case diff < -s.cfg.MaxDesyncUs:
			s.videoBuf.Pop()
			s.statsMu.Lock()
			s.stats.VideoDroppedLate++
			s.statsMu.Unlock()
			continue
		}
		break
	}

	audioWindow := 2 * s.cfg.MaxDesyncUs
	for {
		head, ok := s.audioBuf.Peek()
		if !ok {
			break
		}
		diff := head.PTS.Sub(refPTS)
		switch {
		case absDiff(diff) < audioWindow:
			a, _ := s.audioBuf.Pop()
			tuple.Audio = a
			tuple.AudioValid = true
			s.lastAudioPTS = a.PTS
		case diff < -audioWindow:
			s.audioBuf.Pop()
			s.statsMu.Lock()
			s.stats.AudioDroppedLate++
			s.statsMu.Unlock()
			continue
		}
		break
	}

	if !tuple.VideoValid && !tuple.AudioValid {
		return media.SyncedFrames{}, false
	}

	if s.cfg.EnableDriftCorrection {
		s.refreshDriftLocked()
	}

	s.statsMu.Lock()
	s.stats.TuplesEmitted++
	s.statsMu.Unlock()

	return tuple, true
}

func (s *Synchronizer) refreshDriftLocked() {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	if ppm, ok := s.videoDrift.DriftPPM(); ok {
		s.stats.VideoDriftPPM = ppm
	}
	if ppm, ok := s.audioDrift.DriftPPM(); ok {
		s.stats.AudioDriftPPM = ppm
	}
	s.stats.CrossStreamOffsetUs = int64(s.lastAudioPTS.Sub(s.lastVideoPTS))
}

// Stats returns a snapshot of synchronizer statistics.
func (s *Synchronizer) Stats() SyncStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Reset clears both buffers, both drift rings, all statistics, and the
// keyframe-wait state atomically, per spec §4.5.
func (s *Synchronizer) Reset() {
	s.bufMu.Lock()
	s.videoBuf.Reset()
	s.audioBuf.Reset()
	s.sawVideoKeyframe = false
	s.lastVideoPTS = 0
	s.lastAudioPTS = 0
	s.videoDrift.Reset()
	s.audioDrift.Reset()
	s.bufMu.Unlock()

	s.statsMu.Lock()
	s.stats = SyncStats{}
	s.statsMu.Unlock()
}

func maxPTS(a, b media.PTS) media.PTS {
	if a > b {
		return a
	}
	return b
}

func absDiff(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
