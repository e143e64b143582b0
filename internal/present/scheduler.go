package present

import (
	"sync"

	"github.com/streamlinux/streamlinux/internal/avsync"
	"github.com/streamlinux/streamlinux/internal/media"
)

const (
	syncThresholdUs             = 40000
	earlyCapUs                  = 200000
	lateDropThresholdUs         = 100000
	driftCorrectionThresholdUs  = syncThresholdUs
)

// Decision is the classifier's verdict for one decoded video frame.
type Decision int

const (
	DecisionDisplayNow Decision = iota
	DecisionDelay
	DecisionRepeatPrevious
	DecisionDrop
)

func (d Decision) String() string {
	switch d {
	case DecisionDelay:
		return "delay"
	case DecisionRepeatPrevious:
		return "repeat-previous"
	case DecisionDrop:
		return "drop"
	default:
		return "display-now"
	}
}

// SchedulerStats reports scheduler health.
type SchedulerStats struct {
	FramesDisplayed int
	FramesDelayed   int
	FramesRepeated  int
	FramesDropped   int
}

// Config configures a Scheduler. RepeatEnabled selects between
// repeating the previous frame or displaying the late frame anyway for
// the [-100ms, -40ms) window, per spec §4.8 step 1's "(if repeat
// enabled) or display this frame late".
type Config struct {
	RepeatEnabled bool
}

// DefaultConfig returns the scheduler's default configuration.
func DefaultConfig() Config {
	return Config{RepeatEnabled: true}
}

// Scheduler implements the presentation classifier of spec §4.8,
// driven by a MasterClock. It uses avsync.JitterRing and shares
// avsync.DriftEstimator with the sender's Synchronizer per §4.9.
type Scheduler struct {
	clock  *MasterClock
	cfg    Config
	jitter *avsync.JitterRing
	drift  *avsync.DriftEstimator

	mu       sync.Mutex
	stats    SchedulerStats
	previous *media.RawVideoFrame
}

// NewScheduler constructs a Scheduler bound to clock.
func NewScheduler(clock *MasterClock, cfg Config) *Scheduler {
	return &Scheduler{
		clock:  clock,
		cfg:    cfg,
		jitter: avsync.NewJitterRing(),
		drift:  avsync.NewDriftEstimator(),
	}
}

// Classify applies the §4.8 classifier to one decoded frame arriving at
// local time nowLocalUs.
func (s *Scheduler) Classify(pts media.PTS, keyframe bool, nowLocalUs int64) Decision {
	diff := pts.Sub(s.clock.Now())

	switch {
	case diff > syncThresholdUs && diff <= earlyCapUs:
		return DecisionDelay
	case diff >= -syncThresholdUs && diff <= syncThresholdUs:
		return DecisionDisplayNow
	case keyframe:
		return DecisionDisplayNow
	case diff < -syncThresholdUs && diff >= -lateDropThresholdUs:
		if s.cfg.RepeatEnabled {
			return DecisionRepeatPrevious
		}
		return DecisionDisplayNow
	default:
		return DecisionDrop
	}
}

// Present runs Classify and applies its decision, updating stats, the
// jitter/drift estimators, and periodically the master clock's drift
// correction. It returns the frame that should actually be displayed
// (frame, the previous frame on repeat, or nil on drop/delay).
func (s *Scheduler) Present(frame *media.RawVideoFrame, keyframe bool, nowLocalUs int64) *media.RawVideoFrame {
	decision := s.Classify(frame.PTS, keyframe, nowLocalUs)

	s.jitter.Observe(frame.PTS, nowLocalUs)
	s.drift.Add(avsync.DriftSample{PTS: frame.PTS, LocalTimeUs: nowLocalUs})

	s.mu.Lock()
	defer s.mu.Unlock()

	var out *media.RawVideoFrame
	switch decision {
	case DecisionDisplayNow:
		s.stats.FramesDisplayed++
		out = frame
		s.previous = frame
	case DecisionDelay:
		s.stats.FramesDelayed++
	case DecisionRepeatPrevious:
		s.stats.FramesRepeated++
		out = s.previous
	case DecisionDrop:
		s.stats.FramesDropped++
	}

	if driftUs, ok := s.drift.DriftUs(); ok {
		s.clock.CorrectDrift(driftUs, driftCorrectionThresholdUs)
	}

	return out
}

// Stats returns a snapshot of scheduler statistics.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
