// Package present implements the receiver-side presentation pipeline:
// MasterClock, PresentationScheduler and AudioPlayoutQueue (spec §4.8),
// ground-truthed on original_source/android-client/.../sync/av_sync.cpp.
package present

import (
	"sync"

	"github.com/streamlinux/streamlinux/internal/media"
)

// ClockSource selects what drives the master clock's time base.
type ClockSource int

const (
	ClockSourceAudio ClockSource = iota // default: audio artifacts are more perceptible
	ClockSourceVideo
	ClockSourceExternal
)

func (s ClockSource) String() string {
	switch s {
	case ClockSourceVideo:
		return "video"
	case ClockSourceExternal:
		return "external"
	default:
		return "audio"
	}
}

const (
	minSpeed = 0.9
	maxSpeed = 1.1
	speedStep = 0.02
)

// MasterClock is C(t): a presentation-time projection anchored at
// (basePTS, baseLocalTimeUs) and advanced at rate speed. All reads and
// writes of the three fields go through one mutex, so a reader never
// sees a torn mix of old and new values; no atomic loads are used.
type MasterClock struct {
	mu             sync.Mutex
	source         ClockSource
	basePTS        media.PTS
	baseLocalTimeUs int64
	speed          float64
	nowFunc        func() int64
}

// NewMasterClock constructs a MasterClock sourced from audio by default.
// nowFunc returns the current local time in microseconds; callers pass
// their own monotonic clock so tests can drive time deterministically.
func NewMasterClock(nowFunc func() int64) *MasterClock {
	return &MasterClock{source: ClockSourceAudio, speed: 1.0, nowFunc: nowFunc}
}

// SetSource changes the clock's driving source, resetting basePTS and
// baseLocalTimeUs atomically to the clock's current projected value so
// C(t) has no discontinuity across the switch.
func (c *MasterClock) SetSource(source ClockSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	current := c.projectLocked(now)
	c.source = source
	c.basePTS = current
	c.baseLocalTimeUs = now
}

// Source returns the clock's current driving source.
func (c *MasterClock) Source() ClockSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Sync anchors the clock to a fresh (pts, localTimeUs) observation from
// the driving source, without touching speed.
func (c *MasterClock) Sync(pts media.PTS, localTimeUs int64) {
	c.mu.Lock()
	c.basePTS = pts
	c.baseLocalTimeUs = localTimeUs
	c.mu.Unlock()
}

// Now returns C(t) — the presentation time projected to the current
// local time.
func (c *MasterClock) Now() media.PTS {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectLocked(c.nowFunc())
}

func (c *MasterClock) projectLocked(nowLocalUs int64) media.PTS {
	elapsed := float64(nowLocalUs - c.baseLocalTimeUs)
	return c.basePTS + media.PTS(elapsed*c.speed)
}

// Speed returns the clock's current drift-correction speed multiplier.
func (c *MasterClock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// CorrectDrift adjusts speed by ±2%, clamped to [0.9, 1.1], toward
// compensating driftUs of cross-stream offset, or decays speed back to
// 1.0 once |driftUs| is within syncThresholdUs. Re-anchors basePTS to
// avoid a discontinuity in C(t) from the speed change.
func (c *MasterClock) CorrectDrift(driftUs int64, syncThresholdUs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	anchor := c.projectLocked(now)

	switch {
	case driftUs > syncThresholdUs:
		c.speed = clampSpeed(c.speed + speedStep)
	case driftUs < -syncThresholdUs:
		c.speed = clampSpeed(c.speed - speedStep)
	default:
		c.speed = decayToward(c.speed, 1.0)
	}

	c.basePTS = anchor
	c.baseLocalTimeUs = now
}

func clampSpeed(s float64) float64 {
	if s < minSpeed {
		return minSpeed
	}
	if s > maxSpeed {
		return maxSpeed
	}
	return s
}

func decayToward(speed, target float64) float64 {
	if speed > target {
		next := speed - speedStep
		if next < target {
			return target
		}
		return next
	}
	if speed < target {
		next := speed + speedStep
		if next > target {
			return target
		}
		return next
	}
	return target
}
