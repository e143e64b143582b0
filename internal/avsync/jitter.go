// Package avsync implements the sender-side pair-assembly synchronizer
// (spec §4.5) and the jitter/drift estimators it shares with the
// receiver's presentation scheduler (spec §4.9), grounded on
// original_source/linux-host/src/sync/av_synchronizer.cpp and the
// teacher's goroutine-per-stage concurrency shape.
package avsync

import "github.com/streamlinux/streamlinux/internal/media"

const (
	minBufferMs = 20
	maxBufferMs = 200
	targetBufferMs = 50
)

// JitterRing implements the RFC 3550 §6.4.1 jitter EMA and the adaptive
// buffer-sizing rule of spec §4.9. The receiver's present.Scheduler and
// present.AudioPlayoutQueue use it; the sender's Synchronizer does not.
type JitterRing struct {
	lastArrival int64 // microseconds, local clock
	lastPTS     media.PTS
	hasPrev     bool

	jitterUs float64 // current J estimate, microseconds
	sizeMs   int
}

// NewJitterRing constructs a JitterRing at the target buffer size.
func NewJitterRing() *JitterRing {
	return &JitterRing{sizeMs: targetBufferMs}
}

// Observe records one (pts, arrival) sample and updates the jitter EMA.
// arrival is microseconds on the local monotonic clock.
func (j *JitterRing) Observe(pts media.PTS, arrival int64) {
	if !j.hasPrev {
		j.lastArrival = arrival
		j.lastPTS = pts
		j.hasPrev = true
		return
	}
	d := float64(abs64((arrival - j.lastArrival) - pts.Sub(j.lastPTS)))
	j.jitterUs += (d - j.jitterUs) / 16
	j.lastArrival = arrival
	j.lastPTS = pts
}

// Jitter returns the current jitter estimate in microseconds.
func (j *JitterRing) Jitter() float64 { return j.jitterUs }

// OptimalDelayMs returns 2*J clamped to [minBufferMs, maxBufferMs].
func (j *JitterRing) OptimalDelayMs() int {
	ms := int(2 * j.jitterUs / 1000)
	if ms < minBufferMs {
		return minBufferMs
	}
	if ms > maxBufferMs {
		return maxBufferMs
	}
	return ms
}

// AdaptSize adjusts the jitter buffer's target size given the current
// jitter estimate and whether loss occurred since the last tick.
func (j *JitterRing) AdaptSize(lostSinceLastTick bool) int {
	jitterMs := j.jitterUs / 1000
	switch {
	case jitterMs > 20 || lostSinceLastTick:
		j.sizeMs = minInt(j.sizeMs+10, maxBufferMs)
	case jitterMs < 5 && !lostSinceLastTick:
		j.sizeMs = maxInt(j.sizeMs-5, minBufferMs)
	}
	return j.sizeMs
}

// SizeMs returns the current adaptive buffer size without adapting it.
func (j *JitterRing) SizeMs() int { return j.sizeMs }

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
