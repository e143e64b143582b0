package avsync

import "github.com/streamlinux/streamlinux/internal/media"

const driftRingCapacity = 100
const minDriftSamples = 10

// DriftSample pairs a stream timestamp with the local clock time it
// was observed at, the raw material for the linear-regression drift
// estimate of spec §4.9.
type DriftSample struct {
	PTS        media.PTS
	LocalTimeUs int64
}

// DriftEstimator holds the last driftRingCapacity samples and reports a
// parts-per-million drift estimate by linear regression, ground-truthed
// on av_synchronizer.cpp's drift ring.
type DriftEstimator struct {
	samples [driftRingCapacity]DriftSample
	count   int
	next    int
}

// NewDriftEstimator returns an empty estimator.
func NewDriftEstimator() *DriftEstimator { return &DriftEstimator{} }

// Add records one sample, evicting the oldest once the ring is full.
func (d *DriftEstimator) Add(s DriftSample) {
	d.samples[d.next] = s
	d.next = (d.next + 1) % driftRingCapacity
	if d.count < driftRingCapacity {
		d.count++
	}
}

// Reset clears all recorded samples.
func (d *DriftEstimator) Reset() {
	d.count = 0
	d.next = 0
}

// DriftPPM returns the estimated drift in parts-per-million and true if
// at least minDriftSamples samples are available. The regression fits
// PTS (stream time) as a function of local time; slope 1.0 means the
// stream advances at exactly local-clock rate.
func (d *DriftEstimator) DriftPPM() (float64, bool) {
	if d.count < minDriftSamples {
		return 0, false
	}

	var n, sumX, sumY, sumXY, sumXX float64
	n = float64(d.count)
	start := 0
	if d.count == driftRingCapacity {
		start = d.next
	}
	var x0 int64
	for i := 0; i < d.count; i++ {
		s := d.samples[(start+i)%driftRingCapacity]
		if i == 0 {
			x0 = s.LocalTimeUs
		}
		x := float64(s.LocalTimeUs - x0)
		y := float64(s.PTS)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, false
	}
	slope := (n*sumXY - sumX*sumY) / denom
	return (slope - 1.0) * 1e6, true
}

// DriftUs returns the estimated absolute drift in microseconds
// accumulated over the estimator's current sample window — ppm scaled
// by the window's elapsed local time, not by an absolute clock
// reading — along with true if at least minDriftSamples samples are
// available.
func (d *DriftEstimator) DriftUs() (int64, bool) {
	ppm, ok := d.DriftPPM()
	if !ok {
		return 0, false
	}

	start := 0
	if d.count == driftRingCapacity {
		start = d.next
	}
	oldest := d.samples[start%driftRingCapacity]
	newest := d.samples[(start+d.count-1)%driftRingCapacity]
	windowUs := float64(newest.LocalTimeUs - oldest.LocalTimeUs)
	return int64(ppm * windowUs / 1e6), true
}
