package avsync

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamlinux/streamlinux/internal/media"
)

func videoFrame(pts int64, keyframe bool) *media.EncodedVideoFrame {
	return &media.EncodedVideoFrame{PTS: media.PTS(pts), Keyframe: keyframe}
}

func audioFrame(pts int64) *media.EncodedAudioFrame {
	return &media.EncodedAudioFrame{PTS: media.PTS(pts)}
}

func TestSynchronizer_WaitsForFirstVideoKeyframe(t *testing.T) {
	s := New(DefaultConfig())
	s.PushVideo(videoFrame(0, false), 0)
	_, ok := s.Pull()
	require.False(t, ok, "non-keyframe first video frame must not emit a tuple")

	s.PushVideo(videoFrame(16667, true), 16667)
	_, ok = s.Pull()
	require.True(t, ok)
}

func TestSynchronizer_SteadyStateEmitsBothHalves(t *testing.T) {
	s := New(DefaultConfig())
	s.PushVideo(videoFrame(0, true), 0)
	s.PushAudio(audioFrame(0), 0)

	tuple, ok := s.Pull()
	require.True(t, ok)
	require.True(t, tuple.VideoValid)
	require.True(t, tuple.AudioValid)
	desync, bothValid := tuple.Desync()
	require.True(t, bothValid)
	require.Less(t, desync, int64(20000))
}

func TestSynchronizer_KeyframeNeverDroppedEvenWhenLate(t *testing.T) {
	s := New(DefaultConfig())
	s.PushVideo(videoFrame(0, true), 0)
	s.Pull()

	// Simulate a burst gap: next video frame is a late keyframe.
	s.PushVideo(videoFrame(2_000_000, true), 2_000_000)
	s.PushAudio(audioFrame(2_000_000), 2_000_000)

	tuple, ok := s.Pull()
	require.True(t, ok)
	require.True(t, tuple.VideoValid)
	require.True(t, tuple.Video.Keyframe)
}

func TestSynchronizer_LateNonKeyframeDroppedAndCounted(t *testing.T) {
	s := New(DefaultConfig())
	s.PushVideo(videoFrame(0, true), 0)
	s.Pull()

	s.lastVideoPTS = media.PTS(2_000_000)
	s.lastAudioPTS = media.PTS(2_000_000)

	s.PushVideo(videoFrame(100, false), 100) // far behind ref_pts, not a keyframe
	_, ok := s.Pull()
	require.False(t, ok)
	require.Equal(t, uint64(1), s.Stats().VideoDroppedLate)
}

func TestSynchronizer_HalfValidTupleWhenOneSideAbsent(t *testing.T) {
	s := New(DefaultConfig())
	s.PushVideo(videoFrame(0, true), 0)

	tuple, ok := s.Pull()
	require.True(t, ok)
	require.True(t, tuple.VideoValid)
	require.False(t, tuple.AudioValid)
}

func TestSynchronizer_ResetClearsEverythingAtomically(t *testing.T) {
	s := New(DefaultConfig())
	s.PushVideo(videoFrame(0, true), 0)
	s.Pull()
	s.PushAudio(audioFrame(1000), 1000)

	s.Reset()

	require.Equal(t, 0, s.videoBuf.Len())
	require.Equal(t, 0, s.audioBuf.Len())
	require.Equal(t, SyncStats{}, s.Stats())

	_, ok := s.Pull()
	require.False(t, ok, "after reset, synchronizer must wait for a new video keyframe")
}

func TestBoundedHandoff_VideoDropsOldestOnOverflow(t *testing.T) {
	h := NewBoundedHandoff[int](2, true)
	require.NoError(t, h.Push(1))
	require.NoError(t, h.Push(2))
	require.NoError(t, h.Push(3))
	require.Equal(t, uint64(1), h.Dropped())
	v, ok := h.Pop()
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestBoundedHandoff_AudioNeverDropsSilently(t *testing.T) {
	h := NewBoundedHandoff[int](2, false)
	require.NoError(t, h.Push(1))
	require.NoError(t, h.Push(2))
	err := h.Push(3)
	require.ErrorIs(t, err, ErrFull)
	require.Equal(t, 2, h.Len())
}

func TestDriftEstimator_RequiresMinimumSamples(t *testing.T) {
	d := NewDriftEstimator()
	for i := 0; i < 9; i++ {
		d.Add(DriftSample{PTS: media.PTS(i * 1000), LocalTimeUs: int64(i * 1000)})
	}
	_, ok := d.DriftPPM()
	require.False(t, ok)

	d.Add(DriftSample{PTS: 9000, LocalTimeUs: 9000})
	_, ok = d.DriftPPM()
	require.True(t, ok)
}

func TestDriftEstimator_DetectsPositiveDrift(t *testing.T) {
	d := NewDriftEstimator()
	for i := 0; i < 20; i++ {
		local := int64(i * 100000)
		pts := media.PTS(float64(local) * 1.001)
		d.Add(DriftSample{PTS: pts, LocalTimeUs: local})
	}
	ppm, ok := d.DriftPPM()
	require.True(t, ok)
	require.InDelta(t, 1000, ppm, 50)
}

func TestJitterRing_EMAConverges(t *testing.T) {
	j := NewJitterRing()
	arrival := int64(0)
	pts := media.PTS(0)
	for i := 0; i < 50; i++ {
		j.Observe(pts, arrival)
		arrival += 20000
		pts += 20000
	}
	require.Less(t, j.Jitter(), 100.0)
	require.GreaterOrEqual(t, j.OptimalDelayMs(), 20)
}

func TestJitterRing_AdaptiveSizing(t *testing.T) {
	j := NewJitterRing()
	j.jitterUs = 25000 // 25ms, above the 20ms growth threshold
	size := j.AdaptSize(false)
	require.Equal(t, 60, size)

	j.jitterUs = 1000 // 1ms, below the 5ms shrink threshold
	size = j.AdaptSize(false)
	require.Equal(t, 55, size)
}
