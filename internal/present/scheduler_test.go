package present

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamlinux/streamlinux/internal/media"
)

// fixedNow returns a MasterClock nowFunc pinned to t, matching Scenario
// D's C(t) = t.
func fixedNow(t int64) func() int64 { return func() int64 { return t } }

func TestScheduler_ClassifierMatchesReferenceTable(t *testing.T) {
	clock := NewMasterClock(fixedNow(0))
	clock.Sync(0, 0)
	s := NewScheduler(clock, DefaultConfig())

	cases := []struct {
		name     string
		diff     int64
		keyframe bool
		want     Decision
	}{
		{"early beyond threshold", 60000, false, DecisionDelay},
		{"in sync window", 0, false, DecisionDisplayNow},
		{"late but repeatable", -60000, false, DecisionRepeatPrevious},
		{"late beyond drop threshold", -120000, false, DecisionDrop},
		{"very late keyframe still shown", -120000, true, DecisionDisplayNow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Classify(media.PTS(tc.diff), tc.keyframe, 0)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestScheduler_RepeatPreviousReusesLastDisplayedFrame(t *testing.T) {
	clock := NewMasterClock(fixedNow(0))
	clock.Sync(0, 0)
	s := NewScheduler(clock, DefaultConfig())

	first := &media.RawVideoFrame{PTS: 0}
	displayed := s.Present(first, false, 0)
	require.Same(t, first, displayed)

	late := &media.RawVideoFrame{PTS: -60000}
	repeated := s.Present(late, false, 0)
	require.Same(t, first, repeated)
	require.Equal(t, 1, s.Stats().FramesRepeated)
}

func TestScheduler_DropsLateNonKeyframeWithoutRepeating(t *testing.T) {
	clock := NewMasterClock(fixedNow(0))
	clock.Sync(0, 0)
	s := NewScheduler(clock, DefaultConfig())

	dropped := s.Present(&media.RawVideoFrame{PTS: -200000}, false, 0)
	require.Nil(t, dropped)
	require.Equal(t, 1, s.Stats().FramesDropped)
}

func TestMasterClock_SourceSwitchHasNoDiscontinuity(t *testing.T) {
	local := int64(0)
	c := NewMasterClock(func() int64 { return local })
	c.Sync(1000, 0)
	local = 500
	before := c.Now()

	c.SetSource(ClockSourceVideo)
	after := c.Now()
	require.Equal(t, before, after)
}

func TestMasterClock_CorrectDriftClampsSpeed(t *testing.T) {
	local := int64(0)
	c := NewMasterClock(func() int64 { return local })
	for i := 0; i < 20; i++ {
		c.CorrectDrift(1_000_000, syncThresholdUs)
	}
	require.LessOrEqual(t, c.Speed(), 1.1)
}

func TestMasterClock_DecaysToUnitySpeedWhenInSync(t *testing.T) {
	local := int64(0)
	c := NewMasterClock(func() int64 { return local })
	c.CorrectDrift(1_000_000, syncThresholdUs)
	require.Greater(t, c.Speed(), 1.0)

	for i := 0; i < 10; i++ {
		c.CorrectDrift(0, syncThresholdUs)
	}
	require.InDelta(t, 1.0, c.Speed(), 0.001)
}

func TestAudioPlayoutQueue_DiscardsOutOfOrderFrames(t *testing.T) {
	q := NewAudioPlayoutQueue()
	require.True(t, q.Push(&media.RawAudioFrame{PTS: 1000}, 0))
	require.True(t, q.Push(&media.RawAudioFrame{PTS: 2000}, 20000))
	require.False(t, q.Push(&media.RawAudioFrame{PTS: 1500}, 40000))
	require.Equal(t, 2, q.Len())

	first := q.Pull()
	require.Equal(t, media.PTS(1000), first.PTS)
}
