package present

import (
	"sync"

	"github.com/streamlinux/streamlinux/internal/avsync"
	"github.com/streamlinux/streamlinux/internal/media"
)

// AudioPlayoutQueue buffers decoded PCM ready for the audio backend's
// pull callback, sized by the adaptive jitter buffer of spec §4.9 and
// drained strictly in PTS order (audio never duplicates per §4.5).
type AudioPlayoutQueue struct {
	mu     sync.Mutex
	frames []*media.RawAudioFrame
	jitter *avsync.JitterRing
}

// NewAudioPlayoutQueue constructs an empty AudioPlayoutQueue.
func NewAudioPlayoutQueue() *AudioPlayoutQueue {
	return &AudioPlayoutQueue{jitter: avsync.NewJitterRing()}
}

// Push enqueues a decoded frame, dropping it if pts is not later than
// the queue's last-enqueued frame (out-of-order arrivals are discarded
// rather than reordered, matching "audio never duplicates").
func (q *AudioPlayoutQueue) Push(frame *media.RawAudioFrame, nowLocalUs int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n := len(q.frames); n > 0 && frame.PTS <= q.frames[n-1].PTS {
		return false
	}
	q.frames = append(q.frames, frame)
	q.jitter.Observe(frame.PTS, nowLocalUs)
	return true
}

// TargetSizeMs reports the current adaptive buffer target from the
// shared jitter estimator.
func (q *AudioPlayoutQueue) TargetSizeMs(lostSinceLastTick bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jitter.AdaptSize(lostSinceLastTick)
}

// Pull removes and returns the earliest buffered frame, or nil if the
// queue is empty — the audio backend's pull callback calls this once
// per period regardless of buffer depth (underrun yields silence
// upstream, not here).
func (q *AudioPlayoutQueue) Pull() *media.RawAudioFrame {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return nil
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	return f
}

// Len returns the number of buffered frames.
func (q *AudioPlayoutQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
