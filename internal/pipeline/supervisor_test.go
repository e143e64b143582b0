package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSupervisor_RunsStagesUntilCancelled(t *testing.T) {
	var ran atomic.Bool
	sup := NewSupervisor(nil, []Stage{
		{Name: "worker", Run: func(ctx context.Context) error {
			ran.Store(true)
			<-ctx.Done()
			return nil
		}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sup.Start(ctx))
	time.Sleep(20 * time.Millisecond)
	require.True(t, ran.Load())
	require.Equal(t, StateRunning, sup.State())

	cancel()
	sup.Stop()
	require.Equal(t, StateStopped, sup.State())
}

func TestSupervisor_RestartsFailedStageOnce(t *testing.T) {
	var attempts atomic.Int32
	sup := NewSupervisor(nil, []Stage{
		{Name: "flaky", Run: func(ctx context.Context) error {
			n := attempts.Add(1)
			if n == 1 {
				return errors.New("boom")
			}
			<-ctx.Done()
			return nil
		}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sup.Start(ctx))

	require.Eventually(t, func() bool { return attempts.Load() == 2 }, time.Second, time.Millisecond)
	require.Equal(t, StateRunning, sup.State())
}

func TestSupervisor_DeclaresFatalAfterSecondFailure(t *testing.T) {
	var attempts atomic.Int32
	var fatalStage string
	sup := NewSupervisor(nil, []Stage{
		{Name: "broken", Run: func(ctx context.Context) error {
			attempts.Add(1)
			return errors.New("boom")
		}},
	})
	sup.OnFatal(func(stage string, err error) { fatalStage = stage })

	require.NoError(t, sup.Start(context.Background()))

	require.Eventually(t, func() bool { return sup.State() == StateFailed }, time.Second, time.Millisecond)
	require.Equal(t, "broken", fatalStage)
	require.Equal(t, int32(2), attempts.Load())
	require.Error(t, sup.Err())
}

func TestSupervisor_StartTwiceWhileRunningErrors(t *testing.T) {
	sup := NewSupervisor(nil, []Stage{
		{Name: "idle", Run: func(ctx context.Context) error { <-ctx.Done(); return nil }},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sup.Start(ctx))
	require.Error(t, sup.Start(ctx))
	sup.Stop()
}
