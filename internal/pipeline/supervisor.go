// Package pipeline wires the capture/codec/avsync/present/transport
// stages into one of two DAGs (sender or receiver) and supervises their
// goroutines, grounded on thesyncim-media's pipeline.go
// (atomic.Int32 state, context/cancel/sync.WaitGroup shape) generalized
// from a fixed four-stage media pipeline to a named, restartable stage
// list per spec §5/§7.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// State mirrors the teacher's PipelineState enum.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Stage is one named unit of supervised work. Run must return promptly
// when ctx is cancelled.
type Stage struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervisor runs a fixed set of Stages as goroutines under one
// cancellation context, restarting a stage once on failure before
// declaring it fatal, per spec §7.
type Supervisor struct {
	log    *logrus.Entry
	stages []Stage

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	state   atomic.Int32
	onFatal func(stage string, err error)

	mu        sync.Mutex
	restarted map[string]bool
	fatalErr  error
}

// NewSupervisor constructs a Supervisor over the given stages.
func NewSupervisor(log *logrus.Logger, stages []Stage) *Supervisor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Supervisor{
		log:       log.WithField("component", "pipeline"),
		stages:    stages,
		restarted: make(map[string]bool),
	}
}

// OnFatal registers a callback invoked when a stage fails a second time
// and the supervisor gives up on it.
func (s *Supervisor) OnFatal(cb func(stage string, err error)) {
	s.mu.Lock()
	s.onFatal = cb
	s.mu.Unlock()
}

// Start launches every stage. Cancelling ctx stops the supervisor.
func (s *Supervisor) Start(ctx context.Context) error {
	if State(s.state.Load()) == StateRunning {
		return fmt.Errorf("pipeline: already running")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.state.Store(int32(StateRunning))

	for _, stage := range s.stages {
		s.wg.Add(1)
		go s.runStage(stage)
	}
	return nil
}

func (s *Supervisor) runStage(stage Stage) {
	defer s.wg.Done()

	err := stage.Run(s.ctx)
	if err == nil || s.ctx.Err() != nil {
		return
	}

	s.log.WithError(err).WithField("stage", stage.Name).Warn("stage failed, restarting once")

	s.mu.Lock()
	alreadyRestarted := s.restarted[stage.Name]
	s.restarted[stage.Name] = true
	s.mu.Unlock()

	if alreadyRestarted {
		s.declareFatal(stage.Name, err)
		return
	}

	if retryErr := stage.Run(s.ctx); retryErr != nil && s.ctx.Err() == nil {
		s.declareFatal(stage.Name, retryErr)
	}
}

func (s *Supervisor) declareFatal(name string, err error) {
	s.state.Store(int32(StateFailed))
	s.mu.Lock()
	s.fatalErr = fmt.Errorf("pipeline: stage %s: %w", name, err)
	cb := s.onFatal
	s.mu.Unlock()
	s.log.WithError(err).WithField("stage", name).Error("stage failed twice, giving up")
	if cb != nil {
		cb(name, err)
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// Stop cancels every stage and waits for them to return.
func (s *Supervisor) Stop() {
	if State(s.state.Load()) != StateRunning {
		return
	}
	s.state.Store(int32(StateStopped))
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// State reports the supervisor's current state.
func (s *Supervisor) State() State { return State(s.state.Load()) }

// Err returns the error that caused a fatal stage failure, if any.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatalErr
}
