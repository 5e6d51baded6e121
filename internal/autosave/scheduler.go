// Package autosave debounces draft mutations into serialized save runs.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const DefaultDelay = 800 * time.Millisecond

var autosaveLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	autosaveLogger = l
}

type Options struct {
	Delay time.Duration
	Clock clockwork.Clock

	// Ready reports whether the current draft may be saved. A non-nil error
	// cancels the pending timer instead of re-arming it.
	Ready func() error

	// Save persists the current draft. It must be safe to call when the draft
	// is already clean.
	Save func(ctx context.Context) error

	// Done, when set, is called after every run with its result.
	Done func(err error)
}

type Scheduler struct {
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	timer      clockwork.Timer
	generation uint64
	running    bool
	queued     bool
	stopped    bool
}

func New(opts Options) *Scheduler {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Notify is called after every mutation. It restarts the debounce window.
func (s *Scheduler) Notify() {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(); err != nil {
			autosaveLogger.Debug().Err(err).Msg("Draft not ready, autosave cancelled")
			s.Cancel()
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.stopTimerLocked()
	s.generation++
	gen := s.generation
	s.timer = s.opts.Clock.AfterFunc(s.opts.Delay, func() {
		s.fire(gen)
	})
}

// Cancel drops the pending timer and any queued run. A run already in flight
// is not interrupted.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.generation++
	s.queued = false
}

// Pending reports whether a timer is armed or a run is queued.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil || s.queued
}

func (s *Scheduler) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.stopTimerLocked()
	s.generation++
	s.queued = false
	s.mu.Unlock()

	s.cancel()
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.stopped {
		s.mu.Unlock()
		return
	}
	s.timer = nil

	if s.running {
		s.queued = true
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	for {
		err := s.opts.Save(s.ctx)
		if err != nil {
			autosaveLogger.Error().Err(err).Msg("Autosave failed")
		}
		if s.opts.Done != nil {
			s.opts.Done(err)
		}

		s.mu.Lock()
		if !s.queued || s.stopped {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.queued = false
		s.mu.Unlock()
	}
}
