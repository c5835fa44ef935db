package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"opsconsole/internal/apperrors"
)

// ErrAlreadyRunning is returned by Start while a sweep is in progress.
var ErrAlreadyRunning = errors.New("sweep already running")

// MetricsRecorder is an optional interface for recording sweep metrics.
type MetricsRecorder interface {
	RecordProbe(ctx context.Context, reachable bool, durationSeconds float64)
	RecordProbeDiscarded(ctx context.Context)
	RecordSweepStarted(ctx context.Context, targets int)
	RecordSweepFinished(ctx context.Context, cancelled bool, durationSeconds float64)
}

// Progress is a point-in-time copy of the sweep counters.
// Current always equals Working + Failed and UniqueIPs never exceeds Working.
type Progress struct {
	IsRunning       bool       `json:"is_running"`
	Current         int        `json:"current"`
	Total           int        `json:"total"`
	Working         int        `json:"working"`
	Failed          int        `json:"failed"`
	UniqueIPs       int        `json:"unique_ips"`
	CancelRequested bool       `json:"cancel_requested"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// Sweeper runs one probe sweep at a time over a list of relays.
// The results of the last sweep stay queryable until the next Start.
type Sweeper struct {
	cfg     Config
	prober  Prober
	metrics MetricsRecorder
	logger  *slog.Logger

	// baseCtx outlives Cancel so that in-flight probes end at their own
	// timeout. It is only cancelled by Close.
	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu         sync.Mutex
	progress   Progress
	working    []Target
	unique     []Target
	seen       map[string]struct{}
	generation uint64
	stop       context.CancelFunc
	done       chan struct{}
}

type outcome struct {
	target Target
	result Result
}

// NewSweeper creates a sweeper. A nil prober uses NewHTTPProber(cfg);
// metrics may be nil.
func NewSweeper(cfg Config, prober Prober, metrics MetricsRecorder) *Sweeper {
	cfg = cfg.withDefaults()
	if prober == nil {
		prober = NewHTTPProber(cfg)
	}
	baseCtx, baseCancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	close(done)

	return &Sweeper{
		cfg:        cfg,
		prober:     prober,
		metrics:    metrics,
		logger:     slog.With("component", "sweeper"),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		seen:       make(map[string]struct{}),
		stop:       func() {},
		done:       done,
	}
}

// Start begins a sweep over rawTargets and returns immediately.
// It fails with a conflict wrapping ErrAlreadyRunning while a sweep is in
// progress, leaving that sweep untouched.
func (s *Sweeper) Start(ctx context.Context, rawTargets []string) error {
	if len(rawTargets) == 0 {
		return apperrors.Validation("proxies", "no proxies provided")
	}
	targets := make([]Target, len(rawTargets))
	for i, raw := range rawTargets {
		targets[i] = NormalizeWithScheme(raw, s.cfg.Scheme)
	}

	s.mu.Lock()
	if s.baseCtx.Err() != nil {
		s.mu.Unlock()
		return apperrors.Internal("sweep.start", errors.New("sweeper is closed"))
	}
	if s.progress.IsRunning {
		s.mu.Unlock()
		return apperrors.Conflict("sweep", "proxy test already running").WithCause(ErrAlreadyRunning)
	}

	s.generation++
	gen := s.generation
	startedAt := time.Now().UTC()
	s.progress = Progress{
		IsRunning: true,
		Total:     len(targets),
		StartedAt: &startedAt,
	}
	s.working = nil
	s.unique = nil
	s.seen = make(map[string]struct{})

	dispatchCtx, stop := context.WithCancel(s.baseCtx)
	s.stop = stop
	done := make(chan struct{})
	s.done = done
	// Added under mu so that Close, which cancels baseCtx under mu, either
	// sees this worker or makes Start fail.
	s.wg.Add(1)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordSweepStarted(ctx, len(targets))
	}
	s.logger.Info("Sweep started", "generation", gen, "targets", len(targets), "concurrency", s.cfg.Concurrency)

	go s.run(dispatchCtx, stop, gen, targets, done)
	return nil
}

// run dispatches targets into a bounded pool and folds results into the
// state of generation gen. Dispatch stops once dispatchCtx is cancelled.
func (s *Sweeper) run(dispatchCtx context.Context, stop context.CancelFunc, gen uint64, targets []Target, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)
	defer stop()

	results := make(chan outcome, s.cfg.Concurrency)

	go func() {
		defer close(results)

		var g errgroup.Group
		g.SetLimit(s.cfg.Concurrency)
		for _, t := range targets {
			if dispatchCtx.Err() != nil {
				break
			}
			g.Go(func() error {
				// Go may block for a free slot past a Cancel.
				if dispatchCtx.Err() != nil {
					return nil
				}
				start := time.Now()
				res := s.prober.Probe(s.baseCtx, t.Canonical)
				if s.metrics != nil {
					s.metrics.RecordProbe(s.baseCtx, res.Reachable, time.Since(start).Seconds())
				}
				results <- outcome{target: t, result: res}
				return nil
			})
		}
		_ = g.Wait()
	}()

	for o := range results {
		s.record(gen, o)
	}
	s.finish(gen)
}

// record applies one probe outcome. Results of a cancelled or superseded
// sweep are discarded.
func (s *Sweeper) record(gen uint64, o outcome) {
	s.mu.Lock()
	if gen != s.generation || !s.progress.IsRunning {
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordProbeDiscarded(s.baseCtx)
		}
		return
	}
	defer s.mu.Unlock()

	s.progress.Current++
	if !o.result.Reachable {
		s.progress.Failed++
		return
	}
	s.working = append(s.working, o.target)
	s.progress.Working++
	if _, ok := s.seen[o.result.Identity]; !ok {
		s.seen[o.result.Identity] = struct{}{}
		s.unique = append(s.unique, o.target)
		s.progress.UniqueIPs = len(s.seen)
	}
}

// finish marks generation gen completed unless it was cancelled.
func (s *Sweeper) finish(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || !s.progress.IsRunning {
		s.mu.Unlock()
		return
	}
	finishedAt := time.Now().UTC()
	s.progress.IsRunning = false
	s.progress.FinishedAt = &finishedAt
	p := s.progress
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordSweepFinished(s.baseCtx, false, finishedAt.Sub(*p.StartedAt).Seconds())
	}
	s.logger.Info("Sweep completed", "generation", gen, "total", p.Total,
		"working", p.Working, "failed", p.Failed, "unique", p.UniqueIPs)
}

// Cancel stops the running sweep. No further targets are dispatched and
// late results are discarded; probes already in flight run until their
// timeout. It is a no-op when no sweep is running.
func (s *Sweeper) Cancel() {
	s.mu.Lock()
	if !s.progress.IsRunning {
		s.mu.Unlock()
		return
	}
	finishedAt := time.Now().UTC()
	s.progress.IsRunning = false
	s.progress.CancelRequested = true
	s.progress.FinishedAt = &finishedAt
	stop := s.stop
	p := s.progress
	gen := s.generation
	s.mu.Unlock()

	stop()

	if s.metrics != nil {
		s.metrics.RecordSweepFinished(s.baseCtx, true, finishedAt.Sub(*p.StartedAt).Seconds())
	}
	s.logger.Info("Sweep cancelled", "generation", gen, "completed", p.Current, "total", p.Total)
}

// Progress returns a copy of the current counters.
func (s *Sweeper) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Working returns the original notation of every reachable relay in
// completion order.
func (s *Sweeper) Working() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return originals(s.working)
}

// Unique returns the original notation of the first reachable relay seen
// for each distinct identity, in completion order.
func (s *Sweeper) Unique() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return originals(s.unique)
}

// UniqueTargets returns the unique relays with their canonical form.
func (s *Sweeper) UniqueTargets() []Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.unique)
}

// Done returns a channel closed once the latest sweep has fully ended,
// including probes still in flight after a Cancel.
func (s *Sweeper) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Wait blocks until the latest sweep has fully ended or ctx is done.
func (s *Sweeper) Wait(ctx context.Context) error {
	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the sweeper accepts new sweeps.
func (s *Sweeper) Ready(context.Context) error {
	if s.baseCtx.Err() != nil {
		return errors.New("sweeper is closed")
	}
	return nil
}

// Close cancels any running sweep, aborts in-flight probes and waits for
// the sweep goroutines to exit or ctx to be done.
func (s *Sweeper) Close(ctx context.Context) error {
	s.mu.Lock()
	s.baseCancel()
	s.mu.Unlock()
	s.Cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for sweep workers: %w", ctx.Err())
	}
}

func originals(targets []Target) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.Original
	}
	return out
}
