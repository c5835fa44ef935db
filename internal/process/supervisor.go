package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"opsconsole/internal/apperrors"
	"opsconsole/internal/logstore"
)

// Validation limits
const (
	maxJobIDLength   = 128
	maxCommandLength = 64 * 1024
	maxLineSize      = 1024 * 1024

	// outputGrace bounds how long an exited job waits for its output to
	// reach EOF before its status is recorded.
	outputGrace = 200 * time.Millisecond
)

// jobIDPattern allows alphanumeric, hyphens, and underscores
var jobIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// MetricsRecorder is an optional interface for recording supervisor metrics.
type MetricsRecorder interface {
	RecordJobSpawned(ctx context.Context)
	RecordJobFinished(ctx context.Context, status string, durationSeconds float64)
}

// Supervisor spawns shell commands as child processes, captures their
// combined output into bounded log rings and tracks their lifecycle.
//
// All state is in memory and lost on restart.
type Supervisor struct {
	cfg     Config
	reg     *registry
	metrics MetricsRecorder
	logger  *slog.Logger

	wg       sync.WaitGroup
	shutdown atomic.Bool
}

// NewSupervisor creates a new supervisor. metrics may be nil.
func NewSupervisor(cfg Config, metrics MetricsRecorder) *Supervisor {
	cfg = cfg.withDefaults()
	return &Supervisor{
		cfg:     cfg,
		reg:     newRegistry(),
		metrics: metrics,
		logger:  slog.With("component", "supervisor"),
	}
}

// Config returns the effective configuration.
func (s *Supervisor) Config() Config {
	return s.cfg
}

// Spawn validates the request and starts the command in the background.
// The returned job is a snapshot taken right after the process started.
func (s *Supervisor) Spawn(ctx context.Context, req Request) (*Job, error) {
	if s.shutdown.Load() {
		return nil, apperrors.Internal("process.spawn", ErrShuttingDown)
	}

	s.applyDefaults(&req)
	if err := validate(&req); err != nil {
		return nil, err
	}
	if err := checkWorkingDirectory(req.WorkingDirectory); err != nil {
		return nil, err
	}
	if err := s.reg.reserve(req.ID); err != nil {
		return nil, err
	}

	logger := s.logger.With("jobId", req.ID)

	cmd := exec.Command(s.cfg.Shell, "-c", req.Command)
	cmd.Dir = req.WorkingDirectory
	setProcessGroup(cmd)

	// The child gets the write end of a plain pipe so that Wait returns when
	// the shell exits, even if a background descendant still holds it.
	pr, pw, err := os.Pipe()
	if err != nil {
		s.reg.release(req.ID)
		return nil, apperrors.Internal("process.spawn", fmt.Errorf("%w: %w", ErrSpawnFailure, err))
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	err = cmd.Start()
	_ = pw.Close()
	if err != nil {
		_ = pr.Close()
		s.reg.release(req.ID)
		logger.Error("Process failed to start", "error", err)
		return nil, apperrors.Internal("process.spawn", fmt.Errorf("%w: %w", ErrSpawnFailure, err))
	}

	job := Job{
		ID:               req.ID,
		Command:          req.Command,
		WorkingDirectory: req.WorkingDirectory,
		Status:           StatusRunning,
		PID:              cmd.Process.Pid,
		StartedAt:        time.Now().UTC(),
	}
	logs := logstore.NewRing(s.cfg.MaxLogs)
	output := make(chan struct{})
	s.reg.commit(req.ID, &entry{job: job, cmd: cmd, logs: logs, output: output})

	s.wg.Add(2)
	go s.drain(pr, logs, output, logger)
	go s.reap(job, cmd, logs, output, logger)

	if s.metrics != nil {
		s.metrics.RecordJobSpawned(ctx)
	}
	if evicted := s.reg.prune(s.cfg.MaxJobs); len(evicted) > 0 {
		s.logger.Debug("Evicted finished processes", "count", len(evicted))
	}

	logger.Info("Process started", "pid", job.PID, "cwd", job.WorkingDirectory)
	return &job, nil
}

// drain reads combined output line by line until every writer closed the
// pipe, then closes output.
func (s *Supervisor) drain(pr *os.File, logs *logstore.Ring, output chan<- struct{}, logger *slog.Logger) {
	defer s.wg.Done()
	defer close(output)
	defer pr.Close()

	err := readLines(pr, maxLineSize, func(line string) {
		logs.AppendLine(strings.TrimSpace(line))
	})
	if err != nil {
		logger.Warn("Output read failed, discarding remaining output", "error", err)
	}
}

// reap waits for the shell to exit and records the outcome. Output still
// buffered in the pipe gets a short grace period to land in the log ring
// first.
func (s *Supervisor) reap(job Job, cmd *exec.Cmd, logs *logstore.Ring, output <-chan struct{}, logger *slog.Logger) {
	defer s.wg.Done()

	waitErr := cmd.Wait()
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		logger.Warn("Process wait failed", "error", waitErr)
	}

	s.reg.markExited(job.ID)

	grace := time.NewTimer(outputGrace)
	select {
	case <-output:
	case <-grace.C:
		logger.Debug("Output still open after exit, recording status")
	}
	grace.Stop()

	finishedAt := time.Now().UTC()
	status, tracked := s.reg.finish(job.ID, exitCode, finishedAt)
	if !tracked {
		// Deleted while running.
		status = StatusFinished
		if exitCode != 0 {
			status = StatusFailed
		}
	}

	if s.metrics != nil {
		s.metrics.RecordJobFinished(context.Background(), string(status), finishedAt.Sub(job.StartedAt).Seconds())
	}
	logger.Info("Process exited", "status", status, "exitCode", exitCode, "lines", logs.Total())
}

// Stop sends SIGTERM to a running job's process group and marks it stopped.
// Returns false if the job is unknown, already terminal or has already exited.
func (s *Supervisor) Stop(id string) bool {
	stopped, err := s.reg.stop(id, time.Now().UTC())
	if err != nil {
		s.logger.Warn("Process termination failed", "jobId", id, "error", err)
		return false
	}
	if stopped {
		s.logger.Info("Process stopped", "jobId", id)
	}
	return stopped
}

// Status returns the current status of a job.
func (s *Supervisor) Status(id string) (Status, error) {
	job, _, ok := s.reg.get(id)
	if !ok {
		return "", apperrors.NotFound("process", id)
	}
	return job.Status, nil
}

// Get returns a snapshot of a job.
func (s *Supervisor) Get(id string) (*Job, error) {
	job, _, ok := s.reg.get(id)
	if !ok {
		return nil, apperrors.NotFound("process", id)
	}
	return &job, nil
}

// List returns all tracked jobs, most recently started first.
func (s *Supervisor) List() []Summary {
	return s.reg.list()
}

// Details returns a job with its most recent logLimit log lines.
// logLimit <= 0 returns every retained line.
func (s *Supervisor) Details(id string, logLimit int) (*Details, error) {
	job, logs, ok := s.reg.get(id)
	if !ok {
		return nil, apperrors.NotFound("process", id)
	}
	return &Details{
		Summary: Summary{Job: job, LogCount: logs.Len()},
		Logs:    logs.Tail(logLimit),
	}, nil
}

// Logs returns the most recent n log lines of a job. n <= 0 returns all.
func (s *Supervisor) Logs(id string, n int) ([]logstore.Entry, error) {
	_, logs, ok := s.reg.get(id)
	if !ok {
		return nil, apperrors.NotFound("process", id)
	}
	return logs.Tail(n), nil
}

// Delete terminates a live job and forgets its metadata and logs.
// Returns false if the job is unknown.
func (s *Supervisor) Delete(id string) bool {
	e, ok := s.reg.release(id)
	if !ok {
		return false
	}
	// The reap goroutine still owns cmd and finds the entry gone.
	if e.live() {
		if err := terminate(e.cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logger.Warn("Process termination failed", "jobId", id, "error", err)
		}
	}
	s.logger.Info("Process deleted", "jobId", id)
	return true
}

// Ready reports whether new processes can be spawned.
func (s *Supervisor) Ready(ctx context.Context) error {
	if s.shutdown.Load() {
		return ErrShuttingDown
	}
	return checkWorkingDirectory(s.cfg.WorkingDirectory)
}

// Shutdown stops every live job and waits for their readers to finish.
// Jobs whose shell already exited get their remaining process group
// terminated without a status change.
// New spawns are rejected from the first call on.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.shutdown.Store(true)

	ids := s.reg.live()
	for _, id := range ids {
		if s.Stop(id) {
			continue
		}
		if err := s.reg.signal(id); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logger.Warn("Process termination failed", "jobId", id, "error", err)
		}
	}
	if len(ids) > 0 {
		s.logger.Info("Stopping processes", "count", len(ids))
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for process readers: %w", ctx.Err())
	}
}

// applyDefaults sets default values for unspecified request fields.
func (s *Supervisor) applyDefaults(req *Request) {
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if strings.TrimSpace(req.WorkingDirectory) == "" {
		req.WorkingDirectory = s.cfg.WorkingDirectory
	}
}

// validate validates a spawn request. Does not modify the request.
func validate(req *Request) error {
	if len(req.ID) > maxJobIDLength {
		return apperrors.Validation("id", fmt.Sprintf("process ID exceeds maximum length of %d", maxJobIDLength))
	}
	if !jobIDPattern.MatchString(req.ID) {
		return apperrors.Validation("id", "process ID must be alphanumeric (hyphens and underscores allowed, cannot start with hyphen/underscore)")
	}
	if strings.TrimSpace(req.Command) == "" {
		return apperrors.Validation("command", "command is required")
	}
	if len(req.Command) > maxCommandLength {
		return apperrors.Validation("command", fmt.Sprintf("command exceeds maximum length of %d", maxCommandLength))
	}
	return nil
}

func checkWorkingDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return apperrors.Validation("cwd", fmt.Sprintf("working directory does not exist: %s", dir)).
			WithCause(ErrInvalidWorkingDirectory)
	}
	if !info.IsDir() {
		return apperrors.Validation("cwd", fmt.Sprintf("working directory is not a directory: %s", dir)).
			WithCause(ErrInvalidWorkingDirectory)
	}
	return nil
}
