// Package process supervises external commands run as local child processes.
package process

import (
	"errors"
	"time"

	"opsconsole/internal/logstore"
)

// Domain errors, matched with errors.Is alongside the apperrors sentinels.
var (
	ErrInvalidWorkingDirectory = errors.New("invalid working directory")
	ErrSpawnFailure            = errors.New("spawn failure")
	ErrShuttingDown            = errors.New("supervisor is shutting down")
)

// Status is the lifecycle state of a supervised job.
type Status string

// Status constants
const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	StatusStopped  Status = "stopped"

	// StatusNotFound is reported by the HTTP layer for unknown ids.
	StatusNotFound Status = "not_found"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusStopped
}

// Request describes a command to spawn.
type Request struct {
	ID               string `json:"id,omitempty"`
	Command          string `json:"command"`
	WorkingDirectory string `json:"cwd,omitempty"`
}

// Job is the tracked metadata of one child process.
// FinishedAt is set once the job is terminal. ExitCode is set only
// for finished and failed jobs. PID is reported while the shell runs.
type Job struct {
	ID               string     `json:"command_id"`
	Command          string     `json:"command"`
	WorkingDirectory string     `json:"cwd"`
	Status           Status     `json:"status"`
	PID              int        `json:"pid,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at"`
	ExitCode         *int       `json:"exit_code"`
}

// Summary is a job plus the number of retained log lines.
type Summary struct {
	Job
	LogCount int `json:"log_count"`
}

// Details is a job summary plus its most recent log lines.
type Details struct {
	Summary
	Logs []logstore.Entry `json:"logs"`
}
