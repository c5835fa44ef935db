package process

import (
	"cmp"
	"os/exec"
	"slices"
	"sync"
	"time"

	"opsconsole/internal/apperrors"
	"opsconsole/internal/logstore"
)

// entry holds the runtime state for a single job.
// exited is set once the shell has been reaped. output is closed once its
// combined output reached EOF, which background descendants can delay.
type entry struct {
	job    Job
	cmd    *exec.Cmd
	logs   *logstore.Ring
	exited bool
	output <-chan struct{}
}

func (e *entry) outputOpen() bool {
	if e.output == nil {
		return false
	}
	select {
	case <-e.output:
		return false
	default:
		return true
	}
}

// live reports whether the process group may still hold resources: the
// shell is running or something it started still writes to its output.
func (e *entry) live() bool {
	return e.cmd != nil && (!e.exited || e.outputOpen())
}

// registry manages job state with thread-safe access.
// Job metadata is only read or written under mu. Each log ring has its own lock.
type registry struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

func newRegistry() *registry {
	return &registry{
		jobs: make(map[string]*entry),
	}
}

// reserve attempts to reserve a job ID slot. Returns error if already exists.
// The slot is reserved with nil until commit is called.
func (r *registry) reserve(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[id]; exists {
		return apperrors.Conflict("process", "process "+id+" already exists")
	}
	r.jobs[id] = nil
	return nil
}

// commit fills in a reserved slot with the running job.
func (r *registry) commit(id string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id] = e
}

// release removes a job from the registry. Returns the entry if it existed.
func (r *registry) release(id string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.jobs[id]
	if exists {
		delete(r.jobs, id)
	}
	return e, exists && e != nil
}

// get returns a copy of the job metadata and its log ring.
// Reserved but uncommitted slots are reported as missing.
func (r *registry) get(id string) (Job, *logstore.Ring, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.jobs[id]
	if e == nil {
		return Job{}, nil, false
	}
	return e.job, e.logs, true
}

// stop terminates a live running job and marks it stopped.
// Returns false for unknown jobs, terminal jobs and processes that already exited.
func (r *registry) stop(id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.jobs[id]
	if e == nil || e.cmd == nil || e.exited || e.job.Status != StatusRunning {
		return false, nil
	}
	if err := terminate(e.cmd); err != nil {
		return false, err
	}
	e.job.Status = StatusStopped
	e.job.FinishedAt = &at
	return true, nil
}

// markExited records that the shell was reaped. Stop no longer applies
// from here on, although the status is recorded later by finish.
func (r *registry) markExited(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e := r.jobs[id]; e != nil {
		e.exited = true
	}
}

// signal terminates the process group of a live job without touching its
// status. Used for jobs whose shell already exited.
func (r *registry) signal(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.jobs[id]
	if e == nil || !e.live() {
		return nil
	}
	return terminate(e.cmd)
}

// finish records process exit. A stopped job keeps its status. The PID is
// cleared because the kernel may reuse it. Returns the final status, or
// false if the job was deleted while running.
func (r *registry) finish(id string, exitCode int, at time.Time) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.jobs[id]
	if e == nil {
		return "", false
	}
	e.exited = true
	e.job.PID = 0
	if e.job.Status == StatusRunning {
		e.job.Status = StatusFinished
		if exitCode != 0 {
			e.job.Status = StatusFailed
		}
		e.job.ExitCode = &exitCode
		e.job.FinishedAt = &at
	}
	return e.job.Status, true
}

// list returns summaries of all committed jobs, newest first.
func (r *registry) list() []Summary {
	r.mu.RLock()
	result := make([]Summary, 0, len(r.jobs))
	for _, e := range r.jobs {
		if e == nil {
			continue
		}
		result = append(result, Summary{Job: e.job, LogCount: e.logs.Len()})
	}
	r.mu.RUnlock()

	slices.SortFunc(result, func(a, b Summary) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// live returns the ids of jobs whose process group may still be running.
func (r *registry) live() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.jobs))
	for id, e := range r.jobs {
		if e != nil && e.live() {
			ids = append(ids, id)
		}
	}
	return ids
}

// prune evicts the oldest terminal jobs until at most limit remain.
// Running jobs and jobs with live descendants are never evicted. limit <= 0 disables pruning.
func (r *registry) prune(limit int) []string {
	if limit <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	excess := len(r.jobs) - limit
	if excess <= 0 {
		return nil
	}

	type candidate struct {
		id         string
		finishedAt time.Time
	}
	candidates := make([]candidate, 0, len(r.jobs))
	for id, e := range r.jobs {
		if e != nil && e.job.Status.Terminal() && !e.live() {
			candidates = append(candidates, candidate{id: id, finishedAt: *e.job.FinishedAt})
		}
	}
	slices.SortFunc(candidates, func(a, b candidate) int {
		return a.finishedAt.Compare(b.finishedAt)
	})

	evicted := make([]string, 0, excess)
	for _, c := range candidates {
		if len(evicted) == excess {
			break
		}
		delete(r.jobs, c.id)
		evicted = append(evicted, c.id)
	}
	return evicted
}
