package ingest

import (
	"context"
	"sort"
	"sync"
	"time"
)

// JobState is the lifecycle stage of a background import.
type JobState string

const (
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// Job is a snapshot of one background import.
type Job struct {
	ID       int64     `json:"id"`
	Source   string    `json:"source"`
	State    JobState  `json:"state"`
	Stats    Stats     `json:"stats"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitzero"`
}

// Jobs runs imports off the caller's goroutine and keeps their status.
type Jobs struct {
	cfg Config

	mu   sync.Mutex
	next int64
	jobs map[int64]*Job
	wg   sync.WaitGroup
}

// NewJobs returns an empty job registry importing with cfg.
func NewJobs(cfg Config) *Jobs {
	return &Jobs{cfg: cfg, jobs: make(map[int64]*Job)}
}

// Start launches an import of src and returns its initial snapshot. The
// import stops when ctx is cancelled.
func (j *Jobs) Start(ctx context.Context, src string) Job {
	j.mu.Lock()
	j.next++
	job := &Job{ID: j.next, Source: src, State: JobRunning, Started: time.Now()}
	j.jobs[job.ID] = job
	snapshot := *job
	j.mu.Unlock()

	cfg := j.cfg
	cfg.Logger = j.cfg.Logger.With().Int64("job", job.ID).Logger()

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		stats, err := ImportFile(ctx, cfg, src)

		j.mu.Lock()
		defer j.mu.Unlock()
		job.Stats = stats
		job.Finished = time.Now()
		if err != nil {
			job.State = JobFailed
			job.Error = err.Error()
			cfg.Logger.Error().Err(err).Str("source", src).Msg("import job failed")
			return
		}
		job.State = JobDone
	}()

	return snapshot
}

// Get returns a snapshot of job id.
func (j *Jobs) Get(id int64) (Job, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns snapshots of all jobs in id order.
func (j *Jobs) List() []Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Job, 0, len(j.jobs))
	for _, job := range j.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Wait blocks until every started job has finished.
func (j *Jobs) Wait() {
	j.wg.Wait()
}
