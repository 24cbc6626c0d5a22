// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"sync"
)

// JobState describes where a background job is in its lifecycle.
type JobState int

const (
	JobRunning JobState = iota
	JobStopped
	JobDone
	JobTerminated
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "Running"
	case JobStopped:
		return "Stopped"
	case JobTerminated:
		return "Terminated"
	default:
		return "Done"
	}
}

// Job is one background pipeline tracked by the interpreter. Its
// primary process is the last external command of the pipeline, whose
// process group receives the signals that fg and bg send.
type Job struct {
	ID      int
	Command string

	table *jobTable

	mu    sync.Mutex
	state JobState
	pid   int // primary pid; 0 until a process starts, or if none spawned
	code  uint8

	// done is closed once every stage of the pipeline has finished.
	done chan struct{}

	// notified marks that the job's completion was already reported
	// at a prompt, so it can be dropped from the table.
	notified bool
}

// State returns the job's current state and, for finished jobs, its
// exit status code.
func (j *Job) State() (JobState, uint8) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state, j.code
}

// Pid returns the job's primary process ID, or 0 if no external
// process has been spawned for it (yet).
func (j *Job) Pid() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pid
}

func (j *Job) setState(state JobState) {
	j.mu.Lock()
	j.state = state
	j.mu.Unlock()
}

func (j *Job) started(pid int) {
	j.mu.Lock()
	j.pid = pid
	j.mu.Unlock()
}

func (j *Job) finish(code uint8) {
	j.mu.Lock()
	j.state = JobDone
	if code > 128 {
		j.state = JobTerminated
	}
	j.code = code
	j.mu.Unlock()
	close(j.done)
}

// Wait blocks until the job has finished, returning its exit status.
func (j *Job) Wait() uint8 {
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.code
}

// jobTable tracks the background jobs spawned by a runner. Only the
// interpreter's own goroutine adds jobs; the pipeline goroutines
// finishing them makes the locking necessary.
type jobTable struct {
	mu     sync.Mutex
	jobs   []*Job
	nextID int
	lastBg int // pid for $!
}

func (t *jobTable) add(command string) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	job := &Job{
		ID:      t.nextID,
		Command: command,
		table:   t,
		done:    make(chan struct{}),
	}
	t.jobs = append(t.jobs, job)
	return job
}

func (t *jobTable) started(job *Job, pid int) {
	job.started(pid)
	t.mu.Lock()
	t.lastBg = pid
	t.mu.Unlock()
}

func (t *jobTable) lastBgPid() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastBg
}

// list returns the live jobs, oldest first.
func (t *jobTable) list() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Job, len(t.jobs))
	copy(out, t.jobs)
	return out
}

// byID finds a job by its table ID.
func (t *jobTable) byID(id int) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, j := range t.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// current returns the most recently created live job.
func (t *jobTable) current() *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.jobs) == 0 {
		return nil
	}
	return t.jobs[len(t.jobs)-1]
}

func (t *jobTable) remove(job *Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, j := range t.jobs {
		if j == job {
			t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
			return
		}
	}
}

// Jobs returns a snapshot of the runner's background jobs, oldest
// first. It powers the jobs builtin and lets embedders inspect the
// table.
func (r *Runner) Jobs() []*Job {
	return r.jobs.list()
}

// ReapJobs collects the background jobs that have finished since the
// last call, removing them from the table. The line-reader loop calls
// it before each prompt to report terminated jobs.
func (r *Runner) ReapJobs() []*Job {
	var finished []*Job
	for _, job := range r.jobs.list() {
		select {
		case <-job.done:
		default:
			continue
		}
		job.mu.Lock()
		seen := job.notified
		job.notified = true
		job.mu.Unlock()
		if !seen {
			finished = append(finished, job)
			r.jobs.remove(job)
		}
	}
	return finished
}
