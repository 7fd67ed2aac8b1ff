// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package job

import (
	"context"
	"sync/atomic"
	"time"
)

// Job represents a scheduled task that runs at a fixed interval
// and never overlaps with itself (singleton mode).
type Job struct {
	interval  time.Duration
	task      func(context.Context)
	immediate bool
	running   atomic.Bool
}

// Option configures a Job.
type Option func(*Job)

// WithImmediateRun makes the job run once as soon as it is started instead of waiting for the
// first tick.
func WithImmediateRun() Option {
	return func(j *Job) {
		j.immediate = true
	}
}

// New creates a new Job with the given interval and task.
func New(interval time.Duration, task func(context.Context), opts ...Option) *Job {
	job := &Job{
		interval: interval,
		task:     task,
	}
	for _, opt := range opts {
		opt(job)
	}
	return job
}

// Start begins executing the job on the given context. It returns when the context is cancelled
// and a run still in progress has finished. It executes jobs in singleton mode, meaning if a tick
// fires while a previous run is still executing, that tick is skipped. Calling Start on a job that
// is already running returns immediately.
func (j *Job) Start(ctx context.Context) {
	if j.task == nil || j.interval <= 0 {
		return
	}
	if !j.running.CompareAndSwap(false, true) {
		return
	}
	defer j.running.Store(false)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// sem is a 1-slot semaphore that guards "is a run in progress?"
	sem := make(chan struct{}, 1)
	run := func() {
		// Try to acquire the semaphore without blocking.
		select {
		case sem <- struct{}{}:
			go func() {
				defer func() { <-sem }()
				runCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				j.task(runCtx)
			}()
		default:
		}
	}

	if j.immediate {
		run()
	}
	for {
		select {
		case <-ctx.Done():
			// Wait for an in-flight run to release the semaphore.
			sem <- struct{}{}
			return
		case <-ticker.C:
			run()
		}
	}
}

// Running reports whether Start is currently executing.
func (j *Job) Running() bool {
	return j.running.Load()
}
