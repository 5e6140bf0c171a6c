// Watchgate - Trakt Mediation Layer for Media Catalogs
// Copyright 2026 Watchgate Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchgate/watchgate

/*
queue.go - Rate-Limited Outbound Call Queue

This file implements the bounded-rate, bounded-concurrency dispatcher that
all outbound Trakt calls pass through. Read (GET) and write (POST) traffic
run on separate lanes because Trakt publishes different budgets for each.

Guarantees:
  - FIFO dispatch within a lane: a single dispatcher goroutine per lane pops
    jobs in submission order and only then waits on the rate gate
  - No ordering guarantee across lanes
  - A job failure settles only that job's future; sibling jobs are unaffected
  - Futures are buffered, so a waiter that abandons its future never blocks
    the lane or other waiters

The queue performs no retries; auth-failure retry belongs to the token
manager and transient-failure policy belongs to callers.
*/

//nolint:staticcheck // File documentation, not package doc
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/watchgate/watchgate/internal/metrics"
)

// Kind selects the lane a job is dispatched on.
type Kind int

const (
	// KindRead is the lane for GET traffic.
	KindRead Kind = iota
	// KindWrite is the lane for POST traffic.
	KindWrite
)

// String returns the lane name for logging and metrics.
func (k Kind) String() string {
	if k == KindWrite {
		return "write"
	}
	return "read"
}

// ErrClosed is returned to waiters whose jobs were still queued when the
// queue shut down.
var ErrClosed = errors.New("queue: closed")

// Job is an opaque unit of work. The queue knows nothing about HTTP; it only
// gates when the job runs. The context is canceled when the queue closes.
type Job func(ctx context.Context) (interface{}, error)

// LaneConfig is the budget for one lane.
type LaneConfig struct {
	// MaxConcurrent is the number of jobs allowed in flight at once.
	MaxConcurrent int

	// MinInterval is the minimum spacing between dispatches. Zero disables
	// the rate gate, leaving only the concurrency cap.
	MinInterval time.Duration
}

// Future is the waiter-side handle for an enqueued job.
type Future struct {
	done  chan struct{}
	value interface{}
	err   error
}

// Wait blocks until the job settles or ctx is done. Abandoning a future does
// not cancel the job or affect other queued jobs.
func (f *Future) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) settle(value interface{}, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// task pairs a job with its future and submission time.
type task struct {
	job      Job
	future   *Future
	enqueued time.Time
}

// Queue dispatches jobs through per-kind rate and concurrency gates.
type Queue struct {
	lanes [2]*lane

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a queue with the given read and write budgets and starts one
// dispatcher goroutine per lane. Call Close to release them.
func New(read, write LaneConfig) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{ctx: ctx, cancel: cancel}

	q.lanes[KindRead] = newLane(KindRead, read)
	q.lanes[KindWrite] = newLane(KindWrite, write)

	for _, l := range q.lanes {
		q.wg.Add(1)
		go func(l *lane) {
			defer q.wg.Done()
			l.dispatch(ctx)
		}(l)
	}

	return q
}

// Enqueue submits a job to the given lane and returns its future immediately.
// The backlog is unbounded; backpressure is applied only at dispatch.
func (q *Queue) Enqueue(kind Kind, job Job) *Future {
	f := &Future{done: make(chan struct{})}
	t := &task{job: job, future: f, enqueued: time.Now()}

	l := q.lanes[kind]
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		f.settle(nil, ErrClosed)
		return f
	}
	l.backlog = append(l.backlog, t)
	depth := len(l.backlog)
	l.mu.Unlock()

	metrics.QueueDepth.WithLabelValues(kind.String()).Set(float64(depth))

	select {
	case l.wake <- struct{}{}:
	default:
	}

	return f
}

// Close stops both dispatchers and fails all still-queued jobs with ErrClosed.
// In-flight jobs run to completion.
func (q *Queue) Close() {
	q.cancel()
	q.wg.Wait()
}

// lane is one FIFO dispatch path with its own rate and concurrency gates.
type lane struct {
	kind    Kind
	limiter *rate.Limiter
	slots   chan struct{}

	mu      sync.Mutex
	backlog []*task
	closed  bool

	wake chan struct{}

	running sync.WaitGroup
}

func newLane(kind Kind, cfg LaneConfig) *lane {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	return &lane{
		kind:    kind,
		limiter: rate.NewLimiter(limit, 1),
		slots:   make(chan struct{}, cfg.MaxConcurrent),
		wake:    make(chan struct{}, 1),
	}
}

// dispatch pops tasks in FIFO order, waits on the rate gate and a concurrency
// slot, then runs each task in its own goroutine. Only the single dispatcher
// pops, which is what makes the FIFO guarantee hold.
func (l *lane) dispatch(ctx context.Context) {
	for {
		t := l.pop()
		if t == nil {
			select {
			case <-l.wake:
				continue
			case <-ctx.Done():
				l.shutdown()
				return
			}
		}

		if err := l.limiter.Wait(ctx); err != nil {
			t.future.settle(nil, ErrClosed)
			l.shutdown()
			return
		}

		select {
		case l.slots <- struct{}{}:
		case <-ctx.Done():
			t.future.settle(nil, ErrClosed)
			l.shutdown()
			return
		}

		metrics.QueueWaitDuration.WithLabelValues(l.kind.String()).Observe(time.Since(t.enqueued).Seconds())

		l.running.Add(1)
		go func(t *task) {
			defer l.running.Done()
			defer func() { <-l.slots }()
			value, err := t.job(ctx)
			t.future.settle(value, err)
		}(t)
	}
}

// pop removes and returns the oldest queued task, or nil when the backlog is
// empty.
func (l *lane) pop() *task {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.backlog) == 0 {
		metrics.QueueDepth.WithLabelValues(l.kind.String()).Set(0)
		return nil
	}

	t := l.backlog[0]
	l.backlog[0] = nil
	l.backlog = l.backlog[1:]
	metrics.QueueDepth.WithLabelValues(l.kind.String()).Set(float64(len(l.backlog)))
	return t
}

// shutdown fails all remaining queued tasks and waits for in-flight jobs.
func (l *lane) shutdown() {
	l.mu.Lock()
	l.closed = true
	remaining := l.backlog
	l.backlog = nil
	l.mu.Unlock()

	for _, t := range remaining {
		t.future.settle(nil, ErrClosed)
	}
	metrics.QueueDepth.WithLabelValues(l.kind.String()).Set(0)

	l.running.Wait()
}
