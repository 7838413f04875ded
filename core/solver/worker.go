package solver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kilianp07/parcelmas/core/logger"
	"github.com/kilianp07/parcelmas/core/model"
)

// ErrShutdownTimeout is returned when an in-flight computation did not stop
// within the shutdown timeout after being cancelled.
var ErrShutdownTimeout = errors.New("solver: computation did not stop in time")

const (
	defaultBudget   = 500 * time.Millisecond
	defaultShutdown = 2 * time.Second
)

// Result is the outcome of one background computation.
type Result struct {
	Version uint64
	Problem Problem
	Routes  [][]*model.Task
	Err     error
}

// Worker runs at most one solver computation at a time in the background.
// Starting a computation cancels the previous one and waits for it to exit.
// Results are only handed out through Poll, and only for the latest
// computation.
type Worker struct {
	solver   Solver
	budget   time.Duration
	shutdown time.Duration
	log      logger.Logger

	mu      sync.Mutex
	version uint64
	stop    context.CancelFunc
	done    chan struct{}
	results chan Result
}

// NewWorker returns a worker giving each computation at most budget. A zero
// budget selects the default.
func NewWorker(s Solver, budget time.Duration, log logger.Logger) *Worker {
	if budget <= 0 {
		budget = defaultBudget
	}
	return &Worker{
		solver:   s,
		budget:   budget,
		shutdown: defaultShutdown,
		log:      logger.OrNop(log),
		results:  make(chan Result, 1),
	}
}

// SetShutdownTimeout bounds how long Start and Close wait for a cancelled
// computation to return.
func (w *Worker) SetShutdownTimeout(d time.Duration) {
	w.mu.Lock()
	if d > 0 {
		w.shutdown = d
	}
	w.mu.Unlock()
}

// Start cancels any computation in flight and solves p in the background.
// It returns the version identifying the new computation.
func (w *Worker) Start(p Problem) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.stopLocked(); err != nil {
		return 0, err
	}
	w.drain()
	w.version++
	version := w.version

	stopCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	w.stop, w.done = stop, done
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(stopCtx, w.budget)
		defer cancel()
		routes, err := w.solver.Solve(ctx, p)
		if err == nil {
			err = Validate(p, routes)
		}
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		res := Result{Version: version, Problem: p, Routes: routes, Err: err}
		if stopCtx.Err() != nil {
			return
		}
		select {
		case w.results <- res:
		case <-stopCtx.Done():
		}
	}()
	return version, nil
}

// Poll returns the result of the latest computation if it is available.
// Results of superseded computations are discarded.
func (w *Worker) Poll() (Result, bool) {
	for {
		select {
		case r := <-w.results:
			w.mu.Lock()
			current := w.version
			w.mu.Unlock()
			if r.Version == current {
				return r, true
			}
			w.log.Debugf("discarding stale solver result v%d (current v%d)", r.Version, current)
		default:
			return Result{}, false
		}
	}
}

// Busy reports whether a computation is still running.
func (w *Worker) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done == nil {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// Close cancels the computation in flight and waits for it to return.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopLocked()
}

func (w *Worker) stopLocked() error {
	if w.stop == nil {
		return nil
	}
	w.stop()
	timer := time.NewTimer(w.shutdown)
	defer timer.Stop()
	select {
	case <-w.done:
	case <-timer.C:
		w.log.Errorf("solver computation v%d ignored cancellation for %s", w.version, w.shutdown)
		return ErrShutdownTimeout
	}
	w.stop, w.done = nil, nil
	return nil
}

func (w *Worker) drain() {
	for {
		select {
		case <-w.results:
		default:
			return
		}
	}
}
