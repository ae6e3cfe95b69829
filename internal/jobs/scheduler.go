// Package jobs implements the engine's two-queue (I/O, CPU) job scheduler:
// bounded worker pools with inline fallback, cooperative cancellation,
// panic isolation, and a single-consumer completion channel.
package jobs

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"

	log "github.com/pallet-engine/pallet/pkg/palletlog"
)

// Queue names the two logical queues.
type Queue string

const (
	QueueIO  Queue = "io"
	QueueCPU Queue = "cpu"
)

// ErrQueueFull is returned by Submit when the named queue is at capacity.
type ErrQueueFull struct{ Queue Queue }

func (e ErrQueueFull) Error() string { return fmt.Sprintf("jobs: queue %s is full", e.Queue) }

// Mode selects between a bounded worker pool and the inline fallback,
// where every job runs synchronously on the submitting goroutine.
type Mode int

const (
	ModeThreaded Mode = iota
	ModeInline
)

// RunFunc is the work executed on a worker (or inline).
type RunFunc func(cancelled func() bool) error

// CompleteFunc is invoked on the pumping goroutine once Run has finished
// (or was skipped due to cancellation).
type CompleteFunc func(err error, cancelled bool)

// Handle lets a caller cooperatively cancel an in-flight job.
type Handle struct {
	cancelled int32
}

// Cancel marks the job cancelled. The worker checks this flag before Run
// (skipping Run when set) and again after it, passing the result to
// Complete as its cancelled argument.
func (h *Handle) Cancel() { atomic.StoreInt32(&h.cancelled, 1) }

// Cancelled reports whether Cancel has been called.
func (h *Handle) Cancelled() bool { return atomic.LoadInt32(&h.cancelled) != 0 }

type job struct {
	run      RunFunc
	complete CompleteFunc
	handle   *Handle
}

type completion struct {
	complete  CompleteFunc
	err       error
	cancelled bool
}

// Config controls worker pool sizing and capacity per queue.
type Config struct {
	Mode          Mode
	IOWorkers     int
	CPUWorkers    int
	IOCapacity    int
	CPUCapacity   int
	CompletionCap int
}

// DefaultConfig returns a reasonable threaded configuration.
func DefaultConfig() Config {
	return Config{
		Mode:          ModeThreaded,
		IOWorkers:     2,
		CPUWorkers:    4,
		IOCapacity:    64,
		CPUCapacity:   64,
		CompletionCap: 256,
	}
}

// Scheduler owns the io/cpu worker pools and the completion channel drained
// by pump_completions.
type Scheduler struct {
	cfg Config

	queues     map[Queue]chan job
	completion chan completion

	wg       sync.WaitGroup
	shutdown chan struct{}
	once     sync.Once

	stickyMu  sync.Mutex
	stickyErr string
	stickyID  string
	stickySet bool
}

// New constructs a Scheduler and, in threaded mode, starts its worker
// pools.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		cfg:        cfg,
		queues:     make(map[Queue]chan job),
		completion: make(chan completion, cfg.CompletionCap),
		shutdown:   make(chan struct{}),
	}

	if cfg.Mode == ModeInline {
		return s
	}

	s.queues[QueueIO] = make(chan job, cfg.IOCapacity)
	s.queues[QueueCPU] = make(chan job, cfg.CPUCapacity)

	for i := 0; i < cfg.IOWorkers; i++ {
		s.wg.Add(1)
		go s.worker(QueueIO)
	}
	for i := 0; i < cfg.CPUWorkers; i++ {
		s.wg.Add(1)
		go s.worker(QueueCPU)
	}

	return s
}

// Submit enqueues a job on the named queue. In inline mode it runs the job
// synchronously (and dispatches its completion) before returning. In
// threaded mode it returns ErrQueueFull immediately if the queue is at
// capacity rather than blocking the caller.
func (s *Scheduler) Submit(q Queue, run RunFunc, complete CompleteFunc) (*Handle, error) {
	h := &Handle{}

	if s.cfg.Mode == ModeInline {
		s.runInline(job{run: run, complete: complete, handle: h})
		return h, nil
	}

	ch, ok := s.queues[q]
	if !ok {
		return nil, fmt.Errorf("jobs: unknown queue %q", q)
	}

	select {
	case ch <- job{run: run, complete: complete, handle: h}:
		return h, nil
	default:
		return nil, ErrQueueFull{Queue: q}
	}
}

func (s *Scheduler) runInline(j job) {
	err := s.runGuarded(j)
	if j.complete != nil {
		j.complete(err, j.handle.Cancelled())
	}
}

// runGuarded executes run inside a panic-isolation boundary, recording any
// panic into the sticky-error slot and converting it to an error instead
// of propagating it.
func (s *Scheduler) runGuarded(j job) (err error) {
	if j.handle.Cancelled() {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			wrapped := errors.Errorf("job panic: %v", r)
			s.setSticky(wrapped.Error())
			err = wrapped
		}
	}()

	return j.run(j.handle.Cancelled)
}

func (s *Scheduler) worker(q Queue) {
	defer s.wg.Done()
	ch := s.queues[q]

	for {
		select {
		case j := <-ch:
			err := s.runGuarded(j)
			cancelled := j.handle.Cancelled()

			select {
			case s.completion <- completion{complete: j.complete, err: err, cancelled: cancelled}:
			case <-s.shutdown:
				return
			}
		case <-s.shutdown:
			return
		}
	}
}

// PumpCompletions drains all currently-available completions on the
// calling goroutine (the designated completion-pumping thread), invoking
// each non-nil Complete callback; a cancelled job's callback receives
// cancelled=true.
func (s *Scheduler) PumpCompletions() int {
	n := 0
	for {
		select {
		case c := <-s.completion:
			n++
			if c.complete == nil {
				continue
			}
			if c.cancelled {
				c.complete(c.err, true)
				continue
			}
			c.complete(c.err, false)
		default:
			return n
		}
	}
}

// setSticky stamps a sticky-error slot with an incident id; it latches the
// first panic and is only cleared by Ack.
func (s *Scheduler) setSticky(msg string) {
	s.stickyMu.Lock()
	defer s.stickyMu.Unlock()
	if s.stickySet {
		return
	}
	id, err := uuid.NewV4()
	incident := msg
	if err == nil {
		incident = fmt.Sprintf("[%s] %s", id.String(), msg)
	}
	s.stickyErr = incident
	s.stickySet = true
	log.Error("jobs: %s", incident)
}

// StickyError returns the latched panic message (if any) and whether one
// is set, giving a host loop a single place to check for worker panics
// without subscribing to every job's completion.
func (s *Scheduler) StickyError() (string, bool) {
	s.stickyMu.Lock()
	defer s.stickyMu.Unlock()
	return s.stickyErr, s.stickySet
}

// AckStickyError clears the latched sticky error, allowing a future panic
// to be recorded.
func (s *Scheduler) AckStickyError() {
	s.stickyMu.Lock()
	defer s.stickyMu.Unlock()
	s.stickyErr = ""
	s.stickySet = false
}

// Shutdown signals all worker queues to stop; outstanding completions are
// dropped.
func (s *Scheduler) Shutdown() {
	s.once.Do(func() {
		close(s.shutdown)
	})
	s.wg.Wait()
}
