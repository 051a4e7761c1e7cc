// Package expiry implements notesock's expiry scheduler: a single
// consumer of timestamped paste-deletion jobs that deletes directories in
// enqueue order and releases identifiers back to the generator.
package expiry

import (
	"os"
	"sync"
	"time"

	"github.com/sir-photch/notesock/internal/idgen"
	applog "github.com/sir-photch/notesock/pkg/log"
)

const component = "expiry.scheduler"

// Job is one scheduled deletion: delete Dir no earlier than Deadline, then
// release ID from the generator on success.
type Job struct {
	Deadline time.Time
	Dir      string
	ID       string
}

// Scheduler drains Jobs in strict FIFO order on a single goroutine. Because
// every job shares the same configured lifetime and the clock is
// monotonic, enqueue order already equals deadline order, so there is no
// need for a priority queue.
type Scheduler struct {
	jobs chan Job

	generator   idgen.Generator
	generatorMu *sync.Mutex

	done chan struct{}
}

// NewScheduler constructs a Scheduler. generator/generatorMu are the same
// handle and lock the paste workers use to allocate identifiers: this is
// the only other component permitted to call Release.
func NewScheduler(queueSize int, generator idgen.Generator, generatorMu *sync.Mutex) *Scheduler {
	return &Scheduler{
		jobs:        make(chan Job, queueSize),
		generator:   generator,
		generatorMu: generatorMu,
		done:        make(chan struct{}),
	}
}

// Enqueue submits a job for eventual deletion. A send on a closed channel
// panics: it means the scheduler was closed while still in use, and the
// whole process should go down rather than keep storing pastes that will
// never expire. The caller (a pasteserver worker) recovers this
// panic only long enough to fire an operator alert before letting it
// propagate and crash the process.
func (s *Scheduler) Enqueue(job Job) {
	s.jobs <- job
}

// Run drains jobs until the channel is closed, deleting each directory no
// earlier than its deadline and releasing the identifier on success only.
// It returns when the channel closes, so callers typically run it in its
// own goroutine.
func (s *Scheduler) Run() {
	defer close(s.done)

	for job := range s.jobs {
		s.process(job)
	}
}

// Close stops accepting new jobs. Callers must ensure no further Enqueue
// calls race with Close; notesock's main calls it only after the acceptor
// and all workers have stopped producing.
func (s *Scheduler) Close() {
	close(s.jobs)
}

// Wait blocks until Run has drained the channel and returned.
func (s *Scheduler) Wait() {
	<-s.done
}

func (s *Scheduler) process(job Job) {
	if delta := time.Until(job.Deadline); delta > 0 {
		time.Sleep(delta)
	}

	fields := applog.Fields{"id": job.ID, "dir": job.Dir}

	if err := os.RemoveAll(job.Dir); err != nil {
		applog.WithComponentAndFields(component, fields).WithError(err).Error("failed to delete expired paste; id will not be released")
		return
	}

	s.generatorMu.Lock()
	released := s.generator.Release(job.ID)
	s.generatorMu.Unlock()

	if !released {
		applog.WithComponentAndFields(component, fields).Warn("deleted paste directory but id was not live in the generator")
		return
	}

	applog.WithComponentAndFields(component, fields).Debug("paste expired")
}
