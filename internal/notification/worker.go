package notification

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"loom-maintenance-backend/internal/logs"
	"loom-maintenance-backend/internal/model"
)

// Sink delivers notifications to one outlet.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n model.Notification) error
}

// WorkerPool manages a pool of workers fanning notifications out to sinks.
type WorkerPool struct {
	size  int
	jobs  chan model.Notification
	sinks []Sink
	wg    sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. The job queue holds 16 entries per worker.
func NewWorkerPool(size int, sinks ...Sink) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:  size,
		jobs:  make(chan model.Notification, size*16),
		sinks: sinks,
	}
}

// Start launches the worker goroutines. They stop when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has stopped.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log := logs.Logger.WithField("worker", id)
	log.Debug("notification worker started")
	for {
		select {
		case n := <-wp.jobs:
			wp.deliver(ctx, log, n)
		case <-ctx.Done():
			log.Debug("notification worker shutting down")
			return
		}
	}
}

func (wp *WorkerPool) deliver(ctx context.Context, log *logrus.Entry, n model.Notification) {
	for _, s := range wp.sinks {
		if err := s.Deliver(ctx, n); err != nil {
			log.WithError(err).WithFields(logrus.Fields{"sink": s.Name(), "notification": n.ID}).
				Warn("failed to deliver notification")
		}
	}
}

// Dispatch queues n for delivery. It never blocks: when the queue is full
// the notification is dropped and Dispatch returns false. The notification
// itself is already stored in the document.
func (wp *WorkerPool) Dispatch(n model.Notification) bool {
	if len(wp.sinks) == 0 {
		return false
	}
	select {
	case wp.jobs <- n:
		return true
	default:
		logs.Logger.WithField("notification", n.ID).Warn("notification queue full, dropping delivery")
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan model.Notification {
	return wp.jobs
}
