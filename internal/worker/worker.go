// Package worker runs blocking inference calls on a fixed set of goroutines so
// that request handlers only wait on a result channel.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrPoolClosed is returned when a job is submitted after Stop.
var ErrPoolClosed = errors.New("worker pool is closed")

const (
	jobPending int32 = iota
	jobRunning
	jobAbandoned
)

// Result is the outcome of a TranscriptionJob.
type Result struct {
	Text string
	Err  error
}

// TranscriptionJob holds a single unit of blocking work and the channel its result is delivered on.
type TranscriptionJob struct {
	Ctx    context.Context
	Run    func(ctx context.Context) (string, error)
	result chan Result
	state  atomic.Int32
}

// WorkerPool manages a pool of workers and a queue of jobs.
type WorkerPool struct {
	JobQueue   chan *TranscriptionJob
	MaxWorkers int

	logger *zap.Logger
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// New creates a new WorkerPool.
func New(maxWorkers, queueSize int, logger *zap.Logger) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &WorkerPool{
		JobQueue:   make(chan *TranscriptionJob, queueSize),
		MaxWorkers: maxWorkers,
		logger:     logger,
	}
}

// Start creates and starts the worker goroutines.
func (wp *WorkerPool) Start() {
	for i := 1; i <= wp.MaxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop rejects new jobs, lets queued jobs drain and waits for the workers to exit.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.JobQueue)
	wp.mu.Unlock()

	wp.wg.Wait()
}

// Do submits run and waits for its result. If ctx ends while the job is still
// queued the job is abandoned and never runs. Once a worker has picked the job
// up, Do waits for it to return, so resources the job uses stay valid until
// Do returns. run receives ctx and is expected to honour it.
func (wp *WorkerPool) Do(ctx context.Context, run func(ctx context.Context) (string, error)) (string, error) {
	job := &TranscriptionJob{
		Ctx:    ctx,
		Run:    run,
		result: make(chan Result, 1),
	}

	if err := wp.submit(ctx, job); err != nil {
		return "", err
	}

	select {
	case res := <-job.result:
		return res.Text, res.Err
	case <-ctx.Done():
		if job.state.CompareAndSwap(jobPending, jobAbandoned) {
			return "", ctx.Err()
		}
		res := <-job.result
		return res.Text, res.Err
	}
}

func (wp *WorkerPool) submit(ctx context.Context, job *TranscriptionJob) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return ErrPoolClosed
	}

	select {
	case wp.JobQueue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker is a goroutine that continuously processes jobs from the JobQueue.
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	for job := range wp.JobQueue {
		if !job.state.CompareAndSwap(jobPending, jobRunning) {
			wp.logger.Debug("Skipping abandoned job", zap.Int("worker", id))
			continue
		}
		job.result <- wp.process(id, job)
	}
}

// process runs a single job, turning a panic into an error.
func (wp *WorkerPool) process(id int, job *TranscriptionJob) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("Inference job panicked", zap.Int("worker", id), zap.Any("panic", r))
			res = Result{Err: errors.New("inference job panicked")}
		}
	}()
	text, err := job.Run(job.Ctx)
	return Result{Text: text, Err: err}
}
