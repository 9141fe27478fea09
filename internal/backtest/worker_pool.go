package backtest

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/htn332805/RemDarwin-sub003/internal/regime"
)

// WorkerPool runs regime simulation jobs in parallel.
type WorkerPool struct {
	workerCount int
	jobQueue    chan RegimeJob
	resultQueue chan RegimeJobResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// RegimeJob is one regime partition queued for simulation.
type RegimeJob struct {
	Regime  regime.Regime
	Returns []float64
	Alloc   float64
	Params  SimulationParams
}

// RegimeJobResult is the outcome of one regime simulation job.
type RegimeJobResult struct {
	Regime   regime.Regime
	Result   *SimulationResult
	Err      error
	Duration time.Duration
}

// NewWorkerPool creates a pool with the given worker count; zero or
// negative falls back to the CPU count.
func NewWorkerPool(workerCount, jobBufferSize int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workerCount: workerCount,
		jobQueue:    make(chan RegimeJob, jobBufferSize),
		resultQueue: make(chan RegimeJobResult, jobBufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the workers.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop drains the pool gracefully: no further jobs are accepted, queued
// jobs finish, then the result channel closes.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// SubmitJob queues a job, failing when the pool has been aborted.
func (wp *WorkerPool) SubmitJob(job RegimeJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Abort cancels the pool without waiting for queued jobs.
func (wp *WorkerPool) Abort() {
	wp.cancel()
}

// GetResults returns the channel completed jobs are delivered on.
func (wp *WorkerPool) GetResults() <-chan RegimeJobResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}

			result := wp.processJob(job)

			select {
			case wp.resultQueue <- result:
			case <-wp.ctx.Done():
				return
			}

		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) processJob(job RegimeJob) RegimeJobResult {
	start := time.Now()

	sim, err := simulateShortPremium(job.Returns, job.Alloc, job.Params)
	return RegimeJobResult{
		Regime:   job.Regime,
		Result:   sim,
		Err:      err,
		Duration: time.Since(start),
	}
}
