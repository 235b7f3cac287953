// Package worker implements a bounded worker pool for the read-heavy jobs
// that run before the API starts serving, such as building the game
// semantics precache. It provides:
// - A fixed number of concurrent database queries
// - Backpressure through a bounded queue
// - Collection of every job error for the caller

package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Prometheus metrics
var (
	jobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redeclipse_worker_jobs_enqueued_total",
		Help: "Total number of jobs enqueued",
	})

	jobsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redeclipse_worker_jobs_processed_total",
		Help: "Total number of jobs processed by workers",
	})

	jobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redeclipse_worker_jobs_failed_total",
		Help: "Total number of jobs that returned an error",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "redeclipse_worker_queue_depth",
		Help: "Current depth of the worker queue",
	})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "redeclipse_worker_job_duration_seconds",
		Help:    "Duration of worker jobs",
		Buckets: prometheus.DefBuckets,
	})
)

// Job represents a unit of work for the worker pool
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// PoolConfig configures the worker pool
type PoolConfig struct {
	WorkerCount int
	QueueSize   int
	Logger      *zap.Logger
}

// Pool runs jobs on a fixed set of goroutines
type Pool struct {
	config   PoolConfig
	jobQueue chan Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.SugaredLogger

	mu     sync.Mutex
	errs   []error
	closed bool
}

// NewPool creates a new worker pool
func NewPool(cfg PoolConfig) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Pool{
		config:   cfg,
		jobQueue: make(chan Job, cfg.QueueSize),
		logger:   cfg.Logger.Sugar(),
	}
}

// Start launches the worker goroutines
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Debugw("Worker pool started",
		"workers", p.config.WorkerCount,
		"queueSize", p.config.QueueSize,
	)
}

// Enqueue adds a job to the queue. It blocks while the queue is full and
// returns false once the pool is stopping.
func (p *Pool) Enqueue(job Job) (ok bool) {
	defer func() {
		// Wait may close the queue between the check below and the send
		if recover() != nil {
			ok = false
		}
	}()

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		p.logger.Warnw("Job dropped, pool closed", "job", job.Name)
		return false
	}

	select {
	case p.jobQueue <- job:
		jobsEnqueued.Inc()
		queueDepth.Set(float64(len(p.jobQueue)))
		return true
	case <-p.ctx.Done():
		p.logger.Warnw("Worker pool context canceled, dropping job", "job", job.Name)
		return false
	}
}

// QueueDepth returns current queue size
func (p *Pool) QueueDepth() int {
	return len(p.jobQueue)
}

// Wait closes the queue, waits for queued jobs to finish and returns every
// job error joined together.
func (p *Pool) Wait() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobQueue)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
	queueDepth.Set(0)

	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

// Stop cancels running jobs and waits for the workers to exit
func (p *Pool) Stop() error {
	p.cancel()
	return p.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		queueDepth.Set(float64(len(p.jobQueue)))

		if err := p.ctx.Err(); err != nil {
			p.fail(job, err)
			continue
		}

		start := time.Now()
		err := p.run(job)
		jobDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			p.logger.Errorw("Job failed", "worker", id, "job", job.Name, "error", err)
			p.fail(job, err)
			continue
		}
		jobsProcessed.Inc()
	}
}

func (p *Pool) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Run(p.ctx)
}

func (p *Pool) fail(job Job, err error) {
	jobsFailed.Inc()
	p.mu.Lock()
	p.errs = append(p.errs, fmt.Errorf("%s: %w", job.Name, err))
	p.mu.Unlock()
}
