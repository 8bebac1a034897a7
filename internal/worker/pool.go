package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/klingon-exchange/swapwatch/internal/metrics"
	"github.com/klingon-exchange/swapwatch/internal/queue"
	"github.com/klingon-exchange/swapwatch/pkg/logging"
)

// PoolConfig sizes one tracked-account kind's consumer group per §4.4's
// "N_WORKERS parallel consumers, each with per-consumer concurrency C" and
// §5's "total in-flight ≤ N × C."
type PoolConfig struct {
	NumWorkers   int
	Concurrency  int
	PollInterval time.Duration // default 250ms
}

// DefaultPoolConfig returns the spec §6 default shape (before per-kind env
// overlay): one worker, concurrency 8.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{NumWorkers: 1, Concurrency: 8, PollInterval: 250 * time.Millisecond}
}

// Pool drains one queue with NumWorkers independent consumer loops, each
// bounding its own in-flight job count at Concurrency. Grounded on the
// teacher's RetryWorker ticker-poll shape
// (internal/node/retry_worker.go): here replicated NumWorkers times
// instead of run as a singleton, with a semaphore bounding each replica's
// own concurrency, matching §4.4's "N parallel consumers, each
// multiplexing C jobs."
type Pool struct {
	q         *queue.Queue
	limiter   *queue.RateLimiter
	processor *Processor
	cfg       PoolConfig
	log       *logging.Logger
	metrics   *metrics.Registry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool builds a Pool draining q through processor, rate-limited by
// limiter (nil disables limiting). reg may be nil, which disables metrics
// recording.
func NewPool(q *queue.Queue, limiter *queue.RateLimiter, processor *Processor, cfg PoolConfig, reg *metrics.Registry) *Pool {
	d := DefaultPoolConfig()
	if cfg.NumWorkers == 0 {
		cfg.NumWorkers = d.NumWorkers
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = d.Concurrency
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = d.PollInterval
	}
	return &Pool{
		q:         q,
		limiter:   limiter,
		processor: processor,
		cfg:       cfg,
		log:       logging.GetDefault().Component("worker.pool." + q.Name()),
		metrics:   reg,
	}
}

// Start launches cfg.NumWorkers consumer loops in the background, each
// polling the queue for due jobs and processing up to cfg.Concurrency of
// them concurrently.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for i := 0; i < p.cfg.NumWorkers; i++ {
		p.wg.Add(1)
		go p.runConsumer(ctx, i)
	}
}

func (p *Pool) runConsumer(ctx context.Context, index int) {
	defer p.wg.Done()
	sem := make(chan struct{}, p.cfg.Concurrency)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		free := p.cfg.Concurrency - len(sem)
		if free <= 0 {
			continue
		}
		jobs, err := p.q.Claim(ctx, time.Now().UTC(), int64(free))
		if err != nil {
			p.log.Warn("claim failed", "consumer", index, "error", err)
			continue
		}
		for _, job := range jobs {
			job := job
			sem <- struct{}{}
			inflight.Add(1)
			go func() {
				defer func() { <-sem; inflight.Done() }()
				p.runJob(ctx, job)
			}()
		}
	}
}

// runJob processes one claimed job and resolves its queue state: complete
// on success, reschedule with backoff on a transient error, per §4.3's
// "throw → BullMQ-style retry with backoff."
func (p *Pool) runJob(ctx context.Context, job queue.Job) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
	}
	start := time.Now()
	err := p.processor.Process(ctx, job)
	if p.metrics != nil {
		p.metrics.ObserveJobDuration(p.q.Name(), time.Since(start))
	}
	if err == nil {
		if cErr := p.q.Complete(ctx, job); cErr != nil {
			p.log.Warn("failed to mark job complete", "id", job.ID, "error", cErr)
		}
		if p.metrics != nil {
			p.metrics.IncJobsProcessed(p.q.Name(), "completed")
		}
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	p.log.Debug("job failed, scheduling retry", "id", job.ID, "error", err)
	if rErr := p.q.Retry(ctx, job, err); rErr != nil {
		p.log.Warn("failed to reschedule job retry", "id", job.ID, "error", rErr)
	}
	if p.metrics != nil {
		p.metrics.IncJobsProcessed(p.q.Name(), "retried")
	}
}

// Close stops accepting new work and waits up to deadline for in-flight
// jobs to finish, per §4.9 step 3's "close each worker with a 10s
// per-worker deadline; force-close on timeout."
func (p *Pool) Close(deadline time.Duration) {
	if p.cancel != nil {
		p.cancel()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(deadline):
		p.log.Warn("worker pool force-closed after deadline")
	}
}
