// Package queue implements the durable job queue from §4.3: Redis-backed,
// per-job attempts and exponential backoff. Completed jobs are deleted
// outright; jobs that exhaust their attempts stay in the queue with a
// far-future due time, and no completed/failed history is trimmed. Its
// retry-scheduling shape is grounded on the teacher's RetryWorker
// (internal/node/retry_worker.go): jobs due now are claimed by a polling
// ticker (in the worker pool), and backoff is computed the same "double,
// cap at max" way.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"

	"github.com/klingon-exchange/swapwatch/pkg/logging"
)

// JobStatus is a queued job's lifecycle stage.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobActive    JobStatus = "active"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is one unit of work: a tracked-account match awaiting classification
// (§4.4). Payload carries whatever opaque data the caller needs to re-hydrate
// the job; the worker package defines its concrete shape.
type Job struct {
	ID          string    `json:"id"`
	Payload     []byte    `json:"payload"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"maxAttempts"`
	Status      JobStatus `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	NextRunAt   time.Time `json:"nextRunAt"`
	LastError   string    `json:"lastError,omitempty"`
}

// Config configures a Queue, mirroring §4.3's per-job attributes.
type Config struct {
	Name             string
	MaxAttempts      int           // default 3
	InitialDelay     time.Duration // default 2s
	MaxDelay         time.Duration // default 10m, matching the teacher's retry ceiling
	BackoffFactor    float64       // default 2.0
	RemoveOnComplete int           // cap on retained completed job records; not read, Complete keeps no history
	RemoveOnFail     int           // cap on retained failed job records; not read, exhausted jobs are not trimmed
}

// DefaultConfig returns §4.3's defaults: attempts=3, initial delay 2s.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxAttempts:      3,
		InitialDelay:     2 * time.Second,
		MaxDelay:         10 * time.Minute,
		BackoffFactor:    2.0,
		RemoveOnComplete: 1000,
		RemoveOnFail:     1000,
	}
}

// Queue is a durable, retrying job queue backed by a Redis sorted set keyed
// by due time, plus a hash of job bodies.
type Queue struct {
	client *redis.Client
	cfg    Config
	log    *logging.Logger
}

func New(client *redis.Client, cfg Config) *Queue {
	d := DefaultConfig(cfg.Name)
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = d.MaxAttempts
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = d.InitialDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = d.MaxDelay
	}
	if cfg.BackoffFactor == 0 {
		cfg.BackoffFactor = d.BackoffFactor
	}
	if cfg.RemoveOnComplete == 0 {
		cfg.RemoveOnComplete = d.RemoveOnComplete
	}
	if cfg.RemoveOnFail == 0 {
		cfg.RemoveOnFail = d.RemoveOnFail
	}
	return &Queue{
		client: client,
		cfg:    cfg,
		log:    logging.GetDefault().Component("queue." + cfg.Name),
	}
}

// Name returns the queue's configured name, used to namespace per-pool
// loggers and metrics.
func (q *Queue) Name() string { return q.cfg.Name }

func (q *Queue) dueSetKey() string  { return "queue:" + q.cfg.Name + ":due" }
func (q *Queue) bodyHashKey() string { return "queue:" + q.cfg.Name + ":body" }

// Enqueue adds a job due immediately.
func (q *Queue) Enqueue(ctx context.Context, id string, payload []byte) error {
	job := Job{
		ID:          id,
		Payload:     payload,
		MaxAttempts: q.cfg.MaxAttempts,
		Status:      JobPending,
		CreatedAt:   time.Now().UTC(),
		NextRunAt:   time.Now().UTC(),
	}
	return q.save(ctx, job, 0)
}

func (q *Queue) save(ctx context.Context, job Job, score float64) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	pipe := q.client.WithContext(ctx).TxPipeline()
	pipe.HSet(q.bodyHashKey(), job.ID, body)
	pipe.ZAdd(q.dueSetKey(), &redis.Z{Score: score, Member: job.ID})
	if _, err := pipe.Exec(); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// Claim pops up to max jobs due at or before now, marking them active.
func (q *Queue) Claim(ctx context.Context, now time.Time, max int64) ([]Job, error) {
	ids, err := q.client.WithContext(ctx).ZRangeByScore(q.dueSetKey(), &redis.ZRangeBy{
		Min:   "0",
		Max:   fmt.Sprintf("%d", now.Unix()),
		Count: max,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("claim: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	jobs := make([]Job, 0, len(ids))
	for _, id := range ids {
		raw, err := q.client.WithContext(ctx).HGet(q.bodyHashKey(), id).Result()
		if err == redis.Nil {
			q.client.WithContext(ctx).ZRem(q.dueSetKey(), id)
			continue
		}
		if err != nil {
			return jobs, fmt.Errorf("claim hget %s: %w", id, err)
		}
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			q.log.Warn("dropping unparseable job", "id", id, "error", err)
			q.client.WithContext(ctx).ZRem(q.dueSetKey(), id)
			continue
		}
		job.Status = JobActive
		if err := q.client.WithContext(ctx).ZRem(q.dueSetKey(), id).Err(); err != nil {
			return jobs, fmt.Errorf("claim zrem %s: %w", id, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Complete marks a job done by deleting its body. No completed-job history
// is retained, so RemoveOnComplete is not applied here.
func (q *Queue) Complete(ctx context.Context, job Job) error {
	if err := q.client.WithContext(ctx).HDel(q.bodyHashKey(), job.ID).Err(); err != nil {
		return fmt.Errorf("complete %s: %w", job.ID, err)
	}
	return nil
}

// Retry re-schedules a job after a transient failure with exponential
// backoff, or moves it to terminal failure once MaxAttempts is exhausted
// (§4.3's "throw → BullMQ-style retry with backoff").
func (q *Queue) Retry(ctx context.Context, job Job, cause error) error {
	job.Attempts++
	job.LastError = cause.Error()

	if job.Attempts >= job.MaxAttempts {
		job.Status = JobFailed
		q.log.Warn("job exhausted retries", "id", job.ID, "attempts", job.Attempts, "error", cause)
		return q.save(ctx, job, float64(time.Now().Add(100*365*24*time.Hour).Unix()))
	}

	delay := backoffDelay(q.cfg, job.Attempts)
	job.Status = JobPending
	job.NextRunAt = time.Now().UTC().Add(delay)
	q.log.Debug("retrying job", "id", job.ID, "attempt", job.Attempts, "delay", delay)
	return q.save(ctx, job, float64(job.NextRunAt.Unix()))
}

// Fail moves a job directly to terminal failure without consuming a retry,
// per §4.3's "permanent rejections from the classifier → log + drop".
func (q *Queue) Fail(ctx context.Context, job Job, cause error) error {
	job.Status = JobFailed
	job.LastError = cause.Error()
	return q.Complete(ctx, job)
}

func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= cfg.BackoffFactor
	}
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

// Depth reports the number of jobs currently awaiting a due time, used for
// the shutdown controller's queue-depth snapshot (§4.9).
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.WithContext(ctx).ZCard(q.dueSetKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("depth: %w", err)
	}
	return n, nil
}
