// Package scheduler provides at-least-once deferred task execution on a
// worker pool, with bounded platform retry and fixed backoff. Task durability
// comes from domain state, not the queue: every handler re-checks current
// state before acting, so duplicate or replayed executions are no-ops.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"

	"github.com/vitalle-health/be-negotiations/internal/platform/logger"
)

// Task is one unit of deferred work. Execute must be idempotent with
// respect to re-delivery.
type Task interface {
	Name() string
	Execute(ctx context.Context) error
}

// Enqueuer is the scheduling contract handed to tasks that reschedule
// themselves.
type Enqueuer interface {
	Enqueue(task Task, delay time.Duration)
}

// DeadLetterFunc is invoked after a task exhausts its platform retries.
// Terminal failures must surface to an operator, never vanish.
type DeadLetterFunc func(ctx context.Context, task Task, err error)

// Config controls the pool.
type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int           // platform retry attempts per execution
	RetryDelay  time.Duration // fixed backoff between attempts
}

func (c *Config) normalize() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
}

// Pool executes enqueued tasks on worker goroutines after their delay.
type Pool struct {
	cfg        Config
	log        *logger.Logger
	deadLetter DeadLetterFunc

	queue   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	timers  sync.WaitGroup
	workers sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool creates a stopped pool. A nil deadLetter still logs terminal
// failures at error level.
func NewPool(cfg Config, log *logger.Logger, deadLetter DeadLetterFunc) *Pool {
	cfg.normalize()

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:        cfg,
		log:        log,
		deadLetter: deadLetter,
		queue:      make(chan Task, cfg.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.cfg.Workers; i++ {
			p.workers.Add(1)
			go p.worker()
		}
		p.log.Info().Int("workers", p.cfg.Workers).Msg("Deferred task pool started")
	})
}

// Enqueue hands a task to the pool for execution after delay.
func (p *Pool) Enqueue(task Task, delay time.Duration) {
	if delay <= 0 {
		p.push(task)
		return
	}

	p.timers.Add(1)
	go func() {
		defer p.timers.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-p.ctx.Done():
		case <-timer.C:
			p.push(task)
		}
	}()
}

// Stop cancels pending timers and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.timers.Wait()
		close(p.queue)
		p.workers.Wait()
		p.log.Info().Msg("Deferred task pool stopped")
	})
}

func (p *Pool) push(task Task) {
	select {
	case <-p.ctx.Done():
		p.log.Warn().Str("task", task.Name()).Msg("Pool stopping, task dropped")
	case p.queue <- task:
	}
}

func (p *Pool) worker() {
	defer p.workers.Done()

	for task := range p.queue {
		p.run(task)
	}
}

// run executes a task with bounded platform retry and fixed backoff.
func (p *Pool) run(task Task) {
	attempt := 0

	err := retry.New(
		retry.Context(p.ctx),
		retry.Attempts(uint(p.cfg.MaxAttempts)),
		retry.DelayType(func(_ uint, _ error, _ retry.DelayContext) time.Duration {
			return p.cfg.RetryDelay
		}),
		retry.OnRetry(func(n uint, err error) {
			p.log.Warn().Err(err).
				Str("task", task.Name()).
				Uint("attempt", n+1).
				Msg("Task attempt failed, retrying")
		}),
	).Do(func() error {
		attempt++
		return task.Execute(p.ctx)
	})

	if err != nil {
		p.log.Error().Err(err).
			Str("task", task.Name()).
			Int("attempts", attempt).
			Msg("Task failed after exhausting platform retries")
		if p.deadLetter != nil {
			p.deadLetter(p.ctx, task, err)
		}
	}
}
