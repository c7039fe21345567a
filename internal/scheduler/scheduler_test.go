package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalle-health/be-negotiations/internal/platform/logger"
)

// countingTask fails failures times before succeeding.
type countingTask struct {
	name       string
	failures   int32
	executions int32
	done       chan struct{}
	doneOnce   sync.Once
}

func (t *countingTask) Name() string { return t.name }

func (t *countingTask) Execute(ctx context.Context) error {
	n := atomic.AddInt32(&t.executions, 1)
	if n <= atomic.LoadInt32(&t.failures) {
		return fmt.Errorf("attempt %d failed", n)
	}
	t.doneOnce.Do(func() { close(t.done) })
	return nil
}

func newCountingTask(name string, failures int) *countingTask {
	return &countingTask{name: name, failures: int32(failures), done: make(chan struct{})}
}

func testPool(t *testing.T, deadLetter DeadLetterFunc) *Pool {
	t.Helper()
	pool := NewPool(Config{
		Workers:     2,
		QueueSize:   16,
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
	}, logger.NewNop(), deadLetter)
	pool.Start()
	t.Cleanup(pool.Stop)
	return pool
}

func TestPoolExecutesAfterDelay(t *testing.T) {
	pool := testPool(t, nil)
	task := newCountingTask("t", 0)

	pool.Enqueue(task, 5*time.Millisecond)

	select {
	case <-task.done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not execute")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&task.executions))
}

func TestPoolRetriesUntilSuccess(t *testing.T) {
	pool := testPool(t, nil)
	task := newCountingTask("flaky", 2)

	pool.Enqueue(task, 0)

	select {
	case <-task.done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never succeeded")
	}
	// Two failed attempts plus the successful third.
	assert.Equal(t, int32(3), atomic.LoadInt32(&task.executions))
}

func TestPoolDeadLettersTerminalFailures(t *testing.T) {
	deadLettered := make(chan error, 1)
	pool := testPool(t, func(ctx context.Context, task Task, err error) {
		deadLettered <- err
	})

	task := newCountingTask("doomed", 100)
	pool.Enqueue(task, 0)

	select {
	case err := <-deadLettered:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("terminal failure never dead-lettered")
	}
	// Bounded retry: exactly MaxAttempts executions, then give up.
	assert.Equal(t, int32(3), atomic.LoadInt32(&task.executions))
}

func TestPoolStopDropsPendingTimers(t *testing.T) {
	pool := NewPool(Config{Workers: 1, MaxAttempts: 1, RetryDelay: time.Millisecond}, logger.NewNop(), nil)
	pool.Start()

	task := newCountingTask("late", 0)
	pool.Enqueue(task, time.Hour)

	pool.Stop()
	assert.Equal(t, int32(0), atomic.LoadInt32(&task.executions))
}
