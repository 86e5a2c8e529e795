package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"copilot-chat-go/pkg/tasks"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProcessor 前 failures 次调用返回错误。
type countingProcessor struct {
	failures int
	calls    int
}

func (p *countingProcessor) Process(context.Context, tasks.DocumentImportTask) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("tika unavailable")
	}
	return nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestHandleTaskRetriesWithinSession(t *testing.T) {
	mr, rdb := newTestRedis(t)
	processor := &countingProcessor{failures: maxAttempts - 1}

	done := handleTask(context.Background(), rdb, processor, tasks.DocumentImportTask{ImportID: "imp-1"}, time.Millisecond)

	assert.True(t, done)
	assert.Equal(t, maxAttempts, processor.calls)
	assert.False(t, mr.Exists(attemptsKey("imp-1")), "success clears the attempt counter")
}

func TestHandleTaskGivesUpAfterMaxAttempts(t *testing.T) {
	mr, rdb := newTestRedis(t)
	processor := &countingProcessor{failures: 100}

	done := handleTask(context.Background(), rdb, processor, tasks.DocumentImportTask{ImportID: "imp-2"}, time.Millisecond)

	assert.True(t, done)
	assert.Equal(t, maxAttempts, processor.calls)
	got, err := mr.Get(attemptsKey("imp-2"))
	require.NoError(t, err)
	assert.Equal(t, "3", got)
}

func TestHandleTaskCountsAttemptsAcrossRestarts(t *testing.T) {
	mr, rdb := newTestRedis(t)
	// 上一个进程已经失败过两次
	require.NoError(t, mr.Set(attemptsKey("imp-3"), "2"))
	processor := &countingProcessor{failures: 100}

	done := handleTask(context.Background(), rdb, processor, tasks.DocumentImportTask{ImportID: "imp-3"}, time.Millisecond)

	assert.True(t, done)
	assert.Equal(t, 1, processor.calls)
}

func TestHandleTaskWithoutRedis(t *testing.T) {
	processor := &countingProcessor{failures: 100}

	done := handleTask(context.Background(), nil, processor, tasks.DocumentImportTask{ImportID: "imp-4"}, time.Millisecond)

	assert.True(t, done)
	assert.Equal(t, maxAttempts, processor.calls)
}

func TestHandleTaskStopsOnShutdown(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	processor := &countingProcessor{failures: 100}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	done := handleTask(ctx, rdb, processor, tasks.DocumentImportTask{ImportID: "imp-5"}, time.Hour)

	assert.False(t, done, "an interrupted task must not be committed")
	assert.Equal(t, 1, processor.calls)
}

func TestRecordFailureFallsBackToLocalCount(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()

	assert.Equal(t, 2, recordFailure(context.Background(), rdb, "imp-6", 2))
}
