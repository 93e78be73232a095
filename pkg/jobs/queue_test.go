package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsJobs(t *testing.T) {
	done := make(chan Job, 1)
	d := NewDispatcher(func(_ context.Context, job Job) error {
		done <- job
		return nil
	}, Options{})

	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Enqueue(Job{Format: "csv"}))

	select {
	case job := <-done:
		assert.Equal(t, "csv", job.Format)
		assert.False(t, job.Requested.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestDispatcherRetriesThenGivesUp(t *testing.T) {
	var runs atomic.Int32
	d := NewDispatcher(func(_ context.Context, _ Job) error {
		runs.Add(1)
		return errors.New("disk full")
	}, Options{Retries: 2, RetryDelay: time.Millisecond})

	d.Start(context.Background())
	defer d.Stop()

	require.NoError(t, d.Enqueue(Job{Format: "csv"}))

	assert.Eventually(t, func() bool { return runs.Load() == 3 },
		2*time.Second, 5*time.Millisecond, "initial attempt plus two retries")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), runs.Load(), "abandoned after the retry budget")
}

func TestEnqueueRequiresRunningDispatcher(t *testing.T) {
	d := NewDispatcher(func(context.Context, Job) error { return nil }, Options{})
	assert.Error(t, d.Enqueue(Job{Format: "csv"}))

	d.Start(context.Background())
	d.Stop()
	assert.Error(t, d.Enqueue(Job{Format: "csv"}))
}

func TestEnqueueRejectsFullBacklog(t *testing.T) {
	block := make(chan struct{})
	d := NewDispatcher(func(_ context.Context, _ Job) error {
		<-block
		return nil
	}, Options{Buffer: 1})

	d.Start(context.Background())
	defer func() { close(block); d.Stop() }()

	// First job occupies the worker, second fills the buffer.
	require.NoError(t, d.Enqueue(Job{Format: "csv"}))
	var err error
	for i := 0; i < 10; i++ {
		if err = d.Enqueue(Job{Format: "csv"}); err != nil {
			break
		}
	}
	assert.Error(t, err)
}
