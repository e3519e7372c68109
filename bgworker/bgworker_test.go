package bgworker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit(t *testing.T) {
	t.Parallel()

	pool := New(2)
	t.Cleanup(pool.StopAndWait)

	var counter atomic.Int32

	tasks := make([]interface{ Wait() error }, 10)
	for i := range tasks {
		tasks[i] = pool.Submit(func() {
			counter.Add(1)
		})
	}

	for _, task := range tasks {
		require.NoError(t, task.Wait())
	}

	assert.Equal(t, int32(10), counter.Load())
}

func TestTryGoSkipsBusyKey(t *testing.T) {
	t.Parallel()

	pool := New(4)
	t.Cleanup(pool.StopAndWait)

	release := make(chan struct{})
	started := make(chan struct{})

	ok, err := pool.TryGo("osc-schedule-1", func() {
		close(started)
		<-release
	})
	require.NoError(t, err)
	require.True(t, ok)

	<-started
	assert.True(t, pool.Running("osc-schedule-1"))

	ok, err = pool.TryGo("osc-schedule-1", func() {
		t.Error("overlapping job must not run")
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), pool.Skipped())

	// Other keys are independent.
	done := make(chan struct{})
	ok, err = pool.TryGo("osc-schedule-2", func() { close(done) })
	require.NoError(t, err)
	assert.True(t, ok)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key did not run")
	}

	close(release)

	assert.Eventually(t, func() bool {
		return !pool.Running("osc-schedule-1")
	}, time.Second, 5*time.Millisecond)

	ok, err = pool.TryGo("osc-schedule-1", func() {})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), pool.Started())
}

func TestTryGoAfterStop(t *testing.T) {
	t.Parallel()

	pool := New(1)
	pool.StopAndWait()

	ok, err := pool.TryGo("osc-schedule-1", func() {})
	require.Error(t, err)
	assert.False(t, ok)
	assert.False(t, pool.Running("osc-schedule-1"))
}
