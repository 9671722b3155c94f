package dispatch_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library_backend/internals/features/library/dispatch"
	"library_backend/internals/features/library/transitions"
)

func echo(_ context.Context, args dispatch.Args) transitions.Result {
	return transitions.Success(args.BookID, args.HolderID)
}

func newDispatcher(t *testing.T, cfg dispatch.Config, opts ...dispatch.Option) *dispatch.Dispatcher {
	t.Helper()
	d, err := dispatch.New(cfg, opts...)
	require.NoError(t, err)
	d.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.Close(ctx)
	})
	return d
}

func Test_New_RejectsInvalidConfig(t *testing.T) {
	_, err := dispatch.New(dispatch.Config{Workers: -1})
	assert.ErrorIs(t, err, dispatch.ErrInvalidWorkers)

	_, err = dispatch.New(dispatch.Config{Workers: 1, Timeout: -time.Second})
	assert.ErrorIs(t, err, dispatch.ErrInvalidTimeout)
}

func Test_New_DefaultsTimeout(t *testing.T) {
	d, err := dispatch.New(dispatch.Config{Workers: 1})
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, d.Timeout())
}

func Test_Call_ReturnsTaskResult(t *testing.T) {
	for _, workers := range []int{0, 2} {
		d := newDispatcher(t, dispatch.Config{Workers: workers, Timeout: time.Second})
		d.Register("echo", echo)

		res, err := d.Call(context.Background(), "echo", dispatch.Args{BookID: 1, HolderID: 2})

		require.NoError(t, err, "workers=%d", workers)
		assert.Equal(t, transitions.Success(1, 2), res)
	}
}

func Test_Call_UnknownTask(t *testing.T) {
	d := newDispatcher(t, dispatch.Config{Workers: 1, Timeout: time.Second})

	_, err := d.Call(context.Background(), "books.nope", dispatch.Args{})

	assert.ErrorIs(t, err, dispatch.ErrUnknownTask)
}

func Test_Call_TimesOutButTaskStillCompletes(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := newDispatcher(t, dispatch.Config{Workers: 1, Timeout: 20 * time.Millisecond}, dispatch.WithRegisterer(reg))
	release := make(chan struct{})
	var finished atomic.Bool
	d.Register("slow", func(ctx context.Context, args dispatch.Args) transitions.Result {
		<-release
		finished.Store(true)
		return transitions.Success(args.BookID, args.HolderID)
	})

	_, err := d.Call(context.Background(), "slow", dispatch.Args{BookID: 1})

	assert.ErrorIs(t, err, dispatch.ErrTimeout)
	close(release)
	assert.Eventually(t, finished.Load, time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(1), counterValue(t, reg, "library_task_timeouts_total"))
}

func Test_Call_TaskIsDetachedFromCallerCancellation(t *testing.T) {
	d := newDispatcher(t, dispatch.Config{Workers: 1, Timeout: time.Second})
	seen := make(chan error, 1)
	d.Register("ctx", func(ctx context.Context, args dispatch.Args) transitions.Result {
		time.Sleep(10 * time.Millisecond)
		seen <- ctx.Err()
		return transitions.Success(args.BookID, 0)
	})
	ctx, cancel := context.WithCancel(context.Background())

	p, err := d.Dispatch(ctx, "ctx", dispatch.Args{BookID: 9})
	require.NoError(t, err)
	cancel()

	select {
	case ctxErr := <-seen:
		assert.NoError(t, ctxErr)
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	res, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(9), res.BookID)
}

func Test_Wait_CanceledContextIsNotTimeout(t *testing.T) {
	d := newDispatcher(t, dispatch.Config{Workers: 1, Timeout: time.Second})
	release := make(chan struct{})
	defer close(release)
	d.Register("block", func(context.Context, dispatch.Args) transitions.Result {
		<-release
		return transitions.Success(0, 0)
	})
	p, err := d.Dispatch(context.Background(), "block", dispatch.Args{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Wait(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, dispatch.ErrTimeout))
}

func Test_Call_PanicBecomesErrorAndPoolSurvives(t *testing.T) {
	d := newDispatcher(t, dispatch.Config{Workers: 1, Timeout: time.Second})
	d.Register("boom", func(context.Context, dispatch.Args) transitions.Result { panic("kaboom") })
	d.Register("echo", echo)

	res, err := d.Call(context.Background(), "boom", dispatch.Args{})
	require.NoError(t, err)
	assert.Equal(t, transitions.StatusError, res.Status)
	assert.Contains(t, res.Message, "kaboom")

	res, err = d.Call(context.Background(), "echo", dispatch.Args{BookID: 5, HolderID: 6})
	require.NoError(t, err)
	assert.True(t, res.OK())
}

func Test_Dispatch_QueueFull(t *testing.T) {
	d, err := dispatch.New(dispatch.Config{Workers: 1, QueueSize: 1, Timeout: time.Second})
	require.NoError(t, err)
	// not started: nothing drains the queue
	d.Register("echo", echo)

	_, err = d.Dispatch(context.Background(), "echo", dispatch.Args{})
	require.NoError(t, err)
	_, err = d.Dispatch(context.Background(), "echo", dispatch.Args{})

	assert.ErrorIs(t, err, dispatch.ErrQueueFull)
}

func Test_Dispatch_AfterClose(t *testing.T) {
	d, err := dispatch.New(dispatch.Config{Workers: 2, Timeout: time.Second})
	require.NoError(t, err)
	d.Register("echo", echo)
	d.Start()
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()), "close is idempotent")

	_, err = d.Dispatch(context.Background(), "echo", dispatch.Args{})

	assert.ErrorIs(t, err, dispatch.ErrClosed)
}

func Test_Close_DrainsQueuedTasks(t *testing.T) {
	d, err := dispatch.New(dispatch.Config{Workers: 1, QueueSize: 8, Timeout: time.Second})
	require.NoError(t, err)
	var ran atomic.Int32
	d.Register("count", func(context.Context, dispatch.Args) transitions.Result {
		time.Sleep(time.Millisecond)
		ran.Add(1)
		return transitions.Success(0, 0)
	})
	d.Start()
	for i := 0; i < 5; i++ {
		_, err := d.Dispatch(context.Background(), "count", dispatch.Args{})
		require.NoError(t, err)
	}

	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, int32(5), ran.Load())
}

func Test_WithRegisterer_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := dispatch.New(dispatch.Config{Workers: 1}, dispatch.WithRegisterer(reg))
	require.NoError(t, err)

	_, err = dispatch.New(dispatch.Config{Workers: 1}, dispatch.WithRegisterer(reg))

	assert.Error(t, err)
}

func Test_Metrics_CountCompletedByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := newDispatcher(t, dispatch.Config{Workers: 1, Timeout: time.Second}, dispatch.WithRegisterer(reg))
	d.Register("echo", echo)
	d.Register("fail", func(context.Context, dispatch.Args) transitions.Result {
		return transitions.Failure(transitions.KindNotFound, transitions.ErrBookNotFound, "Book 1 not found")
	})

	_, err := d.Call(context.Background(), "echo", dispatch.Args{})
	require.NoError(t, err)
	_, err = d.Call(context.Background(), "fail", dispatch.Args{})
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "library_tasks_completed_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per task/status pair")
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			var total float64
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
