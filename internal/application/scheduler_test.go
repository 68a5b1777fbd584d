package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oms-platform/reconciliation-service/internal/domain"
)

func TestSchedulerRunsAtStartup(t *testing.T) {
	env := newReconcileEnv(t)

	var runs atomic.Int32
	env.deliveries.findPendingFn = func(_ context.Context) ([]*domain.DeliveryRecord, error) {
		runs.Add(1)
		return nil, nil
	}

	scheduler := NewScheduler(env.service, time.Hour, newTestLogger(), newTestMetrics())
	require.NoError(t, scheduler.Start())
	defer scheduler.Stop()

	require.Eventually(t, func() bool {
		return runs.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	status := scheduler.Status()
	require.True(t, status.Running)
	require.Equal(t, time.Hour.String(), status.Interval)
}

func TestSchedulerTicks(t *testing.T) {
	env := newReconcileEnv(t)

	var runs atomic.Int32
	env.deliveries.findPendingFn = func(_ context.Context) ([]*domain.DeliveryRecord, error) {
		runs.Add(1)
		return nil, nil
	}

	scheduler := NewScheduler(env.service, 20*time.Millisecond, newTestLogger(), newTestMetrics())
	require.NoError(t, scheduler.Start())
	defer scheduler.Stop()

	require.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerStartTwiceFails(t *testing.T) {
	env := newReconcileEnv(t)
	env.deliveries.findPendingFn = func(_ context.Context) ([]*domain.DeliveryRecord, error) {
		return nil, nil
	}

	scheduler := NewScheduler(env.service, time.Hour, newTestLogger(), newTestMetrics())
	require.NoError(t, scheduler.Start())
	defer scheduler.Stop()

	require.Error(t, scheduler.Start())
}

func TestSchedulerOverlapGuard(t *testing.T) {
	env := newReconcileEnv(t)

	release := make(chan struct{})
	started := make(chan struct{})
	env.deliveries.findPendingFn = func(_ context.Context) ([]*domain.DeliveryRecord, error) {
		close(started)
		<-release
		return nil, nil
	}

	scheduler := NewScheduler(env.service, time.Hour, newTestLogger(), newTestMetrics())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := scheduler.RunNow(context.Background(), domain.FeedWindow{})
		require.NoError(t, err)
	}()

	<-started

	// A second run while the first is in flight is rejected, not queued.
	_, err := scheduler.RunNow(context.Background(), domain.FeedWindow{})
	require.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	<-done

	// With the first run finished, a new run is accepted again.
	env.deliveries.findPendingFn = func(_ context.Context) ([]*domain.DeliveryRecord, error) {
		return nil, nil
	}
	_, err = scheduler.RunNow(context.Background(), domain.FeedWindow{})
	require.NoError(t, err)
}

func TestSchedulerLastRunSummary(t *testing.T) {
	env := newReconcileEnv(t)
	env.deliveries.findPendingFn = func(_ context.Context) ([]*domain.DeliveryRecord, error) {
		return []*domain.DeliveryRecord{
			{RowID: "7", Status: domain.LocalStatusNew, DeliveryType: domain.DeliveryTypeLivreur},
		}, nil
	}

	scheduler := NewScheduler(env.service, time.Hour, newTestLogger(), newTestMetrics())

	result, err := scheduler.RunNow(context.Background(), domain.FeedWindow{})
	require.NoError(t, err)
	require.Len(t, result.Skipped, 1)

	status := scheduler.Status()
	require.NotNil(t, status.LastRun)
	require.Equal(t, "manual", status.LastRun.Trigger)
	require.Equal(t, 1, status.LastRun.Skipped)
}
