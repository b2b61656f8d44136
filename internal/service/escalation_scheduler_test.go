package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/dto"
)

type countingSweeper struct {
	calls int32
	err   error
}

func (c *countingSweeper) Sweep(ctx context.Context) (*dto.SweepResult, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.err != nil {
		return nil, c.err
	}
	return &dto.SweepResult{Scanned: 1}, nil
}

func TestSchedulerSweepsImmediatelyAndPeriodically(t *testing.T) {
	sweeper := &countingSweeper{}
	scheduler := NewEscalationScheduler(sweeper, 10*time.Millisecond, zap.NewNop())
	scheduler.Start(context.Background())
	scheduler.Start(context.Background())

	require.Eventually(t, func() bool { return atomic.LoadInt32(&sweeper.calls) >= 3 }, time.Second, 5*time.Millisecond)
	scheduler.Stop()

	stopped := atomic.LoadInt32(&sweeper.calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, atomic.LoadInt32(&sweeper.calls))
	scheduler.Stop()
}

func TestSchedulerKeepsRunningAfterFailures(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("database unavailable")}
	scheduler := NewEscalationScheduler(sweeper, 5*time.Millisecond, zap.NewNop())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&sweeper.calls) >= 2 }, time.Second, 5*time.Millisecond)
}

func TestSchedulerRunOnce(t *testing.T) {
	sweeper := &countingSweeper{}
	scheduler := NewEscalationScheduler(sweeper, time.Hour, nil)

	result, err := scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, int32(1), atomic.LoadInt32(&sweeper.calls))
}
