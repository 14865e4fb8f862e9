package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"inbox-triage/internal/outstanding/usecase"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingSweeper) Sweep(context.Context, usecase.Options) (*usecase.Report, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &usecase.Report{}, nil
}

func TestSchedulerRunsUntilStopped(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewSweepScheduler(sweeper, 5*time.Millisecond, func() usecase.Options { return usecase.Options{} }, zap.NewNop())
	s.Start(context.Background())

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	after := sweeper.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, sweeper.calls.Load())
}

func TestSchedulerDisabled(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewSweepScheduler(sweeper, 0, func() usecase.Options { return usecase.Options{} }, zap.NewNop())
	s.Start(context.Background())
	s.Stop()
	assert.Zero(t, sweeper.calls.Load())
}

func TestSchedulerLogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	sweeper := &countingSweeper{err: errors.New("db down")}
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSweepScheduler(sweeper, 5*time.Millisecond, func() usecase.Options { return usecase.Options{} }, zap.New(core))
	s.Start(ctx)

	assert.Eventually(t, func() bool { return logs.FilterMessage("scheduled sweep failed").Len() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Stop()
}
