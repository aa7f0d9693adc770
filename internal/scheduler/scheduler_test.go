package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (c *countingRefresher) Refresh(ctx context.Context) error {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected a deadline")
	}
	return c.err
}

func TestSchedulerRunsRefresh(t *testing.T) {
	refresher := &countingRefresher{}
	s := New(refresher, 20*time.Millisecond, time.Second, zaptest.NewLogger(t))

	if err := s.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for refresher.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected refresh to run")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSchedulerSurvivesRefreshErrors(t *testing.T) {
	refresher := &countingRefresher{err: errors.New("origin down")}
	s := New(refresher, 20*time.Millisecond, time.Second, zaptest.NewLogger(t))

	if err := s.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for refresher.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected refresh to keep running after errors, got %d calls", refresher.calls.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSchedulerDisabled(t *testing.T) {
	refresher := &countingRefresher{}
	s := New(refresher, 0, time.Second, zaptest.NewLogger(t))

	if err := s.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	s.Stop()

	time.Sleep(30 * time.Millisecond)
	if got := refresher.calls.Load(); got != 0 {
		t.Fatalf("expected no refresh when disabled, got %d", got)
	}
}
