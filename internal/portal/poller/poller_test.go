package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollerRunsOnInterval(t *testing.T) {
	var calls int32
	p := New("test", 20*time.Millisecond, func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, nil
	})
	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestPollerStopsWhenCheckReportsDone(t *testing.T) {
	var calls int32
	p := New("test", 10*time.Millisecond, func(ctx context.Context) (bool, error) {
		return atomic.AddInt32(&calls, 1) >= 2, nil
	})
	p.Start(context.Background())

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not self-stop")
	}

	after := atomic.LoadInt32(&calls)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&calls), "no checks may run after done")
}

func TestPollerTriggerShortCircuitsInterval(t *testing.T) {
	var calls int32
	p := New("test", time.Hour, func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, nil
	})
	p.Start(context.Background())
	defer p.Stop()

	p.Trigger()
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPollerTriggerNeverBlocks(t *testing.T) {
	p := New("test", time.Hour, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	// Not started: every trigger after the first coalesces instead of
	// blocking the caller.
	for i := 0; i < 10; i++ {
		p.Trigger()
	}
}

func TestPollerSingleCheckInFlight(t *testing.T) {
	var active, maxActive int32
	p := New("test", 5*time.Millisecond, func(ctx context.Context) (bool, error) {
		current := atomic.AddInt32(&active, 1)
		for {
			observed := atomic.LoadInt32(&maxActive)
			if current <= observed || atomic.CompareAndSwapInt32(&maxActive, observed, current) {
				break
			}
		}
		time.Sleep(15 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return false, nil
	})
	p.Start(context.Background())

	// Pile manual triggers on top of the ticker.
	for i := 0; i < 20; i++ {
		p.Trigger()
		time.Sleep(2 * time.Millisecond)
	}
	p.Stop()
	<-p.Done()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestPollerKeepsGoingOnError(t *testing.T) {
	var calls int32
	p := New("test", 10*time.Millisecond, func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, errors.New("backend hiccup")
	})
	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestPollerStopIsIdempotent(t *testing.T) {
	p := New("test", time.Hour, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	p.Start(context.Background())

	p.Stop()
	p.Stop()
	p.Stop()

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPollerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New("test", time.Hour, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	p.Start(ctx)
	cancel()

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not honor context cancellation")
	}
}
