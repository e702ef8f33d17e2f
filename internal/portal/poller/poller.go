package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ms-reservations/internal/logger"
)

// CheckFunc performs one poll. Returning done=true stops the poller; the
// next tick after that never fires. Errors are logged and the loop keeps
// going, so a flaky backend never kills a waiting screen.
type CheckFunc func(ctx context.Context) (done bool, err error)

// Poller runs a CheckFunc on a fixed interval with at most one check in
// flight. Trigger lets a user action (the "I have paid" button, a manual
// refresh) run the check immediately without waiting out the interval.
type Poller struct {
	name     string
	interval time.Duration
	check    CheckFunc
	logger   *logger.Logger

	trigger  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func New(name string, interval time.Duration, check CheckFunc) *Poller {
	return &Poller{
		name:     name,
		interval: interval,
		check:    check,
		logger:   logger.NewLogger(),
		trigger:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop. The loop exits when the check reports
// done, when Stop is called, or when ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
		case <-p.trigger:
		}

		// The select above is the only place a check can start, so two
		// checks can never overlap.
		finished, err := p.check(ctx)
		if err != nil {
			p.logger.Warn("POLLER", fmt.Sprintf("%s check failed: %v", p.name, err))
			continue
		}
		if finished {
			p.logger.Debug("POLLER", fmt.Sprintf("%s finished, stopping", p.name))
			return
		}
	}
}

// Trigger requests an immediate check. Non-blocking: if a trigger is
// already queued or a check is running, the request coalesces into it.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Stop halts the loop. Safe to call multiple times and after the loop has
// already self-stopped. It does not wait for an in-flight check.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

// Done is closed once the loop has fully exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}
