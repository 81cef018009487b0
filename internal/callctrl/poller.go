package callctrl

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Poller drives periodic status fetches. The next tick is armed only after
// the previous fetch returns, so ticks never overlap and a slow backend
// stretches the effective interval instead of piling up requests. A failed
// fetch is logged and polling carries on at the same cadence.
type Poller struct {
	fetch    func(ctx context.Context) error
	interval time.Duration
	log      *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewPoller(interval time.Duration, log *slog.Logger, fetch func(ctx context.Context) error) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		fetch:    fetch,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run polls until Stop is called or ctx is cancelled. The first fetch fires
// immediately. Run returns after the in-flight fetch, if any, completes.
func (p *Poller) Run(ctx context.Context) {
	defer close(p.done)
	for {
		if err := p.fetch(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn("status poll failed", "err", err)
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Stop ends polling. Idempotent and safe from any goroutine; it does not
// wait for Run to return.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// Done is closed once Run has returned.
func (p *Poller) Done() <-chan struct{} { return p.done }
