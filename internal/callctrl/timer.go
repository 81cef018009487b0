package callctrl

import (
	"sync"
	"time"

	"famline/internal/callsession"
)

// DurationTimer drives the on-screen call clock. Elapsed time is always
// recomputed from the connection timestamp, so a delayed or coalesced tick
// can never make the displayed duration drift or run backwards.
type DurationTimer struct {
	interval time.Duration
	onTick   func(elapsed time.Duration)
	clock    func() time.Time

	mu          sync.Mutex
	connectedAt time.Time
	running     bool
	stop        chan struct{}
}

func NewDurationTimer(onTick func(elapsed time.Duration)) *DurationTimer {
	return &DurationTimer{
		interval: time.Second,
		onTick:   onTick,
		clock:    time.Now,
	}
}

// Start begins ticking against the given connection time. Calling Start
// again while running is a no-op, including with a different timestamp.
func (t *DurationTimer) Start(connectedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.connectedAt = connectedAt
	t.stop = make(chan struct{})
	go t.loop(t.stop)
}

// Stop halts ticking. Safe to call repeatedly or before Start.
func (t *DurationTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	close(t.stop)
}

// Elapsed returns the current call duration, zero before Start.
func (t *DurationTimer) Elapsed() time.Duration {
	t.mu.Lock()
	connectedAt := t.connectedAt
	started := t.running || !t.connectedAt.IsZero()
	t.mu.Unlock()
	if !started {
		return 0
	}
	return time.Duration(callsession.Elapsed(connectedAt, t.clock())) * time.Millisecond
}

func (t *DurationTimer) loop(stop chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if t.onTick != nil {
				t.onTick(t.Elapsed())
			}
		}
	}
}
