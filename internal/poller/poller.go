package poller

import (
	"context"
	"log"
	"sync"
	"time"
)

const DefaultInterval = 5 * time.Minute

type Refresher interface {
	Refresh(ctx context.Context) error
}

type Stats struct {
	Runs      int64     `json:"runs"`
	Failures  int64     `json:"failures"`
	LastRunAt time.Time `json:"last_run_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Poller rebuilds the forecast on a fixed interval. It owns no goroutine:
// the caller runs Run and stops it by cancelling the context.
type Poller struct {
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration

	mu    sync.Mutex
	stats Stats
}

func New(refresher Refresher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		refresher: refresher,
		interval:  interval,
		timeout:   interval,
	}
}

// Run refreshes once immediately and then on every tick until ctx is done.
// Failed refreshes are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) {
	log.Printf("[poller] started with interval %v", p.interval)
	p.runOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[poller] stopped")
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Poller) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.refresher.Refresh(runCtx)

	p.mu.Lock()
	p.stats.Runs++
	p.stats.LastRunAt = time.Now().UTC()
	p.stats.LastError = ""
	if err != nil {
		p.stats.Failures++
		p.stats.LastError = err.Error()
	}
	p.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		log.Printf("[poller] WARN: forecast refresh failed: %v", err)
	}
}
