// Package workerpresentation drives use cases from timers instead of requests.
package workerpresentation

import (
	"context"
	"sync"
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application/reconciliation"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"
)

const componentPoller = "reconcile_poller"

// Poller periodically re-drives status refresh for paid-but-unreconciled
// orders so inventory does not depend on the client polling.
type Poller struct {
	useCase  application.UseCase[reconciliation.ReconcilePendingInput, *reconciliation.ReconcilePendingResult]
	interval time.Duration
	batch    int
	log      observability.Logger

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewPoller(
	useCase application.UseCase[reconciliation.ReconcilePendingInput, *reconciliation.ReconcilePendingResult],
	interval time.Duration,
	batch int,
	logger observability.Logger,
) *Poller {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if batch <= 0 {
		batch = 50
	}
	return &Poller{
		useCase:  useCase,
		interval: interval,
		batch:    batch,
		log:      logger.With(observability.F("component", componentPoller)),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the loop in the background. A non-positive interval disables it.
func (p *Poller) Start(ctx context.Context) {
	if p.interval <= 0 || p.useCase == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	go p.loop(ctx)
	p.log.Info("poller_started", observability.F("interval", p.interval.String()))
}

// Stop ends the loop and waits for an in-flight tick.
func (p *Poller) Stop() {
	p.once.Do(func() { close(p.stop) })
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if started {
		<-p.done
	}
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-t.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one sweep.
func (p *Poller) Tick(ctx context.Context) {
	ctx = WithEventContext(ctx, p.log, map[string]string{"trigger": "timer"})
	res, err := p.useCase.Execute(ctx, reconciliation.ReconcilePendingInput{Limit: p.batch})
	if err != nil {
		p.log.Warn("poller_tick_failed", observability.F("error", err))
		return
	}
	if res != nil && res.Inspected > 0 {
		p.log.Debug("poller_tick",
			observability.F("inspected", res.Inspected),
			observability.F("reconciled", res.Reconciled),
			observability.F("failed", res.Failed),
		)
	}
}
