package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sakaicontrib/evaluation-sub013/v1/lifecycle"
	"github.com/sakaicontrib/evaluation-sub013/v1/metrics"
)

// Executor consumes a due invocation. The invocation dispatcher implements
// this.
type Executor interface {
	Execute(ctx context.Context, key Key) error
}

const (
	defaultPumpInterval = 10 * time.Second
	defaultPumpBatch    = 50
)

// Pump periodically claims due invocations from a Source and hands them to
// an Executor. Delivery is at-least-once: an invocation is removed only
// after its execution attempt, so a node crash mid-execution redelivers it
// later, possibly on another node. A failing execution is logged and the
// invocation is still consumed; there is no automatic redelivery for that
// specific attempt.
type Pump struct {
	source   Source
	exec     Executor
	clock    lifecycle.Clock
	interval time.Duration
	batch    int
	log      zerolog.Logger
}

// PumpOption configures a Pump.
type PumpOption func(*Pump)

// WithPumpInterval sets the polling interval.
func WithPumpInterval(d time.Duration) PumpOption {
	return func(p *Pump) { p.interval = d }
}

// WithPumpBatch caps how many invocations one tick claims.
func WithPumpBatch(n int) PumpOption {
	return func(p *Pump) { p.batch = n }
}

// WithPumpClock pins the clock, mainly for tests.
func WithPumpClock(c lifecycle.Clock) PumpOption {
	return func(p *Pump) { p.clock = c }
}

// WithPumpLogger sets the logger.
func WithPumpLogger(log zerolog.Logger) PumpOption {
	return func(p *Pump) { p.log = log }
}

// NewPump returns a Pump over the given source and executor.
func NewPump(source Source, exec Executor, opts ...PumpOption) *Pump {
	p := &Pump{
		source:   source,
		exec:     exec,
		clock:    lifecycle.System,
		interval: defaultPumpInterval,
		batch:    defaultPumpBatch,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ticks until ctx is cancelled.
func (p *Pump) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick claims and executes one batch of due invocations. Failures are
// isolated per invocation: one evaluation's failing job never blocks
// another's.
func (p *Pump) Tick(ctx context.Context) {
	invs, err := p.source.DueInvocations(ctx, ComponentID, p.clock.Now(), p.batch)
	if err != nil {
		p.log.Error().Err(err).Msg("claim due invocations")
		return
	}
	for _, inv := range invs {
		key, err := ParseKey(inv.OpaqueKey)
		if err != nil {
			p.log.Warn().Str("key", inv.OpaqueKey).Err(err).Msg("dropping malformed invocation")
			metrics.MalformedKeyCounter.Inc()
			_ = p.source.DeleteInvocation(ctx, inv.ID)
			continue
		}
		if err := p.exec.Execute(ctx, key); err != nil {
			p.log.Error().Stringer("key", key).Err(err).Msg("invocation failed")
			metrics.InvocationErrorCounter.Inc()
		}
		if err := p.source.DeleteInvocation(ctx, inv.ID); err != nil {
			p.log.Error().Stringer("key", key).Err(err).Msg("consume invocation")
		}
	}
}
