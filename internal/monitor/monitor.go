// Package monitor runs the reconciliation loop: probe the game server's
// ports on an interval, decide whether it is playable, and bring the Discord
// side (announcement, presence, status role) in line with that verdict.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/realmwatch/internal/observability"
	"github.com/haasonsaas/realmwatch/internal/probe"
	"github.com/haasonsaas/realmwatch/internal/status"
)

// DefaultInterval is the time between ticks.
const DefaultInterval = 15 * time.Second

// Notifier is the chat-platform surface the loop drives. Every method may
// fail independently; the loop never lets one failure block the others.
type Notifier interface {
	// ResolveChannel returns the announcement channel ID.
	ResolveChannel(ctx context.Context) (string, error)

	// MentionRole returns the mention markup for the status-ping role.
	// ok is false when the role is not configured or does not exist.
	MentionRole(ctx context.Context) (mention string, ok bool, err error)

	SendAnnouncement(ctx context.Context, channelID, text string) error
	SetPresence(ctx context.Context, text string) error

	// RoleMembership returns the names of roles the bot currently holds.
	RoleMembership(ctx context.Context) (map[string]bool, error)

	AddRole(ctx context.Context, name string) error
	RemoveRole(ctx context.Context, name string) error
}

// Config configures a Loop.
type Config struct {
	// Targets are the ports that must all accept connections for the server to be playable.
	Targets []status.Target

	// Interval is the time between ticks (default 15s).
	Interval time.Duration

	// ProbeTimeout bounds each connection attempt (default 5s).
	ProbeTimeout time.Duration

	// Messages renders announcement, presence and role names.
	Messages status.Messages

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer

	// Now returns the time used for announcement timestamps (default time.Now).
	Now func() time.Time
}

// Validate checks the configuration and applies defaults.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return errors.New("at least one target is required")
	}
	for _, t := range c.Targets {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = probe.DefaultTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Tracer == nil {
		c.Tracer, _ = observability.NewTracer(observability.TraceConfig{})
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

// TickResult describes what one tick observed and did.
type TickResult struct {
	ID       string
	Previous status.Playability
	Current  status.Playability
	Failed   []status.Target

	// Transition is true when the tick acted on a state change.
	Transition bool

	// Announced is true when an announcement was delivered.
	Announced bool
}

// Loop is the reconciliation loop. It is the only writer of its Store.
type Loop struct {
	config   Config
	prober   probe.Prober
	notifier Notifier
	store    *status.Store
	logger   *slog.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer

	// roleMissing is the state whose desired role was found missing from
	// the guild; drift repair leaves roles alone until the next transition.
	roleMissing status.Playability

	// staleRole is the state whose opposite role is still held after a
	// failed removal; drift repair retries the removal.
	staleRole status.Playability

	snapshot atomic.Pointer[status.Snapshot]
}

// New creates a loop.
func New(prober probe.Prober, notifier Notifier, config Config) (*Loop, error) {
	if prober == nil {
		return nil, errors.New("prober is required")
	}
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	l := &Loop{
		config:   config,
		prober:   prober,
		notifier: notifier,
		store:    status.NewStore(),
		logger:   config.Logger.With("component", "monitor"),
		metrics:  config.Metrics,
		tracer:   config.Tracer,
	}
	l.publish()
	return l, nil
}

// Snapshot returns the most recently published store state. Safe for
// concurrent use.
func (l *Loop) Snapshot() status.Snapshot {
	return *l.snapshot.Load()
}

// Run ticks immediately and then every Interval until ctx is cancelled.
// Ticks never overlap; a tick that overruns the interval delays the next.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("monitor started",
		"targets", len(l.config.Targets),
		"interval", l.config.Interval,
		"probe_timeout", l.config.ProbeTimeout)

	l.Tick(ctx)

	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("monitor stopped")
			return nil
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick runs one probe-evaluate-reconcile cycle.
func (l *Loop) Tick(ctx context.Context) TickResult {
	start := time.Now()
	result := TickResult{ID: uuid.NewString(), Previous: l.store.Playable()}

	ctx, span := l.tracer.TraceTick(ctx, result.ID)
	defer span.End()
	logger := l.logger.With("tick_id", result.ID)
	if traceID := observability.TraceID(ctx); traceID != "" {
		logger = logger.With("trace_id", traceID)
	}

	probeCtx, probeSpan := l.tracer.TraceProbe(ctx, len(l.config.Targets))
	results := probe.All(probeCtx, l.prober, l.config.Targets, l.config.ProbeTimeout)
	probeSpan.End()
	for _, t := range l.config.Targets {
		l.metrics.RecordProbe(t.Name, results[t])
		logger.Debug("probe result", "target", t.String(), "open", results[t])
	}
	result.Current = status.Evaluate(results)
	result.Failed = status.FailedTargets(l.config.Targets, results)
	l.tracer.MarkVerdict(span, result.Current.String(), len(result.Failed))

	if ctx.Err() != nil {
		// Shutting down mid-probe; the verdict is not trustworthy.
		return result
	}

	switch {
	case !result.Previous.Known():
		result.Transition, result.Announced = l.reconcileStartup(ctx, logger, result.Current)
	case result.Previous != result.Current:
		result.Transition = true
		result.Announced = l.transition(ctx, logger, result.Previous, result.Current, nil)
	default:
		l.repairDrift(ctx, logger, result.Current)
	}

	l.publish()
	l.metrics.SetPlayable(l.store.Playable() == status.Up)
	l.metrics.RecordTick(result.Current.String(), time.Since(start).Seconds())

	logger.Debug("tick complete",
		"playable", result.Current.String(),
		"transition", result.Transition,
		"duration_ms", time.Since(start).Milliseconds())
	return result
}

func (l *Loop) publish() {
	snap := l.store.Snapshot()
	l.snapshot.Store(&snap)
}
