package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scheduler defaults.
const (
	DefaultInterval          = 5 * time.Minute
	DefaultHeartbeatInterval = time.Minute
	DefaultProbeInterval     = 30 * time.Second
)

// WithSchedule sets the sync, heartbeat and connectivity probe intervals.
// A zero probe interval disables probing; connectivity then changes only
// through SetOnline.
func WithSchedule(interval, heartbeat, probe time.Duration) Option {
	return func(e *Engine) {
		if interval > 0 {
			e.interval = interval
		}
		if heartbeat > 0 {
			e.heartbeatInterval = heartbeat
		}
		e.probeInterval = probe
	}
}

// Online reports the last known connectivity state.
func (e *Engine) Online() bool {
	return e.online.Load()
}

// SetOnline reports a connectivity change to the scheduler. An offline to
// online transition triggers a sync.
func (e *Engine) SetOnline(online bool) {
	e.queue.Enqueue(Event{Type: EventConnectivity, Online: online, Reason: "manual"})
}

// RequestSync asks the scheduler for a full sync.
func (e *Engine) RequestSync() bool {
	return e.queue.Enqueue(Event{Type: EventSync, Reason: "manual"})
}

// Stop shuts down the scheduler. Run returns once queued events drain.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Run starts the scheduler and blocks until ctx is cancelled or Stop is
// called. It must be called at most once per Engine.
//
// Timers and the probe only enqueue events; all sync work happens on the
// loop goroutine, one event at a time.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("sync scheduler starting",
		zap.Duration("interval", e.interval),
		zap.Duration("heartbeat_interval", e.heartbeatInterval),
		zap.Duration("probe_interval", e.probeInterval))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.queue.Enqueue(Event{Type: EventSync, Reason: "startup"})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return e.loop(ctx)
	})
	g.Go(func() error {
		e.every(ctx, e.interval, func() { e.queue.Enqueue(Event{Type: EventSync, Reason: "interval"}) })
		return nil
	})
	g.Go(func() error {
		e.every(ctx, e.heartbeatInterval, func() { e.queue.Enqueue(Event{Type: EventHeartbeat, Reason: "interval"}) })
		return nil
	})
	if e.probeInterval > 0 {
		g.Go(func() error {
			e.every(ctx, e.probeInterval, func() {
				e.queue.Enqueue(Event{Type: EventConnectivity, Online: e.probe(ctx), Reason: "probe"})
			})
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		e.logger.Info("sync scheduler stopping: context cancelled")
	}
	return err
}

func (e *Engine) every(ctx context.Context, d time.Duration, fn func()) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// probe reports whether the backend answers a ping.
func (e *Engine) probe(ctx context.Context) bool {
	gw, err := e.gateways.Gateway(ctx)
	if err != nil {
		return false
	}
	defer gw.Close()
	return gw.Ping(ctx) == nil
}

// loop is the single consumer of the event queue.
func (e *Engine) loop(ctx context.Context) error {
	for {
		if ev, ok := e.queue.TryDequeue(); ok {
			e.handle(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			e.queue.Close()
			return ctx.Err()
		case <-e.queue.Wait():
			// The signal channel is closed with the queue.
			if e.closedAndEmpty() {
				e.logger.Info("sync scheduler stopping: queue closed")
				return nil
			}
		}
	}
}

func (e *Engine) closedAndEmpty() bool {
	e.queue.mu.Lock()
	defer e.queue.mu.Unlock()
	return e.queue.closed && len(e.queue.events) == 0
}

func (e *Engine) handle(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventSync:
		e.syncNow(ctx, ev.Reason)

	case EventHeartbeat:
		if !e.Online() {
			return
		}
		if err := e.Heartbeat(ctx); err != nil {
			e.logger.Debug("heartbeat failed", zap.Error(err))
		}

	case EventConnectivity:
		was := e.online.Swap(ev.Online)
		switch {
		case !was && ev.Online:
			e.logger.Info("back online", zap.String("reason", ev.Reason))
			e.syncNow(ctx, "reconnect")
		case was && !ev.Online:
			e.logger.Warn("went offline", zap.String("reason", ev.Reason))
		}
	}
}

func (e *Engine) syncNow(ctx context.Context, reason string) {
	if !e.Online() {
		e.logger.Debug("sync skipped: offline", zap.String("reason", reason))
		return
	}
	res, err := e.FullSync(ctx)
	if errors.Is(err, ErrSyncInProgress) {
		e.logger.Debug("sync skipped: in progress", zap.String("reason", reason))
		return
	}
	e.logger.Info("sync finished",
		zap.String("reason", reason),
		zap.Int("logs_pushed", res.LogsPushed),
		zap.Int("employees_pulled", res.EmployeesPulled),
		zap.Int("failures", len(res.Failures)))
}
