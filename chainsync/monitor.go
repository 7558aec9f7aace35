// EventMonitor: polls an EventSource, dispatches events to a handler and
// commits the cursor only after a fully handled batch.
package chainsync

import (
	"context"
	"sync"
	"time"

	"github.com/TEENet-io/bridge-client-aptos/agreement"
	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	logger "github.com/sirupsen/logrus"
)

const MinInterval = 100 * time.Millisecond

// BackoffConfig is the retry delay after failed cycles.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64 // randomization factor in [0, 1]
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
		Jitter:     0.5,
	}
}

// Configuration
type ChainSyncConfig struct {
	Interval    time.Duration // wait between successful cycles
	StartCursor Cursor        // used when the store has no cursor
	Backoff     BackoffConfig
	Metrics     *Metrics
}

// Stats counts what a monitor has done so far.
type Stats struct {
	CyclesOK     uint64                         `json:"cycles_ok"`
	CyclesFailed uint64                         `json:"cycles_failed"`
	Events       map[agreement.EventKind]uint64 `json:"events"`
	LastError    string                         `json:"last_error,omitempty"`
	LastSuccess  time.Time                      `json:"last_success,omitempty"`
}

type EventMonitor struct {
	cfg     ChainSyncConfig
	source  EventSource
	handler agreement.EventHandler
	store   CursorStore

	mu     sync.Mutex
	cursor Cursor
	stats  Stats
}

// New creates a monitor. A nil store keeps the cursor in memory only.
func New(cfg ChainSyncConfig, source EventSource, handler agreement.EventHandler, store CursorStore) (*EventMonitor, error) {
	if source == nil {
		return nil, errors.New("event source is nil")
	}
	if handler == nil {
		return nil, errors.New("event handler is nil")
	}
	if cfg.Interval < MinInterval {
		cfg.Interval = MinInterval
	}
	def := DefaultBackoffConfig()
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff.Initial = def.Initial
	}
	if cfg.Backoff.Max <= 0 {
		cfg.Backoff.Max = def.Max
	}
	if cfg.Backoff.Multiplier < 1 {
		cfg.Backoff.Multiplier = def.Multiplier
	}
	if cfg.Backoff.Jitter < 0 || cfg.Backoff.Jitter > 1 {
		cfg.Backoff.Jitter = def.Jitter
	}
	if store == nil {
		store = NewMemoryCursorStore()
	}
	start := cfg.StartCursor
	if start == nil {
		start = Cursor{}
	}
	return &EventMonitor{
		cfg:     cfg,
		source:  source,
		handler: handler,
		store:   store,
		cursor:  start.Clone(),
		stats:   Stats{Events: make(map[agreement.EventKind]uint64)},
	}, nil
}

func (m *EventMonitor) Name() string {
	return m.source.Name()
}

// Cursor returns a copy of the committed cursor.
func (m *EventMonitor) Cursor() Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor.Clone()
}

func (m *EventMonitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.stats
	out.Events = make(map[agreement.EventKind]uint64, len(m.stats.Events))
	for k, v := range m.stats.Events {
		out.Events[k] = v
	}
	return out
}

// LoadCursor replaces the in-memory cursor with the stored one, if any.
func (m *EventMonitor) LoadCursor(ctx context.Context) error {
	c, ok, err := m.store.LoadCursor(ctx, m.Name())
	if err != nil {
		return errors.Wrapf(err, "load cursor of %s", m.Name())
	}
	if !ok {
		logger.WithFields(logger.Fields{"source": m.Name(), "cursor": m.Cursor().String()}).Info("no stored cursor, using start cursor")
		return nil
	}
	m.mu.Lock()
	m.cursor = c
	m.mu.Unlock()
	logger.WithFields(logger.Fields{"source": m.Name(), "cursor": c.String()}).Info("resuming from stored cursor")
	return nil
}

// RunOnce runs one fetch/dispatch cycle. The cursor advances only when
// every event of the batch was handled and the cursor was stored.
func (m *EventMonitor) RunOnce(ctx context.Context) ([]agreement.BridgeEvent, error) {
	start := time.Now()
	events, err := m.runOnce(ctx)
	m.cfg.Metrics.observeCycle(m.Name(), time.Since(start), err)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.stats.CyclesFailed++
		m.stats.LastError = err.Error()
		return nil, err
	}
	m.stats.CyclesOK++
	m.stats.LastSuccess = time.Now()
	for _, ev := range events {
		m.stats.Events[ev.Kind()]++
	}
	return events, nil
}

func (m *EventMonitor) runOnce(ctx context.Context) ([]agreement.BridgeEvent, error) {
	cursor := m.Cursor()
	batch, err := m.source.FetchSince(ctx, cursor)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch events from %s", m.Name())
	}
	if batch == nil {
		return nil, errors.Newf("%s returned no batch", m.Name())
	}

	kinds := make(map[string]int)
	for _, ev := range batch.Events {
		logger.WithFields(logger.Fields{"source": m.Name(), "event": ev.String()}).Debug("dispatching bridge event")
		if err := agreement.Dispatch(ctx, m.handler, ev); err != nil {
			return nil, err
		}
		kinds[string(ev.Kind())]++
	}

	next := batch.Next
	if next == nil {
		next = cursor
	}
	if !next.Equal(cursor) {
		if err := m.store.SaveCursor(ctx, m.Name(), next); err != nil {
			return nil, errors.Wrapf(err, "save cursor of %s", m.Name())
		}
	}
	m.mu.Lock()
	m.cursor = next.Clone()
	m.mu.Unlock()
	m.cfg.Metrics.observeCommit(m.Name(), kinds, next)

	if len(batch.Events) > 0 {
		logger.WithFields(logger.Fields{
			"source": m.Name(),
			"events": len(batch.Events),
			"cursor": next.String(),
		}).Info("bridge events handled")
	}
	return batch.Events, nil
}

func (m *EventMonitor) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = m.cfg.Backoff.Initial
	exp.MaxInterval = m.cfg.Backoff.Max
	exp.Multiplier = m.cfg.Backoff.Multiplier
	exp.RandomizationFactor = m.cfg.Backoff.Jitter
	exp.MaxElapsedTime = 0
	exp.Reset()
	return exp
}

// Run loads the stored cursor and polls until ctx is done. Failed cycles
// are reported to the handler's HandleError (or logged) and retried with
// backoff. An error returned by HandleError stops the monitor. A cancelled
// ctx lets the current cycle finish and returns nil.
func (m *EventMonitor) Run(ctx context.Context) error {
	if err := m.LoadCursor(ctx); err != nil {
		return err
	}
	logger.WithFields(logger.Fields{"source": m.Name(), "interval": m.cfg.Interval}).Info("starting event monitor")
	defer logger.WithField("source", m.Name()).Info("event monitor stopped")

	b := m.newBackOff()
	for {
		wait := m.cfg.Interval
		if _, err := m.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if herr := m.reportError(ctx, err); herr != nil {
				return errors.Wrapf(herr, "monitor %s stopped by error handler", m.Name())
			}
			wait = b.NextBackOff()
			if wait == backoff.Stop {
				wait = m.cfg.Backoff.Max
			}
		} else {
			b.Reset()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (m *EventMonitor) reportError(ctx context.Context, err error) error {
	if eh, ok := m.handler.(agreement.ErrorHandler); ok {
		return eh.HandleError(ctx, err)
	}
	logger.WithField("source", m.Name()).WithError(err).Error("bridge event cycle failed")
	return nil
}
