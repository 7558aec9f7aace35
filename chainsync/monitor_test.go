package chainsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/TEENet-io/bridge-client-aptos/agreement"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// versionSource serves events from a fixed list, returning those above
// the "all" stream version on every fetch.
type versionSource struct {
	mu      sync.Mutex
	events  []agreement.BridgeEvent
	fail    error
	fetches int
	seen    []Cursor
}

func (s *versionSource) Name() string { return "test" }

func (s *versionSource) FetchSince(ctx context.Context, cursor Cursor) (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	s.seen = append(s.seen, cursor.Clone())
	if s.fail != nil {
		return nil, s.fail
	}
	from := cursor.Get("all").Version
	next := cursor.Clone()
	var out []agreement.BridgeEvent
	for _, ev := range s.events {
		v := ev.Meta().VersionOrZero()
		if v > from {
			out = append(out, ev)
			if v > next.Get("all").Version {
				next["all"] = Position{Version: v}
			}
		}
	}
	return &Batch{Events: out, Next: next}, nil
}

func (s *versionSource) setFail(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func mint(version, seq uint64) *agreement.MintEvent {
	ev := &agreement.MintEvent{}
	ev.Version = agreement.Uint64Ptr(version)
	ev.SequenceNumber = agreement.Uint64Ptr(seq)
	ev.Amount = version * 10
	return ev
}

func burn(version, seq uint64) *agreement.BurnEvent {
	ev := &agreement.BurnEvent{}
	ev.Version = agreement.Uint64Ptr(version)
	ev.SequenceNumber = agreement.Uint64Ptr(seq)
	return ev
}

type recorder struct {
	mu      sync.Mutex
	events  []agreement.BridgeEvent
	failAt  uint64
	errs    []error
	stopErr error
}

func (r *recorder) record(ev agreement.BridgeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAt != 0 && ev.Meta().VersionOrZero() == r.failAt {
		return errors.New("handler rejected event")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) handler() *agreement.HandlerFuncs {
	return &agreement.HandlerFuncs{
		Mint: func(ctx context.Context, ev *agreement.MintEvent) error { return r.record(ev) },
		Burn: func(ctx context.Context, ev *agreement.BurnEvent) error { return r.record(ev) },
		Error: func(ctx context.Context, err error) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
			return r.stopErr
		},
	}
}

func versions(events []agreement.BridgeEvent) []uint64 {
	out := make([]uint64, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Meta().VersionOrZero())
	}
	return out
}

func TestRunOnceAdvancesCursorToMaxVersion(t *testing.T) {
	src := &versionSource{events: []agreement.BridgeEvent{mint(10, 0), burn(12, 0), mint(15, 1)}}
	rec := &recorder{}
	store := NewMemoryCursorStore()
	m, err := New(ChainSyncConfig{}, src, rec.handler(), store)
	require.NoError(t, err)

	events, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 12, 15}, versions(events))
	assert.Equal(t, uint64(15), m.Cursor().Get("all").Version)

	stored, ok, err := store.LoadCursor(context.Background(), "test")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(15), stored.Get("all").Version)

	// nothing new: empty batch, cursor unchanged
	events, err = m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, uint64(15), m.Cursor().Get("all").Version)

	src.mu.Lock()
	src.events = append(src.events, burn(20, 1))
	src.mu.Unlock()
	events, err = m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{20}, versions(events))
	assert.Equal(t, uint64(20), m.Cursor().Get("all").Version)

	stats := m.Stats()
	assert.Equal(t, uint64(3), stats.CyclesOK)
	assert.Equal(t, uint64(2), stats.Events[agreement.KindMint])
	assert.Equal(t, uint64(2), stats.Events[agreement.KindBurn])
}

func TestRunOnceFetchFailureKeepsCursor(t *testing.T) {
	src := &versionSource{events: []agreement.BridgeEvent{mint(10, 0)}}
	rec := &recorder{}
	m, err := New(ChainSyncConfig{StartCursor: Cursor{"all": {Version: 5}}}, src, rec.handler(), nil)
	require.NoError(t, err)

	src.setFail(errors.Mark(errors.New("connection refused"), common.ErrNetwork))
	_, err = m.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNetwork))
	assert.Equal(t, uint64(5), m.Cursor().Get("all").Version)
	assert.Equal(t, uint64(1), m.Stats().CyclesFailed)

	src.setFail(nil)
	events, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint64{10}, versions(events))
	assert.Equal(t, uint64(10), m.Cursor().Get("all").Version)
}

func TestRunOnceHandlerFailureRedelivers(t *testing.T) {
	src := &versionSource{events: []agreement.BridgeEvent{mint(10, 0), mint(11, 0)}}
	rec := &recorder{failAt: 11}
	m, err := New(ChainSyncConfig{}, src, rec.handler(), nil)
	require.NoError(t, err)

	_, err = m.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrHandler))
	assert.Equal(t, uint64(0), m.Cursor().Get("all").Version)

	rec.mu.Lock()
	rec.failAt = 0
	rec.mu.Unlock()
	events, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 2)
	// event 10 was delivered twice
	assert.Equal(t, []uint64{10, 10, 11}, versions(rec.events))
}

type failingStore struct{ MemoryCursorStore }

func (s *failingStore) SaveCursor(ctx context.Context, source string, cursor Cursor) error {
	return errors.New("disk full")
}

func TestRunOnceStoreFailureKeepsCursor(t *testing.T) {
	src := &versionSource{events: []agreement.BridgeEvent{mint(10, 0)}}
	store := &failingStore{MemoryCursorStore{cursors: map[string]Cursor{}}}
	m, err := New(ChainSyncConfig{}, src, (&recorder{}).handler(), store)
	require.NoError(t, err)

	_, err = m.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, uint64(0), m.Cursor().Get("all").Version)
}

func TestRunResumesFromStoreAndStopsOnCancel(t *testing.T) {
	src := &versionSource{events: []agreement.BridgeEvent{mint(10, 0), mint(30, 0)}}
	rec := &recorder{}
	store := NewMemoryCursorStore()
	require.NoError(t, store.SaveCursor(context.Background(), "test", Cursor{"all": {Version: 20}}))

	m, err := New(ChainSyncConfig{Interval: MinInterval}, src, rec.handler(), store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		return m.Cursor().Get("all").Version == 30
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []uint64{30}, versions(rec.events))
}

func TestRunReportsErrorsAndBacksOff(t *testing.T) {
	src := &versionSource{}
	src.setFail(errors.Mark(errors.New("timeout"), common.ErrNetwork))
	rec := &recorder{stopErr: errors.New("give up")}

	m, err := New(ChainSyncConfig{
		Interval: MinInterval,
		Backoff:  BackoffConfig{Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 1, Jitter: 0},
	}, src, rec.handler(), nil)
	require.NoError(t, err)

	err = m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "give up")
	require.Len(t, rec.errs, 1)
	assert.True(t, errors.Is(rec.errs[0], common.ErrNetwork))
	assert.Equal(t, Cursor{}, m.Cursor())
}

func TestMetricsObserveCycles(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	src := &versionSource{events: []agreement.BridgeEvent{mint(10, 0), burn(11, 0)}}
	m, err := New(ChainSyncConfig{Metrics: metrics}, src, (&recorder{}).handler(), nil)
	require.NoError(t, err)

	_, err = m.RunOnce(context.Background())
	require.NoError(t, err)
	src.setFail(errors.New("boom"))
	_, err = m.RunOnce(context.Background())
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cycles.WithLabelValues("test", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cycles.WithLabelValues("test", "failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.events.WithLabelValues("test", "mint")))
	assert.Equal(t, float64(11), testutil.ToFloat64(metrics.cursorVersion.WithLabelValues("test", "all")))
}

func TestCursorHelpers(t *testing.T) {
	c := Cursor{"mint": {Version: 50, NextSequence: 3}, "burn": {Version: 80, NextSequence: 7}}
	clone := c.Clone()
	assert.True(t, c.Equal(clone))
	clone["mint"] = Position{Version: 51}
	assert.False(t, c.Equal(clone))
	assert.Equal(t, uint64(50), c.Get("mint").Version)
	assert.Equal(t, Position{}, c.Get("indexer"))
	assert.Equal(t, uint64(80), c.MaxVersion())
	assert.Equal(t, "{burn=80/7 mint=50/3}", c.String())
}
