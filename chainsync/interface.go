// Implement following interfaces to feed bridge events into an EventMonitor.
package chainsync

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/TEENet-io/bridge-client-aptos/agreement"
	"github.com/samber/lo"
)

// Position is how far one event stream has been consumed.
// Version is the highest ledger version delivered, NextSequence the next
// event sequence number to request (node streams only).
type Position struct {
	Version      uint64 `json:"version"`
	NextSequence uint64 `json:"next_sequence"`
}

// Cursor holds one Position per stream of a source.
type Cursor map[string]Position

func (c Cursor) Clone() Cursor {
	out := make(Cursor, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Get returns the position of a stream, zero when unknown.
func (c Cursor) Get(stream string) Position {
	return c[stream]
}

func (c Cursor) Equal(o Cursor) bool {
	if len(c) != len(o) {
		return false
	}
	for k, v := range c {
		if w, ok := o[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// MaxVersion is the highest version over all streams.
func (c Cursor) MaxVersion() uint64 {
	var max uint64
	for _, p := range c {
		if p.Version > max {
			max = p.Version
		}
	}
	return max
}

func (c Cursor) String() string {
	keys := lo.Keys(c)
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d/%d", k, c[k].Version, c[k].NextSequence))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Batch is the result of one fetch: events ordered by (version, sequence)
// and the cursor to resume from once they are handled.
type Batch struct {
	Events []agreement.BridgeEvent
	Next   Cursor
}

// EventSource fetches bridge events newer than a cursor.
// Sources must not modify the cursor they are given. A failed fetch
// returns an error and no batch.
type EventSource interface {
	Name() string
	FetchSince(ctx context.Context, cursor Cursor) (*Batch, error)
}

// CursorStore persists cursors between runs.
type CursorStore interface {
	LoadCursor(ctx context.Context, source string) (Cursor, bool, error)
	SaveCursor(ctx context.Context, source string, cursor Cursor) error
}
