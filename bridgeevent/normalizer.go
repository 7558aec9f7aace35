package bridgeevent

import (
	"context"
	"sort"

	"github.com/TEENet-io/bridge-client-aptos/agreement"
	"github.com/samber/lo"
	logger "github.com/sirupsen/logrus"
)

// TxInfo is the provenance of a committed transaction.
type TxInfo struct {
	Version   uint64
	Hash      string
	Timestamp *uint64 // unix seconds
}

// TxResolver looks up a transaction by ledger version.
type TxResolver interface {
	ResolveTransaction(ctx context.Context, version uint64) (*TxInfo, error)
}

// Normalizer completes provenance of decoded events and orders a batch.
type Normalizer struct {
	resolver TxResolver
}

// NewNormalizer with a nil resolver only sorts.
func NewNormalizer(resolver TxResolver) *Normalizer {
	return &Normalizer{resolver: resolver}
}

// Normalize fills missing transaction hashes (and timestamps) of events
// that carry a version, then sorts the batch by (version, sequence).
// A failed lookup leaves the fields empty.
func (n *Normalizer) Normalize(ctx context.Context, events []agreement.BridgeEvent) []agreement.BridgeEvent {
	events = lo.Filter(events, func(ev agreement.BridgeEvent, _ int) bool { return ev != nil })

	if n.resolver != nil {
		missing := lo.Filter(events, func(ev agreement.BridgeEvent, _ int) bool {
			m := ev.Meta()
			return m.Version != nil && (m.TransactionHash == nil || m.Timestamp == nil)
		})
		versions := lo.Uniq(lo.Map(missing, func(ev agreement.BridgeEvent, _ int) uint64 {
			return *ev.Meta().Version
		}))

		resolved := make(map[uint64]*TxInfo, len(versions))
		for _, v := range versions {
			if ctx.Err() != nil {
				break
			}
			info, err := n.resolver.ResolveTransaction(ctx, v)
			if err != nil {
				logger.WithField("version", v).WithError(err).Warn("transaction lookup failed, hash left empty")
				continue
			}
			resolved[v] = info
		}

		for _, ev := range missing {
			info, ok := resolved[*ev.Meta().Version]
			if !ok || info == nil {
				continue
			}
			m := ev.Meta()
			if m.TransactionHash == nil && info.Hash != "" {
				m.TransactionHash = agreement.StringPtr(info.Hash)
			}
			if m.Timestamp == nil && info.Timestamp != nil {
				m.Timestamp = agreement.Uint64Ptr(*info.Timestamp)
			}
		}
	}

	SortEvents(events)
	return events
}

// SortEvents orders events by ascending (version, sequence number).
// Missing values sort first, the sort is stable.
func SortEvents(events []agreement.BridgeEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return lessMeta(events[i].Meta(), events[j].Meta())
	})
}

func lessMeta(a, b *agreement.EventMeta) bool {
	if c := cmpOpt(a.Version, b.Version); c != 0 {
		return c < 0
	}
	return cmpOpt(a.SequenceNumber, b.SequenceNumber) < 0
}

func cmpOpt(a, b *uint64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}
