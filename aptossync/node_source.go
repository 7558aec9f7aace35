package aptossync

import (
	"context"
	"strconv"

	"github.com/TEENet-io/bridge-client-aptos/agreement"
	"github.com/TEENet-io/bridge-client-aptos/aptosman"
	"github.com/TEENet-io/bridge-client-aptos/bridgeevent"
	"github.com/TEENet-io/bridge-client-aptos/chainsync"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	logger "github.com/sirupsen/logrus"
)

// EventHandleReader reads an account event handle, see aptosman.NodeClient.
type EventHandleReader interface {
	EventsByHandle(ctx context.Context, account, handleStruct, field string, start *uint64, limit uint64) ([]aptosman.Event, error)
}

type stream struct {
	kind  agreement.EventKind
	key   string
	field string
}

// NodeSource follows the bridge event handles through the node REST api,
// one cursor stream per event kind.
type NodeSource struct {
	cfg        NodeSourceConfig
	reader     EventHandleReader
	decoder    *bridgeevent.Decoder
	normalizer *bridgeevent.Normalizer
	account    string
	handle     string
	streams    []stream
}

var _ chainsync.EventSource = (*NodeSource)(nil)

func NewNodeSource(cfg NodeSourceConfig, reader EventHandleReader, decoder *bridgeevent.Decoder, normalizer *bridgeevent.Normalizer) (*NodeSource, error) {
	if reader == nil || decoder == nil {
		return nil, errors.New("node source needs a reader and a decoder")
	}
	if cfg.Name == "" {
		cfg.Name = DefaultNodeSourceName
	}
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = []agreement.EventKind{agreement.KindMint, agreement.KindBurn}
	}
	if normalizer == nil {
		normalizer = bridgeevent.NewNormalizer(nil)
	}

	types := decoder.Types()
	contract := types.Address()
	handle := cfg.HandleStruct
	if handle == "" {
		handle = contract.String() + "::" + types.Module() + "::" + DefaultHandleStruct
	}

	streams := make([]stream, 0, len(cfg.Kinds))
	for _, kind := range lo.Uniq(cfg.Kinds) {
		field := cfg.Fields[kind]
		if field == "" {
			field = DefaultHandleFields[kind]
		}
		if field == "" {
			return nil, errors.Newf("no event handle field for %s", kind)
		}
		streams = append(streams, stream{kind: kind, key: string(kind), field: field})
	}

	return &NodeSource{
		cfg:        cfg,
		reader:     reader,
		decoder:    decoder,
		normalizer: normalizer,
		account:    contract.String(),
		handle:     handle,
		streams:    streams,
	}, nil
}

func (s *NodeSource) Name() string {
	return s.cfg.Name
}

// FetchSince reads every stream from its next sequence number, so
// re-polling an unchanged cursor yields nothing new. A stream without a
// sequence number yet is positioned by version: events at or below it are
// skipped. Any stream failure fails the whole fetch.
func (s *NodeSource) FetchSince(ctx context.Context, cursor chainsync.Cursor) (*chainsync.Batch, error) {
	next := cursor.Clone()
	var events []agreement.BridgeEvent

	for _, st := range s.streams {
		pos := cursor.Get(st.key)
		evs, newPos, err := s.fetchStream(ctx, st, pos)
		if err != nil {
			return nil, errors.Wrapf(err, "fetch %s events", st.kind)
		}
		events = append(events, evs...)
		if newPos != pos {
			next[st.key] = newPos
		}
	}

	events = s.normalizer.Normalize(ctx, events)
	return &chainsync.Batch{Events: events, Next: next}, nil
}

func (s *NodeSource) fetchStream(ctx context.Context, st stream, pos chainsync.Position) ([]agreement.BridgeEvent, chainsync.Position, error) {
	// 还没有 sequence 的流按 version 定位, 需要翻页直到越过 pos.Version
	bootstrap := pos.NextSequence == 0

	var raw []aptosman.Event
	start := pos.NextSequence
	for {
		page, err := s.reader.EventsByHandle(ctx, s.account, s.handle, st.field, &start, s.cfg.PageSize)
		if err != nil {
			return nil, pos, err
		}
		if len(page) == 0 {
			break
		}
		raw = append(raw, page...)

		last := page[len(page)-1]
		fullPage := s.cfg.PageSize > 0 && uint64(len(page)) == s.cfg.PageSize
		seeking := bootstrap && !pastVersion(last, pos.Version)
		if !fullPage && !seeking {
			break
		}
		seq, err := strconv.ParseUint(last.SequenceNumber, 10, 64)
		if err != nil {
			return nil, pos, errors.Wrapf(err, "sequence number %q", last.SequenceNumber)
		}
		start = seq + 1
	}
	if len(raw) == 0 {
		return nil, pos, nil
	}

	recs, err := aptosman.RawEvents(raw)
	if err != nil {
		return nil, pos, err
	}

	newPos := pos
	fresh := make([]*bridgeevent.RawRecord, 0, len(recs))
	for _, rec := range recs {
		if rec.SequenceNumber != nil && *rec.SequenceNumber+1 > newPos.NextSequence {
			newPos.NextSequence = *rec.SequenceNumber + 1
		}
		if rec.Version == nil || *rec.Version < pos.Version {
			continue
		}
		// 同一交易的事件可能被分页拆开, 已有 sequence 时同 version 的剩余事件仍是新的
		if bootstrap && *rec.Version == pos.Version {
			continue
		}
		if *rec.Version > newPos.Version {
			newPos.Version = *rec.Version
		}
		fresh = append(fresh, rec)
	}

	events, err := s.decoder.DecodeAll(fresh)
	if err != nil {
		return nil, pos, err
	}
	if len(fresh) > 0 {
		logger.WithFields(logger.Fields{
			"stream":  st.key,
			"records": len(fresh),
			"events":  len(events),
			"version": newPos.Version,
		}).Debug("fetched node events")
	}
	return events, newPos, nil
}

// pastVersion reports whether ev sits above version. Unparsable versions
// count as past so paging stops and RawEvents reports the error.
func pastVersion(ev aptosman.Event, version uint64) bool {
	v, err := strconv.ParseUint(ev.Version, 10, 64)
	return err != nil || v > version
}
