package aptosman

import (
	"context"
	"strconv"

	"github.com/TEENet-io/bridge-client-aptos/agreement"
	"github.com/TEENet-io/bridge-client-aptos/bridgeevent"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/cockroachdb/errors"
)

// EventsByTransactionHash 获取一笔交易中发出的桥事件, 按序号排序.
// 非桥事件被忽略.
func (aptman *Aptosman) EventsByTransactionHash(ctx context.Context, hash string) ([]agreement.BridgeEvent, error) {
	tx, err := aptman.node.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	return aptman.transactionEvents(tx)
}

func (aptman *Aptosman) transactionEvents(tx *Transaction) ([]agreement.BridgeEvent, error) {
	if tx.Type == "pending_transaction" {
		return nil, errors.Wrapf(common.ErrNotFound, "transaction %s is still pending", tx.Hash)
	}
	hash := tx.Hash
	var version *uint64
	if tx.Version != "" {
		v, err := strconv.ParseUint(tx.Version, 10, 64)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "transaction version %q", tx.Version), common.ErrDeserialization)
		}
		version = &v
	}

	recs := make([]*bridgeevent.RawRecord, 0, len(tx.Events))
	for i := range tx.Events {
		ev := tx.Events[i]
		if ev.Version == "" && version != nil {
			ev.Version = strconv.FormatUint(*version, 10)
		}
		rec, err := rawEvent(&ev, &hash, tx.Timestamp)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	events, err := aptman.decoder.DecodeAll(recs)
	if err != nil {
		return nil, errors.Wrapf(err, "decode events of transaction %s", hash)
	}
	bridgeevent.SortEvents(events)
	return events, nil
}
