package bridgeevent

import (
	"github.com/TEENet-io/bridge-client-aptos/agreement"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/cockroachdb/errors"
	logger "github.com/sirupsen/logrus"
)

// ErrMalformedBCS marks BCS payloads that do not match the layout of
// their type tag. Such records always fail the batch.
var ErrMalformedBCS = errors.New("malformed bcs event payload")

// JSON field names per event, first match wins. The indexer tables and
// the on-chain structs do not use the same names.
var (
	mintToFields    = []string{"to_address", "to", "receiver"}
	mintAmountField = []string{"amount", "value"}
	mintTxIDFields  = []string{"btc_tx_id", "tx_id"}
	mintBlockFields = []string{"btc_block_num", "block_num"}
	fromFields      = []string{"from", "sender", "from_address"}
	btcAddrFields   = []string{"btc_address", "receiver"}
)

type Decoder struct {
	types  *EventTypes
	policy DecodePolicy
}

func NewDecoder(types *EventTypes, policy DecodePolicy) *Decoder {
	return &Decoder{types: types, policy: policy}
}

func (d *Decoder) Types() *EventTypes {
	return d.types
}

func (d *Decoder) Policy() DecodePolicy {
	return d.policy
}

// Decode turns one record into a bridge event. A record whose type is not
// a bridge event yields (nil, nil).
func (d *Decoder) Decode(rec *RawRecord) (agreement.BridgeEvent, error) {
	if rec == nil {
		return nil, nil
	}
	kind, ok := d.types.Match(rec.Type)
	if !ok {
		return nil, nil
	}

	var (
		ev  agreement.BridgeEvent
		err error
	)
	if rec.BCS != nil {
		ev, err = decodeBCS(kind, rec.BCS)
		if err != nil {
			return nil, errors.Mark(errors.Mark(errors.Wrapf(err, "decode %s", rec.Type), ErrMalformedBCS), common.ErrDeserialization)
		}
	} else {
		ev, err = d.decodeJSON(kind, rec.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", rec.Type)
		}
	}

	meta := ev.Meta()
	meta.Version = rec.Version
	meta.SequenceNumber = rec.SequenceNumber
	meta.TransactionHash = rec.TransactionHash
	meta.Timestamp = ParseTimestamp(rec.Timestamp)
	if meta.Timestamp == nil && rec.Data != nil {
		meta.Timestamp = ParseTimestamp(rec.Data["timestamp"])
	}
	return ev, nil
}

// DecodeAll decodes a batch in order, dropping records that are not
// bridge events. Record failures abort under Strict and are skipped under
// Lenient, except malformed BCS which always aborts.
func (d *Decoder) DecodeAll(recs []*RawRecord) ([]agreement.BridgeEvent, error) {
	events := make([]agreement.BridgeEvent, 0, len(recs))
	for _, rec := range recs {
		ev, err := d.Decode(rec)
		if err != nil {
			if d.policy == Strict || errors.Is(err, ErrMalformedBCS) {
				return nil, err
			}
			logger.WithFields(logger.Fields{
				"type":    rec.Type,
				"version": optU64(rec.Version),
				"seq":     optU64(rec.SequenceNumber),
			}).WithError(err).Warn("skipping malformed bridge event")
			continue
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (d *Decoder) decodeJSON(kind agreement.EventKind, data map[string]any) (agreement.BridgeEvent, error) {
	if data == nil {
		return nil, errors.Wrap(common.ErrDeserialization, "event has no payload")
	}
	f := &fieldReader{data: data, policy: d.policy}

	switch kind {
	case agreement.KindMint:
		ev := &agreement.MintEvent{}
		ev.To = CanonicalAddress(f.str(mintToFields...))
		ev.Amount = f.u64(mintAmountField...)
		ev.BtcTxID = normalizeHex(f.str(mintTxIDFields...))
		ev.BtcBlockNum = f.u64(mintBlockFields...)
		return ev, f.err
	case agreement.KindBurn:
		ev := &agreement.BurnEvent{}
		ev.From = CanonicalAddress(f.str(fromFields...))
		ev.BtcAddress = f.str(btcAddrFields...)
		ev.FeeRate = f.u64("fee_rate")
		ev.Amount = f.u64("amount")
		ev.OperatorID = f.u64("operator_id")
		return ev, f.err
	case agreement.KindWithdrawByLP:
		ev := &agreement.WithdrawByLPEvent{}
		ev.From = CanonicalAddress(f.str(fromFields...))
		ev.WithdrawID = f.u64("withdraw_id")
		ev.BtcAddress = f.str(btcAddrFields...)
		ev.FeeRate = f.u64("fee_rate")
		ev.Amount = f.u64("amount")
		ev.LPID = f.u64("lp_id")
		ev.ReceiveMinAmount = f.u64("receive_min_amount")
		return ev, f.err
	}
	return nil, errors.Newf("unsupported event kind %s", kind)
}

// fieldReader keeps the first error so decoders read straight through.
type fieldReader struct {
	data   map[string]any
	policy DecodePolicy
	err    error
}

func (f *fieldReader) lookup(keys []string) (string, any, bool) {
	for _, k := range keys {
		if v, ok := f.data[k]; ok && v != nil {
			return k, v, true
		}
	}
	return keys[0], nil, false
}

func (f *fieldReader) str(keys ...string) string {
	key, v, ok := f.lookup(keys)
	if !ok {
		f.fail(errors.Wrapf(common.ErrDeserialization, "missing field %q", key))
		return ""
	}
	s, ok := v.(string)
	if !ok {
		f.fail(errors.Wrapf(common.ErrDeserialization, "field %q is %T, want string", key, v))
		return ""
	}
	return s
}

func (f *fieldReader) u64(keys ...string) uint64 {
	key, v, _ := f.lookup(keys)
	n, err := ParseU64(v)
	if err == nil {
		return n
	}
	if f.policy == Lenient {
		logger.WithFields(logger.Fields{"field": key, "value": v}).Warn("numeric field defaulted to 0")
		return 0
	}
	f.fail(errors.Wrapf(err, "field %q", key))
	return 0
}

func (f *fieldReader) fail(err error) {
	if f.err == nil {
		f.err = err
	}
}

func optU64(v *uint64) any {
	if v == nil {
		return nil
	}
	return *v
}
