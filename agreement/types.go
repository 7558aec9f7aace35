// Golbal Agreement on types

package agreement

import (
	"fmt"

	"github.com/TEENet-io/bridge-client-aptos/common"
)

// EventKind names the bridge event variants.
type EventKind string

const (
	KindMint         EventKind = "mint"
	KindBurn         EventKind = "burn"
	KindWithdrawByLP EventKind = "withdraw_by_lp"
)

// AllKinds in dispatch order of the node event streams.
var AllKinds = []EventKind{KindMint, KindBurn, KindWithdrawByLP}

// EventMeta is the provenance of an event. Availability of each
// field depends on the source the event came from, nil means unknown.
type EventMeta struct {
	Version         *uint64 `json:"version,omitempty"`         // ledger version
	SequenceNumber  *uint64 `json:"sequence_number,omitempty"` // position inside the event stream
	Timestamp       *uint64 `json:"timestamp,omitempty"`       // unix seconds
	TransactionHash *string `json:"transaction_hash,omitempty"`
}

func (m *EventMeta) Meta() *EventMeta {
	return m
}

// VersionOrZero is the ledger version or 0 when unknown.
func (m *EventMeta) VersionOrZero() uint64 {
	if m.Version == nil {
		return 0
	}
	return *m.Version
}

func (m *EventMeta) String() string {
	s := "version=" + optU64(m.Version) + " seq=" + optU64(m.SequenceNumber) + " ts=" + optU64(m.Timestamp)
	if m.TransactionHash != nil {
		s += " tx=" + common.Shorten(*m.TransactionHash, 6)
	}
	return s
}

// BridgeEvent is one of *MintEvent, *BurnEvent or *WithdrawByLPEvent.
type BridgeEvent interface {
	Kind() EventKind
	Meta() *EventMeta
	String() string
}

// MintPayload: BTC deposit credited on aptos.
type MintPayload struct {
	To          string `json:"to_address"`
	Amount      uint64 `json:"amount"` // satoshi
	BtcTxID     string `json:"btc_tx_id"`
	BtcBlockNum uint64 `json:"btc_block_num"`
}

type MintEvent struct {
	EventMeta
	MintPayload
}

func (ev *MintEvent) Kind() EventKind { return KindMint }

func (ev *MintEvent) String() string {
	return fmt.Sprintf("Mint: %s to %s (btc tx %s, block %d) [%s]",
		common.FormatBTCAmount(ev.Amount), ev.To, common.Shorten(ev.BtcTxID, 6), ev.BtcBlockNum, ev.EventMeta.String())
}

// BurnPayload: redeem request towards a BTC address.
type BurnPayload struct {
	From       string `json:"from"`
	BtcAddress string `json:"btc_address"`
	FeeRate    uint64 `json:"fee_rate"` // sat/vbyte
	Amount     uint64 `json:"amount"`   // satoshi
	OperatorID uint64 `json:"operator_id"`
}

type BurnEvent struct {
	EventMeta
	BurnPayload
}

func (ev *BurnEvent) Kind() EventKind { return KindBurn }

func (ev *BurnEvent) String() string {
	return fmt.Sprintf("Burn: %s from %s to %s (fee rate %d, operator %d) [%s]",
		common.FormatBTCAmount(ev.Amount), ev.From, ev.BtcAddress, ev.FeeRate, ev.OperatorID, ev.EventMeta.String())
}

// WithdrawByLPPayload: withdrawal fronted by a liquidity provider.
type WithdrawByLPPayload struct {
	From             string `json:"from"`
	WithdrawID       uint64 `json:"withdraw_id"`
	BtcAddress       string `json:"btc_address"`
	FeeRate          uint64 `json:"fee_rate"`
	Amount           uint64 `json:"amount"`
	LPID             uint64 `json:"lp_id"`
	ReceiveMinAmount uint64 `json:"receive_min_amount"`
}

type WithdrawByLPEvent struct {
	EventMeta
	WithdrawByLPPayload
}

func (ev *WithdrawByLPEvent) Kind() EventKind { return KindWithdrawByLP }

func (ev *WithdrawByLPEvent) String() string {
	return fmt.Sprintf("WithdrawByLP #%d: %s from %s to %s via lp %d (min %d, fee rate %d) [%s]",
		ev.WithdrawID, common.FormatBTCAmount(ev.Amount), ev.From, ev.BtcAddress, ev.LPID,
		ev.ReceiveMinAmount, ev.FeeRate, ev.EventMeta.String())
}

func optU64(v *uint64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

// Uint64Ptr and StringPtr build optional fields.
func Uint64Ptr(v uint64) *uint64 { return &v }

func StringPtr(s string) *string { return &s }
