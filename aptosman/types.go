package aptosman

import (
	"encoding/json"

	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
)

// 比特币脚本类型
type ScriptType uint8

const (
	P2PKH ScriptType = iota
	P2SH
	P2WPKH
	P2WSH
	P2TR
)

func (s ScriptType) String() string {
	switch s {
	case P2PKH:
		return "p2pkh"
	case P2SH:
		return "p2sh"
	case P2WPKH:
		return "p2wpkh"
	case P2WSH:
		return "p2wsh"
	case P2TR:
		return "p2tr"
	}
	return "unknown"
}

// TxProof 比特币交易包含证明
type TxProof struct {
	BlockHeader []byte
	TxID        []byte // internal byte order
	TxIndex     uint64
	MerkleProof [][]byte
	RawTx       []byte
}

func (p *TxProof) MarshalBCS(ser *bcs.Serializer) {
	ser.WriteBytes(p.BlockHeader)
	ser.WriteBytes(p.TxID)
	ser.U64(p.TxIndex)
	ser.Uleb128(uint32(len(p.MerkleProof)))
	for _, node := range p.MerkleProof {
		ser.WriteBytes(node)
	}
	ser.WriteBytes(p.RawTx)
}

// Peg 铸币凭证: 一笔已确认的比特币存款
type Peg struct {
	To             aptos.AccountAddress
	Value          uint64 // satoshi
	BlockNum       uint64
	InclusionProof TxProof
	TxOutIx        uint64
	DestScriptHash []byte
	ScriptType     ScriptType
}

func (p *Peg) MarshalBCS(ser *bcs.Serializer) {
	p.To.MarshalBCS(ser)
	ser.U64(p.Value)
	ser.U64(p.BlockNum)
	ser.Struct(&p.InclusionProof)
	ser.U64(p.TxOutIx)
	ser.WriteBytes(p.DestScriptHash)
	ser.U8(uint8(p.ScriptType))
}

// 注册LP参数
type RegisterLPParams struct {
	LPID        uint64
	BitcoinAddr string
	LPAddr      string
	LPFee       uint64 // basis points
}

// LP代付提现参数
type WithdrawByLPParams struct {
	WithdrawID         uint64
	BtcAddress         string
	ReceiverScriptHash []byte
	ReceiveMinAmount   uint64
	LPID               uint64
	Amount             uint64
	FeeRate            uint64
}

// LP提现认领参数
type ClaimLPWithdrawParams struct {
	WithdrawID     uint64
	BlockNum       uint64
	TxOutIx        uint64
	AmountSats     uint64
	InclusionProof TxProof
}

// 燃烧参数
type BurnParams struct {
	BtcAddress string
	FeeRate    uint64
	Amount     uint64
	OperatorID uint64
}

// BridgeConfig is the on-chain configuration read through view functions.
type BridgeConfig struct {
	Owner            string `json:"owner"`
	MinConfirmations uint64 `json:"min_confirmations"`
	MaxPegsPerMint   uint64 `json:"max_pegs_per_mint"`
	MaxBtcPerMint    uint64 `json:"max_btc_per_mint"`
	MinBtcPerMint    uint64 `json:"min_btc_per_mint"`
	MaxBtcPerBurn    uint64 `json:"max_btc_per_burn"`
	MinBtcPerBurn    uint64 `json:"min_btc_per_burn"`
	BurnPaused       bool   `json:"burn_paused"`
	MaxFeeRate       uint64 `json:"max_fee_rate"`
}

type LPWithdrawInfo struct {
	ID                 uint64 `json:"id"`
	WithdrawAmount     uint64 `json:"withdraw_amount"`
	ReceiverAddr       string `json:"receiver_addr"`
	LPID               uint64 `json:"lp_id"`
	ReceiverScriptHash string `json:"receiver_script_hash"`
	ReceiveMinAmount   uint64 `json:"receive_min_amount"`
	FeeRate            uint64 `json:"fee_rate"`
	Timestamp          uint64 `json:"timestamp"`
}

// 交易状态
type TxState string

const (
	TxPending TxState = "pending"
	TxSuccess TxState = "success"
	TxFailed  TxState = "failed"
	TxUnknown TxState = "not_found"
)

type TransactionStatus struct {
	Hash     string  `json:"hash"`
	State    TxState `json:"state"`
	Version  *uint64 `json:"version,omitempty"`
	VmStatus string  `json:"vm_status,omitempty"`
}

// LedgerInfo is the node index response.
type LedgerInfo struct {
	ChainID             uint8  `json:"chain_id"`
	Epoch               string `json:"epoch"`
	LedgerVersion       string `json:"ledger_version"`
	OldestLedgerVersion string `json:"oldest_ledger_version"`
	LedgerTimestamp     string `json:"ledger_timestamp"`
	BlockHeight         string `json:"block_height"`
}

// EventGUID identifies an event stream.
type EventGUID struct {
	CreationNumber string `json:"creation_number"`
	AccountAddress string `json:"account_address"`
}

// Event as returned by the node REST api.
type Event struct {
	Version        string          `json:"version,omitempty"`
	GUID           EventGUID       `json:"guid"`
	SequenceNumber string          `json:"sequence_number"`
	Type           string          `json:"type"`
	Data           json.RawMessage `json:"data"`
}

// Transaction as returned by the node REST api. Pending transactions
// have no version.
type Transaction struct {
	Type      string  `json:"type"`
	Hash      string  `json:"hash"`
	Version   string  `json:"version,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"` // microseconds
	Success   bool    `json:"success"`
	VmStatus  string  `json:"vm_status,omitempty"`
	Sender    string  `json:"sender,omitempty"`
	Events    []Event `json:"events,omitempty"`
}
