package bridgeevent

import (
	"github.com/TEENet-io/bridge-client-aptos/agreement"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
	"github.com/cockroachdb/errors"
)

const addressLength = 32

// On-chain layouts:
//
//	Mint         { to: address, amount: u64, tx_id: vector<u8>, block_num: u64 }
//	Burn         { from: address, btc_address: String, fee_rate: u64, amount: u64, operator_id: u64 }
//	WithdrawByLP { from: address, withdraw_id: u64, btc_address: String, fee_rate: u64,
//	               amount: u64, lp_id: u64, receive_min_amount: u64 }
func decodeBCS(kind agreement.EventKind, data []byte) (agreement.BridgeEvent, error) {
	des := bcs.NewDeserializer(data)

	var ev agreement.BridgeEvent
	switch kind {
	case agreement.KindMint:
		mint := &agreement.MintEvent{}
		mint.To = AddressFromBytes(des.ReadFixedBytes(addressLength))
		mint.Amount = des.U64()
		mint.BtcTxID = common.ByteSliceToHexStr(des.ReadBytes())
		mint.BtcBlockNum = des.U64()
		ev = mint
	case agreement.KindBurn:
		burn := &agreement.BurnEvent{}
		burn.From = AddressFromBytes(des.ReadFixedBytes(addressLength))
		burn.BtcAddress = des.ReadString()
		burn.FeeRate = des.U64()
		burn.Amount = des.U64()
		burn.OperatorID = des.U64()
		ev = burn
	case agreement.KindWithdrawByLP:
		w := &agreement.WithdrawByLPEvent{}
		w.From = AddressFromBytes(des.ReadFixedBytes(addressLength))
		w.WithdrawID = des.U64()
		w.BtcAddress = des.ReadString()
		w.FeeRate = des.U64()
		w.Amount = des.U64()
		w.LPID = des.U64()
		w.ReceiveMinAmount = des.U64()
		ev = w
	default:
		return nil, errors.Newf("no bcs layout for %s", kind)
	}

	if err := des.Error(); err != nil {
		return nil, err
	}
	if des.Remaining() != 0 {
		return nil, errors.Newf("%d trailing bytes", des.Remaining())
	}
	return ev, nil
}
