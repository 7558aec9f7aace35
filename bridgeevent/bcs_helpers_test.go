package bridgeevent

import (
	"github.com/TEENet-io/bridge-client-aptos/agreement"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
)

// encodeMint, encodeBurn and encodeWithdrawByLP build the on-chain BCS
// layout of an event payload for decoder tests.
func encodeMint(p *agreement.MintPayload) ([]byte, error) {
	to, err := parseAddress(p.To)
	if err != nil {
		return nil, err
	}
	txID, err := common.HexStrToByteSlice(p.BtcTxID)
	if err != nil {
		return nil, err
	}
	ser := &bcs.Serializer{}
	ser.FixedBytes(to[:])
	ser.U64(p.Amount)
	ser.WriteBytes(txID)
	ser.U64(p.BtcBlockNum)
	return ser.ToBytes(), ser.Error()
}

func encodeBurn(p *agreement.BurnPayload) ([]byte, error) {
	from, err := parseAddress(p.From)
	if err != nil {
		return nil, err
	}
	ser := &bcs.Serializer{}
	ser.FixedBytes(from[:])
	ser.WriteString(p.BtcAddress)
	ser.U64(p.FeeRate)
	ser.U64(p.Amount)
	ser.U64(p.OperatorID)
	return ser.ToBytes(), ser.Error()
}

func encodeWithdrawByLP(p *agreement.WithdrawByLPPayload) ([]byte, error) {
	from, err := parseAddress(p.From)
	if err != nil {
		return nil, err
	}
	ser := &bcs.Serializer{}
	ser.FixedBytes(from[:])
	ser.U64(p.WithdrawID)
	ser.WriteString(p.BtcAddress)
	ser.U64(p.FeeRate)
	ser.U64(p.Amount)
	ser.U64(p.LPID)
	ser.U64(p.ReceiveMinAmount)
	return ser.ToBytes(), ser.Error()
}
