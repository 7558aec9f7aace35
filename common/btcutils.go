package common

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
)

func IsValidBtcAddress(address string, cfg *chaincfg.Params) bool {
	addr, err := btcutil.DecodeAddress(address, cfg)
	if err != nil {
		return false
	}

	// DecodeAddress 不校验 segwit 地址的网络
	return addr.IsForNet(cfg)
}

// ValidateBtcAddress is IsValidBtcAddress with a classified error.
func ValidateBtcAddress(address string, cfg *chaincfg.Params) error {
	if address == "" {
		return errors.Wrap(ErrInvalidAddress, "empty btc address")
	}
	if cfg == nil {
		cfg = MainNetParams()
	}
	addr, err := btcutil.DecodeAddress(address, cfg)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "btc address %q on %s", address, cfg.Name), ErrInvalidAddress)
	}
	if !addr.IsForNet(cfg) {
		return errors.Wrapf(ErrInvalidAddress, "btc address %q is not for %s", address, cfg.Name)
	}
	return nil
}

func MainNetParams() *chaincfg.Params {
	return &chaincfg.MainNetParams
}

// BtcNetParams maps a network name to its chain parameters.
func BtcNetParams(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(name) {
	case "", "mainnet", "main":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	default:
		return nil, errors.Wrapf(ErrConfig, "unknown btc network %q", name)
	}
}

// BtcTxIDToBytes converts a display-order txid into the internal byte
// order used inside transactions and merkle proofs.
func BtcTxIDToBytes(txid string) ([]byte, error) {
	h, err := chainhash.NewHashFromStr(Trim0xPrefix(txid))
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "txid %q", txid), ErrInvalidArgument)
	}
	return h.CloneBytes(), nil
}

// BtcTxIDFromBytes is the inverse of BtcTxIDToBytes. Input that is not
// 32 bytes long is rendered as plain hex.
func BtcTxIDFromBytes(b []byte) string {
	h, err := chainhash.NewHash(b)
	if err != nil {
		return ByteSliceToPureHexStr(b)
	}
	return h.String()
}
