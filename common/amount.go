package common

import (
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

const SatoshiPerBitcoin = 100_000_000

var satoshiPerBitcoin = decimal.NewFromInt(SatoshiPerBitcoin)

// FormatBTCAmount renders satoshis as "0.00000000 BTC".
func FormatBTCAmount(sats uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(sats), 0).Div(satoshiPerBitcoin).StringFixed(8) + " BTC"
}

// ParseBTCAmount parses "0.5", "0.5 BTC" or "0.5 btc" into satoshis.
// Precision below one satoshi is truncated.
func ParseBTCAmount(s string) (uint64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimSpace(strings.TrimSuffix(s, "btc"))

	btc, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "invalid btc amount %q", s), ErrInvalidArgument)
	}
	if btc.IsNegative() {
		return 0, errors.Wrapf(ErrInvalidArgument, "btc amount cannot be negative: %s", s)
	}
	sats := btc.Mul(satoshiPerBitcoin).Truncate(0)
	if sats.BigInt().BitLen() > 64 {
		return 0, errors.Wrapf(ErrInvalidArgument, "btc amount overflows uint64: %s", s)
	}
	return sats.BigInt().Uint64(), nil
}

// ValidateFeeRate checks a sat/vbyte fee rate against the contract maximum.
// maxFeeRate == 0 disables the upper bound.
func ValidateFeeRate(feeRate, maxFeeRate uint64) error {
	if feeRate == 0 {
		return errors.Wrap(ErrInvalidArgument, "fee rate cannot be zero")
	}
	if maxFeeRate > 0 && feeRate > maxFeeRate {
		return errors.Wrapf(ErrInvalidArgument, "fee rate %d exceeds maximum %d", feeRate, maxFeeRate)
	}
	return nil
}
