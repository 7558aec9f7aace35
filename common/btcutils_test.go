package common

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidBtcAddress(t *testing.T) {
	assert.True(t, IsValidBtcAddress("bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", MainNetParams()))
	assert.True(t, IsValidBtcAddress("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", MainNetParams()))
	assert.False(t, IsValidBtcAddress("not-an-address", MainNetParams()))

	err := ValidateBtcAddress("bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", &chaincfg.TestNet3Params)
	assert.True(t, errors.Is(err, ErrInvalidAddress))
	assert.True(t, errors.Is(ValidateBtcAddress("", nil), ErrInvalidAddress))
}

func TestBtcAddressNetwork(t *testing.T) {
	const mainnetSegwit = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"
	const testnetSegwit = "tb1qw508d6qejxtdg4y5r3zarvary0c5xw7kxpjzsx"

	assert.True(t, IsValidBtcAddress(testnetSegwit, &chaincfg.TestNet3Params))
	assert.False(t, IsValidBtcAddress(mainnetSegwit, &chaincfg.TestNet3Params))
	assert.False(t, IsValidBtcAddress(testnetSegwit, MainNetParams()))

	require.NoError(t, ValidateBtcAddress(testnetSegwit, &chaincfg.TestNet3Params))
	assert.True(t, errors.Is(ValidateBtcAddress(testnetSegwit, nil), ErrInvalidAddress))
	assert.True(t, errors.Is(ValidateBtcAddress(mainnetSegwit, &chaincfg.TestNet3Params), ErrInvalidAddress))
	assert.True(t, errors.Is(ValidateBtcAddress("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", &chaincfg.TestNet3Params), ErrInvalidAddress))
}

func TestBtcNetParams(t *testing.T) {
	p, err := BtcNetParams("testnet")
	require.NoError(t, err)
	assert.Equal(t, chaincfg.TestNet3Params.Name, p.Name)

	_, err = BtcNetParams("litecoin")
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestBtcTxIDRoundTrip(t *testing.T) {
	txid := "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
	b, err := BtcTxIDToBytes(txid)
	require.NoError(t, err)
	require.Len(t, b, 32)
	// internal order is reversed
	assert.Equal(t, byte(0x3b), b[0])
	assert.Equal(t, txid, BtcTxIDFromBytes(b))

	assert.Equal(t, "010203", BtcTxIDFromBytes([]byte{1, 2, 3}))
}

func TestHexHelpers(t *testing.T) {
	b, err := HexStrToByteSlice("0x0a0b")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x0b}, b)

	b, err = HexStrToByteSlice("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0xbc}, b)

	_, err = HexStrToByteSlice("0xzz")
	assert.Error(t, err)

	assert.Equal(t, "0x0a0b", ByteSliceToHexStr([]byte{0x0a, 0x0b}))
	assert.Equal(t, "0x1234...cdef", Shorten("0x1234567890abcdef", 4))
	assert.True(t, EnsureSafeAddressHexString("0x1"))
	assert.False(t, EnsureSafeAddressHexString("0x"))
	assert.False(t, EnsureSafeAddressHexString("0xg1"))
}
