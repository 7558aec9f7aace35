package common

import (
	"strings"

	"github.com/cockroachdb/errors"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// The returned string has No 0x prefix
func ByteSliceToPureHexStr(b []byte) string {
	return Trim0xPrefix(ethcommon.Bytes2Hex(b))
}

// ByteSliceToHexStr returns the 0x prefixed hex form of b.
func ByteSliceToHexStr(b []byte) string {
	return Prepend0xPrefix(ethcommon.Bytes2Hex(b))
}

// HexStrToByteSlice decodes a hex string (with/without prefix 0x).
// Invalid input yields an error instead of silently dropping bytes.
func HexStrToByteSlice(hexStr string) ([]byte, error) {
	s := Trim0xPrefix(hexStr)
	if len(s)%2 == 1 {
		s = "0" + s
	}
	if !IsHexString(s) {
		return nil, errors.Wrapf(ErrInvalidArgument, "not a hex string: %q", hexStr)
	}
	return ethcommon.Hex2Bytes(s), nil
}

// Trim 0x or 0X prefix off the string.
func Trim0xPrefix(str string) string {
	s := strings.TrimPrefix(str, "0x")
	return strings.TrimPrefix(s, "0X")
}

func Prepend0xPrefix(str string) string {
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		return str
	}
	return "0x" + str
}

// Shorten shortens a hex string so that both sides have n characters and
// the rest is replaced with "..."
func Shorten(hexStr string, n int) string {
	str := Trim0xPrefix(hexStr)

	if len(str) <= n*2 {
		return Prepend0xPrefix(str)
	}
	return Prepend0xPrefix(str[:n] + "..." + str[len(str)-n:])
}

func IsHexChar(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// IsHexString reports whether s (without prefix) only holds hex digits.
func IsHexString(s string) bool {
	for _, c := range s {
		if !IsHexChar(c) {
			return false
		}
	}
	return true
}

// EnsureSafeAddressHexString ensures that the hex string is safe to use
// as an account address literal.
// It can contain 0x as prefix or not.
// It can contain a-f, A-F, 0-9
// It doesn't contain any other characters
func EnsureSafeAddressHexString(hexStr string) bool {
	hexStr = Trim0xPrefix(hexStr)
	if len(hexStr) == 0 || len(hexStr) > 64 {
		return false
	}
	return IsHexString(hexStr)
}
