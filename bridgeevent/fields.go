package bridgeevent

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/cockroachdb/errors"
)

// ParseU64 reads an unsigned 64-bit value from a JSON field. Decimal
// strings are parsed exactly; JSON numbers are accepted when integral
// and exactly representable.
func ParseU64(v any) (uint64, error) {
	switch n := v.(type) {
	case nil:
		return 0, errors.Wrap(common.ErrDeserialization, "missing numeric value")
	case string:
		u, err := strconv.ParseUint(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, errors.Mark(errors.Wrapf(err, "numeric string %q", n), common.ErrDeserialization)
		}
		return u, nil
	case json.Number:
		return ParseU64(string(n))
	case float64:
		if n < 0 || n != math.Trunc(n) || n > 1<<53 {
			return 0, errors.Wrapf(common.ErrDeserialization, "number %v is not an exact u64", n)
		}
		return uint64(n), nil
	case uint64:
		return n, nil
	case int64:
		if n < 0 {
			return 0, errors.Wrapf(common.ErrDeserialization, "negative number %d", n)
		}
		return uint64(n), nil
	case int:
		if n < 0 {
			return 0, errors.Wrapf(common.ErrDeserialization, "negative number %d", n)
		}
		return uint64(n), nil
	default:
		return 0, errors.Wrapf(common.ErrDeserialization, "unexpected numeric type %T", v)
	}
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

// ParseTimestamp converts a timestamp field to unix seconds.
// Strings without a zone are read as UTC. Numbers are seconds, unless they
// are too large to be, then milliseconds or microseconds (aptos ledger
// timestamps are microseconds). Absent or unparsable input yields nil.
func ParseTimestamp(v any) *uint64 {
	switch t := v.(type) {
	case nil:
		return nil
	case *uint64:
		return t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return scaleUnix(u)
		}
		for _, layout := range timestampLayouts {
			parsed, err := time.ParseInLocation(layout, s, time.UTC)
			if err != nil {
				continue
			}
			if parsed.Unix() < 0 {
				return nil
			}
			secs := uint64(parsed.Unix())
			return &secs
		}
		return nil
	default:
		u, err := ParseU64(v)
		if err != nil {
			return nil
		}
		return scaleUnix(u)
	}
}

func scaleUnix(u uint64) *uint64 {
	switch {
	case u >= 1e15:
		u /= 1e6
	case u >= 1e12:
		u /= 1e3
	}
	return &u
}

// CanonicalAddress renders an account address in its canonical literal
// form. Input that is not an address is returned unchanged.
func CanonicalAddress(s string) string {
	var addr aptos.AccountAddress
	if err := addr.ParseStringRelaxed(strings.TrimSpace(s)); err != nil {
		return s
	}
	return addr.String()
}

// AddressFromBytes renders raw address bytes. 32 byte input becomes the
// canonical literal, anything else falls back to plain 0x hex.
func AddressFromBytes(b []byte) string {
	if len(b) != len(aptos.AccountAddress{}) {
		return common.ByteSliceToHexStr(b)
	}
	var addr aptos.AccountAddress
	copy(addr[:], b)
	return addr.String()
}

// normalizeHex lower-cases a hex literal and adds the 0x prefix.
// Non-hex strings are returned unchanged.
func normalizeHex(s string) string {
	raw := common.Trim0xPrefix(strings.TrimSpace(s))
	if !common.IsHexString(raw) {
		return s
	}
	return "0x" + strings.ToLower(raw)
}
