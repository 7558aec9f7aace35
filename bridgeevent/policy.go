package bridgeevent

import (
	"strings"

	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/cockroachdb/errors"
)

// DecodePolicy decides what happens to malformed fields and records.
//
//	Strict:  a malformed numeric field fails the record, a failed record
//	         fails the whole batch.
//	Lenient: a malformed numeric field decodes as 0 (with a warning), a
//	         failed record is logged and skipped.
//
// Malformed BCS payloads fail the batch under both policies.
type DecodePolicy int

const (
	Strict DecodePolicy = iota
	Lenient
)

func (p DecodePolicy) String() string {
	if p == Lenient {
		return "lenient"
	}
	return "strict"
}

func ParseDecodePolicy(s string) (DecodePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return Strict, nil
	case "lenient":
		return Lenient, nil
	default:
		return Strict, errors.Wrapf(common.ErrConfig, "unknown decode policy %q", s)
	}
}
