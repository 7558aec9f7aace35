package bridgeevent

import (
	"strings"

	"github.com/TEENet-io/bridge-client-aptos/agreement"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/cockroachdb/errors"
)

const DefaultEventModule = "bridge"

// Move struct names of the bridge events.
var eventStructNames = map[string]agreement.EventKind{
	"Mint":         agreement.KindMint,
	"Burn":         agreement.KindBurn,
	"WithdrawByLP": agreement.KindWithdrawByLP,
}

var kindStructNames = map[agreement.EventKind]string{
	agreement.KindMint:         "Mint",
	agreement.KindBurn:         "Burn",
	agreement.KindWithdrawByLP: "WithdrawByLP",
}

// EventTypes recognizes "<address>::<module>::<Struct>" type tags of the
// bridge events emitted by one contract.
type EventTypes struct {
	address aptos.AccountAddress
	module  string
}

func NewEventTypes(contractAddress, module string) (*EventTypes, error) {
	var addr aptos.AccountAddress
	if err := addr.ParseStringRelaxed(contractAddress); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "contract address %q", contractAddress), common.ErrInvalidAddress)
	}
	if module == "" {
		module = DefaultEventModule
	}
	return &EventTypes{address: addr, module: module}, nil
}

func (t *EventTypes) Address() aptos.AccountAddress {
	return t.address
}

func (t *EventTypes) Module() string {
	return t.module
}

// TypeTag returns the fully qualified type of an event kind.
func (t *EventTypes) TypeTag(kind agreement.EventKind) string {
	return t.address.String() + "::" + t.module + "::" + kindStructNames[kind]
}

// Match resolves a type tag to an event kind. Addresses are compared by
// value, so "0x1" and its 64 digit form are the same.
func (t *EventTypes) Match(typeTag string) (agreement.EventKind, bool) {
	parts := strings.Split(strings.TrimSpace(typeTag), "::")
	if len(parts) != 3 {
		return "", false
	}
	if parts[1] != t.module {
		return "", false
	}
	kind, ok := eventStructNames[parts[2]]
	if !ok {
		return "", false
	}
	var addr aptos.AccountAddress
	if err := addr.ParseStringRelaxed(parts[0]); err != nil {
		return "", false
	}
	if addr != t.address {
		return "", false
	}
	return kind, true
}

func parseAddress(s string) (aptos.AccountAddress, error) {
	var addr aptos.AccountAddress
	if err := addr.ParseStringRelaxed(s); err != nil {
		return addr, errors.Mark(errors.Wrapf(err, "account address %q", s), common.ErrInvalidAddress)
	}
	return addr, nil
}
