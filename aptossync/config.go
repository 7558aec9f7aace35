package aptossync

import (
	"github.com/TEENet-io/bridge-client-aptos/agreement"
)

const (
	DefaultNodeSourceName    = "aptos-node"
	DefaultIndexerSourceName = "aptos-indexer"
	DefaultHandleStruct      = "BridgeEvents"

	// IndexerStream is the single cursor stream of the indexer source.
	IndexerStream = "indexer"
)

// Event handle fields of the BridgeEvents resource, per kind.
var DefaultHandleFields = map[agreement.EventKind]string{
	agreement.KindMint:         "mint_events",
	agreement.KindBurn:         "burn_events",
	agreement.KindWithdrawByLP: "withdraw_by_lp_events",
}

type NodeSourceConfig struct {
	Name string

	// resource holding the event handles, "<address>::<module>::<Struct>".
	// Empty means <contract>::<event module>::BridgeEvents.
	HandleStruct string
	Fields       map[agreement.EventKind]string

	// Kinds to follow, each in its own stream. Defaults to mint and burn.
	Kinds []agreement.EventKind

	// 0 leaves the page size to the node and fetches a single page.
	PageSize uint64
}

type IndexerSourceConfig struct {
	Name   string
	URL    string
	APIKey string

	// >0 bounds each fetch to BatchSize versions past the cursor, capped
	// by the version oracle.
	BatchSize uint64

	IncludeWithdrawByLP bool
}
