package bridgeevent

// RawRecord is one event as delivered by a source, before decoding.
// Exactly one of Data (JSON object, numerics usually as decimal strings)
// or BCS (on-chain struct layout) carries the payload.
type RawRecord struct {
	Type string
	Data map[string]any
	BCS  []byte

	Version         *uint64
	SequenceNumber  *uint64
	Timestamp       any // ISO-8601 string, unix number, or nil
	TransactionHash *string
}
