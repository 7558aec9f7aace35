package aptossync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/TEENet-io/bridge-client-aptos/agreement"
	"github.com/TEENet-io/bridge-client-aptos/aptosman"
	"github.com/TEENet-io/bridge-client-aptos/bridgeevent"
	"github.com/TEENet-io/bridge-client-aptos/chainsync"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContract = "0xfbfe84d58d9ef1366f295066dbf1767f53d52d319843800c63c5e32d66411864"

type fakeNode struct {
	mu       sync.Mutex
	streams  map[string][]aptosman.Event // by handle field
	failing  map[string]bool
	requests []string
	// page size used when the request carries no limit, 0 returns everything
	defaultPage int
}

func newFakeNode() *fakeNode {
	return &fakeNode{streams: map[string][]aptosman.Event{}, failing: map[string]bool{}}
}

func (f *fakeNode) add(field, kind string, seq, version uint64, data map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, _ := json.Marshal(data)
	f.streams[field] = append(f.streams[field], aptosman.Event{
		Version:        strconv.FormatUint(version, 10),
		SequenceNumber: strconv.FormatUint(seq, 10),
		Type:           testContract + "::bridge::" + kind,
		Data:           raw,
	})
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := "/v1/accounts/" + testContract + "/events/" + testContract + "::bridge::BridgeEvents/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	field := strings.TrimPrefix(r.URL.Path, prefix)
	f.requests = append(f.requests, field+"?"+r.URL.RawQuery)
	if f.failing[field] {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	start, _ := strconv.ParseUint(r.URL.Query().Get("start"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit == 0 {
		limit = f.defaultPage
	}
	out := []aptosman.Event{}
	for _, ev := range f.streams[field] {
		seq, _ := strconv.ParseUint(ev.SequenceNumber, 10, 64)
		if seq >= start {
			out = append(out, ev)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func mintData(amount string) map[string]any {
	return map[string]any{"to": "0x2", "amount": amount, "tx_id": "0xab", "block_num": "1"}
}

func burnData(amount string) map[string]any {
	return map[string]any{"from": "0x3", "btc_address": "bc1qxyz", "fee_rate": "1", "amount": amount, "operator_id": "0"}
}

func newTestNodeSource(t *testing.T, node *fakeNode, cfg NodeSourceConfig, policy bridgeevent.DecodePolicy) *NodeSource {
	t.Helper()
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	client, err := aptosman.NewNodeClient(srv.URL+"/v1", "")
	require.NoError(t, err)
	types, err := bridgeevent.NewEventTypes(testContract, "bridge")
	require.NoError(t, err)
	src, err := NewNodeSource(cfg, client, bridgeevent.NewDecoder(types, policy), nil)
	require.NoError(t, err)
	return src
}

func TestNodeSourceIndependentStreams(t *testing.T) {
	node := newFakeNode()
	node.add("mint_events", "Mint", 4, 50, mintData("1"))
	node.add("mint_events", "Mint", 5, 60, mintData("2"))
	node.add("burn_events", "Burn", 7, 80, burnData("3"))
	src := newTestNodeSource(t, node, NodeSourceConfig{}, bridgeevent.Strict)

	cursor := chainsync.Cursor{
		"mint": {Version: 50, NextSequence: 5},
		"burn": {Version: 80, NextSequence: 8},
	}
	batch, err := src.FetchSince(context.Background(), cursor)
	require.NoError(t, err)
	require.Len(t, batch.Events, 1)
	mint := batch.Events[0].(*agreement.MintEvent)
	assert.Equal(t, uint64(2), mint.Amount)
	assert.Equal(t, uint64(60), *mint.Version)

	assert.Equal(t, chainsync.Position{Version: 60, NextSequence: 6}, batch.Next.Get("mint"))
	assert.Equal(t, chainsync.Position{Version: 80, NextSequence: 8}, batch.Next.Get("burn"))
	// input cursor untouched
	assert.Equal(t, chainsync.Position{Version: 50, NextSequence: 5}, cursor.Get("mint"))

	// re-poll with the new cursor: nothing new, cursor unchanged
	again, err := src.FetchSince(context.Background(), batch.Next)
	require.NoError(t, err)
	assert.Empty(t, again.Events)
	assert.True(t, again.Next.Equal(batch.Next))
}

func TestNodeSourceDropsSeenVersions(t *testing.T) {
	node := newFakeNode()
	node.add("mint_events", "Mint", 0, 50, mintData("1"))
	node.add("mint_events", "Mint", 1, 55, mintData("2"))
	node.add("mint_events", "Mint", 2, 60, mintData("3"))
	node.add("burn_events", "Burn", 0, 58, burnData("4"))
	src := newTestNodeSource(t, node, NodeSourceConfig{}, bridgeevent.Strict)

	batch, err := src.FetchSince(context.Background(), chainsync.Cursor{"mint": {Version: 55}})
	require.NoError(t, err)
	require.Len(t, batch.Events, 2)
	assert.Equal(t, agreement.KindBurn, batch.Events[0].Kind())
	assert.Equal(t, uint64(58), batch.Events[0].Meta().VersionOrZero())
	assert.Equal(t, uint64(60), batch.Events[1].Meta().VersionOrZero())
	assert.Equal(t, chainsync.Position{Version: 60, NextSequence: 3}, batch.Next.Get("mint"))
	assert.Equal(t, chainsync.Position{Version: 58, NextSequence: 1}, batch.Next.Get("burn"))
}

func TestNodeSourceTransactionSplitAcrossPages(t *testing.T) {
	node := newFakeNode()
	node.defaultPage = 2
	node.add("mint_events", "Mint", 0, 10, mintData("1"))
	node.add("mint_events", "Mint", 1, 20, mintData("2"))
	node.add("mint_events", "Mint", 2, 20, mintData("3"))
	src := newTestNodeSource(t, node, NodeSourceConfig{Kinds: []agreement.EventKind{agreement.KindMint}}, bridgeevent.Strict)

	cursor := chainsync.Cursor{}
	var amounts []uint64
	for i := 0; i < 3; i++ {
		batch, err := src.FetchSince(context.Background(), cursor)
		require.NoError(t, err)
		for _, ev := range batch.Events {
			amounts = append(amounts, ev.(*agreement.MintEvent).Amount)
		}
		cursor = batch.Next
	}
	assert.Equal(t, []uint64{1, 2, 3}, amounts)
	assert.Equal(t, chainsync.Position{Version: 20, NextSequence: 3}, cursor.Get("mint"))
}

func TestNodeSourceStartVersionSeeksPastDefaultPage(t *testing.T) {
	node := newFakeNode()
	node.defaultPage = 2
	node.add("mint_events", "Mint", 0, 5, mintData("1"))
	node.add("mint_events", "Mint", 1, 10, mintData("2"))
	node.add("mint_events", "Mint", 2, 15, mintData("3"))
	node.add("mint_events", "Mint", 3, 15, mintData("4"))
	node.add("mint_events", "Mint", 4, 20, mintData("5"))
	src := newTestNodeSource(t, node, NodeSourceConfig{Kinds: []agreement.EventKind{agreement.KindMint}}, bridgeevent.Strict)

	batch, err := src.FetchSince(context.Background(), chainsync.Cursor{"mint": {Version: 15}})
	require.NoError(t, err)
	require.Len(t, batch.Events, 1)
	assert.Equal(t, uint64(5), batch.Events[0].(*agreement.MintEvent).Amount)
	assert.Equal(t, chainsync.Position{Version: 20, NextSequence: 5}, batch.Next.Get("mint"))
	assert.Equal(t, []string{
		"mint_events?start=0",
		"mint_events?start=2",
		"mint_events?start=4",
	}, node.requests)

	again, err := src.FetchSince(context.Background(), batch.Next)
	require.NoError(t, err)
	assert.Empty(t, again.Events)
}

func TestNodeSourcePaging(t *testing.T) {
	node := newFakeNode()
	for i := uint64(0); i < 5; i++ {
		node.add("mint_events", "Mint", i, 10+i, mintData("1"))
	}
	src := newTestNodeSource(t, node, NodeSourceConfig{Kinds: []agreement.EventKind{agreement.KindMint}, PageSize: 2}, bridgeevent.Strict)

	batch, err := src.FetchSince(context.Background(), chainsync.Cursor{})
	require.NoError(t, err)
	assert.Len(t, batch.Events, 5)
	assert.Equal(t, chainsync.Position{Version: 14, NextSequence: 5}, batch.Next.Get("mint"))
	assert.Equal(t, []string{
		"mint_events?limit=2&start=0",
		"mint_events?limit=2&start=2",
		"mint_events?limit=2&start=4",
	}, node.requests)
}

func TestNodeSourceFailureKeepsCursor(t *testing.T) {
	node := newFakeNode()
	node.add("mint_events", "Mint", 0, 10, mintData("1"))
	node.failing["burn_events"] = true
	src := newTestNodeSource(t, node, NodeSourceConfig{}, bridgeevent.Strict)

	batch, err := src.FetchSince(context.Background(), chainsync.Cursor{})
	assert.Nil(t, batch)
	assert.True(t, errors.Is(err, common.ErrNetwork))
}

func TestNodeSourceDecodePolicy(t *testing.T) {
	node := newFakeNode()
	node.add("mint_events", "Mint", 0, 10, mintData("abc"))
	node.add("mint_events", "Mint", 1, 11, mintData("18446744073709551615"))

	strict := newTestNodeSource(t, node, NodeSourceConfig{Kinds: []agreement.EventKind{agreement.KindMint}}, bridgeevent.Strict)
	_, err := strict.FetchSince(context.Background(), chainsync.Cursor{})
	assert.True(t, errors.Is(err, common.ErrDeserialization))

	lenient := newTestNodeSource(t, node, NodeSourceConfig{Kinds: []agreement.EventKind{agreement.KindMint}}, bridgeevent.Lenient)
	batch, err := lenient.FetchSince(context.Background(), chainsync.Cursor{})
	require.NoError(t, err)
	require.Len(t, batch.Events, 2)
	assert.Equal(t, uint64(0), batch.Events[0].(*agreement.MintEvent).Amount)
	assert.Equal(t, uint64(18446744073709551615), batch.Events[1].(*agreement.MintEvent).Amount)
}
