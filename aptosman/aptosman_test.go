package aptosman

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testContract   = "0xfbfe84d58d9ef1366f295066dbf1767f53d52d319843800c63c5e32d66411864"
	testBtcAddress = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"
)

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Sender() aptos.AccountAddress {
	return aptos.AccountAddress{}
}

func (m *MockSubmitter) Submit(ctx context.Context, payload aptos.TransactionPayload) (string, error) {
	args := m.Called(payload)
	return args.String(0), args.Error(1)
}

func (m *MockSubmitter) Wait(ctx context.Context, hash string) (*TransactionStatus, error) {
	args := m.Called(hash)
	st, _ := args.Get(0).(*TransactionStatus)
	return st, args.Error(1)
}

func newTestAptosman(t *testing.T, nodeURL string, sub Submitter) *Aptosman {
	t.Helper()
	if nodeURL == "" {
		nodeURL = "http://127.0.0.1:1/v1"
	}
	node, err := NewNodeClient(nodeURL, "")
	require.NoError(t, err)
	aptman, err := NewAptosmanWith(&AptosmanConfig{ContractAddress: testContract}, node, sub)
	require.NoError(t, err)
	aptman.SetRetryConfig(RetryConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond})
	return aptman
}

func entryOf(t *testing.T, payload aptos.TransactionPayload) *aptos.EntryFunction {
	t.Helper()
	entry, ok := payload.Payload.(*aptos.EntryFunction)
	require.True(t, ok)
	return entry
}

func success(hash string) *TransactionStatus {
	v := uint64(7)
	return &TransactionStatus{Hash: hash, State: TxSuccess, Version: &v}
}

func TestPegBCSLayout(t *testing.T) {
	peg := Peg{
		Value:    1,
		BlockNum: 2,
		InclusionProof: TxProof{
			BlockHeader: []byte{0xaa},
			TxID:        []byte{0xbb},
			TxIndex:     3,
			MerkleProof: [][]byte{{0xcc}},
			RawTx:       []byte{0xdd},
		},
		TxOutIx:        4,
		DestScriptHash: []byte{0xee},
		ScriptType:     P2WPKH,
	}
	b, err := bcs.Serialize(&peg)
	require.NoError(t, err)

	expected := make([]byte, 32)
	expected = append(expected, 1, 0, 0, 0, 0, 0, 0, 0)
	expected = append(expected, 2, 0, 0, 0, 0, 0, 0, 0)
	expected = append(expected, 1, 0xaa, 1, 0xbb)
	expected = append(expected, 3, 0, 0, 0, 0, 0, 0, 0)
	expected = append(expected, 1, 1, 0xcc, 1, 0xdd)
	expected = append(expected, 4, 0, 0, 0, 0, 0, 0, 0)
	expected = append(expected, 1, 0xee, 2)
	assert.Equal(t, expected, b)
}

func TestBurnPayload(t *testing.T) {
	sub := &MockSubmitter{}
	aptman := newTestAptosman(t, "", sub)

	var captured aptos.TransactionPayload
	sub.On("Submit", mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(0).(aptos.TransactionPayload)
	}).Return("0xabc", nil).Once()
	sub.On("Wait", "0xabc").Return(success("0xabc"), nil).Once()

	hash, err := aptman.Burn(context.Background(), &BurnParams{
		BtcAddress: testBtcAddress,
		FeeRate:    5,
		Amount:     100000,
		OperatorID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", hash)

	entry := entryOf(t, captured)
	assert.Equal(t, "burn", entry.Function)
	assert.Equal(t, DefaultBridgeModule, entry.Module.Name)
	require.Len(t, entry.Args, 4)
	assert.Equal(t, bcsString(testBtcAddress), entry.Args[0])
	assert.Equal(t, bcsU64(5), entry.Args[1])
	assert.Equal(t, bcsU64(100000), entry.Args[2])
	assert.Equal(t, bcsU64(1), entry.Args[3])
	sub.AssertExpectations(t)
}

func TestBurnValidation(t *testing.T) {
	sub := &MockSubmitter{}
	aptman := newTestAptosman(t, "", sub)
	aptman.cfg.MaxFeeRate = 100

	_, err := aptman.Burn(context.Background(), &BurnParams{BtcAddress: "not-an-address", FeeRate: 5, Amount: 1})
	assert.True(t, errors.Is(err, common.ErrInvalidAddress))

	_, err = aptman.Burn(context.Background(), &BurnParams{BtcAddress: testBtcAddress, FeeRate: 5})
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))

	_, err = aptman.Burn(context.Background(), &BurnParams{BtcAddress: testBtcAddress, FeeRate: 500, Amount: 1})
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))

	sub.AssertNotCalled(t, "Submit", mock.Anything)
}

func TestMintPayload(t *testing.T) {
	sub := &MockSubmitter{}
	aptman := newTestAptosman(t, "", sub)

	_, err := aptman.Mint(context.Background(), nil)
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))

	pegs := []Peg{{Value: 10, BlockNum: 1}, {Value: 20, BlockNum: 2}}
	var captured aptos.TransactionPayload
	sub.On("Submit", mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(0).(aptos.TransactionPayload)
	}).Return("0x1", nil).Once()
	sub.On("Wait", "0x1").Return(success("0x1"), nil).Once()

	_, err = aptman.Mint(context.Background(), pegs)
	require.NoError(t, err)

	entry := entryOf(t, captured)
	assert.Equal(t, "mint", entry.Function)
	require.Len(t, entry.Args, 1)

	first, err := bcs.Serialize(&pegs[0])
	require.NoError(t, err)
	second, err := bcs.Serialize(&pegs[1])
	require.NoError(t, err)
	expected := append([]byte{2}, first...)
	expected = append(expected, second...)
	assert.Equal(t, expected, entry.Args[0])
}

func TestWithdrawByLPValidation(t *testing.T) {
	sub := &MockSubmitter{}
	aptman := newTestAptosman(t, "", sub)

	_, err := aptman.WithdrawByLP(context.Background(), &WithdrawByLPParams{
		WithdrawID:       1,
		BtcAddress:       testBtcAddress,
		Amount:           100,
		ReceiveMinAmount: 200,
	})
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
	sub.AssertNotCalled(t, "Submit", mock.Anything)
}

func TestExecuteRetriesNetworkErrors(t *testing.T) {
	sub := &MockSubmitter{}
	aptman := newTestAptosman(t, "", sub)

	sub.On("Submit", mock.Anything).Return("", errors.Mark(errors.New("connection reset"), common.ErrNetwork)).Once()
	sub.On("Submit", mock.Anything).Return("0xfeed", nil).Once()
	sub.On("Wait", "0xfeed").Return(success("0xfeed"), nil).Once()

	hash, err := aptman.ClaimLPWithdraw(context.Background(), &ClaimLPWithdrawParams{WithdrawID: 1, AmountSats: 10})
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", hash)
	sub.AssertNumberOfCalls(t, "Submit", 2)
}

func TestExecuteDoesNotRetryPermanentErrors(t *testing.T) {
	sub := &MockSubmitter{}
	aptman := newTestAptosman(t, "", sub)

	sub.On("Submit", mock.Anything).Return("", errors.New("sequence number too old")).Once()

	_, err := aptman.RegisterLP(context.Background(), &RegisterLPParams{LPID: 1, BitcoinAddr: testBtcAddress, LPAddr: "0x1", LPFee: 30})
	require.Error(t, err)
	sub.AssertNumberOfCalls(t, "Submit", 1)
}

func TestExecuteFailedTransaction(t *testing.T) {
	sub := &MockSubmitter{}
	aptman := newTestAptosman(t, "", sub)

	sub.On("Submit", mock.Anything).Return("0xbad", nil).Once()
	sub.On("Wait", "0xbad").Return(&TransactionStatus{Hash: "0xbad", State: TxFailed, VmStatus: "Move abort"}, nil).Once()

	hash, err := aptman.Burn(context.Background(), &BurnParams{BtcAddress: testBtcAddress, FeeRate: 1, Amount: 1})
	assert.Equal(t, "0xbad", hash)
	assert.True(t, errors.Is(err, common.ErrTransactionFailed))
}

func TestExecuteWithoutAccount(t *testing.T) {
	aptman := newTestAptosman(t, "", nil)
	_, err := aptman.Burn(context.Background(), &BurnParams{BtcAddress: testBtcAddress, FeeRate: 1, Amount: 1})
	assert.True(t, errors.Is(err, common.ErrConfig))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newViewServer(t *testing.T, results map[string]any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/view" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req viewRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		name := req.Function[strings.LastIndex(req.Function, "::")+2:]
		res, ok := results[name]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		writeJSON(w, []any{res})
	}))
}

func TestBridgeConfig(t *testing.T) {
	srv := newViewServer(t, map[string]any{
		ViewGetOwner:         "0x0000000000000000000000000000000000000000000000000000000000000001",
		ViewMinConfirmations: "6",
		ViewMaxPegsPerMint:   "10",
		ViewMaxBtcPerMint:    "100000000",
		ViewMinBtcPerMint:    "1000",
		ViewMaxBtcPerBurn:    "50000000",
		ViewMinBtcPerBurn:    "2000",
		ViewBurnPaused:       true,
		ViewMaxFeeRate:       "18446744073709551615",
	})
	defer srv.Close()
	aptman := newTestAptosman(t, srv.URL+"/v1", nil)

	cfg, err := aptman.BridgeConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &BridgeConfig{
		Owner:            "0x1",
		MinConfirmations: 6,
		MaxPegsPerMint:   10,
		MaxBtcPerMint:    100000000,
		MinBtcPerMint:    1000,
		MaxBtcPerBurn:    50000000,
		MinBtcPerBurn:    2000,
		BurnPaused:       true,
		MaxFeeRate:       18446744073709551615,
	}, cfg)
}

func TestBridgeConfigViewFailure(t *testing.T) {
	srv := newViewServer(t, map[string]any{ViewGetOwner: "0x1"})
	defer srv.Close()
	aptman := newTestAptosman(t, srv.URL+"/v1", nil)

	_, err := aptman.BridgeConfig(context.Background())
	assert.True(t, errors.Is(err, common.ErrNetwork))
}

func TestLPWithdraw(t *testing.T) {
	srv := newViewServer(t, map[string]any{
		ViewGetLPWithdraw: map[string]any{
			"id":                   "12350",
			"withdraw_amount":      "100000",
			"receiver_addr":        testBtcAddress,
			"lp_id":                "1",
			"receiver_script_hash": "0xabcd",
			"receive_min_amount":   "90000",
			"fee_rate":             "3",
			"timestamp":            "1700000000",
		},
		ViewGetMinted: "42",
	})
	defer srv.Close()
	aptman := newTestAptosman(t, srv.URL+"/v1", nil)

	info, err := aptman.LPWithdraw(context.Background(), 12350)
	require.NoError(t, err)
	assert.Equal(t, uint64(12350), info.ID)
	assert.Equal(t, uint64(100000), info.WithdrawAmount)
	assert.Equal(t, testBtcAddress, info.ReceiverAddr)
	assert.Equal(t, uint64(90000), info.ReceiveMinAmount)
	assert.Equal(t, "0xabcd", info.ReceiverScriptHash)

	minted, err := aptman.Minted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), minted)
}

func TestTransactionStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/transactions/by_hash/0xdef":
			writeJSON(w, map[string]any{
				"type":      "user_transaction",
				"hash":      "0xdef",
				"version":   "42",
				"success":   false,
				"vm_status": "Move abort",
			})
		case "/v1/transactions/by_hash/0x123":
			writeJSON(w, map[string]any{"type": "pending_transaction", "hash": "0x123"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	aptman := newTestAptosman(t, srv.URL+"/v1", nil)

	st, err := aptman.TransactionStatus(context.Background(), "0xdef")
	require.NoError(t, err)
	assert.Equal(t, TxFailed, st.State)
	require.NotNil(t, st.Version)
	assert.Equal(t, uint64(42), *st.Version)
	assert.Equal(t, "Move abort", st.VmStatus)

	st, err = aptman.TransactionStatus(context.Background(), "0x123")
	require.NoError(t, err)
	assert.Equal(t, TxPending, st.State)

	st, err = aptman.TransactionStatus(context.Background(), "0x404")
	require.NoError(t, err)
	assert.Equal(t, TxUnknown, st.State)
}
