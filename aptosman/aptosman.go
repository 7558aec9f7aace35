package aptosman

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/TEENet-io/bridge-client-aptos/bridgeevent"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
	"github.com/cockroachdb/errors"
	logger "github.com/sirupsen/logrus"
)

// Submitter signs and submits transactions on behalf of one account.
type Submitter interface {
	Sender() aptos.AccountAddress
	Submit(ctx context.Context, payload aptos.TransactionPayload) (string, error)
	Wait(ctx context.Context, hash string) (*TransactionStatus, error)
}

// Aptosman 是与桥合约交互的核心结构体
type Aptosman struct {
	cfg       *AptosmanConfig
	node      *NodeClient
	submitter Submitter
	contract  aptos.AccountAddress
	types     *bridgeevent.EventTypes
	decoder   *bridgeevent.Decoder
	retry     RetryConfig
	mu        sync.Mutex
}

// NewAptosman 创建新的Aptosman实例. account 为空时只能查询.
func NewAptosman(cfg *AptosmanConfig, account *aptos.Account) (*Aptosman, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	url, networkConfig, err := cfg.nodeURL()
	if err != nil {
		return nil, err
	}
	node, err := NewNodeClient(url, cfg.APIKey)
	if err != nil {
		return nil, err
	}

	var submitter Submitter
	if account != nil {
		aptosClient, err := aptos.NewClient(networkConfig)
		if err != nil {
			logger.WithField("url", url).WithError(err).Error("failed to create aptos client")
			return nil, errors.Mark(errors.Wrap(err, "create aptos client"), common.ErrConfig)
		}
		submitter = &sdkSubmitter{client: aptosClient, account: account, timeout: cfg.txTimeout()}
	}
	return NewAptosmanWith(cfg, node, submitter)
}

// NewAptosmanWith assembles an Aptosman from existing clients.
func NewAptosmanWith(cfg *AptosmanConfig, node *NodeClient, submitter Submitter) (*Aptosman, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var contract aptos.AccountAddress
	if err := contract.ParseStringRelaxed(cfg.ContractAddress); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "contract address %q", cfg.ContractAddress), common.ErrInvalidAddress)
	}
	types, err := bridgeevent.NewEventTypes(cfg.ContractAddress, cfg.eventModule())
	if err != nil {
		return nil, err
	}
	return &Aptosman{
		cfg:       cfg,
		node:      node,
		submitter: submitter,
		contract:  contract,
		types:     types,
		decoder:   bridgeevent.NewDecoder(types, bridgeevent.Strict),
		retry:     DefaultRetryConfig(),
	}, nil
}

func (aptman *Aptosman) Node() *NodeClient {
	return aptman.node
}

func (aptman *Aptosman) EventTypes() *bridgeevent.EventTypes {
	return aptman.types
}

func (aptman *Aptosman) ContractAddress() aptos.AccountAddress {
	return aptman.contract
}

// SetRetryConfig changes the submission retry policy.
func (aptman *Aptosman) SetRetryConfig(cfg RetryConfig) {
	aptman.retry = cfg
}

// Mint 提交一批比特币存款凭证
func (aptman *Aptosman) Mint(ctx context.Context, pegs []Peg) (string, error) {
	if len(pegs) == 0 {
		return "", errors.Wrap(common.ErrInvalidArgument, "pegs cannot be empty")
	}
	ser := &bcs.Serializer{}
	ser.Uleb128(uint32(len(pegs)))
	for i := range pegs {
		if pegs[i].Value == 0 {
			return "", errors.Wrapf(common.ErrInvalidArgument, "peg %d has zero value", i)
		}
		ser.Struct(&pegs[i])
	}
	if err := ser.Error(); err != nil {
		return "", errors.Wrap(err, "serialize pegs")
	}
	return aptman.execute(ctx, "mint", ser.ToBytes())
}

// Burn 燃烧代币并赎回到比特币地址
func (aptman *Aptosman) Burn(ctx context.Context, params *BurnParams) (string, error) {
	if err := common.ValidateBtcAddress(params.BtcAddress, aptman.cfg.BtcChainConfig); err != nil {
		return "", err
	}
	if params.Amount == 0 {
		return "", errors.Wrap(common.ErrInvalidArgument, "amount cannot be zero")
	}
	if err := common.ValidateFeeRate(params.FeeRate, aptman.cfg.MaxFeeRate); err != nil {
		return "", err
	}
	return aptman.execute(ctx, "burn",
		bcsString(params.BtcAddress),
		bcsU64(params.FeeRate),
		bcsU64(params.Amount),
		bcsU64(params.OperatorID),
	)
}

// RegisterLP 注册流动性提供者
func (aptman *Aptosman) RegisterLP(ctx context.Context, params *RegisterLPParams) (string, error) {
	if err := common.ValidateBtcAddress(params.BitcoinAddr, aptman.cfg.BtcChainConfig); err != nil {
		return "", err
	}
	var lpAddr aptos.AccountAddress
	if err := lpAddr.ParseStringRelaxed(params.LPAddr); err != nil {
		return "", errors.Mark(errors.Wrapf(err, "lp address %q", params.LPAddr), common.ErrInvalidAddress)
	}
	lpAddrBytes, err := bcs.Serialize(&lpAddr)
	if err != nil {
		return "", errors.Wrap(err, "serialize lp address")
	}
	return aptman.execute(ctx, "register_lp",
		bcsU64(params.LPID),
		bcsString(params.BitcoinAddr),
		lpAddrBytes,
		bcsU64(params.LPFee),
	)
}

// WithdrawByLP 通过LP提现
func (aptman *Aptosman) WithdrawByLP(ctx context.Context, params *WithdrawByLPParams) (string, error) {
	if err := common.ValidateBtcAddress(params.BtcAddress, aptman.cfg.BtcChainConfig); err != nil {
		return "", err
	}
	if params.Amount == 0 {
		return "", errors.Wrap(common.ErrInvalidArgument, "amount cannot be zero")
	}
	if params.ReceiveMinAmount > params.Amount {
		return "", errors.Wrapf(common.ErrInvalidArgument, "receive min amount %d exceeds amount %d", params.ReceiveMinAmount, params.Amount)
	}
	if err := common.ValidateFeeRate(params.FeeRate, aptman.cfg.MaxFeeRate); err != nil {
		return "", err
	}
	return aptman.execute(ctx, "withdraw_by_lp",
		bcsU64(params.WithdrawID),
		bcsString(params.BtcAddress),
		bcsBytes(params.ReceiverScriptHash),
		bcsU64(params.ReceiveMinAmount),
		bcsU64(params.LPID),
		bcsU64(params.Amount),
		bcsU64(params.FeeRate),
	)
}

// ClaimLPWithdraw LP提交比特币付款证明, 认领提现
func (aptman *Aptosman) ClaimLPWithdraw(ctx context.Context, params *ClaimLPWithdrawParams) (string, error) {
	proof, err := bcs.Serialize(&params.InclusionProof)
	if err != nil {
		return "", errors.Wrap(err, "serialize inclusion proof")
	}
	return aptman.execute(ctx, "claim_lp_withdraw",
		bcsU64(params.WithdrawID),
		bcsU64(params.BlockNum),
		bcsU64(params.TxOutIx),
		bcsU64(params.AmountSats),
		proof,
	)
}

// TransactionStatus 查询交易状态, 不存在的交易返回 TxUnknown
func (aptman *Aptosman) TransactionStatus(ctx context.Context, hash string) (*TransactionStatus, error) {
	tx, err := aptman.node.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return &TransactionStatus{Hash: hash, State: TxUnknown}, nil
		}
		return nil, err
	}
	return statusOf(tx), nil
}

func statusOf(tx *Transaction) *TransactionStatus {
	st := &TransactionStatus{Hash: tx.Hash, VmStatus: tx.VmStatus}
	if tx.Type == "pending_transaction" {
		st.State = TxPending
		return st
	}
	if v, err := strconv.ParseUint(tx.Version, 10, 64); err == nil {
		st.Version = &v
	}
	if tx.Success {
		st.State = TxSuccess
	} else {
		st.State = TxFailed
	}
	return st
}

func (aptman *Aptosman) entryFunction(function string, args [][]byte) aptos.TransactionPayload {
	return aptos.TransactionPayload{
		Payload: &aptos.EntryFunction{
			Module: aptos.ModuleId{
				Address: aptman.contract,
				Name:    aptman.cfg.bridgeModule(),
			},
			Function: function,
			ArgTypes: []aptos.TypeTag{},
			Args:     args,
		},
	}
}

// execute 构建、签名、提交交易并等待确认
func (aptman *Aptosman) execute(ctx context.Context, function string, args ...[]byte) (string, error) {
	if aptman.submitter == nil {
		return "", errors.Wrap(common.ErrConfig, "no signing account configured")
	}
	for i, arg := range args {
		if arg == nil {
			return "", errors.Newf("%s: argument %d failed to serialize", function, i)
		}
	}
	aptman.mu.Lock()
	defer aptman.mu.Unlock()

	payload := aptman.entryFunction(function, args)
	sender := aptman.submitter.Sender()
	log := logger.WithFields(logger.Fields{
		"function": function,
		"sender":   sender.String(),
	})

	start := time.Now()
	hash, err := Retry(ctx, aptman.retry, func() (string, error) {
		return aptman.submitter.Submit(ctx, payload)
	})
	if err != nil {
		log.WithError(err).Error("failed to submit transaction")
		return "", errors.Wrapf(err, "submit %s", function)
	}

	status, err := aptman.submitter.Wait(ctx, hash)
	if err != nil {
		return hash, errors.Wrapf(err, "wait for %s transaction %s", function, hash)
	}
	if status.State != TxSuccess {
		log.WithFields(logger.Fields{"tx": hash, "vm_status": status.VmStatus}).Error("transaction failed")
		return hash, errors.Wrapf(common.ErrTransactionFailed, "%s transaction %s: %s", function, hash, status.VmStatus)
	}
	log.WithFields(logger.Fields{"tx": hash, "took": time.Since(start)}).Info("transaction confirmed")
	return hash, nil
}

func bcsU64(v uint64) []byte {
	b, err := bcs.SerializeU64(v)
	if err != nil {
		return nil
	}
	return b
}

func bcsString(s string) []byte {
	ser := &bcs.Serializer{}
	ser.WriteString(s)
	if ser.Error() != nil {
		return nil
	}
	return ser.ToBytes()
}

func bcsBytes(b []byte) []byte {
	ser := &bcs.Serializer{}
	ser.WriteBytes(b)
	if ser.Error() != nil {
		return nil
	}
	return ser.ToBytes()
}
