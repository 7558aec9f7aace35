package aptosman

import (
	"context"
	"fmt"
	"strconv"

	"github.com/TEENet-io/bridge-client-aptos/bridgeevent"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/cockroachdb/errors"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// 视图函数名
const (
	ViewGetOwner         = "get_owner"
	ViewMinConfirmations = "min_confirmations"
	ViewMaxPegsPerMint   = "max_pegs_per_mint"
	ViewMaxBtcPerMint    = "max_btc_per_mint"
	ViewMinBtcPerMint    = "min_btc_per_mint"
	ViewMaxBtcPerBurn    = "max_btc_per_burn"
	ViewMinBtcPerBurn    = "min_btc_per_burn"
	ViewBurnPaused       = "burn_paused"
	ViewMaxFeeRate       = "max_fee_rate"
	ViewGetMinted        = "get_minted"
	ViewGetLPStatus      = "get_lp_status"
	ViewGetLPWithdraw    = "get_lp_withdraw"
)

func (aptman *Aptosman) viewFunction(name string) string {
	return fmt.Sprintf("%s::%s::%s", aptman.contract.String(), aptman.cfg.bridgeModule(), name)
}

// view calls a bridge view function and returns its first result.
func (aptman *Aptosman) view(ctx context.Context, name string, args ...any) (any, error) {
	out, err := aptman.node.View(ctx, aptman.viewFunction(name), nil, args)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.Wrapf(common.ErrDeserialization, "view %s returned no value", name)
	}
	return out[0], nil
}

func (aptman *Aptosman) viewU64(ctx context.Context, name string, args ...any) (uint64, error) {
	v, err := aptman.view(ctx, name, args...)
	if err != nil {
		return 0, err
	}
	n, err := bridgeevent.ParseU64(v)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "view %s", name), common.ErrDeserialization)
	}
	return n, nil
}

func (aptman *Aptosman) viewBool(ctx context.Context, name string) (bool, error) {
	v, err := aptman.view(ctx, name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.Wrapf(common.ErrDeserialization, "view %s: expected bool, got %T", name, v)
	}
	return b, nil
}

func (aptman *Aptosman) viewAddress(ctx context.Context, name string) (string, error) {
	v, err := aptman.view(ctx, name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Wrapf(common.ErrDeserialization, "view %s: expected address, got %T", name, v)
	}
	return bridgeevent.CanonicalAddress(s), nil
}

// BridgeConfig 并发读取桥合约配置
func (aptman *Aptosman) BridgeConfig(ctx context.Context) (*BridgeConfig, error) {
	var cfg BridgeConfig
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		cfg.Owner, err = aptman.viewAddress(gctx, ViewGetOwner)
		return err
	})
	g.Go(func() (err error) {
		cfg.BurnPaused, err = aptman.viewBool(gctx, ViewBurnPaused)
		return err
	})
	u64s := []struct {
		name string
		dst  *uint64
	}{
		{ViewMinConfirmations, &cfg.MinConfirmations},
		{ViewMaxPegsPerMint, &cfg.MaxPegsPerMint},
		{ViewMaxBtcPerMint, &cfg.MaxBtcPerMint},
		{ViewMinBtcPerMint, &cfg.MinBtcPerMint},
		{ViewMaxBtcPerBurn, &cfg.MaxBtcPerBurn},
		{ViewMinBtcPerBurn, &cfg.MinBtcPerBurn},
		{ViewMaxFeeRate, &cfg.MaxFeeRate},
	}
	for _, item := range u64s {
		g.Go(func() (err error) {
			*item.dst, err = aptman.viewU64(gctx, item.name)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("failed to read bridge config")
		return nil, errors.Wrap(err, "read bridge config")
	}
	return &cfg, nil
}

// Minted 已铸造的总量 (satoshi)
func (aptman *Aptosman) Minted(ctx context.Context) (uint64, error) {
	return aptman.viewU64(ctx, ViewGetMinted)
}

// LPStatus 返回LP状态视图的原始值
func (aptman *Aptosman) LPStatus(ctx context.Context, lpID uint64) (any, error) {
	return aptman.view(ctx, ViewGetLPStatus, strconv.FormatUint(lpID, 10))
}

// LPWithdraw 查询LP提现单
func (aptman *Aptosman) LPWithdraw(ctx context.Context, withdrawID uint64) (*LPWithdrawInfo, error) {
	v, err := aptman.view(ctx, ViewGetLPWithdraw, strconv.FormatUint(withdrawID, 10))
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errors.Wrapf(common.ErrDeserialization, "view %s: expected object, got %T", ViewGetLPWithdraw, v)
	}

	info := &LPWithdrawInfo{}
	u64s := map[string]*uint64{
		"id":                 &info.ID,
		"withdraw_amount":    &info.WithdrawAmount,
		"lp_id":              &info.LPID,
		"receive_min_amount": &info.ReceiveMinAmount,
		"fee_rate":           &info.FeeRate,
		"timestamp":          &info.Timestamp,
	}
	for field, dst := range u64s {
		raw, ok := obj[field]
		if !ok {
			continue
		}
		if *dst, err = bridgeevent.ParseU64(raw); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "lp withdraw field %s", field), common.ErrDeserialization)
		}
	}
	if s, ok := obj["receiver_addr"].(string); ok {
		info.ReceiverAddr = s
	}
	if s, ok := obj["receiver_script_hash"].(string); ok {
		info.ReceiverScriptHash = s
	}
	return info, nil
}

// ProcessorStatusOracle reports the version processed by the indexer.
type ProcessorStatusOracle struct {
	client    *aptos.Client
	processor string
}

const DefaultProcessor = "default_processor"

func NewProcessorStatusOracle(cfg *AptosmanConfig, processor string) (*ProcessorStatusOracle, error) {
	_, networkConfig, err := cfg.nodeURL()
	if err != nil {
		return nil, err
	}
	client, err := aptos.NewClient(networkConfig)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "create aptos client"), common.ErrConfig)
	}
	if processor == "" {
		processor = DefaultProcessor
	}
	return &ProcessorStatusOracle{client: client, processor: processor}, nil
}

func (o *ProcessorStatusOracle) LatestVersion(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	status, err := o.client.GetProcessorStatus(o.processor)
	if err != nil {
		logger.WithError(err).Error("获取Aptos处理器状态失败")
		return 0, errors.Mark(errors.Wrap(err, "get processor status"), common.ErrNetwork)
	}
	return status, nil
}
