package aptosman

import (
	"strings"
	"time"

	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/cockroachdb/errors"
)

// AptosmanConfig 定义Aptos管理器的配置参数
type AptosmanConfig struct {
	// 网络类型: mainnet, testnet, devnet, localnet
	Network string

	// Aptos节点URL, 为空时使用网络默认值
	NodeURL string

	// 可选的API key (Authorization: Bearer)
	APIKey string

	// 桥合约地址
	ContractAddress string

	// entry/view 函数所在模块
	BridgeModule string

	// 事件结构所在模块
	EventModule string

	// 比特币网络配置, 用于校验BTC地址
	BtcChainConfig *chaincfg.Params

	// 最大费率 (sat/vbyte), 0 表示不在本地校验
	MaxFeeRate uint64

	// 等待交易确认的超时
	TxTimeout time.Duration
}

const (
	DefaultBridgeModule = "fiamma_bridge_account"
	DefaultEventModule  = "bridge"
	DefaultTxTimeout    = 60 * time.Second
)

func (cfg *AptosmanConfig) Validate() error {
	if cfg.ContractAddress == "" {
		return errors.Wrap(common.ErrConfig, "contract address is required")
	}
	if !common.EnsureSafeAddressHexString(cfg.ContractAddress) {
		return errors.Wrapf(common.ErrInvalidAddress, "contract address %q", cfg.ContractAddress)
	}
	if _, _, err := GetNetworkConfig(cfg.Network); err != nil {
		return err
	}
	return nil
}

func (cfg *AptosmanConfig) bridgeModule() string {
	if cfg.BridgeModule == "" {
		return DefaultBridgeModule
	}
	return cfg.BridgeModule
}

func (cfg *AptosmanConfig) eventModule() string {
	if cfg.EventModule == "" {
		return DefaultEventModule
	}
	return cfg.EventModule
}

func (cfg *AptosmanConfig) txTimeout() time.Duration {
	if cfg.TxTimeout <= 0 {
		return DefaultTxTimeout
	}
	return cfg.TxTimeout
}

// nodeURL is the configured node or the network default.
func (cfg *AptosmanConfig) nodeURL() (string, aptos.NetworkConfig, error) {
	url, networkConfig, err := GetNetworkConfig(cfg.Network)
	if err != nil {
		return "", networkConfig, err
	}
	if cfg.NodeURL != "" {
		url = strings.TrimSuffix(cfg.NodeURL, "/")
		networkConfig.NodeUrl = url
	}
	return url, networkConfig, nil
}

// 定义网络类型常量
const (
	NetworkMainnet  = "mainnet"
	NetworkTestnet  = "testnet"
	NetworkDevnet   = "devnet"
	NetworkLocalnet = "localnet"
)

// 获取适当的Aptos网络配置
func GetNetworkConfig(network string) (string, aptos.NetworkConfig, error) {
	switch strings.ToLower(network) {
	case NetworkMainnet:
		return aptos.MainnetConfig.NodeUrl, aptos.MainnetConfig, nil
	case NetworkTestnet:
		return aptos.TestnetConfig.NodeUrl, aptos.TestnetConfig, nil
	case NetworkDevnet, "":
		return aptos.DevnetConfig.NodeUrl, aptos.DevnetConfig, nil
	case NetworkLocalnet:
		return aptos.LocalnetConfig.NodeUrl, aptos.LocalnetConfig, nil
	default:
		return "", aptos.NetworkConfig{}, errors.Wrapf(common.ErrConfig, "unknown aptos network %q", network)
	}
}
