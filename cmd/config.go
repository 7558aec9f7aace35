package cmd

import (
	"strings"
	"time"

	"github.com/TEENet-io/bridge-client-aptos/aptosman"
	"github.com/TEENet-io/bridge-client-aptos/bridgeevent"
	"github.com/TEENet-io/bridge-client-aptos/chainsync"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/TEENet-io/bridge-client-aptos/state"
	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

const (
	ENV_CONFIG_FILE_PATH = "BRIDGE_CONFIG"
	ENV_PREFIX           = "BRIDGE"

	SourceNode    = "node"
	SourceIndexer = "indexer"

	OracleLedger    = "ledger"
	OracleProcessor = "processor"
)

type MonitorConfig struct {
	Aptos    AptosConfig    `mapstructure:"aptos"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Monitor  PollConfig     `mapstructure:"monitor"`
	Indexer  IndexerConfig  `mapstructure:"indexer"`
	Cursor   CursorConfig   `mapstructure:"cursor"`
	Reporter ReporterConfig `mapstructure:"reporter"`
	Log      LogConfig      `mapstructure:"log"`
}

type AptosConfig struct {
	Network    string        `mapstructure:"network"`
	NodeURL    string        `mapstructure:"node_url"`
	APIKey     string        `mapstructure:"api_key"`
	PrivateKey string        `mapstructure:"private_key"`
	TxTimeout  time.Duration `mapstructure:"tx_timeout"`
}

type BridgeConfig struct {
	ContractAddress string `mapstructure:"contract_address"`
	Module          string `mapstructure:"module"`
	EventModule     string `mapstructure:"event_module"`
	BtcNetwork      string `mapstructure:"btc_network"`
	MaxFeeRate      uint64 `mapstructure:"max_fee_rate"`
}

type PollConfig struct {
	Source       string        `mapstructure:"source"`
	Interval     time.Duration `mapstructure:"interval"`
	StartVersion uint64        `mapstructure:"start_version"`
	DecodePolicy string        `mapstructure:"decode_policy"`
	PageSize     uint64        `mapstructure:"page_size"`
	BatchSize    uint64        `mapstructure:"batch_size"`
	WithdrawByLP bool          `mapstructure:"withdraw_by_lp"`
	Backoff      BackoffConfig `mapstructure:"backoff"`
}

type BackoffConfig struct {
	Initial    time.Duration `mapstructure:"initial"`
	Max        time.Duration `mapstructure:"max"`
	Multiplier float64       `mapstructure:"multiplier"`
	Jitter     float64       `mapstructure:"jitter"`
}

type IndexerConfig struct {
	URL           string `mapstructure:"url"`
	APIKey        string `mapstructure:"api_key"`
	VersionOracle string `mapstructure:"version_oracle"`
	Processor     string `mapstructure:"processor"`
}

type CursorConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ReporterConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	IP      string `mapstructure:"ip"`
	Port    string `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetMonitorDefaults registers every key, so env variables are picked up
// by Unmarshal even when the config file does not mention them.
func SetMonitorDefaults(v *viper.Viper) {
	backoffDefaults := chainsync.DefaultBackoffConfig()

	v.SetDefault("aptos.network", aptosman.NetworkDevnet)
	v.SetDefault("aptos.node_url", "")
	v.SetDefault("aptos.api_key", "")
	v.SetDefault("aptos.private_key", "")
	v.SetDefault("aptos.tx_timeout", aptosman.DefaultTxTimeout)

	v.SetDefault("bridge.contract_address", "")
	v.SetDefault("bridge.module", aptosman.DefaultBridgeModule)
	v.SetDefault("bridge.event_module", aptosman.DefaultEventModule)
	v.SetDefault("bridge.btc_network", "mainnet")
	v.SetDefault("bridge.max_fee_rate", 0)

	v.SetDefault("monitor.source", SourceNode)
	v.SetDefault("monitor.interval", 10*time.Second)
	v.SetDefault("monitor.start_version", 0)
	v.SetDefault("monitor.decode_policy", bridgeevent.Strict.String())
	v.SetDefault("monitor.page_size", 0)
	v.SetDefault("monitor.batch_size", 0)
	v.SetDefault("monitor.withdraw_by_lp", false)
	v.SetDefault("monitor.backoff.initial", backoffDefaults.Initial)
	v.SetDefault("monitor.backoff.max", backoffDefaults.Max)
	v.SetDefault("monitor.backoff.multiplier", backoffDefaults.Multiplier)
	v.SetDefault("monitor.backoff.jitter", backoffDefaults.Jitter)

	v.SetDefault("indexer.url", "")
	v.SetDefault("indexer.api_key", "")
	v.SetDefault("indexer.version_oracle", OracleLedger)
	v.SetDefault("indexer.processor", aptosman.DefaultProcessor)

	v.SetDefault("cursor.driver", state.DriverMemory)
	v.SetDefault("cursor.dsn", "")

	v.SetDefault("reporter.enabled", false)
	v.SetDefault("reporter.ip", "0.0.0.0")
	v.SetDefault("reporter.port", "8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadMonitorConfig reads the config from v. Any key can be overridden by
// env, e.g. BRIDGE_MONITOR_SOURCE for monitor.source.
func LoadMonitorConfig(v *viper.Viper) (*MonitorConfig, error) {
	SetMonitorDefaults(v)
	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg MonitorConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to unmarshal config"), common.ErrConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *MonitorConfig) Validate() error {
	if cfg.Bridge.ContractAddress == "" {
		return errors.Wrap(common.ErrConfig, "bridge.contract_address is required")
	}
	if !common.EnsureSafeAddressHexString(cfg.Bridge.ContractAddress) {
		return errors.Wrapf(common.ErrConfig, "bridge.contract_address %q is not an account address", cfg.Bridge.ContractAddress)
	}
	if _, _, err := aptosman.GetNetworkConfig(cfg.Aptos.Network); err != nil {
		return err
	}
	if _, err := common.BtcNetParams(cfg.Bridge.BtcNetwork); err != nil {
		return err
	}
	if _, err := bridgeevent.ParseDecodePolicy(cfg.Monitor.DecodePolicy); err != nil {
		return err
	}
	if cfg.Monitor.Interval <= 0 {
		return errors.Wrapf(common.ErrConfig, "monitor.interval must be positive, got %s", cfg.Monitor.Interval)
	}
	if cfg.Monitor.Backoff.Jitter < 0 || cfg.Monitor.Backoff.Jitter > 1 {
		return errors.Wrapf(common.ErrConfig, "monitor.backoff.jitter must be in [0, 1], got %v", cfg.Monitor.Backoff.Jitter)
	}

	switch strings.ToLower(cfg.Monitor.Source) {
	case SourceNode:
	case SourceIndexer:
		if cfg.Indexer.URL == "" {
			return errors.Wrap(common.ErrConfig, "indexer.url is required for the indexer source")
		}
		switch strings.ToLower(cfg.Indexer.VersionOracle) {
		case OracleLedger, OracleProcessor, "":
		default:
			return errors.Wrapf(common.ErrConfig, "unknown indexer.version_oracle %q", cfg.Indexer.VersionOracle)
		}
	default:
		return errors.Wrapf(common.ErrConfig, "unknown monitor.source %q", cfg.Monitor.Source)
	}

	switch strings.ToLower(cfg.Cursor.Driver) {
	case state.DriverMemory, "":
	case state.DriverSQLite, state.DriverPostgres:
		if cfg.Cursor.DSN == "" {
			return errors.Wrapf(common.ErrConfig, "cursor.dsn is required for driver %s", cfg.Cursor.Driver)
		}
	default:
		return errors.Wrapf(common.ErrConfig, "unknown cursor.driver %q", cfg.Cursor.Driver)
	}

	if cfg.Reporter.Enabled && cfg.Reporter.Port == "" {
		return errors.Wrap(common.ErrConfig, "reporter.port is required when the reporter is enabled")
	}
	return nil
}

// AptosmanConfig converts the aptos and bridge sections.
func (cfg *MonitorConfig) AptosmanConfig() (*aptosman.AptosmanConfig, error) {
	btcParams, err := common.BtcNetParams(cfg.Bridge.BtcNetwork)
	if err != nil {
		return nil, err
	}
	return &aptosman.AptosmanConfig{
		Network:         cfg.Aptos.Network,
		NodeURL:         cfg.Aptos.NodeURL,
		APIKey:          cfg.Aptos.APIKey,
		ContractAddress: cfg.Bridge.ContractAddress,
		BridgeModule:    cfg.Bridge.Module,
		EventModule:     cfg.Bridge.EventModule,
		BtcChainConfig:  btcParams,
		MaxFeeRate:      cfg.Bridge.MaxFeeRate,
		TxTimeout:       cfg.Aptos.TxTimeout,
	}, nil
}

func (cfg *MonitorConfig) ChainSyncConfig() chainsync.ChainSyncConfig {
	return chainsync.ChainSyncConfig{
		Interval: cfg.Monitor.Interval,
		Backoff: chainsync.BackoffConfig{
			Initial:    cfg.Monitor.Backoff.Initial,
			Max:        cfg.Monitor.Backoff.Max,
			Multiplier: cfg.Monitor.Backoff.Multiplier,
			Jitter:     cfg.Monitor.Backoff.Jitter,
		},
	}
}
