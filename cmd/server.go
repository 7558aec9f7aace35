package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/TEENet-io/bridge-client-aptos/agreement"
	"github.com/TEENet-io/bridge-client-aptos/aptosman"
	"github.com/TEENet-io/bridge-client-aptos/aptossync"
	"github.com/TEENet-io/bridge-client-aptos/bridgeevent"
	"github.com/TEENet-io/bridge-client-aptos/chainsync"
	"github.com/TEENet-io/bridge-client-aptos/reporter"
	"github.com/TEENet-io/bridge-client-aptos/state"
	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"
)

// MonitorServer holds the wired components of a running event monitor.
type MonitorServer struct {
	Config   *MonitorConfig
	Aptosman *aptosman.Aptosman
	Source   chainsync.EventSource
	Store    state.Store
	Monitor  *chainsync.EventMonitor
	Handler  *LoggingHandler
	Reporter *reporter.HttpReporter
}

// NewAptosmanFromConfig creates the chain client. Without aptos.private_key
// it can only read.
func NewAptosmanFromConfig(cfg *MonitorConfig) (*aptosman.Aptosman, error) {
	acfg, err := cfg.AptosmanConfig()
	if err != nil {
		return nil, err
	}
	var account *aptos.Account
	if cfg.Aptos.PrivateKey != "" {
		account, err = aptosman.NewAccountFromHex(cfg.Aptos.PrivateKey)
		if err != nil {
			return nil, errors.Wrap(err, "aptos.private_key")
		}
	}
	return aptosman.NewAptosman(acfg, account)
}

// NewMonitorServer wires source, cursor store, metrics, handler and
// reporter. Nothing runs until Start.
func NewMonitorServer(ctx context.Context, cfg *MonitorConfig, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*MonitorServer, error) {
	// 1) chain client
	aptman, err := NewAptosmanFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	// 2) decoder + normalizer
	policy, err := bridgeevent.ParseDecodePolicy(cfg.Monitor.DecodePolicy)
	if err != nil {
		return nil, err
	}
	decoder := bridgeevent.NewDecoder(aptman.EventTypes(), policy)
	normalizer := bridgeevent.NewNormalizer(aptman.Node())

	// 3) event source
	source, err := newEventSource(cfg, aptman, decoder, normalizer)
	if err != nil {
		return nil, err
	}

	// 4) cursor store
	store, err := state.NewCursorStore(ctx, cfg.Cursor.Driver, cfg.Cursor.DSN)
	if err != nil {
		return nil, err
	}

	// 5) monitor
	handler := NewLoggingHandler()
	syncCfg := cfg.ChainSyncConfig()
	syncCfg.StartCursor = startCursor(cfg, source)
	syncCfg.Metrics = chainsync.NewMetrics(reg)
	monitor, err := chainsync.New(syncCfg, source, handler, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	srv := &MonitorServer{
		Config:   cfg,
		Aptosman: aptman,
		Source:   source,
		Store:    store,
		Monitor:  monitor,
		Handler:  handler,
	}

	// 6) http reporter
	if cfg.Reporter.Enabled {
		srv.Reporter = reporter.NewHttpReporter(cfg.Reporter.IP, cfg.Reporter.Port, gatherer, monitor)
	}

	contract := aptman.ContractAddress()
	logger.WithFields(logger.Fields{
		"source":   source.Name(),
		"contract": contract.String(),
		"policy":   policy.String(),
		"cursor":   cfg.Cursor.Driver,
	}).Info("monitor server created")
	return srv, nil
}

func newEventSource(cfg *MonitorConfig, aptman *aptosman.Aptosman, decoder *bridgeevent.Decoder, normalizer *bridgeevent.Normalizer) (chainsync.EventSource, error) {
	if strings.ToLower(cfg.Monitor.Source) != SourceIndexer {
		return aptossync.NewNodeSource(aptossync.NodeSourceConfig{
			Kinds:    monitorKinds(cfg),
			PageSize: cfg.Monitor.PageSize,
		}, aptman.Node(), decoder, normalizer)
	}

	var oracle aptossync.VersionOracle
	if cfg.Monitor.BatchSize > 0 {
		if strings.ToLower(cfg.Indexer.VersionOracle) == OracleProcessor {
			acfg, err := cfg.AptosmanConfig()
			if err != nil {
				return nil, err
			}
			oracle, err = aptosman.NewProcessorStatusOracle(acfg, cfg.Indexer.Processor)
			if err != nil {
				return nil, err
			}
		} else {
			oracle = aptman.Node()
		}
	}
	return aptossync.NewIndexerSource(aptossync.IndexerSourceConfig{
		URL:                 cfg.Indexer.URL,
		APIKey:              cfg.Indexer.APIKey,
		BatchSize:           cfg.Monitor.BatchSize,
		IncludeWithdrawByLP: cfg.Monitor.WithdrawByLP,
	}, decoder, normalizer, oracle)
}

// startCursor places every stream of the source at monitor.start_version.
func startCursor(cfg *MonitorConfig, source chainsync.EventSource) chainsync.Cursor {
	if cfg.Monitor.StartVersion == 0 {
		return nil
	}
	pos := chainsync.Position{Version: cfg.Monitor.StartVersion}
	if _, ok := source.(*aptossync.IndexerSource); ok {
		return chainsync.Cursor{aptossync.IndexerStream: pos}
	}
	cursor := chainsync.Cursor{}
	for _, kind := range monitorKinds(cfg) {
		cursor[string(kind)] = pos
	}
	return cursor
}

func monitorKinds(cfg *MonitorConfig) []agreement.EventKind {
	kinds := []agreement.EventKind{agreement.KindMint, agreement.KindBurn}
	if cfg.Monitor.WithdrawByLP {
		kinds = append(kinds, agreement.KindWithdrawByLP)
	}
	return kinds
}

// Start turns on the monitor loop and the http reporter.
// Don't forget to call wg.Wait() in the main routine.
func (s *MonitorServer) Start(ctx context.Context, wg *sync.WaitGroup, cancel context.CancelFunc) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Monitor.Run(ctx); err != nil {
			logger.WithError(err).Error("event monitor stopped")
			cancel()
		}
	}()

	if s.Reporter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Reporter.Run(ctx); err != nil {
				logger.WithError(err).Error("http reporter stopped")
				cancel()
			}
		}()
	}
}

func (s *MonitorServer) Close() error {
	return s.Store.Close()
}

// Create, then start the monitor server and wait.
// Press Ctrl-C to stop, the in-flight cycle finishes first.
func StartMonitorAndWait(ctx context.Context, cfg *MonitorConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up a signal channel to listen for Ctrl-C (SIGINT) or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			fmt.Printf("Received signal: %v, cancelling context...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	srv, err := NewMonitorServer(ctx, cfg, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		return errors.Wrap(err, "failed to create monitor server")
	}
	defer srv.Close()

	var wg sync.WaitGroup
	srv.Start(ctx, &wg, cancel)

	// wait for all routines to finish
	wg.Wait()

	totals := srv.Handler.Totals()
	logger.WithFields(logger.Fields{
		"cursor": srv.Monitor.Cursor().String(),
		"events": totals.Counts,
		"errors": totals.Errors,
	}).Info("monitor server stopped")
	return nil
}
