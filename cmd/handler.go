package cmd

import (
	"context"
	"sync"

	"github.com/TEENet-io/bridge-client-aptos/agreement"
	"github.com/TEENet-io/bridge-client-aptos/common"
	logger "github.com/sirupsen/logrus"
)

// LoggingHandler prints every bridge event and keeps running totals.
type LoggingHandler struct {
	mu       sync.Mutex
	counts   map[agreement.EventKind]uint64
	minted   uint64 // satoshi
	burned   uint64
	withdraw uint64
	errors   uint64
}

var (
	_ agreement.EventHandler        = (*LoggingHandler)(nil)
	_ agreement.WithdrawByLPHandler = (*LoggingHandler)(nil)
	_ agreement.ErrorHandler        = (*LoggingHandler)(nil)
)

func NewLoggingHandler() *LoggingHandler {
	return &LoggingHandler{counts: make(map[agreement.EventKind]uint64)}
}

func (h *LoggingHandler) HandleMint(ctx context.Context, ev *agreement.MintEvent) error {
	h.mu.Lock()
	h.counts[agreement.KindMint]++
	h.minted += ev.Amount
	h.mu.Unlock()

	logger.WithFields(logger.Fields{
		"to":        ev.To,
		"amount":    common.FormatBTCAmount(ev.Amount),
		"btc_tx_id": ev.BtcTxID,
		"btc_block": ev.BtcBlockNum,
		"meta":      ev.EventMeta.String(),
	}).Info("mint")
	return nil
}

func (h *LoggingHandler) HandleBurn(ctx context.Context, ev *agreement.BurnEvent) error {
	h.mu.Lock()
	h.counts[agreement.KindBurn]++
	h.burned += ev.Amount
	h.mu.Unlock()

	logger.WithFields(logger.Fields{
		"from":        ev.From,
		"btc_address": ev.BtcAddress,
		"amount":      common.FormatBTCAmount(ev.Amount),
		"fee_rate":    ev.FeeRate,
		"operator_id": ev.OperatorID,
		"meta":        ev.EventMeta.String(),
	}).Info("burn")
	return nil
}

func (h *LoggingHandler) HandleWithdrawByLP(ctx context.Context, ev *agreement.WithdrawByLPEvent) error {
	h.mu.Lock()
	h.counts[agreement.KindWithdrawByLP]++
	h.withdraw += ev.Amount
	h.mu.Unlock()

	logger.WithFields(logger.Fields{
		"from":        ev.From,
		"withdraw_id": ev.WithdrawID,
		"lp_id":       ev.LPID,
		"btc_address": ev.BtcAddress,
		"amount":      common.FormatBTCAmount(ev.Amount),
		"min_receive": common.FormatBTCAmount(ev.ReceiveMinAmount),
		"meta":        ev.EventMeta.String(),
	}).Info("withdraw by lp")
	return nil
}

// HandleError logs the failed cycle and lets the monitor retry.
func (h *LoggingHandler) HandleError(ctx context.Context, err error) error {
	h.mu.Lock()
	h.errors++
	h.mu.Unlock()
	logger.WithError(err).Warn("monitor cycle failed, will retry")
	return nil
}

// HandlerTotals is a snapshot of a LoggingHandler.
type HandlerTotals struct {
	Counts       map[agreement.EventKind]uint64
	Minted       uint64
	Burned       uint64
	WithdrawByLP uint64
	Errors       uint64
}

func (h *LoggingHandler) Totals() HandlerTotals {
	h.mu.Lock()
	defer h.mu.Unlock()
	counts := make(map[agreement.EventKind]uint64, len(h.counts))
	for k, v := range h.counts {
		counts[k] = v
	}
	return HandlerTotals{
		Counts:       counts,
		Minted:       h.minted,
		Burned:       h.burned,
		WithdrawByLP: h.withdraw,
		Errors:       h.errors,
	}
}
