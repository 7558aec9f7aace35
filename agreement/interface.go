package agreement

import (
	"context"

	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/cockroachdb/errors"
	logger "github.com/sirupsen/logrus"
)

// EventHandler consumes normalized bridge events.
// Events are delivered at least once: a handler error stops the cycle and
// the same events are delivered again on the next one, so handlers shall
// be idempotent.
type EventHandler interface {
	HandleMint(ctx context.Context, ev *MintEvent) error
	HandleBurn(ctx context.Context, ev *BurnEvent) error
}

// WithdrawByLPHandler is optionally implemented by an EventHandler.
// Without it, WithdrawByLP events are skipped.
type WithdrawByLPHandler interface {
	HandleWithdrawByLP(ctx context.Context, ev *WithdrawByLPEvent) error
}

// ErrorHandler is optionally implemented by an EventHandler to observe
// failed poll cycles. Without it, failures are only logged.
type ErrorHandler interface {
	HandleError(ctx context.Context, err error) error
}

// HandlerFuncs adapts plain functions to the handler interfaces.
// Nil functions accept the event and do nothing.
type HandlerFuncs struct {
	Mint         func(ctx context.Context, ev *MintEvent) error
	Burn         func(ctx context.Context, ev *BurnEvent) error
	WithdrawByLP func(ctx context.Context, ev *WithdrawByLPEvent) error
	Error        func(ctx context.Context, err error) error
}

var (
	_ EventHandler        = (*HandlerFuncs)(nil)
	_ WithdrawByLPHandler = (*HandlerFuncs)(nil)
	_ ErrorHandler        = (*HandlerFuncs)(nil)
)

func (h *HandlerFuncs) HandleMint(ctx context.Context, ev *MintEvent) error {
	if h.Mint == nil {
		return nil
	}
	return h.Mint(ctx, ev)
}

func (h *HandlerFuncs) HandleBurn(ctx context.Context, ev *BurnEvent) error {
	if h.Burn == nil {
		return nil
	}
	return h.Burn(ctx, ev)
}

func (h *HandlerFuncs) HandleWithdrawByLP(ctx context.Context, ev *WithdrawByLPEvent) error {
	if h.WithdrawByLP == nil {
		return nil
	}
	return h.WithdrawByLP(ctx, ev)
}

func (h *HandlerFuncs) HandleError(ctx context.Context, err error) error {
	if h.Error == nil {
		logger.WithError(err).Error("bridge event cycle failed")
		return nil
	}
	return h.Error(ctx, err)
}

// Dispatch routes one event to the matching handler method.
// Handler errors are marked common.ErrHandler.
func Dispatch(ctx context.Context, h EventHandler, ev BridgeEvent) error {
	var err error
	switch e := ev.(type) {
	case *MintEvent:
		err = h.HandleMint(ctx, e)
	case *BurnEvent:
		err = h.HandleBurn(ctx, e)
	case *WithdrawByLPEvent:
		lp, ok := h.(WithdrawByLPHandler)
		if !ok {
			logger.WithField("event", e.String()).Debug("no withdraw-by-lp handler, skipping")
			return nil
		}
		err = lp.HandleWithdrawByLP(ctx, e)
	default:
		return errors.Newf("unknown bridge event type %T", ev)
	}
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "handle %s event at version %d", ev.Kind(), ev.Meta().VersionOrZero()), common.ErrHandler)
	}
	return nil
}
