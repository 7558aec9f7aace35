package cmd

import (
	"github.com/TEENet-io/bridge-client-aptos/agreement"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

type txCmdOptions struct {
	TxHash string
}

type eventOutput struct {
	Kind  agreement.EventKind   `json:"kind"`
	Event agreement.BridgeEvent `json:"event"`
}

func NewEventsCommand(root *rootOptions) *cobra.Command {
	opts := &txCmdOptions{}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the bridge events emitted by one transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.TxHash == "" {
				return errors.Wrap(common.ErrInvalidArgument, "--tx is required")
			}
			aptman, err := NewAptosmanFromConfig(root.Config())
			if err != nil {
				return err
			}
			events, err := aptman.EventsByTransactionHash(cmd.Context(), opts.TxHash)
			if err != nil {
				return err
			}
			out := make([]eventOutput, 0, len(events))
			for _, ev := range events {
				out = append(out, eventOutput{Kind: ev.Kind(), Event: ev})
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.TxHash, "tx", "", "transaction hash, E.g. `0xabc...`")
	return cmd
}

func NewStatusCommand(root *rootOptions) *cobra.Command {
	opts := &txCmdOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a submitted transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.TxHash == "" {
				return errors.Wrap(common.ErrInvalidArgument, "--tx is required")
			}
			aptman, err := NewAptosmanFromConfig(root.Config())
			if err != nil {
				return err
			}
			status, err := aptman.TransactionStatus(cmd.Context(), opts.TxHash)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.TxHash, "tx", "", "transaction hash")
	return cmd
}

type lpCmdOptions struct {
	LPID       uint64
	WithdrawID uint64
}

type bridgeConfigOutput struct {
	Bridge     any    `json:"bridge"`
	Minted     string `json:"minted"`
	LPStatus   any    `json:"lp_status,omitempty"`
	LPWithdraw any    `json:"lp_withdraw,omitempty"`
}

// NewBridgeConfigCommand prints the on-chain bridge configuration, and
// optionally the state of one LP and one LP withdrawal.
func NewBridgeConfigCommand(root *rootOptions) *cobra.Command {
	opts := &lpCmdOptions{}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the bridge configuration read from view functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			aptman, err := NewAptosmanFromConfig(root.Config())
			if err != nil {
				return err
			}
			bridge, err := aptman.BridgeConfig(ctx)
			if err != nil {
				return err
			}
			minted, err := aptman.Minted(ctx)
			if err != nil {
				return err
			}
			out := bridgeConfigOutput{Bridge: bridge, Minted: common.FormatBTCAmount(minted)}

			flags := cmd.Flags()
			if flags.Changed("lp-id") {
				if out.LPStatus, err = aptman.LPStatus(ctx, opts.LPID); err != nil {
					return err
				}
			}
			if flags.Changed("withdraw-id") {
				if out.LPWithdraw, err = aptman.LPWithdraw(ctx, opts.WithdrawID); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	flags := cmd.Flags()
	flags.Uint64Var(&opts.LPID, "lp-id", 0, "also print the status of this LP")
	flags.Uint64Var(&opts.WithdrawID, "withdraw-id", 0, "also print this LP withdrawal")
	return cmd
}
