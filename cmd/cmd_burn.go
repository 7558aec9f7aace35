package cmd

import (
	"fmt"

	"github.com/TEENet-io/bridge-client-aptos/aptosman"
	"github.com/TEENet-io/bridge-client-aptos/common"
	"github.com/spf13/cobra"
)

type burnCmdOptions struct {
	BtcAddress string
	Amount     string
	FeeRate    uint64
	OperatorID uint64
}

func NewBurnCommand(root *rootOptions) *cobra.Command {
	opts := &burnCmdOptions{}

	cmd := &cobra.Command{
		Use:   "burn",
		Short: "Burn bridged BTC and redeem to a bitcoin address",
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := common.ParseBTCAmount(opts.Amount)
			if err != nil {
				return err
			}
			aptman, err := NewAptosmanFromConfig(root.Config())
			if err != nil {
				return err
			}
			hash, err := aptman.Burn(cmd.Context(), &aptosman.BurnParams{
				BtcAddress: opts.BtcAddress,
				FeeRate:    opts.FeeRate,
				Amount:     amount,
				OperatorID: opts.OperatorID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "burned %s, tx %s\n", common.FormatBTCAmount(amount), hash)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.BtcAddress, "btc-address", "", "bitcoin address receiving the redeemed BTC")
	flags.StringVar(&opts.Amount, "amount", "", "amount in BTC, E.g. `0.5`")
	flags.Uint64Var(&opts.FeeRate, "fee-rate", 1, "bitcoin fee rate in sat/vbyte")
	flags.Uint64Var(&opts.OperatorID, "operator-id", 0, "bridge operator id")
	_ = cmd.MarkFlagRequired("btc-address")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
