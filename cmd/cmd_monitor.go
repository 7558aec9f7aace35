package cmd

import (
	"github.com/spf13/cobra"
)

func NewMonitorCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Follow bridge events until SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			return StartMonitorAndWait(cmd.Context(), root.Config())
		},
	}
}
