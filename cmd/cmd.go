package cmd

import (
	"context"
	"encoding/json"
	"io"

	"github.com/TEENet-io/bridge-client-aptos/logconfig"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type rootOptions struct {
	ConfigFile string
	config     *MonitorConfig
}

// Config is available to sub-commands after the root pre-run.
func (opts *rootOptions) Config() *MonitorConfig {
	return opts.config
}

func (opts *rootOptions) load() error {
	v := viper.New()
	if err := ReadConfigFile(v, opts.ConfigFile); err != nil {
		return err
	}
	cfg, err := LoadMonitorConfig(v)
	if err != nil {
		return err
	}
	if err := logconfig.ConfigLogger(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	opts.config = cfg
	return nil
}

// NewRootCommand builds the bridge-client command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "bridge-client",
		Short:         "Aptos side client of the BTC bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	// Add global flags
	flags := root.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "config file, E.g. `./config.yaml` (env "+ENV_CONFIG_FILE_PATH+")")

	// Register sub-commands
	root.AddCommand(
		NewMonitorCommand(opts),
		NewEventsCommand(opts),
		NewBridgeConfigCommand(opts),
		NewStatusCommand(opts),
		NewBurnCommand(opts),
	)
	return root
}

// Execute runs the command tree until ctx is done.
func Execute(ctx context.Context) error {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
