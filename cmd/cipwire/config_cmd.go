package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonylturner/cipwire/internal/config"
	"github.com/tonylturner/cipwire/internal/ui"
)

func newConfigCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or validate a client config file",
	}
	cmd.AddCommand(newConfigInitCmd(gf), newConfigValidateCmd(gf))
	return cmd
}

func newConfigInitCmd(gf *globalFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Write a default config file",
		Example: `  cipwire config init --config plant.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if _, err := os.Stat(gf.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", gf.configPath)
			}
			if err := config.WriteDefaultClientConfig(gf.configPath); err != nil {
				return err
			}
			ui.NewPrinter(cmd.OutOrStdout()).Success("wrote %s", gf.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newConfigValidateCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "validate",
		Short:   "Load and validate a config file",
		Example: `  cipwire config validate --config plant.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			cfg, err := config.LoadClientConfig(gf.configPath, false)
			if err != nil {
				return err
			}
			out := ui.NewPrinter(cmd.OutOrStdout())
			out.Success("%s is valid", gf.configPath)
			mode := "unconnected"
			if cfg.Connection.Enabled {
				mode = fmt.Sprintf("connected (%d byte connection, RPI %d ms)", cfg.Connection.Size, cfg.Connection.RPIMs)
			}
			route := cfg.Target.Route
			if route == "" {
				route = "(direct)"
			}
			var targets []string
			if cfg.Publish.MQTT.Broker != "" {
				targets = append(targets, "mqtt")
			}
			if cfg.Publish.Redis.Addr != "" {
				targets = append(targets, "redis")
			}
			if len(cfg.Publish.Kafka.Brokers) > 0 {
				targets = append(targets, "kafka")
			}
			publishTo := "(none)"
			if len(targets) > 0 {
				publishTo = strings.Join(targets, ", ")
			}
			out.KeyValues("", []ui.KV{
				{Key: "target", Value: cfg.Address()},
				{Key: "route", Value: route},
				{Key: "messaging", Value: mode},
				{Key: "batch entries", Value: fmt.Sprintf("%d", len(cfg.Batch))},
				{Key: "publish", Value: publishTo},
			})
			return nil
		},
	}
}
