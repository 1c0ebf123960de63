package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	gf := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "cipwire",
		Short: "CIP explicit messaging client for EtherNet/IP devices",
		Long: `cipwire talks to EtherNet/IP devices over TCP: attribute and tag reads
and writes, fragmented transfers, batched Multiple Service requests and
connected messaging through Forward_Open.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	gf.register(rootCmd)

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServicesCmd(gf))
	rootCmd.AddCommand(newAttrCmd(gf))
	rootCmd.AddCommand(newReadCmd(gf))
	rootCmd.AddCommand(newWriteCmd(gf))
	rootCmd.AddCommand(newBatchCmd(gf))
	rootCmd.AddCommand(newPollCmd(gf))
	rootCmd.AddCommand(newOpenCmd(gf))
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newPcapDumpCmd())
	rootCmd.AddCommand(newConfigCmd(gf))

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != rootCmd {
			fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
			return
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Usage:\n  %s <command> [arguments] [options]\n\n", cmd.Name())
		fmt.Fprintf(out, "Available Commands:\n")
		for _, subCmd := range cmd.Commands() {
			if !subCmd.Hidden {
				fmt.Fprintf(out, "  %-15s %s\n", subCmd.Name(), subCmd.Short)
			}
		}
		fmt.Fprintf(out, "\nUse \"%s help <command>\" for more information about a command.\n", cmd.Name())
	})
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
