package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonylturner/cipwire/internal/capture"
	"github.com/tonylturner/cipwire/internal/ui"
)

type pcapDumpFlags struct {
	inputFile   string
	serviceHex  string
	maxEntries  int
	showPayload bool
}

func newPcapDumpCmd() *cobra.Command {
	flags := &pcapDumpFlags{}

	cmd := &cobra.Command{
		Use:   "pcap-dump",
		Short: "Decode the frames of a capture written with --capture",
		Example: `  cipwire pcap-dump --input session.pcap
  cipwire pcap-dump --input session.pcap --service 0x52 --payload`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.inputFile == "" && len(args) > 0 {
				flags.inputFile = args[0]
			}
			if flags.inputFile == "" {
				return missingFlagError(cmd, "--input")
			}
			return runPcapDump(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.inputFile, "input", "", "Input PCAP file (required)")
	cmd.Flags().StringVar(&flags.serviceHex, "service", "", "Only frames carrying this CIP service (request or reply)")
	cmd.Flags().IntVar(&flags.maxEntries, "max", 0, "Maximum number of frames to print (0 for all)")
	cmd.Flags().BoolVar(&flags.showPayload, "payload", false, "Include a hex dump of the CIP payload")

	return cmd
}

func runPcapDump(cmd *cobra.Command, flags *pcapDumpFlags) error {
	var filter uint64
	if flags.serviceHex != "" {
		v, err := parseUint(flags.serviceHex, 8)
		if err != nil {
			return fmt.Errorf("parse service: %w", err)
		}
		filter = v
	}

	frames, err := capture.ReadFile(flags.inputFile)
	if err != nil {
		return err
	}
	out := ui.NewPrinter(cmd.OutOrStdout())
	printed := 0
	for i, f := range frames {
		s := capture.Describe(f)
		if flags.serviceHex != "" && (!s.HasMessage || uint64(s.Service.Request()) != filter) {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%4d  %s\n", i+1, s)
		if flags.showPayload && s.HasMessage {
			out.Hex("", s.Payload)
		}
		printed++
		if flags.maxEntries > 0 && printed >= flags.maxEntries {
			break
		}
	}
	out.Success("%d of %d frames", printed, len(frames))
	return nil
}
