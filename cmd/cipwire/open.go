package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	cipErrors "github.com/tonylturner/cipwire/internal/errors"
	"github.com/tonylturner/cipwire/internal/ui"
)

func newOpenCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open and close an explicit messaging connection",
		Long: `Forward_Open a class 3 connection with the config's connection
settings, print the negotiated identifiers, then Forward_Close it.`,
		Example: `  cipwire open --target 10.0.0.50
  cipwire open --config plant.yaml -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			gf.connected = true
			return withSession(cmd, gf, func(ctx context.Context, s *session) error {
				conn := s.client.Connection()
				id := conn.Identity()
				ot, to := conn.APIs()
				s.out.KeyValues("Connection", []ui.KV{
					{Key: "state", Value: conn.State().String()},
					{Key: "O->T id", Value: fmt.Sprintf("0x%08X", id.OTConnectionID)},
					{Key: "T->O id", Value: fmt.Sprintf("0x%08X", id.TOConnectionID)},
					{Key: "serial", Value: fmt.Sprintf("0x%04X", id.ConnectionSerial)},
					{Key: "vendor", Value: fmt.Sprintf("0x%04X", id.VendorID)},
					{Key: "originator", Value: fmt.Sprintf("0x%08X", id.OriginatorSerial)},
					{Key: "O->T API", Value: fmt.Sprintf("%d us", ot)},
					{Key: "T->O API", Value: fmt.Sprintf("%d us", to)},
					{Key: "path", Value: id.Path.String()},
				})

				reply, err := s.client.CloseConnection(ctx)
				if err == nil {
					err = reply.Err()
				}
				if err != nil {
					return cipErrors.WrapCIPError(err, "Forward_Close")
				}
				s.out.Success("connection closed (%s)", conn.State())
				return nil
			})
		},
	}
}
