package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newServicesCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "services",
		Short:   "List the encapsulation services of a device",
		Example: `  cipwire services --target 10.0.0.50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return withSession(cmd, gf, func(ctx context.Context, s *session) error {
				services, err := s.client.ListServices(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(services))
				for _, svc := range services {
					cip := "no"
					if svc.SupportsCIP() {
						cip = "yes"
					}
					rows = append(rows, []string{svc.Name, fmt.Sprintf("%d", svc.Version), fmt.Sprintf("0x%04X", svc.Capabilities), cip})
				}
				s.out.Table([]string{"NAME", "VERSION", "CAPABILITIES", "CIP"}, rows)
				return nil
			})
		},
	}
}
