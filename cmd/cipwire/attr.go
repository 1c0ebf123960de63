package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/epath"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
	cipErrors "github.com/tonylturner/cipwire/internal/errors"
)

type attrFlags struct {
	classID     string
	instanceID  string
	attributeID string
	valueHex    string
}

func (f *attrFlags) path() (epath.EPath, error) {
	class, err := parseUint(f.classID, 16)
	if err != nil {
		return nil, fmt.Errorf("parse class: %w", err)
	}
	instance, err := parseUint(f.instanceID, 16)
	if err != nil {
		return nil, fmt.Errorf("parse instance: %w", err)
	}
	attribute, err := parseUint(f.attributeID, 16)
	if err != nil {
		return nil, fmt.Errorf("parse attribute: %w", err)
	}
	return epath.FromClass(uint16(class)).Instance(uint16(instance)).Attribute(uint16(attribute)), nil
}

func newAttrCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attr",
		Short: "Get or set a single object attribute",
	}
	cmd.AddCommand(newAttrGetCmd(gf), newAttrSetCmd(gf))
	return cmd
}

func addAttrFlags(cmd *cobra.Command, flags *attrFlags) {
	cmd.Flags().StringVar(&flags.classID, "class", "", "CIP class ID, hex or decimal (required)")
	cmd.Flags().StringVar(&flags.instanceID, "instance", "1", "CIP instance ID")
	cmd.Flags().StringVar(&flags.attributeID, "attribute", "", "CIP attribute ID (required)")
}

func newAttrGetCmd(gf *globalFlags) *cobra.Command {
	flags := &attrFlags{}
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get_Attribute_Single",
		Example: `  # Identity product name through a ControlLogix backplane
  cipwire attr get --target 10.0.0.50 --route 1,0 --class 0x01 --instance 1 --attribute 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.classID == "" {
				return missingFlagError(cmd, "--class")
			}
			if flags.attributeID == "" {
				return missingFlagError(cmd, "--attribute")
			}
			path, err := flags.path()
			if err != nil {
				return err
			}
			return withSession(cmd, gf, func(ctx context.Context, s *session) error {
				reply, err := s.send(ctx, protocol.NewRequest(codes.ServiceGetAttributeSingle, path, codec.Empty{}))
				if err == nil {
					err = reply.Err()
				}
				if err != nil {
					return cipErrors.WrapCIPError(err, "Get_Attribute_Single "+path.String())
				}
				s.out.Success("%s: %s", path, reply.Status)
				s.out.Hex("value", reply.Data)
				return nil
			})
		},
	}
	addAttrFlags(cmd, flags)
	return cmd
}

func newAttrSetCmd(gf *globalFlags) *cobra.Command {
	flags := &attrFlags{}
	cmd := &cobra.Command{
		Use:     "set",
		Short:   "Set_Attribute_Single",
		Example: `  cipwire attr set --target 10.0.0.50 --class 0xF5 --instance 1 --attribute 6 --value-hex "0000"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.classID == "" {
				return missingFlagError(cmd, "--class")
			}
			if flags.attributeID == "" {
				return missingFlagError(cmd, "--attribute")
			}
			if flags.valueHex == "" {
				return missingFlagError(cmd, "--value-hex")
			}
			path, err := flags.path()
			if err != nil {
				return err
			}
			value, err := parseHexPayload(flags.valueHex)
			if err != nil {
				return err
			}
			return withSession(cmd, gf, func(ctx context.Context, s *session) error {
				reply, err := s.send(ctx, protocol.NewRequest(codes.ServiceSetAttributeSingle, path, codec.RawBytes(value)))
				if err == nil {
					err = reply.Err()
				}
				if err != nil {
					return cipErrors.WrapCIPError(err, "Set_Attribute_Single "+path.String())
				}
				s.out.Success("%s: wrote %d bytes", path, len(value))
				return nil
			})
		},
	}
	addAttrFlags(cmd, flags)
	cmd.Flags().StringVar(&flags.valueHex, "value-hex", "", "Attribute value bytes in hex (required)")
	return cmd
}
