package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonylturner/cipwire/internal/cip/client"
	"github.com/tonylturner/cipwire/internal/cip/epath"
	cipErrors "github.com/tonylturner/cipwire/internal/errors"
	"github.com/tonylturner/cipwire/internal/ui"
)

type tagFlags struct {
	tag        string
	elements   uint16
	fragmented bool
	dataType   string
	valueHex   string
}

func newReadCmd(gf *globalFlags) *cobra.Command {
	flags := &tagFlags{}
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read a Logix tag",
		Example: `  cipwire read --target 10.0.0.50 --tag Program:Main.Counter
  cipwire read --target 10.0.0.50 --tag BigArray --elements 500 --fragmented`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.tag == "" {
				return missingFlagError(cmd, "--tag")
			}
			path := epath.FromSymbolic(flags.tag)
			return withSession(cmd, gf, func(ctx context.Context, s *session) error {
				var (
					value client.TagValue
					err   error
				)
				if flags.fragmented {
					value, err = s.client.ReadTagFragmented(ctx, path, flags.elements)
				} else {
					value, err = s.client.ReadTag(ctx, path, flags.elements)
				}
				if err != nil {
					return cipErrors.WrapCIPError(err, "read "+flags.tag)
				}
				s.out.Success("%s (%s, %d bytes)", flags.tag, value.Type, len(value.Data))
				if text, ok := formatTagValue(value); ok {
					s.out.KeyValues("", []ui.KV{{Key: "value", Value: text}})
				}
				s.out.Hex("data", value.Data)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&flags.tag, "tag", "", "Symbolic tag name, e.g. Program:Main.Counter (required)")
	cmd.Flags().Uint16Var(&flags.elements, "elements", 1, "Number of elements to read")
	cmd.Flags().BoolVar(&flags.fragmented, "fragmented", false, "Use Read_Tag_Fragmented")
	return cmd
}

func newWriteCmd(gf *globalFlags) *cobra.Command {
	flags := &tagFlags{}
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write a Logix tag",
		Long: `Write a Logix tag. Values longer than fragment_size are sent with
Write_Tag_Fragmented in fragment_size chunks.`,
		Example: `  cipwire write --target 10.0.0.50 --tag Counter --type DINT --value-hex 2A000000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if flags.tag == "" {
				return missingFlagError(cmd, "--tag")
			}
			if flags.dataType == "" {
				return missingFlagError(cmd, "--type")
			}
			if flags.valueHex == "" {
				return missingFlagError(cmd, "--value-hex")
			}
			value, err := buildTagValue(flags.dataType, flags.valueHex)
			if err != nil {
				return err
			}
			path := epath.FromSymbolic(flags.tag)
			return withSession(cmd, gf, func(ctx context.Context, s *session) error {
				chunk := s.cfg.FragmentSize
				if flags.fragmented || len(value.Data) > chunk {
					err = s.client.WriteTagFragmented(ctx, path, value, flags.elements, chunk)
				} else {
					err = s.client.WriteTag(ctx, path, value, flags.elements)
				}
				if err != nil {
					return cipErrors.WrapCIPError(err, "write "+flags.tag)
				}
				s.out.Success("%s: wrote %d bytes of %s", flags.tag, len(value.Data), value.Type)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&flags.tag, "tag", "", "Symbolic tag name (required)")
	cmd.Flags().Uint16Var(&flags.elements, "elements", 1, "Number of elements to write")
	cmd.Flags().StringVar(&flags.dataType, "type", "", "Atomic type name (DINT, REAL, ...) (required)")
	cmd.Flags().StringVar(&flags.valueHex, "value-hex", "", "Little-endian value bytes in hex (required)")
	cmd.Flags().BoolVar(&flags.fragmented, "fragmented", false, "Always use Write_Tag_Fragmented")
	return cmd
}

func buildTagValue(typeName, valueHex string) (client.TagValue, error) {
	typ, err := client.ParseTagType(strings.ToUpper(strings.TrimSpace(typeName)))
	if err != nil {
		return client.TagValue{}, err
	}
	data, err := parseHexPayload(valueHex)
	if err != nil {
		return client.TagValue{}, err
	}
	if size := atomicSize(typ); size > 0 && len(data)%size != 0 {
		return client.TagValue{}, fmt.Errorf("%d bytes is not a whole number of %s values", len(data), typ)
	}
	return client.TagValue{Type: typ, Data: data}, nil
}

func atomicSize(t client.TagType) int {
	if t.Struct {
		return 0
	}
	switch t.Code {
	case client.TypeBOOL, client.TypeSINT, client.TypeUSINT:
		return 1
	case client.TypeINT, client.TypeUINT:
		return 2
	case client.TypeDINT, client.TypeUDINT, client.TypeREAL, client.TypeDWORD:
		return 4
	case client.TypeLINT, client.TypeULINT, client.TypeLREAL:
		return 8
	}
	return 0
}

// formatTagValue renders atomic values as comma-separated numbers.
func formatTagValue(v client.TagValue) (string, bool) {
	size := atomicSize(v.Type)
	if size == 0 || len(v.Data) == 0 || len(v.Data)%size != 0 {
		return "", false
	}
	const maxShown = 16
	var parts []string
	for off := 0; off < len(v.Data) && len(parts) < maxShown; off += size {
		parts = append(parts, formatAtomic(v.Type.Code, v.Data[off:off+size]))
	}
	text := strings.Join(parts, ", ")
	if n := len(v.Data) / size; n > maxShown {
		text += fmt.Sprintf(" ... (%d values)", n)
	}
	return text, true
}

func formatAtomic(code uint16, b []byte) string {
	le := binary.LittleEndian
	switch code {
	case client.TypeBOOL:
		return fmt.Sprintf("%t", b[0] != 0)
	case client.TypeSINT:
		return fmt.Sprintf("%d", int8(b[0]))
	case client.TypeUSINT:
		return fmt.Sprintf("%d", b[0])
	case client.TypeINT:
		return fmt.Sprintf("%d", int16(le.Uint16(b)))
	case client.TypeUINT:
		return fmt.Sprintf("%d", le.Uint16(b))
	case client.TypeDINT:
		return fmt.Sprintf("%d", int32(le.Uint32(b)))
	case client.TypeUDINT:
		return fmt.Sprintf("%d", le.Uint32(b))
	case client.TypeDWORD:
		return fmt.Sprintf("0x%08X", le.Uint32(b))
	case client.TypeREAL:
		return fmt.Sprintf("%g", math.Float32frombits(le.Uint32(b)))
	case client.TypeLINT:
		return fmt.Sprintf("%d", int64(le.Uint64(b)))
	case client.TypeULINT:
		return fmt.Sprintf("%d", le.Uint64(b))
	case client.TypeLREAL:
		return fmt.Sprintf("%g", math.Float64frombits(le.Uint64(b)))
	}
	return fmt.Sprintf("% X", b)
}
