package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonylturner/cipwire/internal/cip/client"
	"github.com/tonylturner/cipwire/internal/cip/codec"
	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/epath"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
	"github.com/tonylturner/cipwire/internal/config"
	cipErrors "github.com/tonylturner/cipwire/internal/errors"
)

func newBatchCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "batch",
		Short: "Send the config's batch entries as one Multiple Service request",
		Long: `Send every entry of the config file's batch list in a single
Multiple_Service_Packet and print each embedded reply.`,
		Example: `  cipwire batch --config plant.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return withSession(cmd, gf, func(ctx context.Context, s *session) error {
				if len(s.cfg.Batch) == 0 {
					return fmt.Errorf("no batch entries in %s", gf.configPath)
				}
				results, err := runBatch(ctx, s)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, r.row)
				}
				s.out.Table([]string{"NAME", "SERVICE", "STATUS", "VALUE"}, rows)
				return nil
			})
		},
	}
}

type batchResult struct {
	entry config.RequestConfig
	reply protocol.RawReply
	row   []string
}

// runBatch sends the config's batch entries as one Multiple_Service_Packet.
func runBatch(ctx context.Context, s *session) ([]batchResult, error) {
	batch := s.client.Batch()
	for _, entry := range s.cfg.Batch {
		req, err := buildBatchRequest(entry)
		if err != nil {
			return nil, fmt.Errorf("batch entry %s: %w", entry.Name, err)
		}
		batch.Push(req)
	}

	it, err := batch.Call(ctx)
	if err != nil {
		return nil, cipErrors.WrapCIPError(err, "Multiple_Service_Packet")
	}
	results := make([]batchResult, 0, it.Len())
	for it.Next() {
		entry := s.cfg.Batch[it.Index()]
		results = append(results, batchResult{entry: entry, reply: it.Reply(), row: batchRow(entry, it.Reply())})
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func buildBatchRequest(entry config.RequestConfig) (protocol.Request, error) {
	attrPath := func() epath.EPath {
		return epath.FromClass(entry.Class).Instance(entry.Instance).Attribute(entry.Attribute)
	}
	switch entry.Service {
	case config.ServiceGetAttributeSingle:
		return protocol.NewRequest(codes.ServiceGetAttributeSingle, attrPath(), codec.Empty{}), nil
	case config.ServiceSetAttributeSingle:
		value, err := parseHexPayload(entry.ValueHex)
		if err != nil {
			return nil, err
		}
		return protocol.NewRequest(codes.ServiceSetAttributeSingle, attrPath(), codec.RawBytes(value)), nil
	case config.ServiceReadTag:
		return client.NewReadTagRequest(epath.FromSymbolic(entry.Tag), entry.Elements), nil
	case config.ServiceWriteTag:
		value, err := buildTagValue(entry.Type, entry.ValueHex)
		if err != nil {
			return nil, err
		}
		return client.NewWriteTagRequest(epath.FromSymbolic(entry.Tag), value, entry.Elements), nil
	}
	return nil, fmt.Errorf("unsupported service %q", entry.Service)
}

func batchRow(entry config.RequestConfig, reply protocol.RawReply) []string {
	row := []string{entry.Name, codes.ServiceName(reply.ReplyService.Request()), reply.Status.String(), ""}
	if reply.Status.IsErr() {
		return row
	}
	switch entry.Service {
	case config.ServiceReadTag:
		var v client.TagValue
		if err := codec.Unmarshal(reply.Data, &v); err != nil {
			row[3] = "undecodable: " + err.Error()
		} else if text, ok := formatTagValue(v); ok {
			row[3] = text
		} else {
			row[3] = fmt.Sprintf("%s % X", v.Type, v.Data)
		}
	case config.ServiceGetAttributeSingle:
		row[3] = fmt.Sprintf("% X", []byte(reply.Data))
	}
	return row
}
