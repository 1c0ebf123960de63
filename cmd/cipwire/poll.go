package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonylturner/cipwire/internal/publish"
)

func newPollCmd(gf *globalFlags) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run the batch on an interval and publish the results",
		Long: `Send the config's batch entries every publish.interval_ms and publish
each result as JSON to the MQTT, Redis and Kafka targets configured under
publish. With no targets configured the results are only printed.`,
		Example: `  cipwire poll --config plant.yaml
  cipwire poll --config plant.yaml --count 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if count < 0 {
				return fmt.Errorf("--count must be >= 0")
			}
			return withSession(cmd, gf, func(ctx context.Context, s *session) error {
				if len(s.cfg.Batch) == 0 {
					return fmt.Errorf("no batch entries in %s", gf.configPath)
				}
				pubs, err := publish.Open(ctx, s.cfg.Publish, s.logger)
				if err != nil {
					return err
				}
				defer pubs.Close()
				if pubs.Len() == 0 {
					s.out.Warn("no publish targets configured, printing results only")
				}
				return pollLoop(ctx, s, pubs, count)
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many cycles (0 runs until interrupted)")
	return cmd
}

func pollLoop(ctx context.Context, s *session, pubs *publish.Set, count int) error {
	ticker := time.NewTicker(s.cfg.Publish.Interval())
	defer ticker.Stop()

	for cycle := 1; ; cycle++ {
		results, err := runBatch(ctx, s)
		if err != nil {
			return err
		}
		msgs := pollMessages(s.cfg.Address(), results, time.Now().UTC())
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			rows = append(rows, r.row)
		}
		s.out.Title(fmt.Sprintf("Cycle %d", cycle))
		s.out.Table([]string{"NAME", "SERVICE", "STATUS", "VALUE"}, rows)
		if err := pubs.Publish(ctx, msgs); err != nil {
			s.out.Error(err)
		}

		if count > 0 && cycle >= count {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func pollMessages(device string, results []batchResult, now time.Time) []publish.Message {
	msgs := make([]publish.Message, 0, len(results))
	for _, r := range results {
		msgs = append(msgs, publish.Message{
			Device:    device,
			Name:      r.entry.Name,
			Service:   r.row[1],
			Status:    r.row[2],
			OK:        !r.reply.Status.IsErr(),
			Value:     r.row[3],
			Timestamp: now,
		})
	}
	return msgs
}
