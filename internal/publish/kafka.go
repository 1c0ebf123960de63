package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tonylturner/cipwire/internal/config"
)

// Kafka produces each message to one topic, keyed by prefix.device.name so
// that values of one entry stay on one partition.
type Kafka struct {
	cfg    config.KafkaConfig
	prefix string
	writer *kafka.Writer
}

// NewKafka builds the writer. Brokers are dialed on the first publish.
func NewKafka(cfg config.KafkaConfig, prefix string) *Kafka {
	return &Kafka{
		cfg:    cfg,
		prefix: prefix,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

func (k *Kafka) Name() string { return "kafka " + k.cfg.Topic }

func kafkaKey(prefix string, msg Message) []byte {
	return []byte(joinKey(".", prefix, msg.Device, msg.Name))
}

func (k *Kafka) Publish(ctx context.Context, msg Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   kafkaKey(k.prefix, msg),
		Value: data,
		Time:  msg.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("kafka produce: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.writer.Close() }
