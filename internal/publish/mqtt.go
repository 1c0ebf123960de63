package publish

import (
	"context"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tonylturner/cipwire/internal/config"
)

const mqttTimeout = 5 * time.Second

// MQTT publishes each message to prefix/device/name.
type MQTT struct {
	cfg    config.MQTTConfig
	prefix string
	client pahomqtt.Client
}

// NewMQTT connects to the broker.
func NewMQTT(ctx context.Context, cfg config.MQTTConfig, prefix string) (*MQTT, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetConnectTimeout(mqttTimeout)

	client := pahomqtt.NewClient(opts)
	if err := waitToken(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return &MQTT{cfg: cfg, prefix: prefix, client: client}, nil
}

func (m *MQTT) Name() string { return "mqtt " + m.cfg.Broker }

// Topic returns the topic a message is published to.
func (m *MQTT) Topic(msg Message) string {
	return mqttTopic(m.prefix, msg)
}

func mqttTopic(prefix string, msg Message) string {
	return joinKey("/", prefix, msg.Device, msg.Name)
}

func (m *MQTT) Publish(ctx context.Context, msg Message) error {
	payload, err := msg.Encode()
	if err != nil {
		return err
	}
	return waitToken(ctx, m.client.Publish(m.Topic(msg), m.cfg.QoS, m.cfg.Retain, payload))
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}

func waitToken(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttTimeout):
		return fmt.Errorf("timed out after %s", mqttTimeout)
	}
}
