// Package publish sends polled request results to message brokers.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tonylturner/cipwire/internal/config"
	"github.com/tonylturner/cipwire/internal/logging"
)

// Message is the JSON document published for one batch entry.
type Message struct {
	Device    string    `json:"device"`
	Name      string    `json:"name"`
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	OK        bool      `json:"ok"`
	Value     string    `json:"value,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Encode returns the JSON form of m.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal message %s: %w", m.Name, err)
	}
	return data, nil
}

// Publisher delivers messages to one broker.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Set fans messages out to several publishers.
type Set struct {
	pubs   []Publisher
	logger *logging.Logger
}

// NewSet wraps already connected publishers.
func NewSet(logger *logging.Logger, pubs ...Publisher) *Set {
	return &Set{pubs: pubs, logger: logger}
}

// Open connects every target enabled in cfg. Targets that were connected
// before a failure are closed again.
func Open(ctx context.Context, cfg config.PublishConfig, logger *logging.Logger) (*Set, error) {
	set := &Set{logger: logger}
	add := func(p Publisher, err error) error {
		if err != nil {
			return err
		}
		logger.Verbose("publish: %s ready", p.Name())
		set.pubs = append(set.pubs, p)
		return nil
	}
	var err error
	if cfg.MQTT.Broker != "" {
		err = add(NewMQTT(ctx, cfg.MQTT, cfg.Prefix))
	}
	if err == nil && cfg.Redis.Addr != "" {
		err = add(NewRedis(ctx, cfg.Redis, cfg.Prefix))
	}
	if err == nil && len(cfg.Kafka.Brokers) > 0 {
		err = add(NewKafka(cfg.Kafka, cfg.Prefix), nil)
	}
	if err != nil {
		set.Close()
		return nil, err
	}
	return set, nil
}

// Len returns the number of publishers.
func (s *Set) Len() int { return len(s.pubs) }

// Publish sends every message to every publisher. A failing publisher does
// not stop delivery to the others; all failures are returned joined.
func (s *Set) Publish(ctx context.Context, msgs []Message) error {
	var errs []error
	for _, p := range s.pubs {
		for _, m := range msgs {
			if err := p.Publish(ctx, m); err != nil {
				s.logger.Error("publish %s to %s: %v", m.Name, p.Name(), err)
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
				break
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (s *Set) Close() error {
	var errs []error
	for _, p := range s.pubs {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	s.pubs = nil
	return errors.Join(errs...)
}

// joinKey joins non-empty segments with sep, trimming sep from each.
func joinKey(sep string, segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, sep)
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}
