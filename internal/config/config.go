package config

// Configuration loading and validation for cipwire

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tonylturner/cipwire/internal/cip/codes"
	"github.com/tonylturner/cipwire/internal/cip/connmgr"
	"github.com/tonylturner/cipwire/internal/cip/epath"
	"github.com/tonylturner/cipwire/internal/errors"
	"github.com/tonylturner/cipwire/internal/logging"
)

// DefaultPort is the EtherNet/IP explicit messaging TCP port.
const DefaultPort = 44818

// ServiceType names a request kind in a batch entry.
type ServiceType string

const (
	ServiceGetAttributeSingle ServiceType = "get_attribute_single"
	ServiceSetAttributeSingle ServiceType = "set_attribute_single"
	ServiceReadTag            ServiceType = "read_tag"
	ServiceWriteTag           ServiceType = "write_tag"
)

// TargetConfig is the device to talk to.
type TargetConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Route is an optional backplane route, hops separated by "/", each hop
	// "port,link" (for example "1,0" or "2,10.0.0.7/1,3").
	Route string `yaml:"route,omitempty"`
}

// ConnectionConfig controls the explicit messaging connection.
type ConnectionConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Large             bool   `yaml:"large"`
	RPIMs             int    `yaml:"rpi_ms"`
	Size              int    `yaml:"size"`
	Priority          string `yaml:"priority"`
	VendorID          uint16 `yaml:"vendor_id"`
	OriginatorSerial  uint32 `yaml:"originator_serial"`
	TimeoutMultiplier uint8  `yaml:"timeout_multiplier"`
	// Path is the connection path, same syntax as TargetConfig.Route. The
	// Message Router segment is appended automatically.
	Path string `yaml:"path,omitempty"`
}

// LoggingConfig selects log level, file and file format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// MetricsConfig names optional metrics outputs.
type MetricsConfig struct {
	CSV  string `yaml:"csv,omitempty"`
	JSON string `yaml:"json,omitempty"`
}

// CaptureConfig names an optional pcap of every exchanged frame.
type CaptureConfig struct {
	File string `yaml:"file,omitempty"`
}

// PublishConfig lists where the poll command sends batch results. Any
// combination of brokers may be enabled.
type PublishConfig struct {
	IntervalMs int         `yaml:"interval_ms"`
	Prefix     string      `yaml:"prefix,omitempty"`
	MQTT       MQTTConfig  `yaml:"mqtt,omitempty"`
	Redis      RedisConfig `yaml:"redis,omitempty"`
	Kafka      KafkaConfig `yaml:"kafka,omitempty"`
}

// MQTTConfig enables publishing to an MQTT broker when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker,omitempty"` // tcp://host:1883
	ClientID string `yaml:"client_id,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	QoS      byte   `yaml:"qos,omitempty"`
	Retain   bool   `yaml:"retain,omitempty"`
}

// RedisConfig enables writing to Redis or Valkey when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	TTLSec   int    `yaml:"ttl_sec,omitempty"`
	Channel  bool   `yaml:"channel,omitempty"`
}

// KafkaConfig enables producing to Kafka when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
}

// Enabled reports whether any publish target is configured.
func (p PublishConfig) Enabled() bool {
	return p.MQTT.Broker != "" || p.Redis.Addr != "" || len(p.Kafka.Brokers) > 0
}

// Interval returns the poll interval.
func (p PublishConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}

// RequestConfig is one entry of a batch.
type RequestConfig struct {
	Name      string      `yaml:"name"`
	Service   ServiceType `yaml:"service"`
	Class     uint16      `yaml:"class,omitempty"`
	Instance  uint16      `yaml:"instance,omitempty"`
	Attribute uint16      `yaml:"attribute,omitempty"`
	Tag       string      `yaml:"tag,omitempty"`
	Elements  uint16      `yaml:"elements,omitempty"`
	Type      string      `yaml:"type,omitempty"`
	ValueHex  string      `yaml:"value_hex,omitempty"`
}

// Config is the client configuration.
type Config struct {
	Target       TargetConfig     `yaml:"target"`
	TimeoutMs    int              `yaml:"timeout_ms"`
	FragmentSize int              `yaml:"fragment_size"`
	Connection   ConnectionConfig `yaml:"connection"`
	Logging      LoggingConfig    `yaml:"logging"`
	Metrics      MetricsConfig    `yaml:"metrics,omitempty"`
	Capture      CaptureConfig    `yaml:"capture,omitempty"`
	Publish      PublishConfig    `yaml:"publish,omitempty"`
	Batch        []RequestConfig  `yaml:"batch,omitempty"`
}

// CreateDefaultClientConfig returns the configuration written for a new file.
func CreateDefaultClientConfig() *Config {
	cfg := &Config{
		Target: TargetConfig{Host: "192.168.1.10"},
		Batch: []RequestConfig{
			{Name: "vendor_id", Service: ServiceGetAttributeSingle, Class: codes.ClassIdentity, Instance: 0x01, Attribute: 0x01},
			{Name: "product_name", Service: ServiceGetAttributeSingle, Class: codes.ClassIdentity, Instance: 0x01, Attribute: 0x07},
		},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Target.Port == 0 {
		cfg.Target.Port = DefaultPort
	}
	if cfg.TimeoutMs == 0 {
		cfg.TimeoutMs = 5000
	}
	if cfg.FragmentSize == 0 {
		cfg.FragmentSize = 400
	}
	c := &cfg.Connection
	if c.RPIMs == 0 {
		c.RPIMs = int(connmgr.DefaultRPI / 1000)
	}
	if c.Size == 0 {
		c.Size = 500
	}
	if c.Priority == "" {
		c.Priority = "low"
	}
	if c.VendorID == 0 {
		c.VendorID = connmgr.DefaultVendorID
	}
	if c.OriginatorSerial == 0 {
		c.OriginatorSerial = connmgr.DefaultOriginatorSerial
	}
	if c.TimeoutMultiplier == 0 {
		c.TimeoutMultiplier = connmgr.DefaultTimeoutMultiplier
	}
	if c.Path == "" {
		c.Path = "1,0"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Publish.IntervalMs == 0 {
		cfg.Publish.IntervalMs = 1000
	}
	if cfg.Publish.Prefix == "" {
		cfg.Publish.Prefix = "cipwire"
	}
	if cfg.Publish.MQTT.ClientID == "" {
		cfg.Publish.MQTT.ClientID = "cipwire"
	}
	if cfg.Publish.Kafka.Topic == "" {
		cfg.Publish.Kafka.Topic = "cipwire"
	}
	for i := range cfg.Batch {
		if cfg.Batch[i].Elements == 0 {
			cfg.Batch[i].Elements = 1
		}
	}
}

// WriteDefaultClientConfig writes a default client configuration to a file
func WriteDefaultClientConfig(path string) error {
	data, err := yaml.Marshal(CreateDefaultClientConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadClientConfig loads, defaults and validates a YAML configuration. When
// the file does not exist and autoCreate is set, a default file is written.
func LoadClientConfig(path string, autoCreate bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && autoCreate {
		if err := WriteDefaultClientConfig(path); err != nil {
			return nil, errors.WrapConfigError(fmt.Errorf("create default config: %w", err), path)
		}
		data, err = os.ReadFile(path)
	}
	if os.IsNotExist(err) {
		return nil, errors.WrapConfigError(fmt.Errorf("config file not found: %s", path), path)
	}
	if err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("read config file: %w", err), path)
	}
	return ParseClientConfig(data, path)
}

// ParseClientConfig decodes YAML. Unknown keys are rejected.
func ParseClientConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("parse YAML: %w", err), path)
	}
	applyDefaults(&cfg)
	if err := ValidateClientConfig(&cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("validate config: %w", err), path)
	}
	return &cfg, nil
}

// ValidateClientConfig checks a defaulted configuration.
func ValidateClientConfig(cfg *Config) error {
	if cfg.Target.Host == "" {
		return fmt.Errorf("target.host is required")
	}
	if cfg.Target.Port <= 0 || cfg.Target.Port > 0xFFFF {
		return fmt.Errorf("target.port must be 1..65535, got %d", cfg.Target.Port)
	}
	if _, err := ParseRoute(cfg.Target.Route); err != nil {
		return fmt.Errorf("target.route: %w", err)
	}
	if cfg.TimeoutMs <= 0 {
		return fmt.Errorf("timeout_ms must be > 0")
	}
	if cfg.FragmentSize <= 0 || cfg.FragmentSize > 0xFFFF {
		return fmt.Errorf("fragment_size must be 1..65535, got %d", cfg.FragmentSize)
	}
	if _, err := cfg.OpenOptions(); err != nil {
		return fmt.Errorf("connection: %w", err)
	}
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got '%s'", cfg.Logging.Format)
	}
	if err := validatePublish(cfg.Publish); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	for i, req := range cfg.Batch {
		if err := validateRequest(req, i); err != nil {
			return err
		}
	}
	return nil
}

func validatePublish(p PublishConfig) error {
	if p.IntervalMs <= 0 {
		return fmt.Errorf("interval_ms must be > 0")
	}
	if p.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", p.MQTT.QoS)
	}
	if p.MQTT.Broker != "" && !strings.Contains(p.MQTT.Broker, "://") {
		return fmt.Errorf("mqtt.broker must be a URL like tcp://host:1883, got '%s'", p.MQTT.Broker)
	}
	if p.Redis.TTLSec < 0 {
		return fmt.Errorf("redis.ttl_sec must be >= 0")
	}
	for _, b := range p.Kafka.Brokers {
		if _, _, err := net.SplitHostPort(b); err != nil {
			return fmt.Errorf("kafka broker %q: want host:port", b)
		}
	}
	return nil
}

func validateRequest(req RequestConfig, index int) error {
	if req.Name == "" {
		return fmt.Errorf("batch[%d]: name is required", index)
	}
	switch req.Service {
	case ServiceGetAttributeSingle, ServiceSetAttributeSingle:
		if req.Class == 0 {
			return fmt.Errorf("batch[%d]: class is required for %s", index, req.Service)
		}
	case ServiceReadTag, ServiceWriteTag:
		if req.Tag == "" {
			return fmt.Errorf("batch[%d]: tag is required for %s", index, req.Service)
		}
	case "":
		return fmt.Errorf("batch[%d]: service is required", index)
	default:
		return fmt.Errorf("batch[%d]: invalid service type '%s'", index, req.Service)
	}
	if req.Service == ServiceWriteTag && req.Type == "" {
		return fmt.Errorf("batch[%d]: type is required for write_tag", index)
	}
	if (req.Service == ServiceWriteTag || req.Service == ServiceSetAttributeSingle) && req.ValueHex == "" {
		return fmt.Errorf("batch[%d]: value_hex is required for %s", index, req.Service)
	}
	return nil
}

// Address returns "host:port".
func (c *Config) Address() string {
	return net.JoinHostPort(c.Target.Host, strconv.Itoa(c.Target.Port))
}

// Timeout returns the per-exchange timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// RoutePath parses Target.Route.
func (c *Config) RoutePath() (epath.EPath, error) {
	return ParseRoute(c.Target.Route)
}

// OpenOptions builds Forward_Open options from the connection section.
func (c *Config) OpenOptions() (connmgr.OpenOptions, error) {
	cc := c.Connection
	opts := connmgr.DefaultOpenOptions()
	opts.Large = cc.Large

	priority, err := connmgr.ParsePriority(cc.Priority)
	if err != nil {
		return opts, err
	}
	limit := connmgr.MaxSmallConnectionSize
	if cc.Large {
		limit = connmgr.MaxLargeConnectionSize
	}
	if cc.Size <= 0 || cc.Size > limit {
		return opts, fmt.Errorf("size must be 1..%d, got %d", limit, cc.Size)
	}
	if cc.RPIMs <= 0 {
		return opts, fmt.Errorf("rpi_ms must be > 0")
	}
	path, err := ParseRoute(cc.Path)
	if err != nil {
		return opts, fmt.Errorf("path: %w", err)
	}

	for _, p := range []*connmgr.ConnectionParameters{&opts.OTParams, &opts.TOParams} {
		p.Priority = priority
		p.ConnectionSize = uint16(cc.Size)
	}
	opts.OTRPI = uint32(cc.RPIMs) * 1000
	opts.TORPI = opts.OTRPI
	opts.VendorID = cc.VendorID
	opts.OriginatorSerial = cc.OriginatorSerial
	opts.TimeoutMultiplier = cc.TimeoutMultiplier
	opts.ConnectionPath = path.Join(epath.MessageRouter())
	return opts, nil
}

// ParseRoute parses "port,link[/port,link...]" into port segments. A link
// that is a dotted address becomes an extended link; otherwise it is a
// number 0..255. An empty string is an empty route.
func ParseRoute(s string) (epath.EPath, error) {
	var route epath.EPath
	s = strings.TrimSpace(s)
	if s == "" {
		return route, nil
	}
	for _, hop := range strings.Split(s, "/") {
		portStr, link, ok := strings.Cut(strings.TrimSpace(hop), ",")
		if !ok {
			return nil, fmt.Errorf("hop %q: want port,link", hop)
		}
		port, err := strconv.ParseUint(strings.TrimSpace(portStr), 0, 16)
		if err != nil || port == 0 {
			return nil, fmt.Errorf("hop %q: invalid port", hop)
		}
		link = strings.TrimSpace(link)
		if strings.Contains(link, ".") {
			route = route.Port(uint16(port), []byte(link)...)
			continue
		}
		n, err := strconv.ParseUint(link, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("hop %q: invalid link", hop)
		}
		route = route.Port(uint16(port), byte(n))
	}
	return route, nil
}
