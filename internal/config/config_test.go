package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/tonylturner/cipwire/internal/cip/connmgr"
	"github.com/tonylturner/cipwire/internal/cip/epath"
)

func TestValidateClientConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"missing host", func(c *Config) { c.Target.Host = "" }, "target.host"},
		{"bad route", func(c *Config) { c.Target.Route = "1" }, "target.route"},
		{"oversized small connection", func(c *Config) { c.Connection.Size = 600 }, "size must be 1..511"},
		{"large connection allows 4000", func(c *Config) { c.Connection.Large = true; c.Connection.Size = 4000 }, ""},
		{"unknown priority", func(c *Config) { c.Connection.Priority = "fast" }, "priority"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"mqtt broker without scheme", func(c *Config) { c.Publish.MQTT.Broker = "broker:1883" }, "mqtt.broker"},
		{"mqtt qos out of range", func(c *Config) { c.Publish.MQTT.QoS = 3 }, "mqtt.qos"},
		{"kafka broker without port", func(c *Config) { c.Publish.Kafka.Brokers = []string{"kafka"} }, "kafka broker"},
		{"publish targets", func(c *Config) {
			c.Publish.MQTT.Broker = "tcp://broker:1883"
			c.Publish.Redis.Addr = "cache:6379"
			c.Publish.Kafka.Brokers = []string{"kafka:9092"}
		}, ""},
		{
			"tag request without tag",
			func(c *Config) { c.Batch = append(c.Batch, RequestConfig{Name: "x", Service: ServiceReadTag}) },
			"tag is required",
		},
		{
			"write without value",
			func(c *Config) {
				c.Batch = append(c.Batch, RequestConfig{Name: "x", Service: ServiceWriteTag, Tag: "T", Type: "DINT"})
			},
			"value_hex is required",
		},
		{
			"unknown service",
			func(c *Config) { c.Batch = append(c.Batch, RequestConfig{Name: "x", Service: "reset"}) },
			"invalid service type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := CreateDefaultClientConfig()
			tt.mutate(cfg)
			err := ValidateClientConfig(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadClientConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cipwire.yaml")
	data := `
target:
  host: 10.0.0.5
  route: "1,2"
timeout_ms: 1500
connection:
  enabled: true
  large: true
  size: 4000
  rpi_ms: 250
publish:
  interval_ms: 250
  mqtt:
    broker: tcp://broker:1883
    qos: 1
  kafka:
    brokers: [kafka:9092]
batch:
  - name: counter
    service: read_tag
    tag: Program:Main.Counter
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadClientConfig(path, false)
	if err != nil {
		t.Fatalf("LoadClientConfig: %v", err)
	}
	if cfg.Address() != "10.0.0.5:44818" {
		t.Errorf("address = %s", cfg.Address())
	}
	if cfg.Timeout().Milliseconds() != 1500 || cfg.FragmentSize != 400 {
		t.Errorf("timeout/fragment = %v/%d", cfg.Timeout(), cfg.FragmentSize)
	}
	if !cfg.Publish.Enabled() || cfg.Publish.Interval().Milliseconds() != 250 {
		t.Errorf("publish = %+v", cfg.Publish)
	}
	if cfg.Publish.Prefix != "cipwire" || cfg.Publish.Kafka.Topic != "cipwire" {
		t.Errorf("publish defaults = %q/%q", cfg.Publish.Prefix, cfg.Publish.Kafka.Topic)
	}
	if cfg.Batch[0].Elements != 1 {
		t.Errorf("elements default = %d", cfg.Batch[0].Elements)
	}

	opts, err := cfg.OpenOptions()
	if err != nil {
		t.Fatalf("OpenOptions: %v", err)
	}
	if !opts.Large || opts.OTParams.ConnectionSize != 4000 || opts.TORPI != 250000 {
		t.Errorf("open options = %+v", opts)
	}
	if opts.VendorID != connmgr.DefaultVendorID {
		t.Errorf("vendor = 0x%04X", opts.VendorID)
	}
	if !reflect.DeepEqual(opts.ConnectionPath, connmgr.DefaultConnectionPath()) {
		t.Errorf("connection path = %v", opts.ConnectionPath)
	}
	route, err := cfg.RoutePath()
	if err != nil || !reflect.DeepEqual(route, epath.FromPort(1, 2)) {
		t.Errorf("route = %v, %v", route, err)
	}
}

func TestLoadClientConfigErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadClientConfig(filepath.Join(dir, "missing.yaml"), false); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing file error = %v", err)
	}

	unknown := filepath.Join(dir, "unknown.yaml")
	os.WriteFile(unknown, []byte("target:\n  host: x\nscenario: baseline\n"), 0644)
	if _, err := LoadClientConfig(unknown, false); err == nil || !strings.Contains(err.Error(), "scenario") {
		t.Errorf("unknown key error = %v", err)
	}
}

func TestLoadClientConfigAutoCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.yaml")
	cfg, err := LoadClientConfig(path, true)
	if err != nil {
		t.Fatalf("LoadClientConfig: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if len(cfg.Batch) != 2 || cfg.Target.Port != DefaultPort {
		t.Errorf("default config = %+v", cfg)
	}
}

func TestParseRoute(t *testing.T) {
	tests := []struct {
		in      string
		want    epath.EPath
		wantErr bool
	}{
		{"", nil, false},
		{"1,0", epath.Backplane(0), false},
		{"2,10.0.0.7/1,3", epath.FromPort(2, []byte("10.0.0.7")...).Port(1, 3), false},
		{" 1 , 0x05 ", epath.Backplane(5), false},
		{"0,1", nil, true},
		{"1,300", nil, true},
		{"1", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRoute(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("route = %v, want %v", got, tt.want)
			}
		})
	}
}
