package main

// Shared setup for commands that talk to a device.

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonylturner/cipwire/internal/capture"
	"github.com/tonylturner/cipwire/internal/cip/client"
	"github.com/tonylturner/cipwire/internal/cip/epath"
	"github.com/tonylturner/cipwire/internal/cip/protocol"
	"github.com/tonylturner/cipwire/internal/config"
	cipErrors "github.com/tonylturner/cipwire/internal/errors"
	"github.com/tonylturner/cipwire/internal/logging"
	"github.com/tonylturner/cipwire/internal/metrics"
	"github.com/tonylturner/cipwire/internal/ui"
)

type globalFlags struct {
	configPath string
	target     string
	route      string
	timeoutMs  int
	connected  bool
	logLevel   string
	logFile    string
	capture    string
	metricsCSV string
	verbose    bool
}

func (gf *globalFlags) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&gf.configPath, "config", "cipwire.yaml", "Client config file (optional for one-off commands)")
	f.StringVar(&gf.target, "target", "", "Device address host[:port], overrides target.host/port")
	f.StringVar(&gf.route, "route", "", "Backplane route for unconnected requests, e.g. 1,0")
	f.IntVar(&gf.timeoutMs, "timeout", 0, "Per-exchange timeout in milliseconds")
	f.BoolVar(&gf.connected, "connected", false, "Open a connection and use connected messaging")
	f.StringVar(&gf.logLevel, "log-level", "", "Log level: error, info, verbose, debug")
	f.StringVar(&gf.logFile, "log-file", "", "Also write logs to this file")
	f.StringVar(&gf.capture, "capture", "", "Write every exchanged frame to this pcap file")
	f.StringVar(&gf.metricsCSV, "metrics-csv", "", "Write per-operation metrics to this CSV file")
	f.BoolVarP(&gf.verbose, "verbose", "v", false, "Shorthand for --log-level verbose")
}

// loadConfig reads the config file when it exists and applies flag overrides.
func (gf *globalFlags) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(gf.configPath); err == nil {
		cfg, err = config.LoadClientConfig(gf.configPath, false)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.CreateDefaultClientConfig()
		cfg.Target.Host = ""
		cfg.Batch = nil
	}

	if gf.target != "" {
		host, port, err := splitTargetFlag(gf.target)
		if err != nil {
			return nil, err
		}
		cfg.Target.Host, cfg.Target.Port = host, port
	}
	if gf.route != "" {
		cfg.Target.Route = gf.route
	}
	if gf.timeoutMs > 0 {
		cfg.TimeoutMs = gf.timeoutMs
	}
	if gf.connected {
		cfg.Connection.Enabled = true
	}
	if gf.logLevel != "" {
		cfg.Logging.Level = gf.logLevel
	} else if gf.verbose {
		cfg.Logging.Level = "verbose"
	}
	if gf.logFile != "" {
		cfg.Logging.File = gf.logFile
	}
	if gf.capture != "" {
		cfg.Capture.File = gf.capture
	}
	if gf.metricsCSV != "" {
		cfg.Metrics.CSV = gf.metricsCSV
	}

	if cfg.Target.Host == "" {
		return nil, fmt.Errorf("required flag --target not set (or set target.host in %s)", gf.configPath)
	}
	if err := config.ValidateClientConfig(cfg); err != nil {
		return nil, cipErrors.WrapConfigError(err, gf.configPath)
	}
	return cfg, nil
}

func splitTargetFlag(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return s, config.DefaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 0xFFFF {
		return "", 0, fmt.Errorf("invalid port in --target %q", s)
	}
	return host, port, nil
}

// session is a connected client plus the logging, metrics and capture
// outputs around it.
type session struct {
	cfg     *config.Config
	client  *client.Client
	logger  *logging.Logger
	sink    *metrics.Sink
	capture *capture.Writer
	route   epath.EPath
	out     *ui.Printer
}

// openSession connects to the device and, when the config asks for it,
// opens the explicit messaging connection.
func openSession(ctx context.Context, cmd *cobra.Command, gf *globalFlags) (*session, error) {
	cfg, err := gf.loadConfig()
	if err != nil {
		return nil, err
	}
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger, err := logging.NewLoggerWithOptions(level, cfg.Logging.File, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	route, _ := cfg.RoutePath()

	s := &session{
		cfg:    cfg,
		logger: logger,
		sink:   metrics.NewSink(),
		route:  route,
		out:    ui.NewPrinter(cmd.OutOrStdout()),
	}

	var transport client.Transport = client.NewTCPTransport()
	if cfg.Capture.File != "" {
		w, err := capture.Create(cfg.Capture.File)
		if err != nil {
			logger.Close()
			return nil, err
		}
		s.capture = w
		transport = capture.NewRecordingTransport(transport, w)
	}

	s.client = client.NewClient(client.Options{
		Transport: transport,
		Timeout:   cfg.Timeout(),
		Logger:    logger,
		Metrics:   s.sink,
	})

	logger.LogConnect(cfg.Address(), cfg.Timeout(), cfg.Target.Route, gf.configPath)
	if err := s.client.Connect(ctx, cfg.Address()); err != nil {
		s.release()
		return nil, err
	}

	if cfg.Connection.Enabled {
		opts, _ := cfg.OpenOptions()
		reply, err := s.client.Open(ctx, opts)
		if err == nil {
			err = reply.Err()
		}
		if err != nil {
			s.close(ctx)
			return nil, cipErrors.WrapCIPError(err, "Forward_Open")
		}
		logger.Verbose("connection open (O->T 0x%08X, T->O 0x%08X)", reply.Success.OTConnectionID, reply.Success.TOConnectionID)
	}
	return s, nil
}

// send routes req through Unconnected_Send when a route is configured and
// no connection is open.
func (s *session) send(ctx context.Context, req protocol.Request) (protocol.RawReply, error) {
	if len(s.route) > 0 && !s.client.Connection().IsOpen() {
		return s.client.SendRouted(ctx, req, s.route)
	}
	return s.client.Send(ctx, req)
}

// close releases the connection and session, then flushes outputs.
func (s *session) close(ctx context.Context) {
	if err := s.client.Disconnect(ctx); err != nil {
		s.logger.Verbose("disconnect: %v", err)
	}
	s.release()
}

func (s *session) release() {
	if s.capture != nil {
		if err := s.capture.Close(); err != nil {
			s.logger.Error("close capture: %v", err)
		} else {
			s.logger.Info("wrote %d packets to %s", s.capture.Packets(), s.cfg.Capture.File)
		}
	}
	if s.cfg.Metrics.CSV != "" || s.cfg.Metrics.JSON != "" {
		if err := writeMetrics(s.cfg.Metrics, s.sink); err != nil {
			s.logger.Error("write metrics: %v", err)
		}
	}
	s.logger.Close()
}

func writeMetrics(cfg config.MetricsConfig, sink *metrics.Sink) error {
	w, err := metrics.NewWriter(cfg.CSV, cfg.JSON)
	if err != nil {
		return err
	}
	if err := w.WriteAll(sink); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// withSession runs fn with a session bound to an interruptible context.
func withSession(cmd *cobra.Command, gf *globalFlags, fn func(ctx context.Context, s *session) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, err := openSession(ctx, cmd, gf)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout()+time.Second)
		defer cancel()
		s.close(closeCtx)
	}()
	return fn(ctx, s)
}
