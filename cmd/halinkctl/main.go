// Command halinkctl is a HaLink client that connects to one or more
// devices and keeps their entity state.
//
// Usage:
//
//	halinkctl [flags]
//
// Flags:
//
//	-config string         YAML configuration file with a device list
//	-host string           Device host (single-device mode)
//	-port int              Device port (default 5000)
//	-device string         Device ID for single-device mode (default "device")
//	-log-level string      Log level: debug, info, warn, error (default "info")
//	-protocol-log string   Write a binary protocol trace to this file
//	-metrics-addr string   Serve /metrics, /health and /devices on this address
//	-entity-policy string  What a resent CONFIG does to omitted entities: retain, remove
//	-interactive           Enable interactive command mode
//
// Examples:
//
//	# Connect to a single device interactively
//	halinkctl -host 192.168.1.40 -device thermostat -interactive
//
//	# Run from a configuration file with metrics
//	halinkctl -config /etc/halink/halinkctl.yaml -metrics-addr :9310
//
//	# Record a protocol trace for halink-log
//	halinkctl -host 192.168.1.40 -protocol-log trace.hlog
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/halink-protocol/halink-go/cmd/halinkctl/interactive"
	"github.com/halink-protocol/halink-go/pkg/entity"
	hlog "github.com/halink-protocol/halink-go/pkg/log"
)

// Config holds the command-line configuration.
type Config struct {
	ConfigFile   string
	Host         string
	Port         int
	DeviceID     string
	LogLevel     string
	ProtocolLog  string
	MetricsAddr  string
	EntityPolicy string
	Interactive  bool
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "YAML configuration file with a device list")
	flag.StringVar(&config.Host, "host", "", "Device host (single-device mode)")
	flag.IntVar(&config.Port, "port", 5000, "Device port")
	flag.StringVar(&config.DeviceID, "device", "device", "Device ID for single-device mode")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "Write a binary protocol trace to this file")
	flag.StringVar(&config.MetricsAddr, "metrics-addr", "", "Serve /metrics, /health and /devices on this address")
	flag.StringVar(&config.EntityPolicy, "entity-policy", "", "What a resent CONFIG does to omitted entities: retain, remove")
	flag.BoolVar(&config.Interactive, "interactive", false, "Enable interactive command mode")
}

func main() {
	flag.Parse()

	fc, err := resolveConfig(config)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	level, err := setupLogging(fc.LogLevel)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	log.Println("HaLink Client")
	log.Println("=============")
	log.Printf("Devices: %d", len(fc.Devices))

	policy, err := entity.ParsePolicy(fc.EntityPolicy)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	var trace hlog.Logger
	if fc.ProtocolLog != "" {
		fl, err := hlog.NewFileLogger(fc.ProtocolLog)
		if err != nil {
			log.Fatalf("Failed to open protocol log: %v", err)
		}
		defer fl.Close()
		log.Printf("Protocol trace: %s", fl.Path())
		trace = fl
		if level <= slog.LevelDebug {
			trace = hlog.NewMultiLogger(fl, hlog.NewSlogAdapter(slog.Default()))
		}
	} else if level <= slog.LevelDebug {
		trace = hlog.NewSlogAdapter(slog.Default())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctl := NewController(slog.Default(), trace, policy)
	defer ctl.Close()

	if config.Interactive {
		sh, err := interactive.New(ctl)
		if err != nil {
			log.Fatalf("Failed to create interactive shell: %v", err)
		}
		// Route log output through readline to keep the prompt intact.
		log.SetOutput(sh.Stdout())
		go sh.Run(ctx, cancel)
	}

	for _, dev := range fc.Devices {
		if _, err := ctl.Add(ctx, dev); err != nil {
			log.Fatalf("Device %s: %v", dev.ID, err)
		}
		log.Printf("Connecting to %s at %s:%d", dev.ID, dev.Host, dev.Port)
	}

	if fc.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              fc.MetricsAddr,
			Handler:           ctl.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Printf("Metrics listening on %s", fc.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Metrics server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
}

// resolveConfig merges the configuration file with command-line flags.
// A -host flag adds a device to whatever the file declares.
func resolveConfig(c Config) (*FileConfig, error) {
	fc := &FileConfig{}
	if c.ConfigFile != "" {
		loaded, err := loadConfig(c.ConfigFile)
		if err != nil {
			return nil, err
		}
		fc = loaded
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if fc.LogLevel == "" || set["log-level"] {
		fc.LogLevel = c.LogLevel
	}
	if c.ProtocolLog != "" {
		fc.ProtocolLog = c.ProtocolLog
	}
	if c.MetricsAddr != "" {
		fc.MetricsAddr = c.MetricsAddr
	}
	if c.EntityPolicy != "" {
		fc.EntityPolicy = c.EntityPolicy
	}
	if c.Host != "" {
		fc.Devices = append(fc.Devices, DeviceConfig{ID: c.DeviceID, Host: c.Host, Port: c.Port})
	}

	if len(fc.Devices) == 0 {
		return nil, errors.New("no devices: use -host or a -config file with devices")
	}
	if err := fc.validate(); err != nil {
		return nil, err
	}
	return fc, nil
}

// setupLogging configures the standard logger and the level of
// slog.Default, which writes through it.
func setupLogging(level string) (slog.Level, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return 0, err
	}

	log.SetFlags(log.Ltime | log.Lmicroseconds)
	switch lvl {
	case slog.LevelDebug:
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case slog.LevelWarn, slog.LevelError:
		log.SetFlags(log.Ltime)
	}
	slog.SetLogLoggerLevel(lvl)
	return lvl, nil
}
