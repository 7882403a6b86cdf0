// Command halink-sim is a simulated HaLink device for testing clients.
//
// Usage:
//
//	halink-sim [flags]
//
// Flags:
//
//	-config string     YAML device description (default: demo thermostat)
//	-listen string     Listen address (default ":5000")
//	-set-mode string   Override set_mode: light, object
//	-delay-ms int      Override delay_ms
//	-silent            Do not send CONFIG on connect
//	-echo              Report received SET values back as STATE (default true)
//	-simulate          Periodically change sensor values (default true)
//	-interval duration Simulation tick (default 5s)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-interactive       Enable interactive command mode
//
// Interactive Commands:
//
//	state <key> <value>  - Report a new entity value
//	event <key>          - Emit an event
//	config               - Resend CONFIG
//	drop                 - Drop all client connections
//	status               - Show device status
//	quit                 - Exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/halink-protocol/halink-go/internal/devicesim"
	"github.com/halink-protocol/halink-go/pkg/wire"
)

// Config holds the command-line configuration.
type Config struct {
	ConfigFile  string
	Listen      string
	SetMode     string
	DelayMS     int
	Silent      bool
	Echo        bool
	Simulate    bool
	Interval    time.Duration
	LogLevel    string
	Interactive bool
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "YAML device description")
	flag.StringVar(&config.Listen, "listen", ":5000", "Listen address")
	flag.StringVar(&config.SetMode, "set-mode", "", "Override set_mode: light, object")
	flag.IntVar(&config.DelayMS, "delay-ms", -1, "Override delay_ms")
	flag.BoolVar(&config.Silent, "silent", false, "Do not send CONFIG on connect")
	flag.BoolVar(&config.Echo, "echo", true, "Report received SET values back as STATE")
	flag.BoolVar(&config.Simulate, "simulate", true, "Periodically change sensor values")
	flag.DurationVar(&config.Interval, "interval", 5*time.Second, "Simulation tick")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&config.Interactive, "interactive", false, "Enable interactive command mode")
}

func main() {
	flag.Parse()

	setupLogging(config.LogLevel)

	devCfg, err := deviceConfig(config)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	dev, err := devicesim.Listen(config.Listen, devCfg, slog.Default())
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	defer dev.Close()

	log.Println("HaLink Device Simulator")
	log.Println("=======================")
	log.Printf("Device:    %s", devCfg.Name)
	log.Printf("Listening: %s", dev.Addr())
	log.Printf("Set mode:  %s (delay %d ms)", setModeName(devCfg.SetMode), devCfg.DelayMS)
	log.Printf("Entities:  %d", len(devCfg.Entities))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.Interactive {
		sh, err := newShell(dev, devCfg)
		if err != nil {
			log.Fatalf("Failed to create interactive shell: %v", err)
		}
		log.SetOutput(sh.Stdout())
		go sh.Run(ctx, cancel)
	}

	go logReceived(ctx, dev)

	if config.Simulate {
		sim := newSimulation(devCfg, time.Now().UnixNano())
		go runSimulation(ctx, dev, sim, config.Interval)
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

// deviceConfig loads the device description and applies flag overrides.
func deviceConfig(c Config) (devicesim.Config, error) {
	cfg := devicesim.DefaultConfig()
	if c.ConfigFile != "" {
		data, err := os.ReadFile(c.ConfigFile)
		if err != nil {
			return devicesim.Config{}, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = parseDeviceConfig(data); err != nil {
			return devicesim.Config{}, err
		}
	}

	if c.SetMode != "" {
		cfg.SetMode = wire.SetMode(strings.ToLower(c.SetMode))
		if !cfg.SetMode.Valid() {
			return devicesim.Config{}, fmt.Errorf("invalid set mode %q", c.SetMode)
		}
	}
	if c.DelayMS >= 0 {
		cfg.DelayMS = c.DelayMS
	}
	cfg.Silent = cfg.Silent || c.Silent
	cfg.Echo = c.Echo
	return cfg, cfg.Validate()
}

func parseDeviceConfig(data []byte) (devicesim.Config, error) {
	var cfg devicesim.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return devicesim.Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Name == "" {
		return devicesim.Config{}, errors.New("config: missing device name")
	}
	if len(cfg.Entities) == 0 {
		return devicesim.Config{}, errors.New("config: no entities")
	}
	return cfg, nil
}

func setModeName(m wire.SetMode) string {
	if m == "" {
		return string(wire.SetModeLight)
	}
	return string(m)
}

func logReceived(ctx context.Context, dev *devicesim.Device) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-dev.Received():
			for _, e := range f.Entries {
				log.Printf("[SET] %s = %v", e.Key, e.Value)
			}
		}
	}
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
		slog.SetLogLoggerLevel(slog.LevelDebug)
	case "warn":
		log.SetFlags(log.Ltime)
		slog.SetLogLoggerLevel(slog.LevelWarn)
	case "error":
		log.SetFlags(log.Ltime)
		slog.SetLogLoggerLevel(slog.LevelError)
	}
}
