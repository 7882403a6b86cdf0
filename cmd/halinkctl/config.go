package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/halink-protocol/halink-go/pkg/connection"
	"github.com/halink-protocol/halink-go/pkg/entity"
	"github.com/halink-protocol/halink-go/pkg/session"
	"github.com/halink-protocol/halink-go/pkg/transport"
)

// FileConfig is the YAML configuration file.
//
//	log_level: info
//	protocol_log: /var/log/halink/trace.hlog
//	metrics_addr: ":9310"
//	entity_policy: retain
//	devices:
//	  - id: thermostat
//	    host: 192.168.1.40
//	    port: 5000
//	    ping_interval: 15s
type FileConfig struct {
	LogLevel     string         `yaml:"log_level"`
	ProtocolLog  string         `yaml:"protocol_log"`
	MetricsAddr  string         `yaml:"metrics_addr"`
	EntityPolicy string         `yaml:"entity_policy"`
	Devices      []DeviceConfig `yaml:"devices"`
}

// DeviceConfig is one device entry.
type DeviceConfig struct {
	ID               string                    `yaml:"id"`
	Host             string                    `yaml:"host"`
	Port             int                       `yaml:"port"`
	PingInterval     *time.Duration            `yaml:"ping_interval"`
	HandshakeTimeout time.Duration             `yaml:"handshake_timeout"`
	ReadIdleTimeout  time.Duration             `yaml:"read_idle_timeout"`
	MaxFrameSize     int                       `yaml:"max_frame_size"`
	Backoff          *connection.BackoffConfig `yaml:"backoff"`
}

// loadConfig reads a YAML configuration file.
func loadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*FileConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := fc.validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

func (fc *FileConfig) validate() error {
	if _, err := entity.ParsePolicy(fc.EntityPolicy); err != nil {
		return err
	}
	if fc.LogLevel != "" {
		if _, err := parseLevel(fc.LogLevel); err != nil {
			return err
		}
	}
	seen := make(map[string]bool, len(fc.Devices))
	for i, d := range fc.Devices {
		if err := d.validate(); err != nil {
			return fmt.Errorf("device %d: %w", i, err)
		}
		if seen[d.ID] {
			return fmt.Errorf("device %q: duplicate id", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

func (d DeviceConfig) validate() error {
	if d.ID == "" {
		return errors.New("missing id")
	}
	if d.Host == "" {
		return fmt.Errorf("%q: missing host", d.ID)
	}
	if d.Port < 0 || d.Port > 65535 {
		return fmt.Errorf("%q: invalid port %d", d.ID, d.Port)
	}
	return nil
}

// sessionConfig builds the session configuration of one device.
func (d DeviceConfig) sessionConfig(policy entity.Policy) session.Config {
	cfg := session.DefaultConfig()
	cfg.DeviceID = d.ID
	cfg.Address = transport.Address(d.Host, d.Port)
	cfg.EntityPolicy = policy
	if d.PingInterval != nil {
		cfg.PingInterval = *d.PingInterval
		if cfg.PingInterval <= 0 {
			cfg.PingInterval = session.NoPing
		}
	}
	if d.HandshakeTimeout > 0 {
		cfg.HandshakeTimeout = d.HandshakeTimeout
	}
	cfg.ReadIdleTimeout = d.ReadIdleTimeout
	if d.MaxFrameSize > 0 {
		cfg.MaxFrameSize = d.MaxFrameSize
	}
	if d.Backoff != nil {
		cfg.Backoff = *d.Backoff
	}
	return cfg
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q (use debug, info, warn, error)", s)
	}
	return level, nil
}
