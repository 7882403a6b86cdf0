package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/halink-protocol/halink-go/pkg/entity"
	hlog "github.com/halink-protocol/halink-go/pkg/log"
	"github.com/halink-protocol/halink-go/pkg/session"
	"github.com/halink-protocol/halink-go/pkg/wire"
)

// Controller owns one session per configured device.
type Controller struct {
	logger   *slog.Logger
	trace    hlog.Logger
	registry *prometheus.Registry
	metrics  *session.Metrics
	policy   entity.Policy
	started  time.Time

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewController creates a controller with its own metrics registry.
func NewController(logger *slog.Logger, trace hlog.Logger, policy entity.Policy) *Controller {
	reg := prometheus.NewRegistry()
	return &Controller{
		logger:   logger,
		trace:    trace,
		registry: reg,
		metrics:  session.NewMetrics(reg),
		policy:   policy,
		started:  time.Now(),
		sessions: make(map[string]*session.Session),
	}
}

// Add creates and starts the session of one device.
func (c *Controller) Add(ctx context.Context, dev DeviceConfig) (*session.Session, error) {
	if err := dev.validate(); err != nil {
		return nil, err
	}
	cfg := dev.sessionConfig(c.policy)
	cfg.Logger = c.logger
	cfg.ProtocolLogger = c.trace
	cfg.Metrics = c.metrics
	return c.AddConfig(ctx, cfg)
}

// AddConfig creates and starts a session from a complete configuration.
func (c *Controller) AddConfig(ctx context.Context, cfg session.Config) (*session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.sessions[cfg.DeviceID]; exists {
		return nil, fmt.Errorf("device %q already added", cfg.DeviceID)
	}

	s, err := session.New(cfg, deviceLogger(cfg.DeviceID))
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	c.sessions[cfg.DeviceID] = s
	return s, nil
}

// Device returns the session of a device.
func (c *Controller) Device(id string) (*session.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[id]
	return s, ok
}

// Devices returns all sessions ordered by device ID.
func (c *Controller) Devices() []*session.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list := make([]*session.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].DeviceID() < list[j].DeviceID() })
	return list
}

// Close stops all sessions.
func (c *Controller) Close() {
	for _, s := range c.Devices() {
		if err := s.Close(); err != nil {
			log.Printf("[%s] close: %v", s.DeviceID(), err)
		}
	}
}

// Handler returns the HTTP handler serving /metrics, /health and /devices.
func (c *Controller) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", c.handleHealth)
	mux.HandleFunc("/devices", c.handleDevices)
	return mux
}

type deviceStatus struct {
	ID        string         `json:"id"`
	State     string         `json:"state"`
	Available bool           `json:"available"`
	Name      string         `json:"name,omitempty"`
	Entities  int            `json:"entities"`
	Queued    int            `json:"queued"`
	Values    map[string]any `json:"values,omitempty"`
}

func (c *Controller) status(withValues bool) []deviceStatus {
	sessions := c.Devices()
	list := make([]deviceStatus, 0, len(sessions))
	for _, s := range sessions {
		st := s.Stats()
		ds := deviceStatus{
			ID:        s.DeviceID(),
			State:     st.State.String(),
			Available: s.Available(),
			Entities:  st.Entities,
			Queued:    st.QueueDepth,
		}
		if model := s.Config(); model != nil && model.Device != nil {
			ds.Name = model.Device.Name
		}
		if withValues {
			ds.Values = make(map[string]any)
			for _, snap := range s.Entities() {
				ds.Values[snap.Descriptor.Key] = snap.View.Value
			}
		}
		list = append(list, ds)
	}
	return list
}

func (c *Controller) handleHealth(w http.ResponseWriter, r *http.Request) {
	devices := c.status(false)
	available := 0
	for _, d := range devices {
		if d.Available {
			available++
		}
	}
	status := "ok"
	if available < len(devices) {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"uptime":    time.Since(c.started).Round(time.Second).String(),
		"devices":   len(devices),
		"available": available,
	})
}

func (c *Controller) handleDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.status(true))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

// deviceLogger prints session notifications to the console.
func deviceLogger(id string) session.Handler {
	return session.HandlerFuncs{
		Config: func(cfg wire.ConfigModel) {
			name := "(unnamed)"
			if cfg.Device != nil {
				name = cfg.Device.Name
			}
			log.Printf("[%s] config: %q, %d entities", id, name, len(cfg.Entities))
		},
		StateDelta: func(deltas []wire.StateDelta) {
			for _, d := range deltas {
				if d.HasValue {
					log.Printf("[%s] %s = %v", id, d.EntityKey, d.Value)
				}
			}
		},
		Event: func(ev wire.EventRecord) {
			log.Printf("[%s] event %s: %v", id, ev.Key, ev.Payload)
		},
		Availability: func(available bool) {
			if available {
				log.Printf("[%s] available", id)
			} else {
				log.Printf("[%s] unavailable", id)
			}
		},
	}
}
