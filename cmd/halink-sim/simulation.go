package main

import (
	"context"
	"log"
	"math"
	"math/rand/v2"
	"time"

	"github.com/halink-protocol/halink-go/internal/devicesim"
	"github.com/halink-protocol/halink-go/pkg/wire"
)

// heartbeatEvery is the number of ticks between heartbeat events.
const heartbeatEvery = 12

type update struct {
	key   string
	value any
}

// simulation produces synthetic sensor changes.
type simulation struct {
	rng      *rand.Rand
	sensors  []devicesim.Entity
	binaries []devicesim.Entity
	ticks    int
}

func newSimulation(cfg devicesim.Config, seed int64) *simulation {
	sim := &simulation{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1))}
	for _, e := range cfg.Entities {
		switch e.Platform {
		case wire.PlatformSensor:
			if _, ok := number(e.Value); ok {
				sim.sensors = append(sim.sensors, e)
			}
		case wire.PlatformBinarySensor:
			sim.binaries = append(sim.binaries, e)
		}
	}
	return sim
}

// step returns the changes for one tick. current reports the live value
// of an entity.
func (s *simulation) step(current func(key string) (any, bool)) (updates []update, heartbeat bool) {
	s.ticks++

	for _, e := range s.sensors {
		key := e.Key()
		v, ok := current(key)
		if !ok {
			v = e.Value
		}
		f, ok := number(v)
		if !ok {
			continue
		}
		f += (s.rng.Float64() - 0.5) * 0.5
		if lo, ok := number(e.Attributes["min"]); ok {
			f = math.Max(f, lo)
		}
		if hi, ok := number(e.Attributes["max"]); ok {
			f = math.Min(f, hi)
		}
		updates = append(updates, update{key: key, value: math.Round(f*10) / 10})
	}

	for _, e := range s.binaries {
		if s.rng.Float64() >= 0.1 {
			continue
		}
		key := e.Key()
		v, _ := current(key)
		on, _ := v.(bool)
		updates = append(updates, update{key: key, value: !on})
	}

	return updates, s.ticks%heartbeatEvery == 0
}

func runSimulation(ctx context.Context, dev *devicesim.Device, sim *simulation, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("[SIM] Simulation started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dev.Connected() == 0 {
				continue
			}
			updates, heartbeat := sim.step(dev.Value)
			for _, u := range updates {
				if err := dev.SendState(u.key, u.value); err != nil {
					log.Printf("[SIM] state %s: %v", u.key, err)
				}
			}
			if heartbeat {
				if err := dev.SendEvent("heartbeat", map[string]any{"ticks": sim.ticks}); err != nil {
					log.Printf("[SIM] heartbeat: %v", err)
				}
			}
		}
	}
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}
