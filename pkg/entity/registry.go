package entity

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/halink-protocol/halink-go/pkg/wire"
)

// ErrUnknownEntity is returned for keys that no CONFIG declared.
var ErrUnknownEntity = errors.New("unknown entity")

// Policy decides what happens to entities absent from a resent CONFIG.
type Policy uint8

const (
	// RetainMissing keeps entities a later CONFIG omits.
	RetainMissing Policy = iota

	// RemoveMissing deletes entities a later CONFIG omits.
	RemoveMissing
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case RetainMissing:
		return "retain"
	case RemoveMissing:
		return "remove"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a policy name. The empty string is RetainMissing.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "retain":
		return RetainMissing, nil
	case "remove":
		return RemoveMissing, nil
	default:
		return 0, fmt.Errorf("unknown entity policy %q", s)
	}
}

// ConfigResult reports what a CONFIG changed.
type ConfigResult struct {
	Added   []string
	Updated []string
	Removed []string

	// Skipped lists descriptors whose platform has no kind.
	Skipped []string
}

// DeltaResult reports what a STATE message changed.
type DeltaResult struct {
	Applied []string
	Unknown []string
}

type record struct {
	desc Descriptor
	view View
}

// Registry is the live entity set of one device, keyed by entity key.
type Registry struct {
	mu sync.RWMutex

	entities map[string]*record

	// order keeps declaration order across CONFIG resends.
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]*record)}
}

// ApplyConfig merges the entities of a CONFIG. New entities get their
// initial view; redeclared entities keep their view and take the new
// descriptor.
func (r *Registry) ApplyConfig(model *wire.ConfigModel, policy Policy) ConfigResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res ConfigResult
	seen := make(map[string]bool, len(model.Entities))

	for _, ed := range model.Entities {
		desc, err := NewDescriptor(ed)
		if err != nil {
			res.Skipped = append(res.Skipped, ed.Key)
			continue
		}
		seen[desc.Key] = true

		if rec, ok := r.entities[desc.Key]; ok {
			if rec.desc.Kind != desc.Kind {
				rec.view = InitialView(desc)
			}
			rec.desc = desc
			res.Updated = append(res.Updated, desc.Key)
			continue
		}

		r.entities[desc.Key] = &record{desc: desc, view: InitialView(desc)}
		r.order = append(r.order, desc.Key)
		res.Added = append(res.Added, desc.Key)
	}

	if policy == RemoveMissing {
		kept := r.order[:0]
		for _, key := range r.order {
			if seen[key] {
				kept = append(kept, key)
				continue
			}
			delete(r.entities, key)
			res.Removed = append(res.Removed, key)
		}
		r.order = kept
	}

	return res
}

// ApplyDeltas folds STATE deltas into the views of known entities.
// Deltas for unknown keys are reported and dropped.
func (r *Registry) ApplyDeltas(deltas []wire.StateDelta, now time.Time) DeltaResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res DeltaResult
	for _, d := range deltas {
		rec, ok := r.entities[d.EntityKey]
		if !ok {
			res.Unknown = append(res.Unknown, d.EntityKey)
			continue
		}
		rec.view = Apply(rec.desc, rec.view, d, now)
		res.Applied = append(res.Applied, d.EntityKey)
	}
	return res
}

// Get returns the descriptor and view of one entity.
func (r *Registry) Get(key string) (Descriptor, View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.entities[key]
	if !ok {
		return Descriptor{}, View{}, false
	}
	return rec.desc.clone(), rec.view.Clone(), true
}

// SetValue validates a user action against the live entity and returns
// the value to send. Select entities are checked against their current
// option set.
func (r *Registry) SetValue(key string, input any) (any, error) {
	desc, view, ok := r.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, key)
	}
	if desc.Kind == KindSelect && view.Options != nil {
		opts := make([]any, len(view.Options))
		for i, o := range view.Options {
			opts[i] = o
		}
		if desc.Attributes == nil {
			desc.Attributes = make(map[string]any, 1)
		}
		desc.Attributes[AttrOptions] = opts
	}
	return SetValue(desc, input)
}

// Len returns the number of entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// Snapshot is a point-in-time copy of one entity.
type Snapshot struct {
	Descriptor Descriptor
	View       View
}

// Snapshot returns copies of all entities in declaration order.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.order))
	for _, key := range r.order {
		rec := r.entities[key]
		out = append(out, Snapshot{
			Descriptor: rec.desc.clone(),
			View:       rec.view.Clone(),
		})
	}
	return out
}

// Clear removes all entities.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = make(map[string]*record)
	r.order = nil
}
