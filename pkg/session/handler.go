package session

import "github.com/halink-protocol/halink-go/pkg/wire"

// Handler receives session notifications. Calls are made from a single
// dispatcher goroutine in the order the session produced them.
type Handler interface {
	// OnConfig is called for every accepted CONFIG.
	OnConfig(cfg wire.ConfigModel)

	// OnStateDelta is called once per STATE message with its deltas in
	// message order.
	OnStateDelta(deltas []wire.StateDelta)

	// OnEvent is called once per event record.
	OnEvent(ev wire.EventRecord)

	// OnAvailability reports entry into and exit from Active.
	OnAvailability(available bool)
}

// HandlerFuncs adapts optional functions to Handler. Nil fields are
// ignored.
type HandlerFuncs struct {
	Config       func(cfg wire.ConfigModel)
	StateDelta   func(deltas []wire.StateDelta)
	Event        func(ev wire.EventRecord)
	Availability func(available bool)
}

// OnConfig implements Handler.
func (h HandlerFuncs) OnConfig(cfg wire.ConfigModel) {
	if h.Config != nil {
		h.Config(cfg)
	}
}

// OnStateDelta implements Handler.
func (h HandlerFuncs) OnStateDelta(deltas []wire.StateDelta) {
	if h.StateDelta != nil {
		h.StateDelta(deltas)
	}
}

// OnEvent implements Handler.
func (h HandlerFuncs) OnEvent(ev wire.EventRecord) {
	if h.Event != nil {
		h.Event(ev)
	}
}

// OnAvailability implements Handler.
func (h HandlerFuncs) OnAvailability(available bool) {
	if h.Availability != nil {
		h.Availability(available)
	}
}

var _ Handler = HandlerFuncs{}
