package connection

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// Machine guards connection state transitions. Illegal inputs (a CONFIG
// handshake while BackoffWait, a retry while Active) are rejected
// instead of silently corrupting the session state.
//
// Machine does not lock; the owning session serializes calls.
type Machine struct {
	fsm *fsm.FSM

	onTransition func(Transition)
	pending      *Transition
}

// NewMachine creates a machine in StateDisconnected. onTransition, if
// set, is called after every successful transition.
func NewMachine(onTransition func(Transition)) *Machine {
	m := &Machine{onTransition: onTransition}

	live := []string{
		StateConnecting.String(),
		StateAwaitingHandshake.String(),
		StateActive.String(),
	}
	all := []string{
		StateDisconnected.String(),
		StateConnecting.String(),
		StateAwaitingHandshake.String(),
		StateActive.String(),
		StateBackoffWait.String(),
	}

	m.fsm = fsm.NewFSM(
		StateDisconnected.String(),
		fsm.Events{
			{Name: string(EventConnect), Src: []string{StateDisconnected.String()}, Dst: StateConnecting.String()},
			{Name: string(EventEstablished), Src: []string{StateConnecting.String()}, Dst: StateAwaitingHandshake.String()},
			{Name: string(EventHandshake), Src: []string{StateAwaitingHandshake.String()}, Dst: StateActive.String()},
			{Name: string(EventFail), Src: live, Dst: StateBackoffWait.String()},
			{Name: string(EventRetry), Src: []string{StateBackoffWait.String()}, Dst: StateConnecting.String()},
			{Name: string(EventClose), Src: all, Dst: StateClosed.String()},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				from, _ := ParseState(e.Src)
				to, _ := ParseState(e.Dst)
				t := Transition{From: from, To: to, Event: Event(e.Event)}
				if len(e.Args) > 0 {
					t.Reason, _ = e.Args[0].(string)
				}
				m.pending = &t
			},
		},
	)
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	s, _ := ParseState(m.fsm.Current())
	return s
}

// Can reports whether event is legal in the current state.
func (m *Machine) Can(event Event) bool {
	return m.fsm.Can(string(event))
}

// Fire applies event. reason is recorded in the transition.
func (m *Machine) Fire(event Event, reason string) (Transition, error) {
	if m.State() == StateClosed {
		return Transition{}, ErrClosed
	}

	m.pending = nil
	if err := m.fsm.Event(context.Background(), string(event), reason); err != nil {
		var invalid fsm.InvalidEventError
		if errors.As(err, &invalid) {
			return Transition{}, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, event, m.State())
		}
		return Transition{}, err
	}

	if m.pending == nil {
		return Transition{}, fmt.Errorf("%w: %s produced no transition", ErrInvalidTransition, event)
	}
	t := *m.pending
	m.pending = nil
	if m.onTransition != nil {
		m.onTransition(t)
	}
	return t, nil
}
