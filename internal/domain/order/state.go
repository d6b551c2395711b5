package order

import (
	"strings"

	"github.com/go-faster/errors"
)

// State is the fulfillment state of an order.
type State string

const (
	StatePending   State = "PENDING"
	StatePreparing State = "PREPARING"
	StateReady     State = "READY"
	StateDelivered State = "DELIVERED"
	StateCancelled State = "CANCELLED"
)

// ErrUnknownState is returned when a state token cannot be parsed.
var ErrUnknownState = errors.New("unknown order state")

// legacyStates maps tokens written by earlier versions of the system.
var legacyStates = map[string]State{
	"PENDIENTE":  StatePending,
	"PREPARANDO": StatePreparing,
	"LISTO":      StateReady,
	"ENTREGADO":  StateDelivered,
	"CANCELADO":  StateCancelled,
}

// ParseState parses a canonical or legacy state token, ignoring case.
func ParseState(s string) (State, error) {
	token := strings.ToUpper(strings.TrimSpace(s))
	if st := State(token); st.Valid() {
		return st, nil
	}
	if st, ok := legacyStates[token]; ok {
		return st, nil
	}
	return "", errors.Wrapf(ErrUnknownState, "%q", s)
}

// StoredTokens returns every token that may be persisted for s: the
// canonical one first, then its legacy alias.
func (s State) StoredTokens() []string {
	tokens := []string{string(s)}
	for legacy, st := range legacyStates {
		if st == s {
			tokens = append(tokens, legacy)
		}
	}
	return tokens
}

// Valid reports whether s is one of the canonical states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StatePreparing, StateReady, StateDelivered, StateCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no operation can leave s.
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateCancelled
}

// Progress is the completion percentage shown for s.
func (s State) Progress() int {
	switch s {
	case StatePending:
		return 25
	case StatePreparing:
		return 50
	case StateReady:
		return 75
	case StateDelivered:
		return 100
	default:
		return 0
	}
}

func (s State) String() string { return string(s) }

// Operation is a state-changing request against an order.
type Operation string

const (
	OpBeginPreparation Operation = "begin_preparation"
	OpMarkReady        Operation = "mark_ready"
	OpConfirmDelivery  Operation = "confirm_delivery"
	OpCancel           Operation = "cancel"
)

// ErrUnknownOperation is returned when an operation name cannot be parsed.
var ErrUnknownOperation = errors.New("unknown order operation")

// Operations lists every operation in lifecycle order.
func Operations() []Operation {
	return []Operation{OpBeginPreparation, OpMarkReady, OpConfirmDelivery, OpCancel}
}

// ParseOperation accepts snake_case or kebab-case names, e.g. "mark-ready".
func ParseOperation(s string) (Operation, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, op := range Operations() {
		if string(op) == name {
			return op, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownOperation, "%q", s)
}

func (op Operation) String() string { return string(op) }

type edge struct {
	from []State
	to   State
}

var transitions = map[Operation]edge{
	OpBeginPreparation: {from: []State{StatePending}, to: StatePreparing},
	OpMarkReady:        {from: []State{StatePreparing}, to: StateReady},
	OpConfirmDelivery:  {from: []State{StateReady}, to: StateDelivered},
	OpCancel:           {from: []State{StatePending, StatePreparing}, to: StateCancelled},
}

// Next returns the state op leads to from the given state. The second result
// is false when the guard rejects the operation.
func Next(from State, op Operation) (State, bool) {
	e, ok := transitions[op]
	if !ok {
		return from, false
	}
	for _, s := range e.from {
		if s == from {
			return e.to, true
		}
	}
	return from, false
}

// Allowed returns the operations permitted from s in lifecycle order.
func Allowed(s State) []Operation {
	var ops []Operation
	for _, op := range Operations() {
		if _, ok := Next(s, op); ok {
			ops = append(ops, op)
		}
	}
	return ops
}

// Transition describes the outcome of firing an operation.
type Transition struct {
	Op        Operation
	From      State
	To        State
	Permitted bool
}

// Err returns an *InvalidTransitionError for rejected transitions and nil otherwise.
func (t Transition) Err() error {
	if t.Permitted {
		return nil
	}
	return &InvalidTransitionError{Op: t.Op, From: t.From}
}

// Machine tracks the state of a single order together with the states it
// went through. Rejected operations leave it unchanged.
type Machine struct {
	state   State
	history []State
}

// NewMachine returns a machine in the initial PENDING state.
func NewMachine() *Machine {
	return &Machine{state: StatePending, history: []State{StatePending}}
}

// Restore rebuilds a machine from persisted data. An empty history is
// replaced by the current state alone.
func Restore(state State, history []State) *Machine {
	h := append([]State(nil), history...)
	if len(h) == 0 {
		h = []State{state}
	}
	return &Machine{state: state, history: h}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// History returns a copy of the visited states, oldest first.
func (m *Machine) History() []State {
	return append([]State(nil), m.history...)
}

// Can reports whether op is permitted in the current state.
func (m *Machine) Can(op Operation) bool {
	_, ok := Next(m.state, op)
	return ok
}

// Allowed returns the operations permitted in the current state.
func (m *Machine) Allowed() []Operation { return Allowed(m.state) }

// Fire applies op if its guard holds.
func (m *Machine) Fire(op Operation) Transition {
	to, ok := Next(m.state, op)
	t := Transition{Op: op, From: m.state, To: to, Permitted: ok}
	if ok {
		m.state = to
		m.history = append(m.history, to)
	}
	return t
}

func (m *Machine) BeginPreparation() Transition { return m.Fire(OpBeginPreparation) }
func (m *Machine) MarkReady() Transition        { return m.Fire(OpMarkReady) }
func (m *Machine) ConfirmDelivery() Transition  { return m.Fire(OpConfirmDelivery) }
func (m *Machine) Cancel() Transition           { return m.Fire(OpCancel) }
