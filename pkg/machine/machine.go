package machine

import (
	"errors"
	"fmt"
	"slices"
)

type State interface {
	~string
}

// Allowable maps where a from state is allowed to transition to
type Allowable[S State] struct {
	from S
	to   []S
}

// StateMachine tracks the current state of a process and the transitions it may take
type StateMachine[S State] struct {
	current  S
	toStates []Allowable[S]
}

var (
	ErrInvalidTransition = errors.New("invalid state transition")
)

// TransitionBuilder helps in creating a from-to relationship for state transitions
type TransitionBuilder[S State] struct {
	transition Allowable[S]
}

func New[S State](currentState S, transitions ...Allowable[S]) *StateMachine[S] {
	return &StateMachine[S]{current: currentState, toStates: transitions}
}

// From initializes a transition from a specific state
func From[S State](from S) *TransitionBuilder[S] {
	return &TransitionBuilder[S]{transition: Allowable[S]{from: from}}
}

// To sets the possible destination states and returns the configured transition
func (tb *TransitionBuilder[S]) To(to ...S) Allowable[S] {
	tb.transition.to = to
	return tb.transition
}

// Current is the state the machine is in
func (m *StateMachine[S]) Current() S {
	return m.current
}

// ToState determines if the current state can transition to s
func (m *StateMachine[S]) ToState(s S) error {
	for _, transition := range m.toStates {
		if transition.from != m.current {
			continue
		}

		if slices.Contains(transition.to, s) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, m.current, s)
}

// Transition moves the machine to s when allowed
func (m *StateMachine[S]) Transition(s S) error {
	if err := m.ToState(s); err != nil {
		return err
	}

	m.current = s
	return nil
}
