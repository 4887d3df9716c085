package state

import (
	"errors"
	"fmt"
)

// 状态机接口
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(from State, to State, condition func() bool) error
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	GetID() string
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// BaseStateMachine only permits registered transitions, each optionally
// guarded by a condition. It is not safe for concurrent use; the owner
// serializes access (rooms hold their own lock).
type BaseStateMachine struct {
	currentState State
	transitions  map[string]map[string]func() bool // fromState -> toState -> condition
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[string]map[string]func() bool),
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	currentID := sm.currentState.GetID()
	newID := newState.GetID()

	condition, ok := sm.transitions[currentID][newID]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, currentID, newID)
	}
	if condition != nil && !condition() {
		return fmt.Errorf("%w: %s -> %s (condition not met)", ErrTransitionNotAllowed, currentID, newID)
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()

	return nil
}

// CanChangeState evaluates a transition without performing it.
func (sm *BaseStateMachine) CanChangeState(newState State) bool {
	condition, ok := sm.transitions[sm.currentState.GetID()][newState.GetID()]
	return ok && (condition == nil || condition())
}

func (sm *BaseStateMachine) GetCurrentState() State {
	return sm.currentState
}

func (sm *BaseStateMachine) AddTransition(from State, to State, condition func() bool) error {
	fromID := from.GetID()
	toID := to.GetID()
	if fromID == toID {
		return fmt.Errorf("self transition on %q", fromID)
	}

	if _, exists := sm.transitions[fromID]; !exists {
		sm.transitions[fromID] = make(map[string]func() bool)
	}

	sm.transitions[fromID][toID] = condition
	return nil
}

// StateBase 提供默认的空实现
type StateBase struct {
	ID string
}

func (s *StateBase) GetID() string {
	return s.ID
}

func (s *StateBase) OnEnter() {
	// 默认实现
}

func (s *StateBase) OnExit() {
	// 默认实现
}
