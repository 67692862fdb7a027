package workflow

// StateMachine tracks one claim's reconciliation state
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire moves to the trigger's target state if the transition is permitted
	Fire(trigger Trigger) error
}
