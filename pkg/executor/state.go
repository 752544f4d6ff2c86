package executor

// State is a step of a migration or validation run.
//
// Runs move through the states in order:
//
//	Idle -> LockAcquired -> HistoryLoaded -> Diffed -> Validating|Executing -> LockReleased -> Completed|Failed
//
// A run that fails before taking the lock goes straight to Failed.
type State string

const (
	StateIdle          State = "idle"
	StateLockAcquired  State = "lock_acquired"
	StateHistoryLoaded State = "history_loaded"
	StateDiffed        State = "diffed"
	StateValidating    State = "validating"
	StateExecuting     State = "executing"
	StateLockReleased  State = "lock_released"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

// Terminal reports whether the run has finished.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
