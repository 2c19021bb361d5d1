package publisher

import "fmt"

// Stage is one step of the middleware setup pipeline.
type Stage int

// Setup stages in execution order.
const (
	StageTransport Stage = iota + 1
	StageSupport
	StageNode
	StagePublisher
	StageTimer
	StageExecutor
	StageExecutorAddTimer
)

// String returns the stage name used in logs and journal entries.
func (s Stage) String() string {
	switch s {
	case StageTransport:
		return "transport"
	case StageSupport:
		return "support"
	case StageNode:
		return "node"
	case StagePublisher:
		return "publisher"
	case StageTimer:
		return "timer"
	case StageExecutor:
		return "executor"
	case StageExecutorAddTimer:
		return "executor_add_timer"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// SetupPolicy decides what happens after a setup stage fails.
type SetupPolicy int

const (
	// FailFast aborts Setup at the first failing stage.
	FailFast SetupPolicy = iota

	// BestEffort logs the failure and runs the remaining stages; stages whose
	// inputs are missing fail with middleware.ErrNotInitialized.
	BestEffort
)

// ParseSetupPolicy maps "fail_fast" and "best_effort" to a SetupPolicy.
// Anything else is FailFast.
func ParseSetupPolicy(s string) SetupPolicy {
	if s == "best_effort" {
		return BestEffort
	}
	return FailFast
}

// String returns the configuration spelling of the policy.
func (p SetupPolicy) String() string {
	if p == BestEffort {
		return "best_effort"
	}
	return "fail_fast"
}

// StageError reports which setup stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("setup stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
