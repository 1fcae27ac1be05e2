package constants

// Advisory lock identifiers. Values are part of the on-disk contract with
// other running instances, append only.
const (
	MigrationLock = iota + 7001
	SchedulerLock
)

const (
	// ConsecutiveFailureLimit is the number of most recent failed executions
	// that stops a task.
	ConsecutiveFailureLimit = 3

	AutoStopReason = "auto-stopped after 3 consecutive failed executions"

	// ExecutionHistoryLimit caps execution listings.
	ExecutionHistoryLimit = 100
)
