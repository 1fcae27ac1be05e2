package state

// TaskStatus is the lifecycle status of a data task. Only running tasks are
// considered by the scheduler.
type TaskStatus string

const (
	StatusStopped TaskStatus = "stopped"
	StatusRunning TaskStatus = "running"
)

func (s TaskStatus) String() string {
	return string(s)
}

var AllTaskStatuses = []TaskStatus{
	StatusStopped,
	StatusRunning,
}

// FiringState tracks a task inside the scheduler between ticks.
type FiringState string

const (
	FiringIdle    FiringState = "idle"
	FiringClaimed FiringState = "claimed"
	FiringActive  FiringState = "firing"
)

func (s FiringState) String() string {
	return string(s)
}

// AgentStatus is the last observed health of an executor agent.
type AgentStatus string

const (
	AgentUnknown AgentStatus = "unknown"
	AgentOnline  AgentStatus = "online"
	AgentOffline AgentStatus = "offline"
)

func (s AgentStatus) String() string {
	return string(s)
}

type Transition[T ~string] struct {
	From T
	To   T
}

var ValidTaskTransitions = []Transition[TaskStatus]{
	{From: StatusStopped, To: StatusRunning},
	{From: StatusRunning, To: StatusStopped},
}

// A claim can be dropped before it fires when a newer instant supersedes it
// or the task is stopped.
var ValidFiringTransitions = []Transition[FiringState]{
	{From: FiringIdle, To: FiringClaimed},
	{From: FiringClaimed, To: FiringActive},
	{From: FiringClaimed, To: FiringIdle},
	{From: FiringActive, To: FiringIdle},
}

func IsValidTaskTransition(from, to TaskStatus) bool {
	return isValid(ValidTaskTransitions, from, to)
}

func IsValidFiringTransition(from, to FiringState) bool {
	return isValid(ValidFiringTransitions, from, to)
}

func isValid[T ~string](transitions []Transition[T], from, to T) bool {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}
