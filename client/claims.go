package client

import (
	"context"
	"sync"
	"time"

	"github.com/RezaEskandarii/datafire/internal/state"
)

type claim struct {
	instant time.Time
	state   state.FiringState
	cancel  context.CancelFunc
}

// claimRegistry is the single source of truth for which instant each task
// is scheduled for. Every tick and timer goes through its mutex.
//
// Stops are sequenced: a tick snapshots seq before listing running tasks,
// and a claim is refused while a stop is in progress for the task or when
// the task was stopped after the snapshot was taken. A tick that read a
// task just before it was stopped therefore cannot claim it.
type claimRegistry struct {
	mu       sync.Mutex
	seq      uint64
	claims   map[int64]*claim
	stopping map[int64]int
	stopped  map[int64]uint64
}

func newClaimRegistry() *claimRegistry {
	return &claimRegistry{
		claims:   make(map[int64]*claim),
		stopping: make(map[int64]int),
		stopped:  make(map[int64]uint64),
	}
}

func (r *claimRegistry) snapshot() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// claim records instant for taskID and returns the context its timer must
// watch, with its cancel func. It returns false when the instant is already
// claimed or the task is being stopped.
func (r *claimRegistry) claim(parent context.Context, taskID int64, instant time.Time, snap uint64) (context.Context, context.CancelFunc, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopping[taskID] > 0 || r.stopped[taskID] > snap {
		return nil, nil, false
	}
	if c, ok := r.claims[taskID]; ok {
		if c.instant.Equal(instant) {
			return nil, nil, false
		}
		// An earlier instant than the pending one means the schedule
		// changed; the pending timer is stale. A later one means the old
		// instant has passed and its timer runs to completion.
		if c.state == state.FiringClaimed && instant.Before(c.instant) {
			c.cancel()
		}
	}

	ctx, cancel := context.WithCancel(parent)
	r.claims[taskID] = &claim{instant: instant, state: state.FiringClaimed, cancel: cancel}
	return ctx, cancel, true
}

// begin moves the claim for instant to firing, if it is still the current
// claim of the task.
func (r *claimRegistry) begin(taskID int64, instant time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.claims[taskID]; ok && c.instant.Equal(instant) && state.IsValidFiringTransition(c.state, state.FiringActive) {
		c.state = state.FiringActive
	}
}

// release drops the claim only if it still refers to instant; a newer claim
// set by a later tick is left alone.
func (r *claimRegistry) release(taskID int64, instant time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.claims[taskID]; ok && c.instant.Equal(instant) {
		c.cancel()
		delete(r.claims, taskID)
	}
}

// beginStop blocks new claims for taskID and cancels a pending timer. A
// firing already dispatching is not interrupted.
func (r *claimRegistry) beginStop(taskID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopping[taskID]++
	if c, ok := r.claims[taskID]; ok && c.state == state.FiringClaimed {
		c.cancel()
		delete(r.claims, taskID)
	}
}

func (r *claimRegistry) endStop(taskID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.stopped[taskID] = r.seq
	if r.stopping[taskID]--; r.stopping[taskID] <= 0 {
		delete(r.stopping, taskID)
	}
}

func (r *claimRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.claims)
}

// instantOf returns the claimed instant of a task, if any.
func (r *claimRegistry) instantOf(taskID int64) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[taskID]
	if !ok {
		return time.Time{}, false
	}
	return c.instant, true
}
