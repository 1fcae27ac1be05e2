package client

import (
	"context"
	"sync"
	"time"

	"github.com/RezaEskandarii/datafire/internal/constants"
	"github.com/RezaEskandarii/datafire/internal/lock"
	"github.com/RezaEskandarii/datafire/internal/metrics"
	"github.com/RezaEskandarii/datafire/internal/store"
	"github.com/RezaEskandarii/datafire/pgk/parser"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/RezaEskandarii/datafire/types/config"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DataTaskScheduler fires running tasks at their cron instants.
//
// Every tick it computes the next instant of each running task. Instants
// within the claim horizon are claimed once and handed to a timer goroutine
// that sleeps until the instant and then dispatches the batch with the
// instant as its reference time.
type DataTaskScheduler struct {
	tasks      store.DataTaskStore
	lock       lock.DistributedLockManager
	dispatcher *Dispatcher
	logger     *zap.SugaredLogger

	interval time.Duration
	horizon  time.Duration
	location *time.Location
	now      func() time.Time

	claims *claimRegistry
	wg     sync.WaitGroup

	// parsed is only touched by the tick goroutine.
	parsed map[string]*parser.Expr
	tickMu sync.Mutex
}

func NewDataTaskScheduler(tasks store.DataTaskStore, lockMgr lock.DistributedLockManager, dispatcher *Dispatcher, cfg *config.DatafireConfig, logger *zap.SugaredLogger) *DataTaskScheduler {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	s := &DataTaskScheduler{
		tasks:      tasks,
		lock:       lockMgr,
		dispatcher: dispatcher,
		logger:     logger,
		interval:   cfg.TickInterval,
		horizon:    cfg.ClaimHorizon,
		location:   loc,
		now:        time.Now,
		claims:     newClaimRegistry(),
		parsed:     make(map[string]*parser.Expr),
	}
	dispatcher.ledger.UseStopper(s)
	return s
}

// Start ticks until ctx is cancelled. Only the instance holding the
// scheduler lock ticks; others wait and retry every interval. On return,
// pending timers are abandoned and batches already dispatching have
// finished.
func (s *DataTaskScheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	leader := false
	defer func() {
		s.wg.Wait()
		if leader {
			if err := s.lock.Release(constants.SchedulerLock); err != nil {
				s.logger.Warnw("failed to release scheduler lock", "error", err)
			}
		}
	}()

	for {
		if !leader {
			ok, err := s.lock.TryAcquire(ctx, constants.SchedulerLock)
			if err != nil {
				s.logger.Warnw("scheduler lock unavailable", "error", err)
			}
			if ok {
				leader = true
				s.logger.Infow("scheduler started", "tick", s.interval, "horizon", s.horizon)
			}
		}
		if leader {
			s.Tick(ctx)
		}

		select {
		case <-ctx.Done():
			s.logger.Infow("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick evaluates every running task once. Failures are logged and never
// escape, so one bad tick does not end the loop.
func (s *DataTaskScheduler) Tick(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	snap := s.claims.snapshot()
	tasks, err := s.tasks.ListRunning(ctx)
	if err != nil {
		metrics.TickErrors.Inc()
		s.logger.Warnw("failed to list running tasks", "error", err)
		return
	}

	now := s.now().In(s.location)
	for _, task := range tasks {
		expr, err := s.parse(task.CronExpr)
		if err != nil {
			s.logger.Warnw("skipping task with invalid cron", "task_id", task.ID, "cron", task.CronExpr, "error", err)
			continue
		}
		next := expr.Next(now)
		if next.IsZero() {
			continue
		}
		delay := next.Sub(now)
		if delay <= 0 || delay > s.horizon {
			continue
		}

		timerCtx, cancel, ok := s.claims.claim(ctx, task.ID, next, snap)
		if !ok {
			continue
		}
		metrics.FiringsClaimed.Inc()
		metrics.PendingClaims.Set(float64(s.claims.size()))

		s.wg.Add(1)
		go s.fire(timerCtx, cancel, task, next)
	}
}

func (s *DataTaskScheduler) parse(expr string) (*parser.Expr, error) {
	if e, ok := s.parsed[expr]; ok {
		return e, nil
	}
	e, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	s.parsed[expr] = e
	return e, nil
}

// fire is the timer of one claimed instant.
func (s *DataTaskScheduler) fire(ctx context.Context, cancel context.CancelFunc, task types.DataTask, instant time.Time) {
	defer s.wg.Done()
	defer cancel()
	defer func() {
		s.claims.release(task.ID, instant)
		metrics.PendingClaims.Set(float64(s.claims.size()))
	}()

	log := s.logger.With("task_id", task.ID, "instant", instant)

	if delay := instant.Sub(s.now()); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			metrics.FiringsAbandoned.WithLabelValues("cancelled").Inc()
			return
		case <-timer.C:
		}
	}

	s.claims.begin(task.ID, instant)
	if ctx.Err() != nil {
		metrics.FiringsAbandoned.WithLabelValues("cancelled").Inc()
		return
	}

	// From here on the batch is dispatched to completion even if the task
	// is stopped or the scheduler shuts down.
	dispatchCtx := context.WithoutCancel(ctx)

	current, err := s.tasks.Get(dispatchCtx, task.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warnw("failed to reload task before dispatch", "error", err)
		}
		metrics.FiringsAbandoned.WithLabelValues("stopped").Inc()
		return
	}
	if !current.IsRunning() {
		metrics.FiringsAbandoned.WithLabelValues("stopped").Inc()
		return
	}

	if _, err := s.dispatcher.Fire(dispatchCtx, current, instant); err != nil {
		log.Errorw("firing failed", "error", err)
	}
}

// Stop marks the task stopped. No claim is created for it afterwards, and a
// timer still waiting for its instant is cancelled.
func (s *DataTaskScheduler) Stop(ctx context.Context, taskID int64, reason string) error {
	return s.whileStopping(taskID, func() error {
		return s.tasks.Stop(ctx, taskID, reason)
	})
}

// Delete removes the task with the same guarantees as Stop.
func (s *DataTaskScheduler) Delete(ctx context.Context, taskID int64) error {
	return s.whileStopping(taskID, func() error {
		return s.tasks.Delete(ctx, taskID)
	})
}

// Reset drops pending timers of a task whose schedule or template changed.
// The next tick claims again from the new definition.
func (s *DataTaskScheduler) Reset(taskID int64) {
	_ = s.whileStopping(taskID, func() error { return nil })
}

func (s *DataTaskScheduler) whileStopping(taskID int64, fn func() error) error {
	s.claims.beginStop(taskID)
	defer s.claims.endStop(taskID)
	metrics.PendingClaims.Set(float64(s.claims.size()))
	return fn()
}

// PendingClaims is the number of tasks with a claimed instant.
func (s *DataTaskScheduler) PendingClaims() int {
	return s.claims.size()
}

// ClaimedInstant returns the instant a task is currently claimed for.
func (s *DataTaskScheduler) ClaimedInstant(taskID int64) (time.Time, bool) {
	return s.claims.instantOf(taskID)
}

// Wait blocks until every started timer has returned.
func (s *DataTaskScheduler) Wait() {
	s.wg.Wait()
}
