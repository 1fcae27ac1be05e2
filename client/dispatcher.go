package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RezaEskandarii/datafire/internal/agentclient"
	"github.com/RezaEskandarii/datafire/internal/ledger"
	"github.com/RezaEskandarii/datafire/internal/metrics"
	"github.com/RezaEskandarii/datafire/internal/payload"
	"github.com/RezaEskandarii/datafire/internal/store"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FiringResult summarises one dispatched batch.
type FiringResult struct {
	RunID       string    `json:"run_id"`
	BatchNo     int64     `json:"batch_no"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	Items       int       `json:"items"`
	AutoStopped bool      `json:"auto_stopped"`
}

// Dispatcher runs one firing: allocate a batch, build the payload, send it
// to the task's agent and record the outcome.
type Dispatcher struct {
	agents   store.AgentStore
	executor agentclient.Executor
	ledger   *ledger.Ledger
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewDispatcher(agents store.AgentStore, executor agentclient.Executor, l *ledger.Ledger, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		agents:   agents,
		executor: executor,
		ledger:   l,
		logger:   logger,
		now:      time.Now,
	}
}

// Fire dispatches task for the scheduled instant ref. Delivery failures are
// recorded and reported in the result; the returned error is reserved for
// failures to allocate or record the batch.
func (d *Dispatcher) Fire(ctx context.Context, task *types.DataTask, ref time.Time) (*FiringResult, error) {
	batchNo, err := d.ledger.AllocateBatch(ctx, task.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "allocate batch for task %d", task.ID)
	}

	res := &FiringResult{
		RunID:       uuid.NewString(),
		BatchNo:     batchNo,
		ScheduledAt: ref,
	}
	log := d.logger.With("task_id", task.ID, "batch_no", batchNo, "run_id", res.RunID)

	outcome := d.deliver(ctx, task, batchNo, ref, res)
	metrics.Executions.WithLabelValues(task.Kind.String(), outcome).Inc()
	if lag := d.now().Sub(ref); lag > 0 {
		metrics.FiringLag.Observe(lag.Seconds())
	}

	tripped, err := d.ledger.Record(ctx, &types.Execution{
		TaskID:        task.ID,
		BatchNo:       batchNo,
		RunID:         res.RunID,
		Success:       res.Success,
		ResultMessage: res.Message,
		RecordsCount:  res.Items,
		ScheduledAt:   ref,
		ExecutedAt:    d.now(),
	})
	if err != nil {
		return res, errors.Wrapf(err, "record batch %d of task %d", batchNo, task.ID)
	}
	res.AutoStopped = tripped

	if res.Success {
		log.Infow("batch delivered", "items", res.Items)
	} else {
		log.Warnw("batch failed", "items", res.Items, "error", res.Message, "kind", outcome)
	}
	return res, nil
}

// deliver fills res and returns the metrics outcome label.
func (d *Dispatcher) deliver(ctx context.Context, task *types.DataTask, batchNo int64, ref time.Time, res *FiringResult) string {
	p, err := payload.Build(task, batchNo, ref)
	if err != nil {
		res.Message = err.Error()
		return string(agentclient.KindApplication)
	}
	res.Items = p.Len()

	agent, err := d.agents.Get(ctx, task.AgentID)
	if err != nil {
		res.Message = errors.Wrapf(err, "load agent %d", task.AgentID).Error()
		return string(agentclient.KindTransport)
	}

	started := d.now()
	resp, err := d.executor.Execute(ctx, agentclient.Endpoint{URL: agent.URL, Token: agent.Token}, p, batchNo, res.RunID)
	metrics.ExecutionDuration.WithLabelValues(task.Kind.String()).Observe(d.now().Sub(started).Seconds())
	if err != nil {
		res.Message = err.Error()
		var execErr *agentclient.ExecutionError
		if errors.As(err, &execErr) {
			return string(execErr.Kind)
		}
		return string(agentclient.KindTransport)
	}

	res.Success = true
	res.Message = "ok"
	if resp != nil && len(resp.Result) > 0 {
		if raw, err := json.Marshal(resp.Result); err == nil {
			res.Message = string(raw)
		}
	}
	return "success"
}
