package types

import "time"

// Execution is one append-only record of a firing attempt.
type Execution struct {
	ID            int64     `json:"id"`
	TaskID        int64     `json:"task_id"`
	BatchNo       int64     `json:"batch_no"`
	RunID         string    `json:"run_id"`
	Success       bool      `json:"success"`
	ResultMessage string    `json:"result_message"`
	RecordsCount  int       `json:"records_count"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	ExecutedAt    time.Time `json:"executed_at"`
}
