package types

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/RezaEskandarii/datafire/custom_errors"
	"github.com/RezaEskandarii/datafire/internal/state"
	"github.com/cockroachdb/errors"
)

// TaskKind selects where a task's batches are delivered.
type TaskKind string

const (
	KindBroker   TaskKind = "broker"
	KindDatabase TaskKind = "database"
)

func (k TaskKind) String() string {
	return string(k)
}

func (k TaskKind) Valid() bool {
	return k == KindBroker || k == KindDatabase
}

// BrokerConnector holds the connection details the executor uses to publish
// broker batches.
type BrokerConnector struct {
	URL        string `json:"url"`
	Exchange   string `json:"exchange,omitempty"`
	Topic      string `json:"topic"`
	RoutingKey string `json:"routing_key,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
}

// DatabaseConnector holds the connection details the executor uses to run
// database batches.
type DatabaseConnector struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	SSLMode  string `json:"sslmode,omitempty"`
}

// ConnectorConfig is stored as an opaque JSON blob. Exactly one side is set,
// matching the task kind.
type ConnectorConfig struct {
	Broker   *BrokerConnector   `json:"broker,omitempty"`
	Database *DatabaseConnector `json:"database,omitempty"`
}

type DataTask struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Kind            TaskKind         `json:"kind"`
	CronExpr        string           `json:"cron"`
	BatchSize       int              `json:"batch_size"`
	AgentID         int64            `json:"agent_id"`
	TemplateContent string           `json:"template"`
	Params          []ParamSpec      `json:"params"`
	Connector       ConnectorConfig  `json:"connector"`
	Status          state.TaskStatus `json:"status"`
	StopReason      *string          `json:"stop_reason,omitempty"`
	LastBatchNo     int64            `json:"last_batch_no"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (t *DataTask) IsRunning() bool {
	return t.Status == state.StatusRunning
}

// Statements returns the statement templates of a database task. A template
// starting with '[' is read as a JSON array of strings; anything else is a
// single statement.
func (t *DataTask) Statements() ([]string, error) {
	content := strings.TrimSpace(t.TemplateContent)
	if !strings.HasPrefix(content, "[") {
		return []string{t.TemplateContent}, nil
	}
	var statements []string
	if err := json.Unmarshal([]byte(content), &statements); err != nil {
		return nil, errors.Wrap(err, "statement list must be a JSON array of strings")
	}
	return statements, nil
}

// Validate checks the fields a task must carry before it is stored. Cron
// syntax is validated by the caller, which owns the parser.
func (t *DataTask) Validate() error {
	verr := &custom_errors.ValidationError{}
	if strings.TrimSpace(t.Name) == "" {
		verr.Add(errors.New("name is required"))
	}
	if !t.Kind.Valid() {
		verr.Add(errors.Newf("unknown task kind %q", t.Kind))
	}
	if strings.TrimSpace(t.CronExpr) == "" {
		verr.Add(errors.New("cron expression is required"))
	}
	if t.BatchSize < 1 {
		verr.Add(errors.New("batch size must be positive"))
	}
	if t.AgentID <= 0 {
		verr.Add(errors.New("an executor agent is required"))
	}
	if strings.TrimSpace(t.TemplateContent) == "" {
		verr.Add(errors.New("template is required"))
	}

	switch t.Kind {
	case KindBroker:
		if t.Connector.Broker == nil || t.Connector.Broker.URL == "" || t.Connector.Broker.Topic == "" {
			verr.Add(errors.New("broker connector requires url and topic"))
		}
	case KindDatabase:
		if t.Connector.Database == nil || t.Connector.Database.Host == "" || t.Connector.Database.Database == "" {
			verr.Add(errors.New("database connector requires host and database"))
		}
		if statements, err := t.Statements(); err != nil {
			verr.Add(err)
		} else if len(statements) == 0 {
			verr.Add(errors.New("at least one statement is required"))
		}
	}

	seen := make(map[string]bool, len(t.Params))
	for _, p := range t.Params {
		if p.Name == "" {
			verr.Add(errors.New("parameter name is required"))
			continue
		}
		if seen[p.Name] {
			verr.Add(errors.Newf("parameter %q declared twice", p.Name))
		}
		seen[p.Name] = true
	}

	if verr.HasError() {
		return verr
	}
	return nil
}
