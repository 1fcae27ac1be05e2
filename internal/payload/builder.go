// Package payload turns a task and a batch number into the concrete items the
// executor delivers.
package payload

import (
	"encoding/json"
	"time"

	"github.com/RezaEskandarii/datafire/pgk/template"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
)

// BuildMessages renders tmpl once per item and decodes each result as JSON.
// Objects are kept, other JSON values are wrapped as {"data": v} and
// undecodable text as {"raw": text}, so one bad item never fails the batch.
func BuildMessages(tmpl string, specs []types.ParamSpec, batchSize int, batchNo int64, ref time.Time) []map[string]any {
	messages := make([]map[string]any, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		rendered := template.RenderItem(tmpl, specs, batchNo, batchSize, i, ref)
		messages = append(messages, decodeMessage(rendered))
	}
	return messages
}

func decodeMessage(rendered string) map[string]any {
	var v any
	if err := json.Unmarshal([]byte(rendered), &v); err != nil {
		return map[string]any{"raw": rendered}
	}
	if obj, ok := v.(map[string]any); ok {
		return obj
	}
	return map[string]any{"data": v}
}

// BuildStatements renders every statement template for every item. The
// result is item-major: all statements of item 0, then item 1, and so on.
func BuildStatements(templates []string, specs []types.ParamSpec, batchSize int, batchNo int64, ref time.Time) []string {
	statements := make([]string, 0, batchSize*len(templates))
	for i := 0; i < batchSize; i++ {
		for _, tmpl := range templates {
			statements = append(statements, template.RenderItem(tmpl, specs, batchNo, batchSize, i, ref))
		}
	}
	return statements
}

// Build produces the payload of one firing of task.
func Build(task *types.DataTask, batchNo int64, ref time.Time) (types.Payload, error) {
	switch task.Kind {
	case types.KindBroker:
		if task.Connector.Broker == nil {
			return nil, errors.Newf("task %d has no broker connector", task.ID)
		}
		return types.BrokerPayload{
			Connector: *task.Connector.Broker,
			Messages:  BuildMessages(task.TemplateContent, task.Params, task.BatchSize, batchNo, ref),
		}, nil
	case types.KindDatabase:
		if task.Connector.Database == nil {
			return nil, errors.Newf("task %d has no database connector", task.ID)
		}
		templates, err := task.Statements()
		if err != nil {
			return nil, errors.Wrapf(err, "task %d", task.ID)
		}
		return types.DatabasePayload{
			Connector:  *task.Connector.Database,
			Statements: BuildStatements(templates, task.Params, task.BatchSize, batchNo, ref),
		}, nil
	default:
		return nil, errors.Newf("task %d has unknown kind %q", task.ID, task.Kind)
	}
}

// Encode serialises a payload into the payload_data object of an execute
// request.
func Encode(p types.Payload) (json.RawMessage, error) {
	var data any
	switch v := p.(type) {
	case types.BrokerPayload:
		data = types.BrokerData{Config: v.Connector, Messages: v.Messages}
	case types.DatabasePayload:
		data = types.DatabaseData{Config: v.Connector, Statements: v.Statements}
	default:
		return nil, errors.Newf("unsupported payload %T", p)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "encode payload")
	}
	return raw, nil
}
