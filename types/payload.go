package types

import "encoding/json"

// Payload is one built batch. It is either a BrokerPayload or a
// DatabasePayload.
type Payload interface {
	Kind() TaskKind
	Len() int
	isPayload()
}

// BrokerPayload carries one JSON object per batch item.
type BrokerPayload struct {
	Connector BrokerConnector
	Messages  []map[string]any
}

func (BrokerPayload) Kind() TaskKind { return KindBroker }
func (p BrokerPayload) Len() int     { return len(p.Messages) }
func (BrokerPayload) isPayload()     {}

// DatabasePayload carries statements ordered item-major.
type DatabasePayload struct {
	Connector  DatabaseConnector
	Statements []string
}

func (DatabasePayload) Kind() TaskKind { return KindDatabase }
func (p DatabasePayload) Len() int     { return len(p.Statements) }
func (DatabasePayload) isPayload()     {}

// BrokerData is the payload_data object of a broker execute request.
type BrokerData struct {
	Config   BrokerConnector  `json:"config"`
	Messages []map[string]any `json:"messages"`
}

// DatabaseData is the payload_data object of a database execute request.
type DatabaseData struct {
	Config     DatabaseConnector `json:"config"`
	Statements []string          `json:"statements"`
}

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	PayloadKind TaskKind        `json:"payload_kind"`
	PayloadData json.RawMessage `json:"payload_data"`
	BatchNumber int64           `json:"batch_number"`
}

// ExecuteResponse is the body returned by POST /execute.
type ExecuteResponse struct {
	Success     bool           `json:"success"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	BatchNumber int64          `json:"batch_number"`
	ExecutedAt  string         `json:"executed_at"`
}
