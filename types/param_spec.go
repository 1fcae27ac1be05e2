package types

import (
	"encoding/json"
	"strings"
)

// ParamKind selects how a parameter marker is substituted.
type ParamKind string

const (
	ParamFixed       ParamKind = "fixed"
	ParamCurrentTime ParamKind = "current_time"
	ParamTimestamp13 ParamKind = "timestamp_13"
	ParamTimestamp10 ParamKind = "timestamp_10"
	ParamRoundRobin  ParamKind = "round_robin"
	ParamBatch       ParamKind = "batch"
)

// ParamSpec binds a {name} marker to a substitution kind and its raw value.
type ParamSpec struct {
	Name  string    `json:"param"`
	Kind  ParamKind `json:"type"`
	Value string    `json:"value"`
}

// UnmarshalJSON accepts non-string values (numbers, booleans) and keeps
// their JSON text, so a fixed 42 renders as 42.
func (p *ParamSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  string          `json:"param"`
		Kind  ParamKind       `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Name = raw.Name
	p.Kind = raw.Kind
	p.Value = ""

	value := strings.TrimSpace(string(raw.Value))
	switch {
	case value == "" || value == "null":
	case strings.HasPrefix(value, `"`):
		var s string
		if err := json.Unmarshal(raw.Value, &s); err != nil {
			return err
		}
		p.Value = s
	default:
		p.Value = value
	}
	return nil
}
