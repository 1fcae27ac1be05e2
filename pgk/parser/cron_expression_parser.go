// Package parser resolves 5-field and 6-field (seconds first) cron expressions
// into schedules.
package parser

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
)

var (
	standardParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	secondsParser  = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

var (
	standardFields = []string{"minute", "hour", "day", "month", "weekday"}
	secondsFields  = []string{"second", "minute", "hour", "day", "month", "weekday"}
)

// Expr is a parsed cron expression.
type Expr struct {
	Source   string
	Fields   map[string]string
	schedule cron.Schedule
}

// Normalize trims the expression, collapses whitespace and replaces the
// Quartz '?' wildcard with '*'.
func Normalize(expr string) string {
	parts := strings.Fields(expr)
	for i, p := range parts {
		if p == "?" {
			parts[i] = "*"
		}
	}
	return strings.Join(parts, " ")
}

// Parse accepts "minute hour day month weekday" or
// "second minute hour day month weekday", plus @-descriptors.
func Parse(expr string) (*Expr, error) {
	normalized := Normalize(expr)
	if normalized == "" {
		return nil, errors.New("cron expression is empty")
	}

	var (
		p      cron.Parser
		names  []string
		fields = strings.Fields(normalized)
	)
	switch {
	case strings.HasPrefix(normalized, "@"):
		p = standardParser
	case len(fields) == 5:
		p, names = standardParser, standardFields
	case len(fields) == 6:
		p, names = secondsParser, secondsFields
	default:
		return nil, errors.Newf("cron expression %q must have 5 fields (minute hour day month weekday) or 6 fields (second minute hour day month weekday)", expr)
	}

	schedule, err := p.Parse(normalized)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid cron expression %q", expr)
	}

	named := make(map[string]string, len(names))
	for i, name := range names {
		named[name] = fields[i]
	}
	return &Expr{Source: expr, Fields: named, schedule: schedule}, nil
}

// Next returns the first instant strictly after from.
func (e *Expr) Next(from time.Time) time.Time {
	return e.schedule.Next(from)
}

// NextN returns the next n instants after from, in order.
func (e *Expr) NextN(from time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = e.schedule.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out
}

// Next parses expr and returns its first instant after from.
func Next(expr string, from time.Time) (time.Time, error) {
	e, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return e.Next(from), nil
}

// Validate reports whether expr can be scheduled.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}
