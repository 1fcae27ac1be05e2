// Package template renders {name} markers in task templates.
package template

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/RezaEskandarii/datafire/types"
	"github.com/lestrrat-go/strftime"
)

const DefaultTimeFormat = "%Y-%m-%d %H:%M:%S"

var markerPattern = regexp.MustCompile(`\{(\w+)\}`)

// Render substitutes every {name} declared in specs. Substitution is a
// single non-recursive pass, so a replacement containing another marker is
// left as is. Markers without a spec are kept verbatim.
//
// batchNo and item select round_robin entries: entry (batchNo-1+item) mod
// len. ref is the instant every time-based kind is derived from.
func Render(tmpl string, specs []types.ParamSpec, batchNo int64, item int, ref time.Time) string {
	return RenderItem(tmpl, specs, batchNo, 1, item, ref)
}

// RenderItem renders item of a batch of batchSize items. round_robin
// continues across batches: batch 2 starts where batch 1 ended.
func RenderItem(tmpl string, specs []types.ParamSpec, batchNo int64, batchSize, item int, ref time.Time) string {
	if len(specs) == 0 {
		return tmpl
	}
	if batchSize < 1 {
		batchSize = 1
	}
	pos := position{batchNo: batchNo, item: item, offset: (batchNo-1)*int64(batchSize) + int64(item)}

	pairs := make([]string, 0, len(specs)*2)
	for _, spec := range specs {
		if spec.Name == "" {
			continue
		}
		pairs = append(pairs, "{"+spec.Name+"}", value(spec, pos, ref))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

type position struct {
	batchNo int64
	item    int
	// offset is the item's index in the task's endless item sequence.
	offset int64
}

func value(spec types.ParamSpec, pos position, ref time.Time) string {
	switch spec.Kind {
	case types.ParamCurrentTime:
		return formatTime(spec.Value, ref)
	case types.ParamTimestamp13:
		return strconv.FormatInt(ref.UnixMilli(), 10)
	case types.ParamTimestamp10:
		return strconv.FormatInt(ref.Unix(), 10)
	case types.ParamRoundRobin:
		return roundRobin(spec.Value, pos)
	case types.ParamBatch:
		return strconv.FormatInt(pos.batchNo, 10)
	default:
		return spec.Value
	}
}

func formatTime(pattern string, ref time.Time) string {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultTimeFormat
	}
	out, err := strftime.Format(pattern, ref)
	if err != nil {
		out, _ = strftime.Format(DefaultTimeFormat, ref)
	}
	return out
}

// roundRobin picks entry offset mod len from a comma separated list.
// Without a list it yields the 1-based item ordinal.
func roundRobin(list string, pos position) string {
	if strings.TrimSpace(list) == "" {
		return strconv.Itoa(pos.item + 1)
	}
	values := strings.Split(list, ",")
	n := int64(len(values))
	idx := (pos.offset%n + n) % n
	return strings.TrimSpace(values[idx])
}

// ExtractParams returns the distinct marker names in tmpl, sorted.
func ExtractParams(tmpl string) []string {
	seen := make(map[string]struct{})
	for _, m := range markerPattern.FindAllStringSubmatch(tmpl, -1) {
		seen[m[1]] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
