package template

import (
	"testing"
	"time"

	"github.com/RezaEskandarii/datafire/types"
	"github.com/stretchr/testify/assert"
)

var ref = time.Date(2025, 3, 14, 15, 9, 26, 535000000, time.UTC)

func TestRender_Kinds(t *testing.T) {
	specs := []types.ParamSpec{
		{Name: "name", Kind: types.ParamFixed, Value: "alice"},
		{Name: "now", Kind: types.ParamCurrentTime},
		{Name: "day", Kind: types.ParamCurrentTime, Value: "%Y/%m/%d"},
		{Name: "ms", Kind: types.ParamTimestamp13},
		{Name: "sec", Kind: types.ParamTimestamp10},
		{Name: "batch", Kind: types.ParamBatch},
		{Name: "other", Kind: types.ParamKind("mystery"), Value: "x"},
	}
	tmpl := "{name}|{now}|{day}|{ms}|{sec}|{batch}|{other}|{missing}"

	got := Render(tmpl, specs, 7, 0, ref)
	assert.Equal(t, "alice|2025-03-14 15:09:26|2025/03/14|1741964966535|1741964966|7|x|{missing}", got)
}

func TestRender_Deterministic(t *testing.T) {
	specs := []types.ParamSpec{
		{Name: "ts", Kind: types.ParamTimestamp13},
		{Name: "rr", Kind: types.ParamRoundRobin, Value: "a,b,c"},
	}
	first := Render(`{"ts": {ts}, "rr": "{rr}"}`, specs, 3, 1, ref)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Render(`{"ts": {ts}, "rr": "{rr}"}`, specs, 3, 1, ref))
	}
}

func TestRender_RepeatedMarker(t *testing.T) {
	specs := []types.ParamSpec{{Name: "id", Kind: types.ParamFixed, Value: "9"}}
	assert.Equal(t, "9-9-9", Render("{id}-{id}-{id}", specs, 1, 0, ref))
}

func TestRender_SinglePass(t *testing.T) {
	specs := []types.ParamSpec{
		{Name: "a", Kind: types.ParamFixed, Value: "{b}"},
		{Name: "b", Kind: types.ParamFixed, Value: "B"},
	}
	assert.Equal(t, "{b} B", Render("{a} {b}", specs, 1, 0, ref))

	reversed := []types.ParamSpec{specs[1], specs[0]}
	assert.Equal(t, "{b} B", Render("{a} {b}", reversed, 1, 0, ref))
}

func TestRender_RoundRobinIndex(t *testing.T) {
	specs := []types.ParamSpec{{Name: "v", Kind: types.ParamRoundRobin, Value: "a, b ,c"}}

	assert.Equal(t, "a", Render("{v}", specs, 1, 0, ref))
	assert.Equal(t, "b", Render("{v}", specs, 1, 1, ref))
	assert.Equal(t, "b", Render("{v}", specs, 2, 0, ref))
	assert.Equal(t, "a", Render("{v}", specs, 3, 1, ref))
}

func TestRenderItem_RoundRobinContinuesAcrossBatches(t *testing.T) {
	specs := []types.ParamSpec{{Name: "v", Kind: types.ParamRoundRobin, Value: "a,b,c"}}

	assert.Equal(t, "a", RenderItem("{v}", specs, 1, 2, 0, ref))
	assert.Equal(t, "b", RenderItem("{v}", specs, 1, 2, 1, ref))

	assert.Equal(t, "c", RenderItem("{v}", specs, 2, 2, 0, ref))
	assert.Equal(t, "a", RenderItem("{v}", specs, 2, 2, 1, ref))
}

func TestRender_RoundRobinWithoutList(t *testing.T) {
	specs := []types.ParamSpec{{Name: "n", Kind: types.ParamRoundRobin}}
	for _, batch := range []int64{1, 2, 50} {
		assert.Equal(t, "1", Render("{n}", specs, batch, 0, ref))
		assert.Equal(t, "2", Render("{n}", specs, batch, 1, ref))
		assert.Equal(t, "3", Render("{n}", specs, batch, 2, ref))
	}
}

func TestRender_NoSpecs(t *testing.T) {
	assert.Equal(t, "{x}", Render("{x}", nil, 1, 0, ref))
}

func TestExtractParams(t *testing.T) {
	got := ExtractParams(`{"user": "{user}", "at": "{ts}", "again": "{user}", "bad": "{not-a-name}"}`)
	assert.Equal(t, []string{"ts", "user"}, got)
	assert.Empty(t, ExtractParams("no markers"))
}
