package directive

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/lazypower/strata/internal/config"
	"github.com/lazypower/strata/internal/engine"
	"github.com/lazypower/strata/internal/memory"
	"go.uber.org/zap"
)

func testEngine(t *testing.T, threshold uint64) *engine.Engine {
	t.Helper()
	cfg := config.Default().Memory
	cfg.PagingThreshold = threshold
	eng, err := engine.New(nil, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(eng.Stop)
	return eng
}

func TestHandleAppliesInOrder(t *testing.T) {
	eng := testEngine(t, 1024)

	in := `{"iteration":3,"actions":[
		{"type":"storage_save","tags":"project,plan","value":"ship it"},
		{"type":"working_memory_add","tags":"thinking_notes","value":"idea"},
		{"type":"storage_search","tags":"plan"},
		{"type":"working_memory_remove","tags":"thinking_notes"}
	]}`

	var buf bytes.Buffer
	out, err := Handle(eng, strings.NewReader(in), &buf)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out.Failed() != 0 {
		t.Fatalf("failed actions: %+v", out.Results)
	}

	if got := out.Results[0].Key; got != "plan,project,iteration_3" {
		t.Errorf("save key = %q", got)
	}
	if got := out.Results[2].Count; got != 1 {
		t.Errorf("search count = %d, want 1", got)
	}
	if !strings.HasPrefix(out.Results[2].Summary, "found 1 matches") {
		t.Errorf("summary = %q", out.Results[2].Summary)
	}
	if got := out.Results[3].Count; got != 1 {
		t.Errorf("remove count = %d, want 1", got)
	}

	want := []string{"plan,project,iteration_3", "search_results,summary,iteration_3"}
	got := eng.Entries(memory.Working)
	if len(got) != len(want) {
		t.Fatalf("working = %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Key != want[i] {
			t.Errorf("working[%d] = %q, want %q", i, got[i].Key, want[i])
		}
	}

	var decoded Output
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded.Iteration != 3 || len(decoded.Results) != 4 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Paging == nil {
		t.Error("expected paging outcome in output")
	}
}

func TestHandleUnknownActionDoesNotAbort(t *testing.T) {
	eng := testEngine(t, 1024)

	in := &Input{Iteration: 1, Actions: []Action{
		{Type: "teleport", Tags: "x"},
		{Type: ActionWorkingAdd, Tags: "notes", Value: "kept"},
		{Type: ActionWorkingAdd, Tags: "notes"},
	}}
	out := Apply(eng, in)

	if out.Results[0].OK || !strings.Contains(out.Results[0].Error, "unknown action") {
		t.Errorf("unknown action result = %+v", out.Results[0])
	}
	if !out.Results[1].OK {
		t.Errorf("add after unknown failed: %+v", out.Results[1])
	}
	if out.Results[2].OK {
		t.Error("add without value should fail")
	}
	if out.Failed() != 2 {
		t.Errorf("Failed() = %d, want 2", out.Failed())
	}
}

func TestHandlePagesAfterActions(t *testing.T) {
	eng := testEngine(t, 40)

	in := &Input{Iteration: 5, Actions: []Action{
		{Type: ActionWorkingAdd, Tags: "thinking_notes", Value: "idea"},
		{Type: ActionWorkingAdd, Tags: "log", Value: strings.Repeat("x", 60)},
	}}
	out := Apply(eng, in)

	if out.Paging == nil {
		t.Fatal("expected paging outcome")
	}
	if out.Paging.Migrated != 1 {
		t.Errorf("migrated = %d, want 1", out.Paging.Migrated)
	}
	if !out.Rethink {
		t.Error("expected rethink after migration")
	}
	if out.Phase != string(engine.PhaseThinking) {
		t.Errorf("phase = %q, want thinking", out.Phase)
	}

	disk := eng.Entries(memory.Disk)
	if len(disk) != 1 || disk[0].Key != "log,iteration_5" {
		t.Errorf("disk = %+v", disk)
	}
}

func TestHandleExplicitPageRunsOnce(t *testing.T) {
	eng := testEngine(t, 1024)

	in := &Input{Iteration: 2, Actions: []Action{
		{Type: ActionPage},
		{Type: ActionWorkingAdd, Tags: "notes", Value: "after"},
	}}
	out := Apply(eng, in)

	if len(out.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(out.Results))
	}
	if !out.Results[0].OK {
		t.Errorf("page result = %+v", out.Results[0])
	}
	if out.Paging == nil || out.Paging.Migrated != 0 {
		t.Errorf("paging = %+v", out.Paging)
	}
}

func TestHandleInvalidJSON(t *testing.T) {
	eng := testEngine(t, 1024)

	var buf bytes.Buffer
	if _, err := Handle(eng, strings.NewReader("{not json"), &buf); err == nil {
		t.Fatal("expected error")
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestHandlePhase(t *testing.T) {
	eng := testEngine(t, 1024)

	out := Apply(eng, &Input{Iteration: 1, Phase: "evaluating"})
	if out.Phase != "evaluating" {
		t.Errorf("phase = %q, want evaluating", out.Phase)
	}

	out = Apply(eng, &Input{Iteration: 1, Phase: "napping"})
	if out.Failed() != 1 {
		t.Errorf("bad phase should be reported, got %+v", out.Results)
	}
}
