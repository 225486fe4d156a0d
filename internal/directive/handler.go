package directive

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/lazypower/strata/internal/engine"
	"github.com/lazypower/strata/internal/memory"
)

// Handle reads an Input from r, applies its actions to eng in order, runs the
// paging check unless a page action already did, and writes an Output to w.
// A failing action is reported in its Result and does not stop the batch.
func Handle(eng *engine.Engine, r io.Reader, w io.Writer) (*Output, error) {
	var in Input
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("decode directives: %w", err)
	}
	out := Apply(eng, &in)
	if err := writeOutput(w, out); err != nil {
		return out, fmt.Errorf("write output: %w", err)
	}
	return out, nil
}

// Apply runs in against eng and returns the outcome.
func Apply(eng *engine.Engine, in *Input) *Output {
	out := &Output{Iteration: in.Iteration, Results: make([]Result, 0, len(in.Actions))}

	if in.Phase != "" {
		if err := eng.SetPhase(engine.Phase(in.Phase)); err != nil {
			out.Results = append(out.Results, Result{Index: -1, Type: "phase", Error: err.Error()})
		}
	}

	paged := false
	for i := range in.Actions {
		a := &in.Actions[i]
		res := Result{Index: i, Type: a.Type, Tags: a.Tags}
		if err := apply(eng, in.Iteration, a, &res, out); err != nil {
			res.Error = err.Error()
		} else {
			res.OK = true
		}
		if a.Type == ActionPage {
			paged = true
		}
		out.Results = append(out.Results, res)
	}

	if !paged {
		p, err := eng.Page(0, in.Iteration)
		if err != nil {
			out.Results = append(out.Results, Result{Index: -1, Type: ActionPage, Error: err.Error()})
		}
		out.Paging = &p
	}
	if out.Paging != nil {
		out.Rethink = out.Paging.Rethink
	}
	out.Phase = string(eng.Phase())
	return out
}

func apply(eng *engine.Engine, iteration uint64, a *Action, res *Result, out *Output) error {
	if a.needsValue() && a.Value == "" {
		return fmt.Errorf("%s: %w", a.Type, memory.ErrEmptyValue)
	}

	switch a.Type {
	case ActionWorkingAdd, ActionStorageSave:
		tier := memory.Working
		if a.Type == ActionStorageSave {
			tier = memory.Disk
		}
		ent, err := eng.Write(tier, a.Tags, []byte(a.Value), iteration)
		if err != nil {
			return err
		}
		res.Key = ent.Key

	case ActionWorkingRemove:
		n, err := eng.Remove(memory.Working, a.Tags)
		if err != nil {
			return err
		}
		res.Count = n

	case ActionStorageLoad:
		n, err := eng.Load(a.Tags, iteration)
		if err != nil {
			return err
		}
		res.Count = n

	case ActionStorageSearch:
		s, err := eng.Search(memory.Query{Tags: a.Tags, Value: a.Value, Iteration: iteration})
		if err != nil {
			return err
		}
		res.Count = len(s.Matches)
		res.Summary = string(s.Summary.Value)

	case ActionPage:
		p, err := eng.Page(0, iteration)
		out.Paging = &p
		if err != nil {
			return err
		}
		res.Count = p.Migrated

	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}
