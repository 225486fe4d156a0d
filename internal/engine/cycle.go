package engine

import (
	"fmt"

	"github.com/lazypower/strata/internal/memory"
)

// WriteOp is one write within a cycle.
type WriteOp struct {
	Tier       memory.Tier `json:"-"`
	Tags       string      `json:"tags"`
	Value      string      `json:"value"`
	Importance *int        `json:"importance,omitempty"`
}

// Cycle is the memory traffic of one processing cycle of the agent.
type Cycle struct {
	Iteration uint64
	Writes    []WriteOp
	Search    *memory.Query
	// Threshold overrides the configured paging threshold when non-zero.
	Threshold uint64
}

// CycleResult reports what a cycle did.
type CycleResult struct {
	Written []string              `json:"written"`
	Search  *memory.SearchOutcome `json:"search,omitempty"`
	Paging  memory.PagingOutcome  `json:"paging"`
	Phase   Phase                 `json:"phase"`
}

// RunCycle applies the writes, then the optional search, then the paging
// check, under one lock, and persists once at the end. A failed write stops
// the cycle before search and paging.
func (e *Engine) RunCycle(c Cycle) (CycleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var res CycleResult
	for _, w := range c.Writes {
		ent, err := e.writeOp(w, c.Iteration)
		if err != nil {
			return res, e.abortCycle(fmt.Errorf("cycle %d write %q: %w", c.Iteration, w.Tags, err))
		}
		res.Written = append(res.Written, ent.Key)
	}

	if c.Search != nil {
		q := *c.Search
		q.Iteration = c.Iteration
		out, err := e.search(q)
		if err != nil {
			return res, e.abortCycle(fmt.Errorf("cycle %d search: %w", c.Iteration, err))
		}
		res.Search = &out
	}

	out, err := e.page(c.Threshold, c.Iteration)
	res.Paging = out
	res.Phase = e.phase
	if err != nil {
		return res, e.abortCycle(fmt.Errorf("cycle %d paging: %w", c.Iteration, err))
	}
	return res, e.persist()
}

// abortCycle persists whatever the cycle managed before failing, so the
// mirror matches memory, and returns the original error.
func (e *Engine) abortCycle(err error) error {
	if perr := e.persist(); perr != nil {
		e.log.Sugar().Errorf("persist after failed cycle: %v", perr)
	}
	return err
}
