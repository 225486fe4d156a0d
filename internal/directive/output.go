package directive

import (
	"encoding/json"
	"io"

	"github.com/lazypower/strata/internal/memory"
)

// Result reports the outcome of one action.
type Result struct {
	Index int    `json:"index"`
	Type  string `json:"type"`
	Tags  string `json:"tags,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	// Key of the written entry, for add and save.
	Key string `json:"key,omitempty"`
	// Count of entries removed, loaded or matched.
	Count   int    `json:"count,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Output is written once per Handle call.
type Output struct {
	Iteration uint64                `json:"iteration"`
	Results   []Result              `json:"results"`
	Paging    *memory.PagingOutcome `json:"paging,omitempty"`
	// Rethink tells the agent to go back to thinking after a migration.
	Rethink bool   `json:"rethink"`
	Phase   string `json:"phase"`
}

// Failed returns the number of actions that did not succeed.
func (o *Output) Failed() int {
	n := 0
	for _, r := range o.Results {
		if !r.OK {
			n++
		}
	}
	return n
}

func writeOutput(w io.Writer, out *Output) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
