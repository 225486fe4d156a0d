package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/lazypower/strata/internal/engine"
	"github.com/lazypower/strata/internal/memory"
	"go.uber.org/zap"
)

// entryView is the JSON shape of an entry. Values are returned as text.
type entryView struct {
	Key          string `json:"key"`
	Tags         string `json:"tags"`
	Iteration    uint64 `json:"iteration"`
	Malformed    bool   `json:"malformed,omitempty"`
	Value        string `json:"value"`
	Tier         string `json:"tier"`
	Importance   int    `json:"importance"`
	LastAccessed uint64 `json:"last_accessed"`
	Size         int    `json:"size"`
}

func viewOf(e memory.Entry) entryView {
	v := entryView{
		Key:          e.Key,
		Value:        string(e.Value),
		Tier:         e.Tier.String(),
		Importance:   e.Importance,
		LastAccessed: e.LastAccessed,
		Size:         e.Size(),
	}
	tags, n, err := memory.ParseKey(e.Key)
	if err != nil {
		v.Malformed = true
	} else {
		v.Tags, v.Iteration = tags, n
	}
	return v
}

func viewsOf(entries []memory.Entry) []entryView {
	out := make([]entryView, len(entries))
	for i := range entries {
		out[i] = viewOf(entries[i])
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrValueTooLarge):
		status = http.StatusRequestEntityTooLarge
	case engine.IsClientError(err):
		status = http.StatusBadRequest
	case errors.Is(err, memory.ErrCapacity):
		status = http.StatusInsufficientStorage
	case errors.Is(err, memory.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return false
	}
	return true
}

// tierParam parses a tier name, defaulting to Working when empty.
func tierParam(name string) (memory.Tier, error) {
	if name == "" {
		return memory.Working, nil
	}
	return memory.ParseTier(name)
}

func uintParam(r *http.Request, name string) (uint64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Stats())
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Analyze())
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.eng.DB == nil {
		writeJSON(w, http.StatusOK, map[string]any{"paging": []any{}, "sweeps": []any{}})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	runs, err := s.eng.DB.RecentPagingRuns(limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sweeps, err := s.eng.DB.RecentSweeps(limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paging": runs, "sweeps": sweeps})
}

func (s *Server) handleSetPhase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phase string `json:"phase"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.eng.SetPhase(engine.Phase(req.Phase)); err != nil {
		http.Error(w, `{"error":"unknown phase"}`, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"phase": req.Phase})
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tier, err := tierParam(q.Get("tier"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if q.Get("ranked") == "true" {
		limit, _ := strconv.Atoi(q.Get("limit"))
		iteration, err := uintParam(r, "iteration")
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
			return
		}
		ranked := s.eng.Rank(engine.RankOpts{Tier: tier, Limit: limit, Iteration: iteration})
		type rankedView struct {
			entryView
			Score int `json:"score"`
		}
		out := make([]rankedView, len(ranked))
		for i := range ranked {
			out[i] = rankedView{entryView: viewOf(ranked[i].Entry), Score: ranked[i].Score}
		}
		writeJSON(w, http.StatusOK, map[string]any{"tier": tier.String(), "entries": out})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tier":    tier.String(),
		"entries": viewsOf(s.eng.Entries(tier)),
	})
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags       string `json:"tags"`
		Value      string `json:"value"`
		Iteration  uint64 `json:"iteration"`
		Tier       string `json:"tier"`
		Importance *int   `json:"importance"`
	}
	if !decode(w, r, &req) {
		return
	}
	tier, err := tierParam(req.Tier)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ent, err := s.eng.Put(engine.WriteOp{
		Tier:       tier,
		Tags:       req.Tags,
		Value:      req.Value,
		Importance: req.Importance,
	}, req.Iteration)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(ent))
}

// handleRemove deletes by tag prefix within a tier, or a single entry by
// exact key when key is given.
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if key := r.URL.Query().Get("key"); key != "" {
		ok, err := s.eng.Forget(key)
		if err != nil {
			s.writeError(w, err)
			return
		}
		n := 0
		if ok {
			n = 1
		}
		writeJSON(w, http.StatusOK, map[string]int{"removed": n})
		return
	}

	tier, err := tierParam(r.URL.Query().Get("tier"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	n, err := s.eng.Remove(tier, r.URL.Query().Get("tags"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, `{"error":"key required"}`, http.StatusBadRequest)
		return
	}
	iteration, err := uintParam(r, "iteration")
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	ent, ok, err := s.eng.Read(key, iteration)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ent))
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key  string `json:"key"`
		Tier string `json:"tier"`
	}
	if !decode(w, r, &req) {
		return
	}
	tier, err := memory.ParseTier(req.Tier)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ok, err := s.eng.Move(req.Key, tier)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": req.Key, "tier": tier.String()})
}

func (s *Server) handleSetImportance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key        string `json:"key"`
		Importance int    `json:"importance"`
	}
	if !decode(w, r, &req) {
		return
	}
	ok, err := s.eng.SetImportance(req.Key, req.Importance)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": req.Key, "importance": memory.ClampImportance(req.Importance)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	iteration, err := uintParam(r, "iteration")
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	query := memory.Query{Tags: q.Get("tags"), Value: q.Get("value"), Iteration: iteration}
	if tiers := q.Get("tiers"); tiers != "" {
		for _, name := range strings.Split(tiers, ",") {
			t, err := memory.ParseTier(name)
			if err != nil {
				s.writeError(w, err)
				return
			}
			query.Tiers = append(query.Tiers, t)
		}
	}

	out, err := s.eng.Search(query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matches":      viewsOf(out.Matches),
		"summary":      viewOf(out.Summary),
		"materialized": out.Materialized,
	})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags      string `json:"tags"`
		Iteration uint64 `json:"iteration"`
	}
	if !decode(w, r, &req) {
		return
	}
	n, err := s.eng.Load(req.Tags, req.Iteration)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"loaded": n})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Threshold uint64 `json:"threshold"`
		Iteration uint64 `json:"iteration"`
	}
	if !decode(w, r, &req) {
		return
	}
	out, err := s.eng.Page(req.Threshold, req.Iteration)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Iteration uint64 `json:"iteration"`
		Threshold uint64 `json:"threshold"`
		Writes    []struct {
			engine.WriteOp
			Tier string `json:"tier"`
		} `json:"writes"`
		Search *struct {
			Tags  string `json:"tags"`
			Value string `json:"value"`
		} `json:"search"`
	}
	if !decode(w, r, &req) {
		return
	}

	c := engine.Cycle{Iteration: req.Iteration, Threshold: req.Threshold}
	for _, wr := range req.Writes {
		tier, err := tierParam(wr.Tier)
		if err != nil {
			s.writeError(w, err)
			return
		}
		op := wr.WriteOp
		op.Tier = tier
		c.Writes = append(c.Writes, op)
	}
	if req.Search != nil {
		c.Search = &memory.Query{Tags: req.Search.Tags, Value: req.Search.Value}
	}

	res, err := s.eng.RunCycle(c)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := map[string]any{
		"written": res.Written,
		"paging":  res.Paging,
		"phase":   res.Phase,
	}
	if res.Search != nil {
		resp["search"] = map[string]any{
			"matches": viewsOf(res.Search.Matches),
			"summary": viewOf(res.Search.Summary),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSweepExpired(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Iteration uint64 `json:"iteration"`
		MaxAge    uint64 `json:"max_age"`
	}
	if !decode(w, r, &req) {
		return
	}
	removed, err := s.eng.SweepExpired(req.Iteration, req.MaxAge)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *Server) handleSweepDuplicates(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Threshold float64 `json:"threshold"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		http.Error(w, `{"error":"threshold must be within [0,1]"}`, http.StatusBadRequest)
		return
	}
	dups, err := s.eng.SweepDuplicates(req.Threshold)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if dups == nil {
		dups = []memory.Duplicate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": dups})
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Iteration  uint64 `json:"iteration"`
		Aggressive bool   `json:"aggressive"`
	}
	if !decode(w, r, &req) {
		return
	}
	report, err := s.eng.Optimize(req.Iteration, req.Aggressive)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
