package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lazypower/strata/internal/config"
	"github.com/lazypower/strata/internal/memory"
	"github.com/lazypower/strata/internal/store"
	"go.uber.org/zap"
)

// Phase is where the agent process is in its cycle.
type Phase string

const (
	PhaseThinking   Phase = "thinking"
	PhaseExecuting  Phase = "executing"
	PhaseEvaluating Phase = "evaluating"
	PhasePaging     Phase = "paging"
)

// Engine serializes access to the memory store, persists it after every
// mutation, and runs maintenance.
type Engine struct {
	DB       *store.DB
	Mem      *memory.Store
	Migrator *memory.Migrator

	cfg         config.MemoryConfig
	searchTiers []memory.Tier
	log         *zap.Logger
	metrics     *Metrics

	mu        sync.Mutex
	phase     Phase
	iteration uint64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates an Engine and hydrates it from db. db may be nil for a
// purely in-memory engine.
func New(db *store.DB, cfg config.MemoryConfig, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tiers := make([]memory.Tier, 0, len(cfg.SearchTiers))
	for _, name := range cfg.SearchTiers {
		t, err := memory.ParseTier(name)
		if err != nil {
			return nil, fmt.Errorf("search tiers: %w", err)
		}
		tiers = append(tiers, t)
	}

	e := &Engine{
		DB:          db,
		Mem:         memory.NewStore(memory.WithMaxEntries(cfg.MaxEntriesPerTier)),
		Migrator:    memory.NewMigrator(cfg.PagingEnabled),
		cfg:         cfg,
		searchTiers: tiers,
		log:         logger,
		metrics:     NewMetrics(),
		phase:       PhaseThinking,
		stopCh:      make(chan struct{}),
	}

	if db != nil {
		entries, err := db.LoadEntries()
		if err != nil {
			return nil, fmt.Errorf("hydrate: %w", err)
		}
		for i := range entries {
			if _, err := e.Mem.Insert(entries[i]); err != nil {
				return nil, fmt.Errorf("hydrate %s: %w", entries[i].Key, err)
			}
			e.observe(entries[i].LastAccessed)
		}
		if len(entries) > 0 {
			logger.Info("hydrated memory", zap.Int("entries", len(entries)), zap.Uint64("iteration", e.iteration))
		}
	}
	e.metrics.observeTiers(e.Mem.Stats())
	return e, nil
}

// Metrics returns the engine's prometheus collectors.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// observe advances the engine's notion of the current iteration.
func (e *Engine) observe(iteration uint64) {
	if iteration > e.iteration {
		e.iteration = iteration
	}
}

// persist mirrors the store to the database and, if configured, the layout
// file. Callers hold e.mu.
func (e *Engine) persist() error {
	e.metrics.observeTiers(e.Mem.Stats())
	if e.DB == nil {
		return nil
	}
	all := e.Mem.All()
	if err := e.DB.SaveEntries(all); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	if e.cfg.LayoutPath != "" {
		if err := store.WriteLayout(e.cfg.LayoutPath, store.LayoutFromEntries(all)); err != nil {
			return fmt.Errorf("persist layout: %w", err)
		}
	}
	return nil
}

// Write stores value under tags in tier at iteration.
func (e *Engine) Write(tier memory.Tier, tags string, value []byte, iteration uint64) (memory.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, err := e.write(tier, tags, value, iteration)
	if err != nil {
		return memory.Entry{}, err
	}
	return ent, e.persist()
}

// Put applies a single WriteOp at iteration, including its importance, as
// one operation.
func (e *Engine) Put(op WriteOp, iteration uint64) (memory.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, err := e.writeOp(op, iteration)
	if err != nil {
		return memory.Entry{}, err
	}
	return ent, e.persist()
}

func (e *Engine) writeOp(op WriteOp, iteration uint64) (memory.Entry, error) {
	ent, err := e.write(op.Tier, op.Tags, []byte(op.Value), iteration)
	if err != nil {
		return memory.Entry{}, err
	}
	if op.Importance != nil {
		e.Mem.SetImportance(ent.Key, *op.Importance)
		ent.Importance = memory.ClampImportance(*op.Importance)
	}
	return ent, nil
}

func (e *Engine) write(tier memory.Tier, tags string, value []byte, iteration uint64) (memory.Entry, error) {
	if err := validateTags(tags); err != nil {
		return memory.Entry{}, fmt.Errorf("write: %w: %v", memory.ErrMalformedKey, err)
	}
	if err := e.checkValue(tags, value); err != nil {
		return memory.Entry{}, err
	}
	ref, err := e.Mem.Write(tier, tags, value, iteration)
	if err != nil {
		return memory.Entry{}, err
	}
	e.observe(iteration)
	e.metrics.writes.Inc()
	ent, _ := e.Mem.Get(ref)
	e.log.Debug("write", zap.String("key", ent.Key), zap.Stringer("tier", tier), zap.Int("size", ent.Size()))
	return ent, nil
}

// SetImportance changes an entry's importance. It reports false if no entry
// has the key.
func (e *Engine) SetImportance(key string, importance int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.Mem.SetImportance(key, importance) {
		return false, nil
	}
	return true, e.persist()
}

// Remove deletes entries of tier under the tag prefix and returns how many
// went.
func (e *Engine) Remove(tier memory.Tier, tags string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, err := e.Mem.Remove(tier, tags)
	if err != nil || n == 0 {
		return n, err
	}
	e.log.Debug("remove", zap.String("prefix", tags), zap.Stringer("tier", tier), zap.Int("removed", n))
	return n, e.persist()
}

// Read looks up a key or tag prefix across tiers and marks it accessed at
// iteration.
func (e *Engine) Read(k string, iteration uint64) (memory.Entry, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.Mem.Lookup(k)
	if !ok {
		return memory.Entry{}, false, nil
	}
	if iteration > ent.LastAccessed {
		e.Mem.Touch(ent.Key, iteration)
		ent.LastAccessed = iteration
		e.observe(iteration)
		if err := e.persist(); err != nil {
			return ent, true, err
		}
	}
	return ent, true, nil
}

// Forget deletes the entry with exactly this key from whichever tier holds
// it. It reports false if there was none.
func (e *Engine) Forget(key string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.Mem.Delete(key) {
		return false, nil
	}
	e.log.Debug("forget", zap.String("key", key))
	return true, e.persist()
}

// Move relocates the entry with key to tier.
func (e *Engine) Move(key string, tier memory.Tier) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok, err := e.Mem.MoveTier(key, tier)
	if err != nil || !ok {
		return ok, err
	}
	return true, e.persist()
}

// Entries returns a copy of tier's entries.
func (e *Engine) Entries(tier memory.Tier) []memory.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Mem.Entries(tier)
}

// Search runs q, materializing matches into Working. An empty q.Tiers uses
// the configured search tiers.
func (e *Engine) Search(q memory.Query) (memory.SearchOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out, err := e.search(q)
	if err != nil {
		return out, err
	}
	return out, e.persist()
}

func (e *Engine) search(q memory.Query) (memory.SearchOutcome, error) {
	if len(q.Tiers) == 0 {
		q.Tiers = e.searchTiers
	}
	out, err := e.Mem.Search(q)
	if err != nil {
		return out, err
	}
	e.observe(q.Iteration)
	e.metrics.searches.Inc()
	e.metrics.searchMatches.Add(float64(len(out.Matches)))
	e.log.Debug("search", zap.String("tags", q.Tags), zap.String("value", q.Value), zap.Int("matches", len(out.Matches)))
	return out, nil
}

// Load copies stored entries matching tags into Working.
func (e *Engine) Load(tags string, iteration uint64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, err := e.Mem.Load(tags, iteration)
	if err != nil {
		return n, err
	}
	e.observe(iteration)
	return n, e.persist()
}

// Page runs the paging check. A zero threshold uses the configured one.
func (e *Engine) Page(threshold, iteration uint64) (memory.PagingOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out, err := e.page(threshold, iteration)
	if perr := e.persist(); err == nil {
		err = perr
	}
	return out, err
}

func (e *Engine) page(threshold, iteration uint64) (memory.PagingOutcome, error) {
	if threshold == 0 {
		threshold = e.cfg.PagingThreshold
	}
	e.observe(iteration)

	prev := e.phase
	e.phase = PhasePaging
	out, err := e.Migrator.Run(e.Mem, threshold, iteration)
	if out.Rethink {
		e.phase = PhaseThinking
	} else {
		e.phase = prev
	}

	if out.Skipped || out.StartSize <= threshold {
		return out, err
	}

	e.metrics.pagingRuns.Inc()
	e.metrics.migrated.Add(float64(out.Migrated))
	fields := []zap.Field{
		zap.Uint64("iteration", iteration),
		zap.Uint64("start_size", out.StartSize),
		zap.Uint64("end_size", out.EndSize),
		zap.Uint64("target", out.Target),
		zap.Int("migrated", out.Migrated),
		zap.Bool("reached_target", out.ReachedTarget),
	}
	if err != nil {
		e.log.Error("paging failed", append(fields, zap.Error(err))...)
	} else if !out.ReachedTarget {
		e.log.Warn("paging exhausted candidates", fields...)
	} else {
		e.log.Info("paging", fields...)
	}

	if e.DB != nil {
		if _, rerr := e.DB.RecordPagingRun(iteration, out); rerr != nil {
			e.log.Warn("record paging run", zap.Error(rerr))
		}
	}
	return out, err
}

// SweepExpired removes stale, unimportant entries. A zero maxAge uses the
// configured expiry age.
func (e *Engine) SweepExpired(iteration, maxAge uint64) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if maxAge == 0 {
		maxAge = e.cfg.ExpiryAge
	}
	e.observe(iteration)
	removed := e.Mem.SweepExpired(iteration, maxAge)
	for _, k := range removed {
		e.log.Debug("expired", zap.String("key", k))
	}
	return removed, e.finishSweep(store.SweepExpired, iteration, len(removed))
}

// SweepDuplicates removes near-identical entries. A zero threshold uses the
// configured similarity.
func (e *Engine) SweepDuplicates(threshold float64) ([]memory.Duplicate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if threshold == 0 {
		threshold = e.cfg.DuplicateSimilarity
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("similarity %v out of range (0,1]", threshold)
	}
	dups := e.Mem.SweepDuplicates(threshold)
	for _, d := range dups {
		e.log.Info("dedup: removing duplicate", zap.String("removed", d.Removed), zap.String("kept", d.Kept))
	}
	return dups, e.finishSweep(store.SweepDuplicates, e.iteration, len(dups))
}

// Optimize rebalances tiers and runs both sweeps.
func (e *Engine) Optimize(iteration uint64, aggressive bool) (memory.OptimizeReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := memory.DefaultOptimizePolicy(aggressive)
	p.ExpiryAge, p.Similarity = e.cfg.ExpiryAge, e.cfg.DuplicateSimilarity
	if aggressive {
		p.ExpiryAge, p.Similarity = e.cfg.AggressiveExpiryAge, e.cfg.AggressiveSimilarity
	}
	e.observe(iteration)

	r, err := e.Mem.Optimize(iteration, p)
	if err != nil {
		return r, err
	}
	e.log.Info("optimize",
		zap.Bool("aggressive", aggressive),
		zap.Int("promoted", len(r.Promoted)),
		zap.Int("demoted", len(r.Demoted)),
		zap.Int("archived", len(r.Archived)),
		zap.Int("expired", len(r.Expired)),
		zap.Int("duplicates", len(r.Duplicates)),
	)
	return r, e.finishSweep(store.SweepOptimize, iteration, len(r.Expired)+len(r.Duplicates))
}

func (e *Engine) finishSweep(kind string, iteration uint64, removed int) error {
	e.metrics.swept.WithLabelValues(kind).Add(float64(removed))
	if e.DB != nil {
		if _, err := e.DB.RecordSweep(kind, iteration, removed); err != nil {
			e.log.Warn("record sweep", zap.String("kind", kind), zap.Error(err))
		}
	}
	if removed == 0 && kind != store.SweepOptimize {
		return nil
	}
	return e.persist()
}

// Analyze reports tier usage against the paging threshold.
func (e *Engine) Analyze() memory.UsageReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Mem.Analyze(e.cfg.PagingThreshold)
}

// Stats is a snapshot of the engine.
type Stats struct {
	Tiers         []memory.TierStats `json:"tiers"`
	Phase         Phase              `json:"phase"`
	Iteration     uint64             `json:"iteration"`
	Threshold     uint64             `json:"paging_threshold"`
	PagingEnabled bool               `json:"paging_enabled"`
	PagingState   string             `json:"paging_state"`
}

// Stats returns per-tier sizes and engine state.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Tiers:         e.Mem.Stats(),
		Phase:         e.phase,
		Iteration:     e.iteration,
		Threshold:     e.cfg.PagingThreshold,
		PagingEnabled: e.Migrator.Enabled,
		PagingState:   e.Migrator.State().String(),
	}
}

// Phase returns the current agent phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// SetPhase records a phase change reported by the agent process.
func (e *Engine) SetPhase(p Phase) error {
	switch p {
	case PhaseThinking, PhaseExecuting, PhaseEvaluating, PhasePaging:
	default:
		return fmt.Errorf("unknown phase %q", p)
	}
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
	return nil
}

// ImportLayout replaces Working and Disk with the contents of the layout
// file at path. Archived entries are kept.
func (e *Engine) ImportLayout(path string, iteration uint64) (int, error) {
	l, err := store.ReadLayout(path)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	archived := e.Mem.Entries(memory.Archived)
	incoming := l.Entries(iteration)

	fresh := memory.NewStore(memory.WithMaxEntries(e.cfg.MaxEntriesPerTier))
	for _, batch := range [][]memory.Entry{incoming, archived} {
		for i := range batch {
			if _, err := fresh.Insert(batch[i]); err != nil {
				return 0, fmt.Errorf("import %s: %w", batch[i].Key, err)
			}
		}
	}
	e.Mem = fresh
	for i := range incoming {
		e.observe(incoming[i].LastAccessed)
	}
	e.log.Info("imported layout", zap.String("path", path), zap.Int("entries", len(incoming)))
	return len(incoming), e.persist()
}

// ExportLayout writes Working and Disk to path, keeping a backup of the
// previous file.
func (e *Engine) ExportLayout(path string) error {
	e.mu.Lock()
	all := e.Mem.All()
	e.mu.Unlock()

	if _, err := store.BackupLayout(path); err != nil {
		return fmt.Errorf("backup layout: %w", err)
	}
	return store.WriteLayout(path, store.LayoutFromEntries(all))
}

// StartSweepTimer runs the expiry sweep on startup and then every interval.
func (e *Engine) StartSweepTimer(interval time.Duration) {
	if interval <= 0 {
		return
	}
	e.sweepOnce()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.sweepOnce()
			case <-e.stopCh:
				return
			}
		}
	}()
}

func (e *Engine) sweepOnce() {
	e.mu.Lock()
	current := e.iteration
	e.mu.Unlock()

	removed, err := e.SweepExpired(current, 0)
	if err != nil {
		e.log.Error("expiry sweep", zap.Error(err))
	} else if len(removed) > 0 {
		e.log.Info("expiry sweep", zap.Int("removed", len(removed)))
	}
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// IsClientError reports whether err comes from bad input rather than the
// engine or its storage.
func IsClientError(err error) bool {
	return errors.Is(err, memory.ErrEmptyTags) ||
		errors.Is(err, memory.ErrEmptyValue) ||
		errors.Is(err, memory.ErrInvalidTier) ||
		errors.Is(err, memory.ErrMalformedKey) ||
		errors.Is(err, ErrValueTooLarge)
}
