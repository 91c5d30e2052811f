// Package orchestrator coordinates the memory lifecycle: it resolves the
// pipeline for a (tenant, agent, intent) triple, runs items through it,
// routes survivors to the intent's store, and exposes the typed working
// memory operations plus the write-through variables cache.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/a2arium/memflow/internal/config"
	"github.com/a2arium/memflow/internal/embedding"
	"github.com/a2arium/memflow/internal/logging"
	"github.com/a2arium/memflow/internal/pipeline"
	"github.com/a2arium/memflow/internal/stages"
	"github.com/a2arium/memflow/internal/stages/retrieval"
	"github.com/a2arium/memflow/internal/storage"
	"github.com/a2arium/memflow/pkg/types"
)

// DefaultTenant is used when an operation does not name a tenant.
const DefaultTenant = "default"

// loadedMemoryLimit bounds the per-agent list of recalled memory keys
// surfaced through WorkingState.
const loadedMemoryLimit = 32

type pipelineKey struct {
	tenant string
	agent  string
	intent types.Intent
}

// Orchestrator is the entry point for all memory operations. It is safe
// for concurrent use; pipelines are built lazily per (tenant, agent,
// intent) and cached until the next Configure.
type Orchestrator struct {
	router        *storage.Router
	factory       *pipeline.Factory[string]
	builder       *pipeline.Builder[string]
	embedder      embedding.Embedder
	defaultTenant string

	// mu guards cfg and pipelines. rebuildMu serializes Configure so
	// two merges cannot interleave their rebuilds.
	mu        sync.RWMutex
	rebuildMu sync.Mutex
	cfg       *types.LifecycleConfig
	pipelines map[pipelineKey]*pipeline.Pipeline[string]

	vars *VariablesCache

	thoughtMu   sync.Mutex
	lastThought int64

	loadedMu sync.Mutex
	loaded   map[[2]string][]string
}

// Option customizes orchestrator construction.
type Option func(*Orchestrator)

// WithLifecycleConfig sets the initial pipeline configuration tree.
func WithLifecycleConfig(cfg *types.LifecycleConfig) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithEmbedder provides the embedding function used for retrieval queries
// and the matching slot. Without one, everything degrades to lexical
// behavior.
func WithEmbedder(emb embedding.Embedder) Option {
	return func(o *Orchestrator) { o.embedder = emb }
}

// WithDefaultTenant overrides the tenant used when operations omit one.
func WithDefaultTenant(tenant string) Option {
	return func(o *Orchestrator) {
		if tenant != "" {
			o.defaultTenant = tenant
		}
	}
}

// WithFactory supplies a pre-populated strategy factory. The builtins
// must already be registered on it; New does not add them again.
func WithFactory(f *pipeline.Factory[string]) Option {
	return func(o *Orchestrator) { o.factory = f }
}

// New builds an orchestrator over the given store router. The initial
// configuration is validated eagerly; an invalid tree fails construction.
func New(router *storage.Router, opts ...Option) (*Orchestrator, error) {
	if router == nil {
		return nil, fmt.Errorf("orchestrator: router required")
	}

	o := &Orchestrator{
		router:        router,
		defaultTenant: DefaultTenant,
		pipelines:     make(map[pipelineKey]*pipeline.Pipeline[string]),
		loaded:        make(map[[2]string][]string),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.factory == nil {
		f := pipeline.NewFactory[string]()
		if err := stages.RegisterBuiltins(f, stages.Deps{Embedder: o.embedder}); err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
		o.factory = f
	}
	o.builder = pipeline.NewBuilder(o.factory)

	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	if err := o.validatePipelines(o.cfg); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	o.vars = NewVariablesCache(o.persistVariable)
	return o, nil
}

// ProcessMemoryItem runs one item through the pipeline resolved for its
// tenant, agent and the given intent, then persists every surviving item
// to the intent's store. An empty Produced list with a nil error means
// the pipeline dropped everything, which is a policy outcome, not a
// fault. On a persistence fault the result still reports the produced
// items alongside the error; nothing is retried.
func (o *Orchestrator) ProcessMemoryItem(ctx context.Context, item *types.Item[string], intent types.Intent) (*types.ProcessResult, error) {
	start := time.Now()

	if item == nil {
		return nil, fmt.Errorf("orchestrator: nil item")
	}
	if !intent.Valid() {
		return nil, fmt.Errorf("orchestrator: invalid intent %q", intent)
	}
	if item.Metadata.TenantID == "" {
		return nil, fmt.Errorf("orchestrator: %w", storage.ErrMissingTenant)
	}
	if item.DataType != "" && !item.DataType.Valid() {
		return nil, fmt.Errorf("orchestrator: invalid data type %q", item.DataType)
	}
	item.Intent = intent

	pl, err := o.pipelineFor(item.Metadata.TenantID, item.Metadata.AgentID, intent)
	if err != nil {
		return nil, err
	}

	produced, err := pl.Run(ctx, item)
	if err != nil {
		return nil, err
	}

	result := &types.ProcessResult{
		Produced: produced,
		Store:    intent.StoreKind(),
		Elapsed:  time.Since(start),
	}
	if len(produced) == 0 {
		return result, nil
	}

	store := o.router.ForIntent(intent)
	for _, it := range produced {
		if err := store.Put(ctx, recordFromItem(it)); err != nil {
			result.Elapsed = time.Since(start)
			return result, fmt.Errorf("persist item %s to %s store: %w", it.ID, intent.StoreKind(), err)
		}
	}
	result.Persisted = true
	result.Elapsed = time.Since(start)
	return result, nil
}

// MemoryType names the caller-facing memory categories of Remember.
type MemoryType string

// Memory type constants
const (
	MemoryWorking    MemoryType = "working"
	MemorySemantic   MemoryType = "semantic"
	MemoryEpisodic   MemoryType = "episodic"
	MemoryProcedural MemoryType = "procedural"
)

func (mt MemoryType) intent() (types.Intent, error) {
	switch mt {
	case "", MemorySemantic:
		return types.IntentSemanticLTM, nil
	case MemoryWorking:
		return types.IntentWorkingMemory, nil
	case MemoryEpisodic:
		return types.IntentEpisodicLTM, nil
	case MemoryProcedural:
		return types.IntentProceduralLTM, nil
	}
	return "", fmt.Errorf("orchestrator: unknown memory type %q", mt)
}

// RememberOptions shapes a Remember call.
type RememberOptions struct {
	// TenantID defaults to the orchestrator's default tenant.
	TenantID string
	AgentID  string
	TaskID   string

	// Type selects the memory category; default semantic.
	Type MemoryType

	Tags []string

	// Importance in [0,1] is annotated on the item when positive.
	Importance float64

	// Key fixes the storage key; default is the generated item id.
	Key string

	// Transient runs the full pipeline but skips the store write.
	Transient bool
}

// Remember wraps content into a memory item and processes it.
func (o *Orchestrator) Remember(ctx context.Context, content string, opts RememberOptions) (*types.ProcessResult, error) {
	intent, err := opts.Type.intent()
	if err != nil {
		return nil, err
	}

	item := types.NewItem(content, types.DataTypeText, intent, o.tenantOrDefault(opts.TenantID))
	item.Metadata.AgentID = opts.AgentID
	item.Metadata.TaskID = opts.TaskID
	if len(opts.Tags) > 0 {
		item.Metadata.Tags = append([]string(nil), opts.Tags...)
	}
	if opts.Importance > 0 {
		if opts.Importance > 1 {
			return nil, fmt.Errorf("orchestrator: importance must be in [0,1], got %v", opts.Importance)
		}
		item.SetAnnotation(types.AnnotationImportance, opts.Importance)
	}
	if opts.Key != "" {
		item.SetAnnotation(types.AnnotationStorageKey, opts.Key)
	}

	if !opts.Transient {
		return o.ProcessMemoryItem(ctx, item, intent)
	}

	start := time.Now()
	pl, err := o.pipelineFor(item.Metadata.TenantID, item.Metadata.AgentID, intent)
	if err != nil {
		return nil, err
	}
	produced, err := pl.Run(ctx, item)
	if err != nil {
		return nil, err
	}
	return &types.ProcessResult{
		Produced: produced,
		Store:    intent.StoreKind(),
		Elapsed:  time.Since(start),
	}, nil
}

// RecallOptions shapes a Recall call.
type RecallOptions struct {
	// TenantID defaults to the orchestrator's default tenant.
	TenantID string
	AgentID  string

	// Sources restricts which stores contribute candidates; default is
	// the three long-term stores (semantic, episodic, procedural).
	Sources []types.StoreKind

	// Tags all have to be present on a candidate.
	Tags []string

	// Limit caps the candidate pool and defaults to 20.
	Limit int
}

// Recall searches the backing stores for memories relevant to the query,
// attaches them as the candidate set of a retrieval-intent item, and runs
// the retrieval pipeline. With a matching slot configured the result is
// the ranked fan-out; without one, the single query item comes back with
// its candidate annotation sorted best first.
func (o *Orchestrator) Recall(ctx context.Context, query string, opts RecallOptions) ([]*types.Item[string], error) {
	tenant := o.tenantOrDefault(opts.TenantID)

	item := types.NewItem(query, types.DataTypeText, types.IntentRetrieval, tenant)
	item.Metadata.AgentID = opts.AgentID

	if o.embedder != nil {
		vec, err := o.embedder.Embed(ctx, query)
		if err != nil {
			logging.Debug("[Orchestrator] query embedding failed, recall degrades to lexical: %v", err)
		} else {
			item.Metadata.Embedding = vec
		}
	}

	records, err := o.gatherCandidates(ctx, tenant, item.Metadata.Embedding, opts)
	if err != nil {
		return nil, err
	}

	candidates := make([]types.Candidate, 0, len(records))
	for _, rec := range records {
		candidates = append(candidates, types.Candidate{
			Key:       rec.Key,
			Text:      rec.Value,
			Tags:      append([]string(nil), rec.Tags...),
			Embedding: append([]float32(nil), rec.Embedding...),
			CreatedAt: rec.CreatedAt,
		})
	}
	item.SetAnnotation(types.AnnotationCandidates, candidates)

	pl, err := o.pipelineFor(tenant, opts.AgentID, types.IntentRetrieval)
	if err != nil {
		return nil, err
	}
	produced, err := pl.Run(ctx, item)
	if err != nil {
		return nil, err
	}

	if opts.AgentID != "" {
		o.noteLoaded(tenant, opts.AgentID, produced)
	}
	return produced, nil
}

// gatherCandidates queries every distinct adapter behind the requested
// sources and returns a deduplicated, best-first candidate pool.
func (o *Orchestrator) gatherCandidates(ctx context.Context, tenant string, vec []float32, opts RecallOptions) ([]*storage.Record, error) {
	sources := opts.Sources
	if len(sources) == 0 {
		sources = []types.StoreKind{types.StoreSemantic, types.StoreEpisodic, types.StoreProcedural}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	q := storage.Query{
		TenantID: tenant,
		Tags:     opts.Tags,
		Vector:   vec,
		Limit:    limit,
	}

	var merged []*storage.Record
	seenStores := make(map[storage.Store]bool, len(sources))
	seenKeys := make(map[string]bool)
	for _, kind := range sources {
		store := o.router.For(kind)
		if store == nil || seenStores[store] {
			continue
		}
		seenStores[store] = true

		recs, err := store.Query(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("query %s store: %w", kind, err)
		}
		for _, rec := range recs {
			if seenKeys[rec.Key] {
				continue
			}
			seenKeys[rec.Key] = true
			merged = append(merged, rec)
		}
	}

	merged = storage.RankRecords(merged, q)
	return merged, nil
}

// Configure merges a partial configuration into the live tree and
// rebuilds every cached pipeline against the result. Merges are
// serialized; a build error aborts the call and leaves the previous
// pipelines untouched. In-flight runs keep the instance they started
// with either way.
func (o *Orchestrator) Configure(ctx context.Context, partial *types.LifecycleConfig) error {
	if partial == nil {
		return nil
	}
	if err := partial.Validate(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	o.rebuildMu.Lock()
	defer o.rebuildMu.Unlock()

	o.mu.RLock()
	merged := config.MergeLifecycle(o.cfg, partial)
	keys := make([]pipelineKey, 0, len(o.pipelines))
	for key := range o.pipelines {
		keys = append(keys, key)
	}
	o.mu.RUnlock()

	if err := o.validatePipelines(merged); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	rebuilt := make(map[pipelineKey]*pipeline.Pipeline[string], len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		pl, err := o.builder.Build(merged.Resolve(key.tenant, key.agent, key.intent))
		if err != nil {
			return fmt.Errorf("rebuild pipeline %s/%s/%s: %w", key.tenant, key.agent, key.intent, err)
		}
		rebuilt[key] = pl
	}

	o.mu.Lock()
	o.cfg = merged
	o.pipelines = rebuilt
	o.mu.Unlock()
	return nil
}

// validatePipelines builds every pipeline configuration in cfg and
// discards the result, so an unknown strategy or a bad option fails here
// and never on first use of a tuple. The throwaway builds are closed
// right away.
func (o *Orchestrator) validatePipelines(cfg *types.LifecycleConfig) error {
	if cfg == nil {
		return nil
	}
	check := func(path string, cfgs types.IntentConfigs) error {
		for _, intent := range types.AllIntents() {
			pc := cfgs.ForIntent(intent)
			if pc == nil {
				continue
			}
			pl, err := o.builder.Build(pc)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", path, intent, err)
			}
			pl.Close()
		}
		return nil
	}

	if err := check("defaults", cfg.Defaults); err != nil {
		return err
	}
	for tenant, t := range cfg.Tenants {
		if err := check("tenants."+tenant+".defaults", t.Defaults); err != nil {
			return err
		}
		for agent, a := range t.Agents {
			if err := check("tenants."+tenant+".agents."+agent, a); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetMetrics aggregates every processor of every built pipeline, keyed
// tenant/agent/intent/stage:component/strategy and sorted by that key.
func (o *Orchestrator) GetMetrics() types.MetricsSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snap := types.MetricsSnapshot{GeneratedAt: time.Now().UTC()}
	for key, pl := range o.pipelines {
		for _, stat := range pl.ProcessorStats() {
			stat.Tenant = key.tenant
			stat.Agent = key.agent
			stat.Intent = key.intent
			snap.Processors = append(snap.Processors, stat)
			snap.Totals = snap.Totals.Add(stat.Metrics)
		}
	}
	sort.Slice(snap.Processors, func(a, b int) bool {
		return snap.Processors[a].Key() < snap.Processors[b].Key()
	})
	return snap
}

// ResetMetrics zeroes every processor counter of every built pipeline.
func (o *Orchestrator) ResetMetrics() {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, pl := range o.pipelines {
		pl.ResetMetrics()
	}
}

// Variables returns the working variables cache.
func (o *Orchestrator) Variables() *VariablesCache {
	return o.vars
}

// Close drains the variables cache's background writes, releases every
// cached pipeline and closes the stores behind the router.
func (o *Orchestrator) Close() error {
	o.vars.Close()

	o.mu.Lock()
	for _, pl := range o.pipelines {
		pl.Close()
	}
	o.pipelines = make(map[pipelineKey]*pipeline.Pipeline[string])
	o.mu.Unlock()

	return o.router.Close()
}

func (o *Orchestrator) tenantOrDefault(tenant string) string {
	if tenant == "" {
		return o.defaultTenant
	}
	return tenant
}

// pipelineFor returns the cached pipeline for a triple, building it on
// first use.
func (o *Orchestrator) pipelineFor(tenant, agent string, intent types.Intent) (*pipeline.Pipeline[string], error) {
	key := pipelineKey{tenant: tenant, agent: agent, intent: intent}

	o.mu.RLock()
	pl, ok := o.pipelines[key]
	o.mu.RUnlock()
	if ok {
		return pl, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if pl, ok := o.pipelines[key]; ok {
		return pl, nil
	}
	pl, err := o.builder.Build(o.cfg.Resolve(tenant, agent, intent))
	if err != nil {
		return nil, fmt.Errorf("build pipeline %s/%s/%s: %w", tenant, agent, intent, err)
	}
	o.pipelines[key] = pl
	return pl, nil
}

// noteLoaded remembers which stored memories an agent recalled, for the
// LoadedLongTermMemories view. In-process bookkeeping only.
func (o *Orchestrator) noteLoaded(tenant, agent string, items []*types.Item[string]) {
	var keys []string
	for _, it := range items {
		v, ok := it.Annotation(retrieval.AnnotationMatchedKey)
		if !ok {
			continue
		}
		if key, ok := v.(string); ok && key != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return
	}

	o.loadedMu.Lock()
	defer o.loadedMu.Unlock()
	id := [2]string{tenant, agent}
	have := make(map[string]bool, len(o.loaded[id]))
	for _, k := range o.loaded[id] {
		have[k] = true
	}
	for _, k := range keys {
		if have[k] {
			continue
		}
		o.loaded[id] = append(o.loaded[id], k)
		have[k] = true
	}
	if n := len(o.loaded[id]); n > loadedMemoryLimit {
		o.loaded[id] = o.loaded[id][n-loadedMemoryLimit:]
	}
}

func (o *Orchestrator) loadedFor(tenant, agent string) []string {
	o.loadedMu.Lock()
	defer o.loadedMu.Unlock()
	keys := o.loaded[[2]string{tenant, agent}]
	if len(keys) == 0 {
		return nil
	}
	return append([]string(nil), keys...)
}

// recordFromItem converts a surviving pipeline item into its persisted
// form. The storage-key annotation overrides the record key; it is not
// itself persisted.
func recordFromItem(it *types.Item[string]) *storage.Record {
	key := it.ID
	var annotations map[string]any
	for k, v := range it.Metadata.Annotations {
		if k == types.AnnotationStorageKey {
			if s, ok := v.(string); ok && s != "" {
				key = s
			}
			continue
		}
		if annotations == nil {
			annotations = make(map[string]any)
		}
		annotations[k] = v
	}

	return &storage.Record{
		TenantID:    it.Metadata.TenantID,
		AgentID:     it.Metadata.AgentID,
		Key:         key,
		Value:       it.Data,
		DataType:    it.DataType,
		Tags:        append([]string(nil), it.Metadata.Tags...),
		Embedding:   append([]float32(nil), it.Metadata.Embedding...),
		Annotations: annotations,
		CreatedAt:   it.Metadata.CreatedAt,
	}
}
