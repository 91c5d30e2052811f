package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/a2arium/memflow/internal/storage"
	"github.com/a2arium/memflow/pkg/types"
)

// Working memory shares the working store with free-form items, scoped by
// key shape: goal:<agent>, thought:<agent>:<unixnano>, decision:<agent>:<key>
// and variable:<agent>:<name>. Writes go through the workingMemory pipeline
// like any other item; reads go straight to the store.

func goalKey(agent string) string {
	return "goal:" + agent
}

func thoughtKey(agent string, stamp int64) string {
	return "thought:" + agent + ":" + strconv.FormatInt(stamp, 10)
}

func decisionKey(agent, name string) string {
	return "decision:" + agent + ":" + name
}

func variableKey(agent, name string) string {
	return "variable:" + agent + ":" + name
}

// nextThoughtStamp returns a strictly increasing nanosecond stamp so two
// thoughts added back to back never collide on a key or tie on order.
func (o *Orchestrator) nextThoughtStamp() int64 {
	o.thoughtMu.Lock()
	defer o.thoughtMu.Unlock()
	now := time.Now().UTC().UnixNano()
	if now <= o.lastThought {
		now = o.lastThought + 1
	}
	o.lastThought = now
	return now
}

func (o *Orchestrator) workingWrite(ctx context.Context, tenant, agent, key, value string, dataType types.DataType) error {
	if agent == "" {
		return fmt.Errorf("orchestrator: agent id required")
	}
	item := types.NewItem(value, dataType, types.IntentWorkingMemory, o.tenantOrDefault(tenant))
	item.Metadata.AgentID = agent
	item.SetAnnotation(types.AnnotationStorageKey, key)
	_, err := o.ProcessMemoryItem(ctx, item, types.IntentWorkingMemory)
	return err
}

// SetGoal stores the agent's current goal, replacing the previous one.
func (o *Orchestrator) SetGoal(ctx context.Context, tenant, agent, goal string) error {
	return o.workingWrite(ctx, tenant, agent, goalKey(agent), goal, types.DataTypeText)
}

// GetGoal returns the agent's current goal, or storage.ErrNotFound when no
// goal has been set.
func (o *Orchestrator) GetGoal(ctx context.Context, tenant, agent string) (string, error) {
	rec, err := o.router.For(types.StoreWorking).Get(ctx, o.tenantOrDefault(tenant), goalKey(agent))
	if err != nil {
		return "", err
	}
	return rec.Value, nil
}

// AddThought appends one entry to the agent's reasoning chain.
func (o *Orchestrator) AddThought(ctx context.Context, tenant, agent, text string) error {
	stamp := o.nextThoughtStamp()
	return o.workingWrite(ctx, tenant, agent, thoughtKey(agent, stamp), text, types.DataTypeText)
}

// GetThoughts returns the agent's reasoning chain ordered oldest first.
// A positive limit keeps only the most recent entries, still oldest first.
func (o *Orchestrator) GetThoughts(ctx context.Context, tenant, agent string, limit int) ([]types.Thought, error) {
	recs, err := o.router.For(types.StoreWorking).Query(ctx, storage.Query{
		TenantID:   o.tenantOrDefault(tenant),
		KeyPattern: "thought:" + agent + ":*",
	})
	if err != nil {
		return nil, err
	}

	type stamped struct {
		stamp int64
		text  string
	}
	chain := make([]stamped, 0, len(recs))
	prefix := "thought:" + agent + ":"
	for _, rec := range recs {
		raw := strings.TrimPrefix(rec.Key, prefix)
		stamp, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		chain = append(chain, stamped{stamp: stamp, text: rec.Value})
	}
	sort.Slice(chain, func(a, b int) bool { return chain[a].stamp < chain[b].stamp })
	if limit > 0 && len(chain) > limit {
		chain = chain[len(chain)-limit:]
	}

	thoughts := make([]types.Thought, 0, len(chain))
	for _, t := range chain {
		thoughts = append(thoughts, types.Thought{Text: t.text, At: time.Unix(0, t.stamp).UTC()})
	}
	return thoughts, nil
}

// MakeDecision records a named choice with optional reasoning. Writing the
// same name again replaces the earlier decision.
func (o *Orchestrator) MakeDecision(ctx context.Context, tenant, agent, name, choice, reasoning string) error {
	if name == "" {
		return fmt.Errorf("orchestrator: decision name required")
	}
	payload, err := json.Marshal(types.Decision{
		Choice:    choice,
		Reasoning: reasoning,
		DecidedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode decision %q: %w", name, err)
	}
	return o.workingWrite(ctx, tenant, agent, decisionKey(agent, name), string(payload), types.DataTypeStructured)
}

// GetDecision returns a named decision, or storage.ErrNotFound when the
// agent never made it. A record whose payload does not decode as a decision
// is surfaced as a bare choice.
func (o *Orchestrator) GetDecision(ctx context.Context, tenant, agent, name string) (types.Decision, error) {
	rec, err := o.router.For(types.StoreWorking).Get(ctx, o.tenantOrDefault(tenant), decisionKey(agent, name))
	if err != nil {
		return types.Decision{}, err
	}
	return decodeDecision(rec), nil
}

func decodeDecision(rec *storage.Record) types.Decision {
	var d types.Decision
	if err := json.Unmarshal([]byte(rec.Value), &d); err != nil || d.Choice == "" {
		return types.Decision{Choice: rec.Value, DecidedAt: rec.CreatedAt}
	}
	return d
}

// SetVariable stores a working variable. The call succeeds immediately
// against the cache; the store write happens in the background and a
// failure there is logged, not surfaced.
func (o *Orchestrator) SetVariable(tenant, agent, name, value string) {
	o.vars.Set(o.tenantOrDefault(tenant), agent, name, value)
}

// GetVariable reads a working variable, preferring the cache and falling
// back to the store for values written before this process started.
// Returns storage.ErrNotFound when the variable exists in neither.
func (o *Orchestrator) GetVariable(ctx context.Context, tenant, agent, name string) (string, error) {
	tenant = o.tenantOrDefault(tenant)
	if v, ok := o.vars.Get(tenant, agent, name); ok {
		return v, nil
	}
	rec, err := o.router.For(types.StoreWorking).Get(ctx, tenant, variableKey(agent, name))
	if err != nil {
		return "", err
	}
	return rec.Value, nil
}

// persistVariable is the store half of the variables cache. It runs on the
// cache's background goroutine with its own context so a caller canceling
// right after SetVariable cannot abort the write.
func (o *Orchestrator) persistVariable(tenant, agent, name, value string) error {
	return o.workingWrite(context.Background(), tenant, agent, variableKey(agent, name), value, types.DataTypeText)
}

// WorkingState assembles the agent's full working memory view: goal,
// thought chain (oldest first), decisions, variables and the keys of
// long-term memories recalled during this process's lifetime. Cached
// variable values win over store values.
func (o *Orchestrator) WorkingState(ctx context.Context, tenant, agent string) (*types.WorkingMemoryState, error) {
	tenant = o.tenantOrDefault(tenant)
	store := o.router.For(types.StoreWorking)

	state := &types.WorkingMemoryState{Version: 1}

	goal, err := o.GetGoal(ctx, tenant, agent)
	switch {
	case err == nil:
		state.Goal = goal
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, err
	}

	thoughts, err := o.GetThoughts(ctx, tenant, agent, 0)
	if err != nil {
		return nil, err
	}
	state.ThoughtChain = thoughts

	recs, err := store.Query(ctx, storage.Query{
		TenantID:   tenant,
		KeyPattern: decisionKey(agent, "*"),
	})
	if err != nil {
		return nil, err
	}
	prefix := "decision:" + agent + ":"
	for _, rec := range recs {
		name := strings.TrimPrefix(rec.Key, prefix)
		if name == "" || name == rec.Key {
			continue
		}
		if state.Decisions == nil {
			state.Decisions = make(map[string]types.Decision)
		}
		state.Decisions[name] = decodeDecision(rec)
	}

	varRecs, err := store.Query(ctx, storage.Query{
		TenantID:   tenant,
		KeyPattern: variableKey(agent, "*"),
	})
	if err != nil {
		return nil, err
	}
	vars := make(map[string]string)
	varPrefix := "variable:" + agent + ":"
	for _, rec := range varRecs {
		name := strings.TrimPrefix(rec.Key, varPrefix)
		if name == "" || name == rec.Key {
			continue
		}
		vars[name] = rec.Value
	}
	for name, value := range o.vars.Snapshot(tenant, agent) {
		vars[name] = value
	}
	if len(vars) > 0 {
		state.Variables = vars
	}

	state.LoadedLongTermMemories = o.loadedFor(tenant, agent)

	for _, groups := range [][]*storage.Record{recs, varRecs} {
		for _, rec := range groups {
			if rec.UpdatedAt.After(state.LastUpdated) {
				state.LastUpdated = rec.UpdatedAt
			}
		}
	}
	for _, t := range state.ThoughtChain {
		if t.At.After(state.LastUpdated) {
			state.LastUpdated = t.At
		}
	}
	if state.LastUpdated.IsZero() && state.Goal != "" {
		state.LastUpdated = time.Now().UTC()
	}

	return state, nil
}
