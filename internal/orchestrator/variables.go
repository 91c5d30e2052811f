package orchestrator

import (
	"sync"

	"github.com/a2arium/memflow/internal/logging"
)

type varKey struct {
	tenant string
	agent  string
	name   string
}

type varEntry struct {
	value string
	seq   uint64
}

// PersistFunc writes one working variable to durable storage.
type PersistFunc func(tenant, agent, name, value string) error

// VariablesCache is the write-through cache for agent working variables.
// Set commits to the cache immediately and schedules the store write in
// the background; reads are always served from the cache, so a variable
// is visible the moment Set returns even if its persistence later fails.
//
// Each entry carries a sequence number and store writes are serialized.
// A background write re-reads the sequence once it holds the persist
// lock and skips itself when a newer Set has superseded it, so the store
// always converges on the latest value.
type VariablesCache struct {
	mu      sync.RWMutex
	entries map[varKey]varEntry
	// nextSeq stamps every Set; numbers are never reused, even after a
	// Delete recreates a key.
	nextSeq uint64

	persist   PersistFunc
	persistMu sync.Mutex
	wg        sync.WaitGroup
}

// NewVariablesCache builds a cache over the given persistence function.
// A nil persist keeps the cache purely in-process.
func NewVariablesCache(persist PersistFunc) *VariablesCache {
	return &VariablesCache{
		entries: make(map[varKey]varEntry),
		persist: persist,
	}
}

// Set stores a variable and schedules its background persistence. A
// failed store write is logged and dropped; the cached value stays
// authoritative for readers.
func (c *VariablesCache) Set(tenant, agent, name, value string) {
	key := varKey{tenant: tenant, agent: agent, name: name}

	c.mu.Lock()
	c.nextSeq++
	seq := c.nextSeq
	c.entries[key] = varEntry{value: value, seq: seq}
	c.mu.Unlock()

	if c.persist == nil {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.persistMu.Lock()
		defer c.persistMu.Unlock()

		c.mu.RLock()
		current := c.entries[key].seq
		c.mu.RUnlock()
		if current != seq {
			// A newer Set owns the store write now.
			return
		}

		if err := c.persist(tenant, agent, name, value); err != nil {
			logging.Warn("[Variables] persist %s/%s %q failed, cache keeps the value: %v",
				tenant, agent, name, err)
		}
	}()
}

// Get returns a variable's cached value.
func (c *VariablesCache) Get(tenant, agent, name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[varKey{tenant: tenant, agent: agent, name: name}]
	return e.value, ok
}

// Delete removes a variable from the cache. The store record, if any, is
// the caller's business.
func (c *VariablesCache) Delete(tenant, agent, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, varKey{tenant: tenant, agent: agent, name: name})
}

// Snapshot returns every cached variable of one (tenant, agent) pair.
func (c *VariablesCache) Snapshot(tenant, agent string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]string)
	for key, e := range c.entries {
		if key.tenant == tenant && key.agent == agent {
			out[key.name] = e.value
		}
	}
	return out
}

// Close waits for every scheduled store write to finish or skip.
func (c *VariablesCache) Close() {
	c.wg.Wait()
}
