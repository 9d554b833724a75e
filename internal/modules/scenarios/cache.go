// Package scenarios owns the scenario-matrix cache. Producing a scenario
// matrix (many simulated race outcomes) is orders of magnitude more
// expensive than one lineup solve, and a generation run issues many rounds
// against the same matrix, so production is memoized per (identifier, count).
package scenarios

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Key identifies one cached matrix: the slate/race identifier plus the exact
// scenario count requested. Different counts are different cache entries.
type Key struct {
	Identifier    string
	ScenarioCount int
}

// Producer generates an n-scenario outcome matrix (n rows, one column per
// entity). Owned by the scenario-content subsystem; opaque here.
type Producer func(n int) (*mat.Dense, error)

// Cache memoizes scenario production for the lifetime of the process.
// There is no eviction; Clear empties it wholesale.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*mat.Dense
	log     zerolog.Logger
}

// NewCache creates an empty cache.
func NewCache(log zerolog.Logger) *Cache {
	return &Cache{
		entries: make(map[Key]*mat.Dense),
		log:     log.With().Str("component", "scenario_cache").Logger(),
	}
}

// Get returns the cached matrix for key, invoking produce on a miss.
// A hit returns the same matrix instance every time. Production runs
// outside the lock, so two goroutines racing on the same uncomputed key may
// both produce; the first to store wins and both observe that instance.
func (c *Cache) Get(key Key, produce Producer) (*mat.Dense, error) {
	c.mu.Lock()
	if m, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	m, err := produce(key.ScenarioCount)
	if err != nil {
		return nil, fmt.Errorf("scenario production for %s/%d failed: %w",
			key.Identifier, key.ScenarioCount, err)
	}
	if m == nil {
		return nil, fmt.Errorf("scenario producer for %s returned no matrix", key.Identifier)
	}
	rows, cols := m.Dims()
	if rows != key.ScenarioCount {
		return nil, fmt.Errorf("scenario producer for %s returned %d scenarios, requested %d",
			key.Identifier, rows, key.ScenarioCount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		// Lost the production race; keep the stored instance stable.
		return existing, nil
	}
	c.entries[key] = m
	c.log.Debug().
		Str("identifier", key.Identifier).
		Int("scenarios", rows).
		Int("entities", cols).
		Msg("Cached scenario matrix")
	return m, nil
}

// Len returns the number of cached matrices.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every cached matrix.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*mat.Dense)
}
