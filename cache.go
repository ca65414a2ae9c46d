package trials

import "sync"

// ProgramCache stores compiled expression programs keyed by expression
// strings, shared across scope evaluations within a resolution.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MemoryProgramCache is a ProgramCache backed by a sync.Map, safe for
// concurrent use.
type MemoryProgramCache struct {
	programs sync.Map
}

// NewMemoryProgramCache constructs an empty program cache.
func NewMemoryProgramCache() *MemoryProgramCache {
	return &MemoryProgramCache{}
}

// Get returns the cached program for key.
func (c *MemoryProgramCache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	return c.programs.Load(key)
}

// Set stores a compiled program under key.
func (c *MemoryProgramCache) Set(key string, value any) {
	if c == nil {
		return
	}
	c.programs.Store(key, value)
}
