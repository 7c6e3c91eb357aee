package cache

import (
	"strings"
	"sync"
)

// FlagAliases resolves the names a host command may use for a flag of the
// current rotation (full name or short name, any case) to its full name.
type FlagAliases struct {
	mu      sync.RWMutex
	aliases map[string]string
}

// NewFlagAliases creates an empty FlagAliases
func NewFlagAliases() *FlagAliases {
	return &FlagAliases{
		aliases: make(map[string]string),
	}
}

// Add registers name under itself and every non-empty alias
func (c *FlagAliases) Add(name string, aliases ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aliases[strings.ToLower(name)] = name
	for _, a := range aliases {
		if a != "" {
			c.aliases[strings.ToLower(a)] = name
		}
	}
}

// Resolve returns the full flag name for s
func (c *FlagAliases) Resolve(s string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.aliases[strings.ToLower(strings.TrimSpace(s))]
	return name, ok
}

// Reset clears all aliases
func (c *FlagAliases) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aliases = make(map[string]string)
}
