// Package pathing builds the ordered flag path of a rotation: team one's
// main, the capturable flags, then team two's main.
package pathing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/warfare-dev/extension/internal/config"
	"github.com/warfare-dev/extension/internal/zones"
)

// Built-in names.
const (
	ObjectivePathing = "ObjectivePathing"
	FixedOrderName   = "FixedOrder"
	AllFlagsPool     = "AllFlags"
	NamedFlagsPool   = "NamedFlags"
)

var (
	// ErrUnknownProvider is returned for a provider or pool name nobody registered.
	ErrUnknownProvider = errors.New("unknown pathing provider")
	// ErrUnknownFlag is returned when a configured flag name has no zone.
	ErrUnknownFlag = errors.New("unknown flag zone")
)

// Request is everything a Provider needs to build a path.
type Request struct {
	Store     *zones.Store
	Pool      []zones.Zone // candidate flags, first shape of each name
	Team1Main zones.Zone
	Team2Main zones.Zone
	Settings  config.FlagsConfig
}

// Provider builds a path. The result starts with Team1Main and ends with
// Team2Main. Providers may return a short path without error; the caller
// validates the length.
type Provider interface {
	BuildPath(ctx context.Context, req Request) ([]zones.Zone, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) ([]zones.Zone, error)

func (f ProviderFunc) BuildPath(ctx context.Context, req Request) ([]zones.Zone, error) {
	return f(ctx, req)
}

// FlagPool selects candidate flags from the zone store.
type FlagPool interface {
	Flags(ctx context.Context, store *zones.Store, settings config.FlagsConfig) ([]zones.Zone, error)
}

// Registry maps configured names to providers and pools.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	pools     map[string]FlagPool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		pools:     make(map[string]FlagPool),
	}
}

// DefaultRegistry registers the built-in providers and pools.
func DefaultRegistry(walk *GraphWalk) *Registry {
	r := NewRegistry()
	r.RegisterProvider(ObjectivePathing, walk)
	r.RegisterProvider(FixedOrderName, FixedOrder{})
	r.RegisterPool(AllFlagsPool, AllFlags{})
	r.RegisterPool(NamedFlagsPool, NamedFlags{})
	return r
}

// RegisterProvider adds or replaces a provider.
func (r *Registry) RegisterProvider(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// RegisterPool adds or replaces a flag pool.
func (r *Registry) RegisterPool(name string, p FlagPool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools[name] = p
}

// Provider resolves a provider by name.
func (r *Registry) Provider(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownProvider, name, sortedKeys(r.providers))
	}
	return p, nil
}

// Pool resolves the named pools and unions their flags, keeping the first
// occurrence of each name.
func (r *Registry) Pool(ctx context.Context, names []string, store *zones.Store, settings config.FlagsConfig) ([]zones.Zone, error) {
	r.mu.RLock()
	pools := make([]FlagPool, 0, len(names))
	for _, name := range names {
		p, ok := r.pools[name]
		if !ok {
			r.mu.RUnlock()
			return nil, fmt.Errorf("%w: flag pool %q (known: %v)", ErrUnknownProvider, name, sortedKeys(r.pools))
		}
		pools = append(pools, p)
	}
	r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []zones.Zone
	for _, p := range pools {
		flags, err := p.Flags(ctx, store, settings)
		if err != nil {
			return nil, err
		}
		for _, z := range flags {
			if seen[z.Name] {
				continue
			}
			seen[z.Name] = true
			out = append(out, z)
		}
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
