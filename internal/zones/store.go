package zones

import (
	"context"
	"fmt"
	"sync"
)

// Provider supplies raw zone definitions, e.g. from a file or a database.
type Provider interface {
	Zones(ctx context.Context) ([]Zone, error)
}

// Store loads zones from a Provider once and serves read-only lookups.
type Store struct {
	provider Provider

	mu     sync.RWMutex
	zones  []Zone
	byName map[string][]Zone
	loaded bool
}

// NewStore creates a store backed by provider.
func NewStore(provider Provider) *Store {
	return &Store{provider: provider}
}

// NewStaticStore creates an already initialized store from built zones.
func NewStaticStore(zones ...Zone) (*Store, error) {
	s := &Store{provider: Static(zones)}
	if err := s.Initialize(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Initialize loads and builds every zone. Calling it again reloads.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.RLock()
	provider := s.provider
	s.mu.RUnlock()
	return s.load(ctx, provider)
}

// Replace switches the store to provider and loads from it. On error the
// store keeps its previous provider and zones.
func (s *Store) Replace(ctx context.Context, provider Provider) error {
	return s.load(ctx, provider)
}

func (s *Store) load(ctx context.Context, provider Provider) error {
	raw, err := provider.Zones(ctx)
	if err != nil {
		return fmt.Errorf("loading zones: %w", err)
	}

	built := make([]Zone, 0, len(raw))
	byName := make(map[string][]Zone)
	for _, z := range raw {
		if err := z.Build(); err != nil {
			return err
		}
		built = append(built, z)
		byName[z.Name] = append(byName[z.Name], z)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = provider
	s.zones = built
	s.byName = byName
	s.loaded = true
	return nil
}

// IsLoaded reports whether Initialize has succeeded.
func (s *Store) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// All returns every zone shape in load order.
func (s *Store) All() []Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Zone, len(s.zones))
	copy(out, s.zones)
	return out
}

// ByName returns every shape with the given name.
func (s *Store) ByName(name string) []Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Zone(nil), s.byName[name]...)
}

// ByKind returns the first shape of every distinct name of the given kind, in
// load order. Use ByName to get all shapes of one name.
func (s *Store) ByKind(kind Kind) []Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []Zone
	for _, z := range s.zones {
		if z.Kind != kind || seen[z.Name] {
			continue
		}
		seen[z.Name] = true
		out = append(out, z)
	}
	return out
}

// Main returns the main base of a team.
func (s *Store) Main(team uint8) (Zone, bool) {
	for _, z := range s.ByKind(KindMain) {
		if z.Team == team {
			return z, true
		}
	}
	return Zone{}, false
}

// Static is a Provider over a fixed slice.
type Static []Zone

// Zones returns a copy of the slice.
func (s Static) Zones(context.Context) ([]Zone, error) {
	return append([]Zone(nil), s...), nil
}
