package pathing

import (
	"context"
	"fmt"

	"github.com/warfare-dev/extension/internal/config"
	"github.com/warfare-dev/extension/internal/zones"
)

// AllFlags offers every flag zone of the store.
type AllFlags struct{}

func (AllFlags) Flags(_ context.Context, store *zones.Store, _ config.FlagsConfig) ([]zones.Zone, error) {
	return store.ByKind(zones.KindFlag), nil
}

// NamedFlags offers only the flags listed in flags.namedFlags.
type NamedFlags struct{}

func (NamedFlags) Flags(_ context.Context, store *zones.Store, settings config.FlagsConfig) ([]zones.Zone, error) {
	return lookup(store, settings.NamedFlags)
}

func lookup(store *zones.Store, names []string) ([]zones.Zone, error) {
	out := make([]zones.Zone, 0, len(names))
	for _, name := range names {
		shapes := store.ByName(name)
		if len(shapes) == 0 || shapes[0].Kind != zones.KindFlag {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFlag, name)
		}
		out = append(out, shapes[0])
	}
	return out, nil
}

// FixedOrder builds the path from flags.fixedOrder verbatim.
type FixedOrder struct{}

func (FixedOrder) BuildPath(ctx context.Context, req Request) ([]zones.Zone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	flags, err := lookup(req.Store, req.Settings.FixedOrder)
	if err != nil {
		return nil, err
	}
	path := make([]zones.Zone, 0, len(flags)+2)
	path = append(path, req.Team1Main)
	path = append(path, flags...)
	return append(path, req.Team2Main), nil
}
