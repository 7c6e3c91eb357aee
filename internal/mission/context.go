package mission

import (
	"log/slog"
	"sync"

	"github.com/warfare-dev/extension/pkg/core"
)

// Context holds the server's identity and the rotation currently running
type Context struct {
	mu         sync.RWMutex
	serverName string
	mapName    string
	rotation   *core.Rotation
}

// NewContext creates a new Context with default values
func NewContext(serverName, mapName string) *Context {
	if mapName == "" {
		mapName = "No map loaded"
	}
	return &Context{serverName: serverName, mapName: mapName}
}

// ServerName returns the configured server name
func (mc *Context) ServerName() string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.serverName
}

// MapName returns the current map
func (mc *Context) MapName() string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.mapName
}

// SetMapName sets the current map
func (mc *Context) SetMapName(name string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.mapName = name
}

// GetRotation returns a copy of the current rotation, if one is running
func (mc *Context) GetRotation() (core.Rotation, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if mc.rotation == nil {
		return core.Rotation{}, false
	}
	r := *mc.rotation
	r.Flags = append([]core.RotationFlag(nil), mc.rotation.Flags...)
	return r, true
}

// SetRotation sets the current rotation
func (mc *Context) SetRotation(r core.Rotation) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.rotation = &r
}

// ClearRotation forgets the current rotation
func (mc *Context) ClearRotation() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.rotation = nil
}

// LogAttrs describes the context for log records. It satisfies
// logging.ContextProvider.
func (mc *Context) LogAttrs() []slog.Attr {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	attrs := []slog.Attr{slog.String("map", mc.mapName)}
	if mc.rotation != nil {
		attrs = append(attrs,
			slog.String("rotation", mc.rotation.UUID),
			slog.String("mode", mc.rotation.Mode),
		)
	}
	return attrs
}
