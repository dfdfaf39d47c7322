// Package strategy holds the strategy registry and the shared strategy base.
package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/btsweep/internal/backtest"
	"github.com/newthinker/btsweep/internal/core"
	"github.com/newthinker/btsweep/internal/scenario"
	"go.uber.org/zap"
)

// Factory builds a strategy for one scene.
type Factory func(scene scenario.Scene, logger *zap.Logger) (backtest.Strategy, error)

// Registry maps strategy names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger ...*zap.Logger) *Registry {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    l,
	}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Get retrieves a factory by name
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds the strategy named by the scene.
func (r *Registry) New(scene scenario.Scene) (backtest.Strategy, error) {
	f, ok := r.Get(scene.Strategy)
	if !ok {
		return nil, core.WrapError(core.ErrStrategyUnknown, fmt.Errorf("%q (have %v)", scene.Strategy, r.Names()))
	}
	return f(scene, r.logger.With(zap.String("test_number", scene.TestNumber)))
}
