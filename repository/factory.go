package repository

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/joewhite86/frogr/graph"
	"github.com/joewhite86/frogr/model"
	"github.com/joewhite86/frogr/persistence"
)

// Factory resolves repositories by type name. Explicitly registered
// repositories win; for any other registered model type a default
// repository is synthesized on first use and cached.
type Factory struct {
	mu           sync.RWMutex
	store        graph.Store
	engine       *persistence.Engine
	logger       *zap.Logger
	repositories map[string]Repository
}

// NewFactory creates a factory over a store and engine.
func NewFactory(store graph.Store, engine *persistence.Engine, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		store:        store,
		engine:       engine,
		logger:       logger,
		repositories: make(map[string]Repository),
	}
}

// Engine exposes the persistence engine repositories are built on.
func (f *Factory) Engine() *persistence.Engine { return f.engine }

// Register installs a hand written repository for its label.
func (f *Factory) Register(r Repository) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repositories[r.Label()] = r
}

// Get resolves the repository for a type name, synthesizing and caching a
// default one when none was registered.
func (f *Factory) Get(name string) (Repository, error) {
	f.mu.RLock()
	r, ok := f.repositories[name]
	f.mu.RUnlock()
	if ok {
		return r, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.repositories[name]; ok {
		return r, nil
	}
	r, err := New(name, f.store, f.engine, f.logger)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("synthesized default repository", zap.String("type", name))
	f.repositories[name] = r
	return r, nil
}

// ForModel resolves the repository serving a model value's type.
func (f *Factory) ForModel(m model.Base) (Repository, error) {
	return f.Get(f.engine.Registry().NameOf(m))
}

// Typed wraps the untyped repository for T in a strongly typed facade. T
// must be a registered struct pointer type.
func Typed[T model.Model](f *Factory) (*TypedRepository[T], error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("%w: %T", ErrRepositoryNotFound, zero)
	}
	r, err := f.Get(t.Elem().Name())
	if err != nil {
		return nil, err
	}
	return &TypedRepository[T]{Repository: r}, nil
}
