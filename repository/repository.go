// Package repository provides the per-model facade over the persistence
// engine: find, save, remove and a search builder. Repositories are
// resolved through a Factory which synthesizes and caches a default
// repository for any registered type that has no hand written one.
package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/joewhite86/frogr/graph"
	"github.com/joewhite86/frogr/model"
	"github.com/joewhite86/frogr/persistence"
)

// Repository is the untyped per-model facade. Every operation opens its own
// transaction; mutations commit on success and roll back on error.
type Repository interface {
	// Label is the structural label and type discriminator served.
	Label() string
	// NewModel creates an empty model of the served type.
	NewModel() (model.Base, error)

	Save(ctx context.Context, models ...model.Base) error
	Find(ctx context.Context, id int64, fields ...string) (model.Base, error)
	FindByUUID(ctx context.Context, uuid string, fields ...string) (model.Base, error)
	Fetch(ctx context.Context, m model.Base, fields ...string) error
	Refetch(ctx context.Context, m model.Base, fields ...string) error
	Remove(ctx context.Context, m model.Base) error

	// Sort orders already loaded models in memory.
	Sort(models []model.Base, orderBy ...model.OrderBy) error

	Search() *Search
}

type baseRepository struct {
	label  string
	store  graph.Store
	engine *persistence.Engine
	logger *zap.Logger
}

// New creates a repository for one registered type name.
func New(label string, store graph.Store, engine *persistence.Engine, logger *zap.Logger) (Repository, error) {
	if !engine.Registry().Contains(label) {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, label)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &baseRepository{label: label, store: store, engine: engine, logger: logger}, nil
}

func (r *baseRepository) Label() string { return r.label }

func (r *baseRepository) NewModel() (model.Base, error) {
	return r.engine.Registry().NewInstance(r.label)
}

// run executes fn inside a transaction, committing when mutate is set and
// fn returned no error.
func (r *baseRepository) run(ctx context.Context, mutate bool, fn func(tx graph.Tx) error) error {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if mutate {
		return tx.Commit()
	}
	return tx.Rollback()
}

// validate rejects models of a different type than the repository serves.
func (r *baseRepository) validate(m model.Base) error {
	if name := r.engine.Registry().NameOf(m); name != r.label {
		return fmt.Errorf("%w: %s repository cannot handle %s", ErrWrongModelType, r.label, name)
	}
	return nil
}

func (r *baseRepository) Save(ctx context.Context, models ...model.Base) error {
	for _, m := range models {
		if err := r.validate(m); err != nil {
			return err
		}
	}
	return r.run(ctx, true, func(tx graph.Tx) error {
		for _, m := range models {
			if err := r.engine.Save(tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *baseRepository) Find(ctx context.Context, id int64, fields ...string) (model.Base, error) {
	fieldList, err := model.ParseFieldStrings(fields...)
	if err != nil {
		return nil, err
	}
	var found model.Base
	err = r.run(ctx, false, func(tx graph.Tx) error {
		node, err := tx.NodeByID(id)
		if err != nil {
			return err
		}
		found, err = r.engine.FromNode(tx, node, fieldList)
		return err
	})
	if graph.IsNotFound(err) {
		return nil, fmt.Errorf("%s %d: %w", r.label, id, persistence.ErrNotFound)
	}
	return found, err
}

func (r *baseRepository) FindByUUID(ctx context.Context, uuid string, fields ...string) (model.Base, error) {
	fieldList, err := model.ParseFieldStrings(fields...)
	if err != nil {
		return nil, err
	}
	var found model.Base
	err = r.run(ctx, false, func(tx graph.Tx) error {
		node, err := tx.FindNode(r.label, model.UUIDField, uuid)
		if err != nil {
			return err
		}
		found, err = r.engine.FromNode(tx, node, fieldList)
		return err
	})
	if graph.IsNotFound(err) {
		return nil, fmt.Errorf("%s %s: %w", r.label, uuid, persistence.ErrNotFound)
	}
	return found, err
}

func (r *baseRepository) Fetch(ctx context.Context, m model.Base, fields ...string) error {
	if err := r.validate(m); err != nil {
		return err
	}
	fieldList, err := model.ParseFieldStrings(fields...)
	if err != nil {
		return err
	}
	return r.run(ctx, false, func(tx graph.Tx) error {
		return r.engine.Fetch(tx, m, fieldList)
	})
}

func (r *baseRepository) Refetch(ctx context.Context, m model.Base, fields ...string) error {
	if err := r.validate(m); err != nil {
		return err
	}
	fieldList, err := model.ParseFieldStrings(fields...)
	if err != nil {
		return err
	}
	return r.run(ctx, false, func(tx graph.Tx) error {
		return r.engine.Refetch(tx, m, fieldList)
	})
}

func (r *baseRepository) Remove(ctx context.Context, m model.Base) error {
	if err := r.validate(m); err != nil {
		return err
	}
	return r.run(ctx, true, func(tx graph.Tx) error {
		return r.engine.Delete(tx, m)
	})
}

func (r *baseRepository) Search() *Search {
	return &Search{repo: r, params: model.NewSearchParameter()}
}
