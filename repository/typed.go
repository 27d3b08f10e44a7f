package repository

import (
	"context"
	"fmt"

	"github.com/joewhite86/frogr/model"
)

// TypedRepository narrows the untyped facade to one concrete model type.
type TypedRepository[T model.Model] struct {
	Repository
}

func (r *TypedRepository[T]) cast(m model.Base) (T, error) {
	var zero T
	if m == nil {
		return zero, nil
	}
	typed, ok := m.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T", ErrWrongModelType, m)
	}
	return typed, nil
}

// Create returns an empty model of the served type.
func (r *TypedRepository[T]) Create() (T, error) {
	m, err := r.NewModel()
	if err != nil {
		var zero T
		return zero, err
	}
	return r.cast(m)
}

// FindTyped loads a model by internal id.
func (r *TypedRepository[T]) FindTyped(ctx context.Context, id int64, fields ...string) (T, error) {
	m, err := r.Find(ctx, id, fields...)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.cast(m)
}

// FindByUUIDTyped loads a model by uuid.
func (r *TypedRepository[T]) FindByUUIDTyped(ctx context.Context, uuid string, fields ...string) (T, error) {
	m, err := r.FindByUUID(ctx, uuid, fields...)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.cast(m)
}

// ListTyped runs a search and casts the results.
func (r *TypedRepository[T]) ListTyped(ctx context.Context, s *Search) ([]T, error) {
	results, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	typed := make([]T, 0, len(results))
	for _, m := range results {
		t, err := r.cast(m)
		if err != nil {
			return nil, err
		}
		typed = append(typed, t)
	}
	return typed, nil
}

// SingleTyped runs a search expecting at most one result.
func (r *TypedRepository[T]) SingleTyped(ctx context.Context, s *Search) (T, error) {
	m, err := s.Single(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.cast(m)
}
