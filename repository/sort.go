package repository

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joewhite86/frogr/model"
	"github.com/joewhite86/frogr/schema"
)

// Sort orders models in memory by the given fields. Used when results were
// assembled outside a single store query and the store ordering could not
// apply.
func (r *baseRepository) Sort(models []model.Base, orderBy ...model.OrderBy) error {
	if len(orderBy) == 0 || len(models) < 2 {
		return nil
	}
	structType, ok := r.engine.Registry().TypeOf(r.label)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRepositoryNotFound, r.label)
	}
	descriptors := make([]*schema.FieldDescriptor, len(orderBy))
	for i, order := range orderBy {
		d, err := r.engine.Registry().Descriptor(structType, order.Field)
		if err != nil {
			return err
		}
		descriptors[i] = d
	}
	sort.SliceStable(models, func(i, j int) bool {
		for k, order := range orderBy {
			a := descriptors[k].Value(schema.StructValue(models[i]))
			b := descriptors[k].Value(schema.StructValue(models[j]))
			c := compareValues(a.Interface(), b.Interface())
			if c == 0 {
				continue
			}
			if order.Dir == model.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return nil
}

func compareValues(a, b any) int {
	switch left := a.(type) {
	case string:
		if right, ok := b.(string); ok {
			return strings.Compare(left, right)
		}
	case int64:
		if right, ok := b.(int64); ok {
			return compareOrdered(left, right)
		}
	case int:
		if right, ok := b.(int); ok {
			return compareOrdered(left, right)
		}
	case int32:
		if right, ok := b.(int32); ok {
			return compareOrdered(left, right)
		}
	case float64:
		if right, ok := b.(float64); ok {
			return compareOrdered(left, right)
		}
	case float32:
		if right, ok := b.(float32); ok {
			return compareOrdered(left, right)
		}
	case bool:
		if right, ok := b.(bool); ok {
			if left == right {
				return 0
			}
			if !left {
				return -1
			}
			return 1
		}
	case time.Time:
		if right, ok := b.(time.Time); ok {
			return left.Compare(right)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func compareOrdered[T int | int32 | int64 | float32 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
