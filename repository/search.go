package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/joewhite86/frogr/graph"
	"github.com/joewhite86/frogr/model"
	"github.com/joewhite86/frogr/persistence"
	"github.com/joewhite86/frogr/schema"
)

// Search is the query builder returned by Repository.Search. Builder calls
// accumulate on a SearchParameter, terminals open a read transaction and
// execute.
type Search struct {
	repo   *baseRepository
	params *model.SearchParameter
}

// Params installs a complete parameter set, replacing anything accumulated
// so far. Used by the REST layer which parses parameters from the request.
func (s *Search) Params(params *model.SearchParameter) *Search {
	s.params = params
	return s
}

func (s *Search) Filter(filters ...model.Filter) *Search {
	s.params.Filter(filters...)
	return s
}

func (s *Search) FilterEquals(property, value string) *Search {
	s.params.FilterEquals(property, value)
	return s
}

func (s *Search) Query(query string) *Search {
	s.params.Query(query)
	return s
}

func (s *Search) Fields(fields ...string) *Search {
	s.params.Fields(fields...)
	return s
}

func (s *Search) IDs(ids ...int64) *Search {
	s.params.IDs(ids...)
	return s
}

func (s *Search) UUIDs(uuids ...string) *Search {
	s.params.UUIDs(uuids...)
	return s
}

func (s *Search) OrderBy(field string, dir model.SortOrder) *Search {
	s.params.OrderBy(field, dir)
	return s
}

func (s *Search) Limit(limit int) *Search {
	s.params.Limit(limit)
	return s
}

func (s *Search) Page(page int) *Search {
	s.params.Page(page)
	return s
}

func (s *Search) Start(start int) *Search {
	s.params.Start(start)
	return s
}

func (s *Search) Returns(fields ...string) *Search {
	s.params.Returns(fields...)
	return s
}

// List returns all matching models with the requested fields loaded.
func (s *Search) List(ctx context.Context) ([]model.Base, error) {
	var results []model.Base
	err := s.repo.run(ctx, false, func(tx graph.Tx) error {
		q, err := s.compile(tx, false)
		if err != nil {
			return err
		}
		nodes, err := tx.QueryNodes(q)
		if err != nil {
			return err
		}
		fields := s.params.GetFieldList()
		if len(fields) == 0 {
			fields = model.AllFieldList()
		}
		for _, node := range nodes {
			m, err := s.repo.engine.FromNode(tx, node, fields)
			if err != nil {
				return err
			}
			results = append(results, m)
		}
		return nil
	})
	return results, err
}

// Single returns the only match, nil when nothing matched and
// ErrAmbiguousResult when several did.
func (s *Search) Single(ctx context.Context) (model.Base, error) {
	results, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return nil, fmt.Errorf("%w: %d matches on %s", ErrAmbiguousResult, len(results), s.repo.label)
	}
}

// Count counts matches ignoring paging.
func (s *Search) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.repo.run(ctx, false, func(tx graph.Tx) error {
		q, err := s.compile(tx, true)
		if err != nil {
			return err
		}
		count, err = tx.QueryCount(q)
		return err
	})
	return count, err
}

// Sum sums a numeric property over all matches.
func (s *Search) Sum(ctx context.Context, property string) (float64, error) {
	var sum float64
	err := s.repo.run(ctx, false, func(tx graph.Tx) error {
		q, err := s.compile(tx, true)
		if err != nil {
			return err
		}
		sum, err = tx.QuerySum(q, property)
		return err
	})
	return sum, err
}

// Values projects the single declared return field over all matches.
func (s *Search) Values(ctx context.Context) ([]any, error) {
	returns := s.params.GetReturns()
	if len(returns) != 1 {
		return nil, fmt.Errorf("%w, got %d", ErrMissingReturns, len(returns))
	}
	var values []any
	err := s.repo.run(ctx, false, func(tx graph.Tx) error {
		q, err := s.compile(tx, false)
		if err != nil {
			return err
		}
		values, err = tx.QueryProperty(q, returns[0])
		return err
	})
	return values, err
}

// ToInt projects the return field of the only match as an integer.
func (s *Search) ToInt(ctx context.Context) (int64, error) {
	values, err := s.Values(ctx)
	if err != nil {
		return 0, err
	}
	switch len(values) {
	case 0:
		return 0, persistence.ErrNotFound
	case 1:
		n, ok := values[0].(int64)
		if !ok {
			return 0, fmt.Errorf("return value %v is not an integer", values[0])
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %d matches on %s", ErrAmbiguousResult, len(values), s.repo.label)
	}
}

// compile translates the accumulated parameters into a store query.
// Case-insensitive predicates on fields with a lower-case index rewrite
// onto the shadow property so the store can use its plain value index.
func (s *Search) compile(tx graph.Tx, aggregate bool) (graph.Query, error) {
	q := graph.Query{Label: s.repo.label, IDs: append([]int64(nil), s.params.GetIDs()...)}

	// uuid restrictions resolve to internal ids up front
	for _, uuid := range s.params.GetUUIDs() {
		node, err := tx.FindNode(s.repo.label, model.UUIDField, uuid)
		if graph.IsNotFound(err) {
			continue
		}
		if err != nil {
			return q, err
		}
		q.IDs = append(q.IDs, node.ID())
	}
	if len(s.params.GetUUIDs()) > 0 && len(q.IDs) == 0 {
		// every requested uuid was unknown, match nothing
		q.IDs = []int64{-1}
	}
	sort.Slice(q.IDs, func(i, j int) bool { return q.IDs[i] < q.IDs[j] })

	for _, filter := range s.params.Filters() {
		p, err := s.predicate(filter)
		if err != nil {
			return q, err
		}
		q.Predicates = append(q.Predicates, p)
	}

	if query := s.params.QueryString(); query != "" {
		p, err := s.freeTextPredicate(query)
		if err != nil {
			return q, err
		}
		q.Predicates = append(q.Predicates, p)
	}

	if !aggregate {
		for _, order := range s.params.GetOrderBy() {
			q.Order = append(q.Order, graph.Ordering{
				Property:   order.Field,
				Descending: order.Dir == model.Descending,
			})
		}
		q.Skip = s.params.GetStart()
		q.Limit = s.params.GetLimit()
	}
	return q, nil
}

func (s *Search) predicate(filter model.Filter) (graph.Predicate, error) {
	p := graph.Predicate{Property: filter.Property(), Value: filter.Value()}
	switch f := filter.(type) {
	case *model.Equals:
		p.Op = graph.OpEquals
		p.CaseInsensitive = f.CaseInsensitive
	case *model.NotEquals:
		p.Op = graph.OpNotEquals
	case *model.LessThan:
		p.Op = graph.OpLessThan
		p.Including = f.Including
	case *model.GreaterThan:
		p.Op = graph.OpGreaterThan
		p.Including = f.Including
	case *model.Range:
		p.Op = graph.OpRange
		p.Value = f.From
		p.To = f.To
	case *model.StartsWith:
		p.Op = graph.OpStartsWith
		p.CaseInsensitive = f.CaseInsensitive
	case *model.EndsWith:
		p.Op = graph.OpEndsWith
		p.CaseInsensitive = f.CaseInsensitive
	case *model.Contains:
		p.Op = graph.OpContains
		p.CaseInsensitive = f.CaseInsensitive
	default:
		return p, fmt.Errorf("unsupported filter %T on %s", filter, filter.Property())
	}
	return s.rewriteShadow(p), nil
}

// freeTextPredicate maps the free-text query onto the first field carrying
// a lower-case index.
func (s *Search) freeTextPredicate(query string) (graph.Predicate, error) {
	structType, _ := s.repo.engine.Registry().TypeOf(s.repo.label)
	descriptors, err := s.repo.engine.Registry().DescriptorsOf(structType)
	if err != nil {
		return graph.Predicate{}, err
	}
	for _, d := range descriptors {
		if d.Annotations().Indexed == schema.IndexLowerCase {
			return s.rewriteShadow(graph.Predicate{
				Property:        d.Name(),
				Op:              graph.OpContains,
				Value:           query,
				CaseInsensitive: true,
			}), nil
		}
	}
	return graph.Predicate{}, fmt.Errorf("%s has no field indexed for free-text search", s.repo.label)
}

// rewriteShadow moves case-insensitive string predicates onto the
// lower-case shadow property when the field maintains one.
func (s *Search) rewriteShadow(p graph.Predicate) graph.Predicate {
	if !p.CaseInsensitive {
		return p
	}
	value, ok := p.Value.(string)
	if !ok {
		return p
	}
	structType, _ := s.repo.engine.Registry().TypeOf(s.repo.label)
	d, err := s.repo.engine.Registry().Descriptor(structType, p.Property)
	if err != nil || d.Annotations().Indexed != schema.IndexLowerCase {
		return p
	}
	p.Property += persistence.LowerSuffix
	p.Value = strings.ToLower(value)
	p.CaseInsensitive = false
	return p
}
