package persistence

import (
	"fmt"
	"reflect"

	"github.com/joewhite86/frogr/graph"
	"github.com/joewhite86/frogr/model"
	"github.com/joewhite86/frogr/schema"
)

// ChangeSet is the result of diffing a candidate against its stored
// counterpart. It is computed once per save and passed to the writer.
type ChangeSet struct {
	all    bool
	fields map[string]bool
}

// Contains reports whether a field counts as changed.
func (c *ChangeSet) Contains(name string) bool {
	if c.all {
		return true
	}
	return c.fields[name]
}

// Empty reports whether nothing changed.
func (c *ChangeSet) Empty() bool {
	return !c.all && len(c.fields) == 0
}

// SaveContext coordinates one save: it resolves the stored counterpart of
// the candidate model up front and diffs the two exactly once. A context is
// bound to a single transaction and must not outlive it.
type SaveContext struct {
	engine    *Engine
	tx        graph.Tx
	candidate model.Base
	original  model.Base
	node      graph.Node
	edge      graph.Relationship
	changes   *ChangeSet
}

// NewSaveContext resolves the candidate's stored counterpart. A candidate
// with an assigned id loads by id; one carrying only a uuid loads by uuid
// and adopts the found id. When neither resolves, the original stays absent
// and the save is a first-time create.
func (e *Engine) NewSaveContext(tx graph.Tx, candidate model.Base) (*SaveContext, error) {
	ctx := &SaveContext{engine: e, tx: tx, candidate: candidate}

	if model.IsRelationship(candidate) {
		var stored graph.Relationship
		switch {
		case candidate.GetID().Assigned():
			id := candidate.GetID().Int64()
			edge, err := tx.RelationshipByID(id)
			if err != nil {
				if graph.IsNotFound(err) {
					return nil, &ResolutionError{Model: candidate, Detail: fmt.Sprintf("no relationship with id %d", id)}
				}
				return nil, err
			}
			stored = edge
		case candidate.GetUUID() != "":
			edge, err := tx.FindRelationship(e.registry.NameOf(candidate), model.UUIDField, candidate.GetUUID())
			if graph.IsNotFound(err) {
				return ctx, nil // fresh create keeping the client supplied uuid
			}
			if err != nil {
				return nil, err
			}
			stored = edge
			candidate.SetID(model.NewIdentity(edge.ID()))
		default:
			return ctx, nil
		}
		ctx.edge = stored
		original, err := e.relationshipFromEdge(tx, stored, model.AllFieldList())
		if err != nil {
			return nil, err
		}
		ctx.original = original
		return ctx, nil
	}

	switch {
	case candidate.GetID().Assigned():
		id := candidate.GetID().Int64()
		node, err := tx.NodeByID(id)
		if err != nil {
			if graph.IsNotFound(err) {
				return nil, &ResolutionError{Model: candidate, Detail: fmt.Sprintf("no node with id %d", id)}
			}
			return nil, err
		}
		ctx.node = node
	case candidate.GetUUID() != "":
		node, err := tx.FindNode(e.registry.NameOf(candidate), model.UUIDField, candidate.GetUUID())
		if graph.IsNotFound(err) {
			return ctx, nil // fresh create keeping the client supplied uuid
		}
		if err != nil {
			return nil, err
		}
		ctx.node = node
		candidate.SetID(model.NewIdentity(node.ID()))
	default:
		return ctx, nil
	}

	original, err := e.FromNode(tx, ctx.node, model.AllFieldList())
	if err != nil {
		return nil, err
	}
	ctx.original = original
	return ctx, nil
}

// container is the property surface of the backing record, node or edge.
func (c *SaveContext) container() graph.PropertyContainer {
	if c.edge != nil {
		return c.edge
	}
	return c.node
}

// Original returns the stored counterpart, nil on first-time creates.
func (c *SaveContext) Original() model.Base { return c.original }

// Diff computes the changed field set, once. With no original every field
// is changed. Lazy relationship fields are never compared, a set value
// always counts as changed. Non-lazy relationship fields compare endpoint
// identities after loading the original's single-level equivalent. Fields
// marked checked by an earlier context in the same save cycle are skipped.
func (c *SaveContext) Diff() (*ChangeSet, error) {
	if c.changes != nil {
		return c.changes, nil
	}
	if c.original == nil {
		c.changes = &ChangeSet{all: true}
		return c.changes, nil
	}

	descriptors, err := c.engine.registry.Descriptors(c.candidate)
	if err != nil {
		return nil, err
	}
	changes := &ChangeSet{fields: make(map[string]bool)}
	candidateValue := schema.StructValue(c.candidate)
	originalValue := schema.StructValue(c.original)

	for _, d := range descriptors {
		a := d.Annotations()
		if a.NotPersistent || a.Blob || a.RelationshipCount != nil {
			continue
		}
		// A field already checked in the running save cycle was handled by an
		// earlier context, a nested save must not write it again.
		if c.candidate.Checked(d.Name()) {
			continue
		}
		c.candidate.MarkChecked(d.Name())

		changed, err := c.fieldChanged(d, candidateValue, originalValue)
		if err != nil {
			return nil, err
		}
		if changed {
			changes.fields[d.Name()] = true
		}
	}
	c.changes = changes
	return changes, nil
}

func (c *SaveContext) fieldChanged(d *schema.FieldDescriptor, candidateValue, originalValue reflect.Value) (bool, error) {
	field := d.Value(candidateValue)

	if d.IsModel() || d.IsRelationship() {
		if isNilOrEmpty(field) {
			return false, nil
		}
		if d.Annotations().Lazy {
			return true, nil
		}
		// Compare against the original's current edges, loaded without a
		// window so the membership check is complete.
		if err := c.engine.fetchField(c.tx, c.original, d, maxQueryField(d.Name())); err != nil {
			return false, err
		}
		return !sameEndpoints(field, d.Value(originalValue)), nil
	}

	value, null, err := encodeScalar(field)
	if err != nil {
		return false, err
	}
	originalEncoded, originalNull, err := encodeScalar(d.Value(originalValue))
	if err != nil {
		return false, err
	}
	if null {
		// A nulled field only counts as changed when a stored value exists
		// for the removal to act on.
		return d.Annotations().NullRemove && !originalNull, nil
	}
	if originalNull {
		return true, nil
	}
	return !scalarEqual(value, originalEncoded), nil
}

func scalarEqual(a, b any) bool {
	if ab, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		return ok && string(ab) == string(bb)
	}
	return a == b
}

// sameEndpoints compares relationship field values by endpoint identity,
// order independent for collections.
func sameEndpoints(a, b reflect.Value) bool {
	return keySet(a).equal(keySet(b))
}

type identitySet map[string]int

func (s identitySet) equal(other identitySet) bool {
	if len(s) != len(other) {
		return false
	}
	for key, count := range s {
		if other[key] != count {
			return false
		}
	}
	return true
}

func keySet(v reflect.Value) identitySet {
	set := make(identitySet)
	add := func(item reflect.Value) {
		if item.Kind() == reflect.Ptr && item.IsNil() {
			return
		}
		if m, ok := item.Interface().(model.Base); ok {
			set[modelKey(m)]++
		}
	}
	if v.Kind() == reflect.Slice {
		for i := 0; i < v.Len(); i++ {
			add(v.Index(i))
		}
	} else {
		add(v)
	}
	return set
}

// modelKey is the identity a relationship diff compares by, uuid when
// present, assigned id otherwise.
func modelKey(m model.Base) string {
	if uuid := m.GetUUID(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("id:%d", m.GetID().Int64())
}

// isNilOrEmpty reports whether a relationship field carries no value.
func isNilOrEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Slice:
		return v.Len() == 0
	default:
		return false
	}
}

func maxQueryField(name string) *model.QueryField {
	f := model.MustQueryField(name)
	f.SetLimit(model.MaxLimit)
	return f
}
