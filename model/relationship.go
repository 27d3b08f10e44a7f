package model

import "fmt"

// Relationship marks models backed by a graph edge. The identity of a
// relationship is the edge id/uuid, not derived from its endpoints.
type Relationship interface {
	Base
	StartModel() Model
	EndModel() Model
	SetStartModel(Model) error
	SetEndModel(Model) error
}

// BaseRelationship is the embeddable base for relationship models with
// strongly typed endpoints.
type BaseRelationship[F Model, T Model] struct {
	Entity
	From F `json:"from,omitempty"`
	To   T `json:"to,omitempty"`
}

// NewBaseRelationship binds two endpoints. Concrete relationship
// constructors usually wrap this.
func NewBaseRelationship[F Model, T Model](from F, to T) BaseRelationship[F, T] {
	return BaseRelationship[F, T]{From: from, To: to}
}

func (r *BaseRelationship[F, T]) StartModel() Model {
	var zero F
	if any(r.From) == any(zero) {
		return nil
	}
	return r.From
}

func (r *BaseRelationship[F, T]) EndModel() Model {
	var zero T
	if any(r.To) == any(zero) {
		return nil
	}
	return r.To
}

// IsRelationship reports whether a model is backed by an edge rather than a
// node.
func IsRelationship(b Base) bool {
	_, ok := b.(Relationship)
	return ok
}

func (r *BaseRelationship[F, T]) SetStartModel(m Model) error {
	from, ok := m.(F)
	if !ok {
		return fmt.Errorf("%v cannot be used as 'from' endpoint", m)
	}
	r.From = from
	return nil
}

func (r *BaseRelationship[F, T]) SetEndModel(m Model) error {
	to, ok := m.(T)
	if !ok {
		return fmt.Errorf("%v cannot be used as 'to' endpoint", m)
	}
	r.To = to
	return nil
}

func (r *BaseRelationship[F, T]) String() string {
	name := r.Type
	if name == "" {
		name = "relationship"
	}
	return fmt.Sprintf("%s (%v, %v)", name, r.From, r.To)
}
