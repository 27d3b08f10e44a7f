// Package graph defines the narrow contract the persistence engine requires
// from a property graph store: node/relationship CRUD, label and property
// indexes, transactions and a small predicate query facility. Implementations
// live below this package; the engine never depends on a concrete store.
package graph

import "context"

// Direction of a relationship relative to a node.
type Direction int

const (
	// Outgoing relationships start at the node.
	Outgoing Direction = iota
	// Incoming relationships end at the node.
	Incoming
	// Both matches either direction.
	Both
)

// String returns the lower-case name of the direction.
func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// PropertyContainer is the property surface shared by nodes and
// relationships. Supported value types are string, bool, int64 and float64;
// the engine encodes dates and enums into these before storage.
type PropertyContainer interface {
	// Property returns a property value and whether it exists.
	Property(name string) (any, bool, error)
	// SetProperty stores a property value. Returns ErrInvalidPropertyType for
	// unsupported value types and a ConstraintError when a unique constraint
	// rejects the write.
	SetProperty(name string, value any) error
	// RemoveProperty deletes a property. Removing an absent property is not
	// an error.
	RemoveProperty(name string) error
	// Properties returns all properties.
	Properties() (map[string]any, error)
}

// Node is a handle on a stored graph node, valid for the transaction that
// produced it.
type Node interface {
	PropertyContainer

	ID() int64
	Labels() ([]string, error)
	HasLabel(label string) (bool, error)
	AddLabel(label string) error

	// Relationships enumerates incident relationships, optionally filtered
	// by type names.
	Relationships(dir Direction, types ...string) ([]Relationship, error)
	// SingleRelationship returns the only incident relationship of the type
	// and direction. Returns nil when none exists and ErrMoreThanOne when
	// several do.
	SingleRelationship(dir Direction, typeName string) (Relationship, error)
	// CountRelationships counts matching relationships without loading them.
	CountRelationships(dir Direction, typeName string) (int64, error)

	// Delete removes the node. Incident relationships must be deleted first.
	Delete() error
}

// Relationship is a handle on a stored graph edge.
type Relationship interface {
	PropertyContainer

	ID() int64
	TypeName() string
	StartID() int64
	EndID() int64
	// Start and End resolve the endpoint nodes.
	Start() (Node, error)
	End() (Node, error)
	// Other returns the endpoint opposite to the passed node id.
	Other(nodeID int64) (Node, error)

	Delete() error
}

// Tx is a single store transaction. All persistence work happens inside
// exactly one Tx; handles obtained from it are invalid afterwards.
type Tx interface {
	CreateNode(labels ...string) (Node, error)
	NodeByID(id int64) (Node, error)
	// FindNode looks a node up by label and exact property match. Returns
	// ErrNotFound when no node matches; when several do, any one of them.
	FindNode(label, property string, value any) (Node, error)
	FindNodes(label, property string, value any) ([]Node, error)

	CreateRelationship(typeName string, from, to Node) (Relationship, error)
	RelationshipByID(id int64) (Relationship, error)
	// FindRelationship looks an edge up by type and exact property match.
	// Returns ErrNotFound when no edge matches; when several do, any one of
	// them.
	FindRelationship(typeName, property string, value any) (Relationship, error)

	// EnsureIndex creates a property index for a label, used for exact and
	// case-folded lookups. Idempotent.
	EnsureIndex(label, property string) error
	// EnsureUnique adds a uniqueness constraint on a label/property pair.
	// Idempotent; existing duplicate values make it fail.
	EnsureUnique(label, property string) error

	// QueryNodes runs a predicate query and returns matching nodes honoring
	// ordering, skip and limit.
	QueryNodes(q Query) ([]Node, error)
	// QueryCount counts matches without materializing nodes.
	QueryCount(q Query) (int64, error)
	// QuerySum sums a numeric property over all matches.
	QuerySum(q Query, property string) (float64, error)
	// QueryProperty projects a single property over all matches.
	QueryProperty(q Query, property string) ([]any, error)

	Commit() error
	Rollback() error
}

// Store is a property graph database. Implementations must provide ACID
// transactions; the engine performs no locking of its own.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Close() error
}
