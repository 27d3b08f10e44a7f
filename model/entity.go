// Package model defines the base types shared by all persisted entities and
// relationships: identity, the transient bookkeeping sets used by the
// persistence engine, field selection lists and search parameters.
package model

import (
	"fmt"
	"time"
)

// Reserved property names. These are managed by the persistence engine and
// must not be used as domain field names.
const (
	IDField           = "id"
	UUIDField         = "uuid"
	TypeField         = "type"
	CreatedField      = "created"
	LastModifiedField = "lastModified"

	// AllFields is the field-list sentinel selecting every persistable,
	// non-relationship field.
	AllFields = "all"
)

// Base is the capability common to node entities and relationship models.
// Concrete types obtain it by embedding Entity (or BaseRelationship).
type Base interface {
	GetID() Identity
	SetID(Identity)
	GetUUID() string
	SetUUID(string)
	GetType() string
	SetType(string)
	GetCreated() *time.Time
	SetCreated(time.Time)
	GetLastModified() *time.Time
	SetLastModified(time.Time)
	Touch()

	// Persisted reports whether the record exists in the store: either the
	// store assigned a numeric id, or a uuid identifies it across restarts.
	Persisted() bool

	// Bookkeeping sets. Transient, never persisted.
	MarkChecked(field string)
	Checked(field string) bool
	ClearChecked()
	MarkFetched(field string)
	Fetched(field string) bool
	ClearFetched()
	QueueRemoval(field string)
	PendingRemovals() []string
	ClearRemovals()
}

// Model marks node entities. Relationship models additionally implement the
// Relationship interface; code that must tell the two apart checks for that.
type Model interface {
	Base
}

// Entity is the embeddable base for node entities. It carries the graph
// identity, the discriminator type and the save/fetch bookkeeping state.
type Entity struct {
	ID           Identity   `json:"id,omitempty"`
	UUID         string     `json:"uuid,omitempty"`
	Type         string     `json:"type,omitempty"`
	Created      *time.Time `json:"created,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`

	checked  map[string]struct{}
	fetched  map[string]struct{}
	removals []string
}

func (e *Entity) GetID() Identity   { return e.ID }
func (e *Entity) SetID(id Identity) { e.ID = id }
func (e *Entity) GetUUID() string   { return e.UUID }
func (e *Entity) SetUUID(u string)  { e.UUID = u }
func (e *Entity) GetType() string   { return e.Type }
func (e *Entity) SetType(t string)  { e.Type = t }

func (e *Entity) GetCreated() *time.Time { return e.Created }
func (e *Entity) SetCreated(t time.Time) { e.Created = &t }

func (e *Entity) GetLastModified() *time.Time { return e.LastModified }
func (e *Entity) SetLastModified(t time.Time) { e.LastModified = &t }

// Touch updates the last modified timestamp to now.
func (e *Entity) Touch() {
	now := time.Now()
	e.LastModified = &now
}

func (e *Entity) Persisted() bool {
	return e.ID.Assigned() || e.UUID != ""
}

func (e *Entity) MarkChecked(field string) {
	if e.checked == nil {
		e.checked = make(map[string]struct{})
	}
	e.checked[field] = struct{}{}
}

func (e *Entity) Checked(field string) bool {
	_, ok := e.checked[field]
	return ok
}

func (e *Entity) ClearChecked() { e.checked = nil }

func (e *Entity) MarkFetched(field string) {
	if e.fetched == nil {
		e.fetched = make(map[string]struct{})
	}
	e.fetched[field] = struct{}{}
}

func (e *Entity) Fetched(field string) bool {
	_, ok := e.fetched[field]
	return ok
}

func (e *Entity) ClearFetched() { e.fetched = nil }

// QueueRemoval marks a property for deletion on the next save. Works on
// fields without the nullRemove flag too.
func (e *Entity) QueueRemoval(field string) {
	for _, f := range e.removals {
		if f == field {
			return
		}
	}
	e.removals = append(e.removals, field)
}

func (e *Entity) PendingRemovals() []string { return e.removals }
func (e *Entity) ClearRemovals()            { e.removals = nil }

func (e *Entity) String() string {
	name := e.Type
	if name == "" {
		name = "entity"
	}
	if !e.ID.Assigned() && e.UUID != "" {
		return fmt.Sprintf("%s (%s)", name, e.UUID)
	}
	return fmt.Sprintf("%s (%s)", name, e.ID)
}

// Equal compares two entities by their persisted identity. Used by the
// relationship engine to diff collections.
func Equal(a, b Base) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.GetUUID() != "" && b.GetUUID() != "" {
		return a.GetUUID() == b.GetUUID()
	}
	if !a.GetID().Assigned() || !b.GetID().Assigned() {
		return false
	}
	return a.GetID().Int64() == b.GetID().Int64()
}
