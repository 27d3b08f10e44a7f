// Package persistence implements the save, fetch and delete machinery
// between registered model types and the graph store. Every operation runs
// inside a caller supplied transaction; the engine itself is stateless and
// safe for concurrent use.
package persistence

import (
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joewhite86/frogr/graph"
	"github.com/joewhite86/frogr/model"
	"github.com/joewhite86/frogr/schema"
)

// LowerSuffix names the case-folded shadow property kept next to string
// properties under a lower-case index.
const LowerSuffix = "_lower"

// Engine persists registered models to a graph store.
type Engine struct {
	registry *schema.Registry
	logger   *zap.Logger
}

// NewEngine creates an engine over a populated registry.
func NewEngine(registry *schema.Registry, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{registry: registry, logger: logger}
}

// Registry exposes the metadata registry the engine was built with.
func (e *Engine) Registry() *schema.Registry { return e.registry }

// EnsureSchema declares indexes and unique constraints for every registered
// type. Called once at startup inside its own transaction.
func (e *Engine) EnsureSchema(tx graph.Tx) error {
	for _, name := range e.registry.Names() {
		structType, _ := e.registry.TypeOf(name)
		if err := tx.EnsureUnique(name, model.UUIDField); err != nil {
			return err
		}
		descriptors, err := e.registry.DescriptorsOf(structType)
		if err != nil {
			return err
		}
		for _, d := range descriptors {
			a := d.Annotations()
			switch {
			case a.Unique:
				if err := tx.EnsureUnique(name, d.Name()); err != nil {
					return err
				}
			case a.Indexed == schema.IndexDefault:
				if err := tx.EnsureIndex(name, d.Name()); err != nil {
					return err
				}
			case a.Indexed == schema.IndexLowerCase:
				if err := tx.EnsureIndex(name, d.Name()+LowerSuffix); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Save persists a model or relationship: creates the backing record when no
// stored counterpart resolves, otherwise writes only the fields the diff
// reports changed.
func (e *Engine) Save(tx graph.Tx, m model.Base) error {
	ctx, err := e.NewSaveContext(tx, m)
	if err != nil {
		return err
	}
	return e.save(ctx)
}

func (e *Engine) save(ctx *SaveContext) error {
	changes, err := ctx.Diff()
	if err != nil {
		return err
	}
	if model.IsRelationship(ctx.candidate) {
		return e.saveRelationshipModel(ctx, changes)
	}
	return e.saveNode(ctx, changes)
}

func (e *Engine) saveNode(ctx *SaveContext, changes *ChangeSet) error {
	m := ctx.candidate
	label := e.registry.NameOf(m)
	create := ctx.node == nil

	if create {
		node, err := ctx.tx.CreateNode(label)
		if err != nil {
			return err
		}
		ctx.node = node
		m.SetID(model.NewIdentity(node.ID()))
		if m.GetUUID() == "" {
			m.SetUUID(NewUUID())
		}
		if err := e.setProperty(ctx, model.UUIDField, m.GetUUID()); err != nil {
			return err
		}
		m.SetType(label)
		if err := ctx.node.SetProperty(model.TypeField, label); err != nil {
			return err
		}
		now := time.Now()
		m.SetCreated(now)
		if err := ctx.container().SetProperty(model.CreatedField, now.UnixMilli()); err != nil {
			return err
		}
	} else {
		m.Touch()
		if err := ctx.container().SetProperty(model.LastModifiedField, m.GetLastModified().UnixMilli()); err != nil {
			return err
		}
		if _, ok, err := ctx.node.Property(model.TypeField); err != nil {
			return err
		} else if !ok {
			m.SetType(label)
			if err := ctx.node.SetProperty(model.TypeField, label); err != nil {
				return err
			}
		}
	}

	if err := e.processRemovals(ctx); err != nil {
		return err
	}

	descriptors, err := e.registry.Descriptors(m)
	if err != nil {
		return err
	}
	structValue := schema.StructValue(m)
	for _, d := range descriptors {
		if err := e.saveField(ctx, d, structValue, changes, create); err != nil {
			return err
		}
	}

	m.ClearChecked()
	m.ClearRemovals()
	return nil
}

// processRemovals deletes explicitly queued properties before the declared
// field pass, an explicit removal always wins over a candidate value.
func (e *Engine) processRemovals(ctx *SaveContext) error {
	m := ctx.candidate
	for _, name := range m.PendingRemovals() {
		d, err := e.registry.Descriptor(schema.StructType(m), name)
		if err != nil {
			return &FieldNotFoundError{Model: m, Field: name}
		}
		if err := ctx.container().RemoveProperty(name); err != nil {
			return err
		}
		if d.Annotations().Indexed == schema.IndexLowerCase {
			if err := ctx.container().RemoveProperty(name + LowerSuffix); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) saveField(ctx *SaveContext, d *schema.FieldDescriptor, structValue reflect.Value, changes *ChangeSet, create bool) error {
	a := d.Annotations()
	if a.NotPersistent || a.Blob || a.RelationshipCount != nil {
		return nil
	}
	m := ctx.candidate
	// An explicit removal wins over whatever value the candidate carries.
	for _, queued := range m.PendingRemovals() {
		if queued == d.Name() {
			return nil
		}
	}
	field := d.Value(structValue)

	if d.IsModel() || d.IsRelationship() {
		if a.Required && create && isNilOrEmpty(field) {
			return &MissingRequiredError{Model: m, Field: d.Name()}
		}
		if !changes.Contains(d.Name()) || isNilOrEmpty(field) {
			return nil
		}
		return e.saveRelationshipField(ctx, d, field)
	}

	value, null, err := encodeScalar(field)
	if err != nil {
		// Partial failure tolerance, an unstorable value skips the single
		// field instead of aborting the save.
		e.logger.Warn("skipping field with unstorable value",
			zap.String("type", e.registry.NameOf(m)),
			zap.String("field", d.Name()),
			zap.Error(err))
		return nil
	}

	if a.UUID && null && create {
		generated := NewUUID()
		// decodeScalar allocates through pointer fields before writing.
		if err := decodeScalar(field, generated); err != nil {
			return err
		}
		value, null = generated, false
	}
	if a.Required && create && null {
		return &MissingRequiredError{Model: m, Field: d.Name()}
	}
	if !changes.Contains(d.Name()) {
		return nil
	}

	if null {
		if !a.NullRemove {
			return nil
		}
		if err := ctx.container().RemoveProperty(d.Name()); err != nil {
			return err
		}
		if a.Indexed == schema.IndexLowerCase {
			return ctx.container().RemoveProperty(d.Name() + LowerSuffix)
		}
		return nil
	}

	if err := e.setProperty(ctx, d.Name(), value); err != nil {
		return err
	}
	if a.Indexed == schema.IndexLowerCase {
		if s, ok := value.(string); ok {
			return ctx.container().SetProperty(d.Name()+LowerSuffix, strings.ToLower(s))
		}
	}
	return nil
}

// setProperty writes one property, translating constraint violations into
// duplicate entry failures naming the field and value.
func (e *Engine) setProperty(ctx *SaveContext, name string, value any) error {
	err := ctx.container().SetProperty(name, value)
	if graph.IsConstraintViolation(err) {
		return &DuplicateEntryError{Model: ctx.candidate, Field: name, Value: value}
	}
	return err
}

// Delete removes a model and all of its incident edges, or a relationship's
// backing edge.
func (e *Engine) Delete(tx graph.Tx, m model.Base) error {
	if model.IsRelationship(m) {
		id, ok := m.GetID().Value()
		if !ok {
			return &ResolutionError{Model: m, Detail: "relationship has no id"}
		}
		edge, err := tx.RelationshipByID(id)
		if err != nil {
			return err
		}
		return edge.Delete()
	}

	node, err := e.resolveNode(tx, m)
	if err != nil {
		return err
	}
	incident, err := node.Relationships(graph.Both)
	if err != nil {
		return err
	}
	for _, edge := range incident {
		if err := edge.Delete(); err != nil {
			return err
		}
	}
	return node.Delete()
}

// resolveNode finds the backing node for a persisted model, by id when
// assigned, by uuid otherwise.
func (e *Engine) resolveNode(tx graph.Tx, m model.Base) (graph.Node, error) {
	if id, ok := m.GetID().Value(); ok {
		return tx.NodeByID(id)
	}
	if uuid := m.GetUUID(); uuid != "" {
		node, err := tx.FindNode(e.registry.NameOf(m), model.UUIDField, uuid)
		if graph.IsNotFound(err) {
			return nil, &ResolutionError{Model: m, Detail: "no node with uuid " + uuid}
		}
		if err != nil {
			return nil, err
		}
		m.SetID(model.NewIdentity(node.ID()))
		return node, nil
	}
	return nil, &ResolutionError{Model: m, Detail: "neither id nor uuid set"}
}

// NewUUID returns a time based uuid without dashes, stable for the lifetime
// of the record it is assigned to.
func NewUUID() string {
	return strings.ReplaceAll(uuid.Must(uuid.NewUUID()).String(), "-", "")
}
