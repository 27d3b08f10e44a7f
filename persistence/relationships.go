package persistence

import (
	"fmt"
	"reflect"
	"time"

	"github.com/joewhite86/frogr/graph"
	"github.com/joewhite86/frogr/model"
	"github.com/joewhite86/frogr/schema"
)

// relSpec resolves the edge semantics of a relationship field. Fields typed
// as a relationship model without an explicit binding use the model's own
// type name as edge type.
func relSpec(d *schema.FieldDescriptor) (typeName string, dir graph.Direction, multiple, restrict bool) {
	if a := d.Annotations().RelatedTo; a != nil {
		return a.Type, a.Direction, a.Multiple, a.RestrictType
	}
	return d.BaseType().Elem().Name(), graph.Outgoing, false, false
}

// saveRelationshipField writes one changed relationship field: single
// valued fields retarget their one live edge, non-lazy collections diff
// edge membership against the candidate collection, lazy collections only
// ensure the present items.
func (e *Engine) saveRelationshipField(ctx *SaveContext, d *schema.FieldDescriptor, field reflect.Value) error {
	typeName, dir, multiple, _ := relSpec(d)

	if !d.IsCollection() {
		// A single valued field holds at most one live edge, a new value
		// retargets instead of accumulating. A relationship model that
		// resolves to a stored edge updates it in place instead.
		updateInPlace := false
		if d.IsRelationship() {
			rel := field.Interface().(model.Relationship)
			if err := e.prepareRelationshipValue(rel, ctx.candidate, dir); err != nil {
				return err
			}
			resolved, err := e.edgeExists(ctx.tx, rel)
			if err != nil {
				return err
			}
			updateInPlace = resolved
		}
		if !updateInPlace {
			if err := e.deleteEdges(ctx.node, dir, typeName, nil); err != nil {
				return err
			}
		}
		return e.connect(ctx, d, typeName, dir, multiple, field)
	}

	if !d.Annotations().Lazy {
		keep := make(map[string]bool)
		for i := 0; i < field.Len(); i++ {
			item := field.Index(i)
			if item.Kind() == reflect.Ptr && item.IsNil() {
				continue
			}
			target := endpointOf(item.Interface().(model.Base), ctx.candidate, d)
			if target != nil {
				if _, err := e.resolveTarget(ctx, target); err != nil {
					return err
				}
				keep[modelKey(target)] = true
			}
		}
		if err := e.deleteEdges(ctx.node, dir, typeName, keep); err != nil {
			return err
		}
	}

	for i := 0; i < field.Len(); i++ {
		item := field.Index(i)
		if item.Kind() == reflect.Ptr && item.IsNil() {
			continue
		}
		if err := e.connect(ctx, d, typeName, dir, multiple, item); err != nil {
			return err
		}
	}
	return nil
}

// connect ensures one edge for a single field item. Relationship typed
// fields persist the relationship model itself so edge properties survive.
func (e *Engine) connect(ctx *SaveContext, d *schema.FieldDescriptor, typeName string, dir graph.Direction, multiple bool, item reflect.Value) error {
	if item.Kind() == reflect.Ptr && item.IsNil() {
		return nil
	}
	if d.IsRelationship() {
		rel := item.Interface().(model.Relationship)
		if err := e.prepareRelationshipValue(rel, ctx.candidate, dir); err != nil {
			return err
		}
		return e.Save(ctx.tx, rel)
	}

	target := item.Interface().(model.Base)
	targetNode, err := e.resolveTarget(ctx, target)
	if err != nil {
		return err
	}
	_, err = e.ensureEdge(ctx.tx, ctx.node, targetNode, typeName, dir, multiple)
	return err
}

// prepareRelationshipValue fills the owner side endpoint when the caller
// left it unset and rejects values whose edge would bypass the owner.
func (e *Engine) prepareRelationshipValue(rel model.Relationship, owner model.Base, dir graph.Direction) error {
	if err := adoptEndpoint(rel, owner, dir); err != nil {
		return err
	}
	return validateOwnerEndpoint(rel, owner, dir)
}

// adoptEndpoint fills the owner side endpoint of a relationship model when
// the caller left it unset.
func adoptEndpoint(rel model.Relationship, owner model.Base, dir graph.Direction) error {
	if dir == graph.Incoming {
		if rel.EndModel() == nil {
			return rel.SetEndModel(owner)
		}
		return nil
	}
	if rel.StartModel() == nil {
		return rel.SetStartModel(owner)
	}
	return nil
}

// validateOwnerEndpoint checks that a relationship field value keeps the
// owning model on the endpoint the field's direction requires. An outgoing
// field needs the owner as start, an incoming one as end, both accepts
// either side.
func validateOwnerEndpoint(rel model.Relationship, owner model.Base, dir graph.Direction) error {
	from, to := rel.StartModel(), rel.EndModel()
	switch dir {
	case graph.Outgoing:
		if from != nil && !model.Equal(from, owner) {
			return &EndpointMismatchError{Model: owner, Relationship: rel, Expected: "from"}
		}
	case graph.Incoming:
		if to != nil && !model.Equal(to, owner) {
			return &EndpointMismatchError{Model: owner, Relationship: rel, Expected: "to"}
		}
	default:
		fromMatches := from != nil && model.Equal(from, owner)
		toMatches := to != nil && model.Equal(to, owner)
		if !fromMatches && !toMatches {
			return &EndpointMismatchError{Model: owner, Relationship: rel, Expected: "from or to"}
		}
	}
	return nil
}

// edgeExists reports whether a relationship model resolves to a stored
// edge, by id when assigned, by uuid otherwise.
func (e *Engine) edgeExists(tx graph.Tx, rel model.Relationship) (bool, error) {
	if rel.GetID().Assigned() {
		return true, nil
	}
	if uuid := rel.GetUUID(); uuid != "" {
		_, err := tx.FindRelationship(e.registry.NameOf(rel), model.UUIDField, uuid)
		if graph.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// endpointOf extracts the target model of a collection item, unwrapping
// relationship models to the endpoint opposite the owner.
func endpointOf(item model.Base, owner model.Base, d *schema.FieldDescriptor) model.Base {
	if !d.IsRelationship() {
		return item
	}
	rel := item.(model.Relationship)
	if rel.StartModel() != nil && !model.Equal(rel.StartModel(), owner) {
		return rel.StartModel()
	}
	return rel.EndModel()
}

// resolveTarget binds a relationship target to its stored node, adopting
// the id found by uuid. An unresolvable target aborts the save.
func (e *Engine) resolveTarget(ctx *SaveContext, target model.Base) (graph.Node, error) {
	if id, ok := target.GetID().Value(); ok {
		return ctx.tx.NodeByID(id)
	}
	if uuid := target.GetUUID(); uuid != "" {
		node, err := ctx.tx.FindNode(e.registry.NameOf(target), model.UUIDField, uuid)
		if err == nil {
			target.SetID(model.NewIdentity(node.ID()))
			return node, nil
		}
		if !graph.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, &RelatedNotPersistedError{Model: ctx.candidate, Related: target}
}

// ensureEdge creates an edge unless an equivalent one already exists,
// idempotent except when parallel edges are explicitly allowed.
func (e *Engine) ensureEdge(tx graph.Tx, owner, target graph.Node, typeName string, dir graph.Direction, multiple bool) (graph.Relationship, error) {
	if !multiple {
		existing, err := owner.Relationships(dir, typeName)
		if err != nil {
			return nil, err
		}
		for _, edge := range existing {
			if otherID(edge, owner.ID()) == target.ID() {
				return edge, nil
			}
		}
	}
	if dir == graph.Incoming {
		return tx.CreateRelationship(typeName, target, owner)
	}
	return tx.CreateRelationship(typeName, owner, target)
}

// deleteEdges removes edges of a type and direction whose other endpoint is
// not in the keep set. With a nil keep set every matching edge goes.
func (e *Engine) deleteEdges(node graph.Node, dir graph.Direction, typeName string, keep map[string]bool) error {
	edges, err := node.Relationships(dir, typeName)
	if err != nil {
		return err
	}
	for _, edge := range edges {
		if keep != nil {
			other, err := edge.Other(node.ID())
			if err != nil {
				return err
			}
			uuid, ok, err := other.Property(model.UUIDField)
			if err != nil {
				return err
			}
			key := fmt.Sprintf("id:%d", other.ID())
			if ok {
				key = uuid.(string)
			}
			if keep[key] {
				continue
			}
		}
		if err := edge.Delete(); err != nil {
			return err
		}
	}
	return nil
}

func otherID(edge graph.Relationship, nodeID int64) int64 {
	if edge.StartID() == nodeID {
		return edge.EndID()
	}
	return edge.StartID()
}

// saveRelationshipModel persists a relationship model as an edge with
// properties. Endpoints must already be persisted.
func (e *Engine) saveRelationshipModel(ctx *SaveContext, changes *ChangeSet) error {
	rel := ctx.candidate.(model.Relationship)
	typeName := e.registry.NameOf(rel)
	create := ctx.edge == nil

	if create {
		from, to := rel.StartModel(), rel.EndModel()
		if from == nil || to == nil {
			return &ResolutionError{Model: rel, Detail: "both endpoints must be set"}
		}
		fromNode, err := e.resolveTarget(ctx, from)
		if err != nil {
			return err
		}
		toNode, err := e.resolveTarget(ctx, to)
		if err != nil {
			return err
		}
		edge, err := ctx.tx.CreateRelationship(typeName, fromNode, toNode)
		if err != nil {
			return err
		}
		ctx.edge = edge
		rel.SetID(model.NewIdentity(edge.ID()))
		if rel.GetUUID() == "" {
			rel.SetUUID(NewUUID())
		}
		if err := edge.SetProperty(model.UUIDField, rel.GetUUID()); err != nil {
			return err
		}
		rel.SetType(typeName)
		if err := edge.SetProperty(model.TypeField, typeName); err != nil {
			return err
		}
		now := time.Now()
		rel.SetCreated(now)
		if err := edge.SetProperty(model.CreatedField, now.UnixMilli()); err != nil {
			return err
		}
	} else {
		rel.Touch()
		if err := ctx.edge.SetProperty(model.LastModifiedField, rel.GetLastModified().UnixMilli()); err != nil {
			return err
		}
	}

	if err := e.processRemovals(ctx); err != nil {
		return err
	}

	descriptors, err := e.registry.Descriptors(rel)
	if err != nil {
		return err
	}
	structValue := schema.StructValue(rel)
	for _, d := range descriptors {
		if err := e.saveField(ctx, d, structValue, changes, create); err != nil {
			return err
		}
	}

	rel.ClearChecked()
	rel.ClearRemovals()
	return nil
}

// fetchField materializes one relationship field from the graph: single
// models, windowed collections, relationship models or a plain edge count.
func (e *Engine) fetchField(tx graph.Tx, m model.Base, d *schema.FieldDescriptor, qf *model.QueryField) error {
	node, err := e.resolveNode(tx, m)
	if err != nil {
		return err
	}
	field := d.Value(schema.StructValue(m))
	typeName, dir, _, restrict := relSpec(d)

	if a := d.Annotations().RelationshipCount; a != nil {
		count, err := node.CountRelationships(a.Direction, a.Type)
		if err != nil {
			return err
		}
		field.SetInt(count)
		m.MarkFetched(d.Name())
		return nil
	}

	edges, err := node.Relationships(dir, typeName)
	if err != nil {
		return err
	}
	if restrict {
		edges, err = e.restrictEdges(tx, node, edges, d)
		if err != nil {
			return err
		}
	}

	// Without an explicit projection related records load their scalar
	// fields, recursion into further relationships needs explicit
	// sub-fields.
	subFields := model.AllFieldList()
	if qf != nil && len(qf.SubFields()) > 0 {
		subFields = qf.SubFields()
	}

	if !d.IsCollection() {
		switch len(edges) {
		case 0:
			field.Set(reflect.Zero(field.Type()))
		case 1:
			value, err := e.materialize(tx, node, edges[0], d, subFields)
			if err != nil {
				return err
			}
			if value.Type().AssignableTo(field.Type()) {
				field.Set(value)
			}
		default:
			return &ResolutionError{Model: m,
				Detail: fmt.Sprintf("%d %s relationships where a single one was expected", len(edges), typeName)}
		}
		m.MarkFetched(d.Name())
		return nil
	}

	skip, limit := 0, model.DefaultLimit
	if qf != nil {
		skip, limit = qf.Skip(), qf.Limit()
	}
	if skip > len(edges) {
		skip = len(edges)
	}
	edges = edges[skip:]
	if limit < len(edges) {
		edges = edges[:limit]
	}

	slice := reflect.MakeSlice(d.Type(), 0, len(edges))
	for _, edge := range edges {
		value, err := e.materialize(tx, node, edge, d, subFields)
		if err != nil {
			return err
		}
		if !value.Type().AssignableTo(d.Type().Elem()) {
			continue
		}
		slice = reflect.Append(slice, value)
	}
	field.Set(slice)
	m.MarkFetched(d.Name())
	return nil
}

// restrictEdges drops edges whose other endpoint is not of the field's
// declared type.
func (e *Engine) restrictEdges(tx graph.Tx, node graph.Node, edges []graph.Relationship, d *schema.FieldDescriptor) ([]graph.Relationship, error) {
	want := d.BaseType().Elem().Name()
	if d.IsRelationship() {
		return edges, nil
	}
	kept := edges[:0]
	for _, edge := range edges {
		other, err := edge.Other(node.ID())
		if err != nil {
			return nil, err
		}
		stored, ok, err := other.Property(model.TypeField)
		if err != nil {
			return nil, err
		}
		if ok && stored == want {
			kept = append(kept, edge)
		}
	}
	return kept, nil
}

// materialize loads the value a relationship field holds for one edge.
func (e *Engine) materialize(tx graph.Tx, owner graph.Node, edge graph.Relationship, d *schema.FieldDescriptor, fields model.FieldList) (reflect.Value, error) {
	if d.IsRelationship() {
		rel, err := e.relationshipFromEdge(tx, edge, fields)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(rel), nil
	}
	other, err := edge.Other(owner.ID())
	if err != nil {
		return reflect.Value{}, err
	}
	target, err := e.FromNode(tx, other, fields)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(target), nil
}

// relationshipFromEdge reconstructs a relationship model including both
// endpoint models.
func (e *Engine) relationshipFromEdge(tx graph.Tx, edge graph.Relationship, fields model.FieldList) (model.Relationship, error) {
	if len(fields) == 0 {
		fields = model.AllFieldList()
	}
	typeName := edge.TypeName()
	if stored, ok, err := edge.Property(model.TypeField); err != nil {
		return nil, err
	} else if ok {
		typeName = stored.(string)
	}
	instance, err := e.registry.NewInstance(typeName)
	if err != nil {
		return nil, err
	}
	rel, ok := instance.(model.Relationship)
	if !ok {
		return nil, &ResolutionError{Model: instance, Detail: typeName + " is not a relationship type"}
	}
	rel.SetID(model.NewIdentity(edge.ID()))
	if err := e.populate(tx, rel, edge, fields, false); err != nil {
		return nil, err
	}

	startNode, err := edge.Start()
	if err != nil {
		return nil, err
	}
	from, err := e.FromNode(tx, startNode, model.AllFieldList())
	if err != nil {
		return nil, err
	}
	endNode, err := edge.End()
	if err != nil {
		return nil, err
	}
	to, err := e.FromNode(tx, endNode, model.AllFieldList())
	if err != nil {
		return nil, err
	}
	if err := rel.SetStartModel(from); err != nil {
		return nil, err
	}
	if err := rel.SetEndModel(to); err != nil {
		return nil, err
	}
	return rel, nil
}
