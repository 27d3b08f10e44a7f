package persistence

import (
	"time"

	"go.uber.org/zap"

	"github.com/joewhite86/frogr/graph"
	"github.com/joewhite86/frogr/model"
	"github.com/joewhite86/frogr/schema"
)

// Fetch loads the requested fields onto an already persisted model. Fields
// flagged for eager fetch and the identity properties always load, "all"
// selects every scalar field, relationship fields load only when flagged or
// explicitly requested. Already fetched fields are skipped unless requested
// again.
func (e *Engine) Fetch(tx graph.Tx, m model.Base, fields model.FieldList) error {
	node, err := e.resolveNode(tx, m)
	if err != nil {
		return err
	}
	return e.populate(tx, m, node, fields, false)
}

// Refetch is Fetch with the fetched-field bookkeeping reset, every
// requested field reloads from storage.
func (e *Engine) Refetch(tx graph.Tx, m model.Base, fields model.FieldList) error {
	m.ClearFetched()
	node, err := e.resolveNode(tx, m)
	if err != nil {
		return err
	}
	return e.populate(tx, m, node, fields, true)
}

// FromNode reconstructs a model from a stored node, resolving the concrete
// type from the discriminator property with the structural label as
// fallback.
func (e *Engine) FromNode(tx graph.Tx, node graph.Node, fields model.FieldList) (model.Base, error) {
	typeName, ok, err := node.Property(model.TypeField)
	if err != nil {
		return nil, err
	}
	name := ""
	if ok {
		name = typeName.(string)
	} else {
		labels, err := node.Labels()
		if err != nil {
			return nil, err
		}
		for _, label := range labels {
			if e.registry.Contains(label) {
				name = label
				break
			}
		}
	}
	instance, err := e.registry.NewInstance(name)
	if err != nil {
		return nil, err
	}
	instance.SetID(model.NewIdentity(node.ID()))
	if err := e.populate(tx, instance, node, fields, false); err != nil {
		return nil, err
	}
	return instance, nil
}

// populate reads identity properties and the selected field set from a
// records property container onto the model.
func (e *Engine) populate(tx graph.Tx, m model.Base, container graph.PropertyContainer, fields model.FieldList, force bool) error {
	if err := e.readIdentity(m, container); err != nil {
		return err
	}

	descriptors, err := e.registry.Descriptors(m)
	if err != nil {
		return err
	}
	all := fields.ContainsField(model.AllFields)
	structValue := schema.StructValue(m)

	for _, d := range descriptors {
		a := d.Annotations()
		if a.NotPersistent || a.Blob {
			continue
		}
		qf := fields.Get(d.Name())
		requested := qf != nil
		relational := d.IsModel() || d.IsRelationship() || a.RelationshipCount != nil

		var wanted bool
		if relational {
			wanted = requested || (a.Fetch && !a.Lazy)
		} else {
			wanted = requested || all || a.Fetch
		}
		if !wanted {
			continue
		}
		if m.Fetched(d.Name()) && !force && !requested {
			continue
		}

		if relational {
			if err := e.fetchField(tx, m, d, qf); err != nil {
				return err
			}
			continue
		}

		value, ok, err := container.Property(d.Name())
		if err != nil {
			return err
		}
		if ok {
			if err := decodeScalar(d.Value(structValue), value); err != nil {
				e.logger.Warn("skipping undecodable property",
					zap.String("type", e.registry.NameOf(m)),
					zap.String("field", d.Name()),
					zap.Error(err))
			}
		}
		m.MarkFetched(d.Name())
	}
	return nil
}

// readIdentity copies the reserved properties onto the model.
func (e *Engine) readIdentity(m model.Base, container graph.PropertyContainer) error {
	if value, ok, err := container.Property(model.UUIDField); err != nil {
		return err
	} else if ok {
		m.SetUUID(value.(string))
	}
	if value, ok, err := container.Property(model.TypeField); err != nil {
		return err
	} else if ok {
		m.SetType(value.(string))
	}
	if value, ok, err := container.Property(model.CreatedField); err != nil {
		return err
	} else if ok {
		created := time.UnixMilli(value.(int64))
		m.SetCreated(created)
	}
	if value, ok, err := container.Property(model.LastModifiedField); err != nil {
		return err
	} else if ok {
		modified := time.UnixMilli(value.(int64))
		m.SetLastModified(modified)
	}
	return nil
}
