// Package schema provides the model metadata registry. Model types register
// once at startup; the registry reflects over their declared fields a single
// time, extracts the persistence flags from `frogr` struct tags and memoizes
// an ordered descriptor list per type. All later lookups are cache hits.
package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/joewhite86/frogr/graph"
	"github.com/joewhite86/frogr/model"
)

// IndexType describes how a field is indexed.
type IndexType int

const (
	// IndexNone means the field carries no index.
	IndexNone IndexType = iota
	// IndexDefault is a plain exact-match index.
	IndexDefault
	// IndexLowerCase additionally maintains a lower-cased shadow property
	// for case-insensitive lookups.
	IndexLowerCase
)

// RelatedTo binds a field to graph relationships of a type and direction.
type RelatedTo struct {
	// Type is the relationship type name.
	Type string
	// Direction of the relationship relative to the owning model.
	Direction graph.Direction
	// Multiple allows parallel relationships of the same type between the
	// same two nodes.
	Multiple bool
	// RestrictType limits materialization to endpoints matching the field's
	// declared base type.
	RestrictType bool
}

// RelationshipCount derives an edge count instead of materializing models.
type RelationshipCount struct {
	Type      string
	Direction graph.Direction
}

// Annotations is the flag set parsed from a field's `frogr` tag.
type Annotations struct {
	Indexed           IndexType
	Unique            bool
	Required          bool
	Fetch             bool
	Lazy              bool
	NullRemove        bool
	NotPersistent     bool
	Blob              bool
	UUID              bool
	RelatedTo         *RelatedTo
	RelationshipCount *RelationshipCount
}

// FieldDescriptor is the cached metadata for one declared field: its
// property name, reflective access path, type shape and annotation set.
type FieldDescriptor struct {
	name        string
	index       []int
	fieldType   reflect.Type
	baseType    reflect.Type
	collection  bool
	isModel     bool
	isRel       bool
	annotations Annotations
}

// Name is the property name the field is stored under.
func (d *FieldDescriptor) Name() string { return d.name }

// IsCollection reports whether the field is a slice of models or
// relationships.
func (d *FieldDescriptor) IsCollection() bool { return d.collection }

// IsModel reports whether the base type is a node model.
func (d *FieldDescriptor) IsModel() bool { return d.isModel }

// IsRelationship reports whether the base type is a relationship model.
func (d *FieldDescriptor) IsRelationship() bool { return d.isRel }

// Type is the declared Go type of the field.
func (d *FieldDescriptor) Type() reflect.Type { return d.fieldType }

// BaseType is the element type for collections, the pointed-to type for
// pointers, and the field type otherwise.
func (d *FieldDescriptor) BaseType() reflect.Type { return d.baseType }

// Annotations returns the parsed flag set.
func (d *FieldDescriptor) Annotations() Annotations { return d.annotations }

// Value resolves the field on a model value. The passed value must be the
// struct, not a pointer.
func (d *FieldDescriptor) Value(structValue reflect.Value) reflect.Value {
	return structValue.FieldByIndex(d.index)
}

func (d *FieldDescriptor) String() string {
	return fmt.Sprintf("field %q", d.name)
}

var (
	modelInterface        = reflect.TypeOf((*model.Model)(nil)).Elem()
	relationshipInterface = reflect.TypeOf((*model.Relationship)(nil)).Elem()
	timeType              = reflect.TypeOf(time.Time{})
)

// newFieldDescriptor builds a descriptor for one visible struct field.
func newFieldDescriptor(field reflect.StructField) (*FieldDescriptor, error) {
	d := &FieldDescriptor{
		name:      propertyName(field.Name),
		index:     field.Index,
		fieldType: field.Type,
	}

	base := field.Type
	if base.Kind() == reflect.Slice && base != reflect.TypeOf([]byte(nil)) {
		d.collection = true
		base = base.Elem()
	}
	d.baseType = base
	if base.Kind() == reflect.Ptr && base.Elem().Kind() == reflect.Struct && base.Elem() != timeType {
		if base.Implements(relationshipInterface) {
			d.isRel = true
		} else if base.Implements(modelInterface) {
			d.isModel = true
		}
	}

	annotations, err := parseTag(field.Tag.Get("frogr"))
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", field.Name, err)
	}
	d.annotations = annotations
	return d, nil
}

// propertyName maps a Go field name to its stored property name.
func propertyName(fieldName string) string {
	return strings.ToLower(fieldName[:1]) + fieldName[1:]
}

// parseTag reads the `frogr` struct tag. Flags are comma separated, some
// take a value: `frogr:"relatedTo=Likes,direction=incoming,multiple"`.
func parseTag(tag string) (Annotations, error) {
	var a Annotations
	if tag == "" {
		return a, nil
	}
	if tag == "-" {
		a.NotPersistent = true
		return a, nil
	}

	var relType, countType string
	direction := graph.Outgoing
	var multiple, restrict bool

	for _, item := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(item), "=")
		switch key {
		case "":
		case "unique":
			a.Unique = true
		case "required":
			a.Required = true
		case "fetch":
			a.Fetch = true
		case "lazy":
			a.Lazy = true
		case "nullRemove":
			a.NullRemove = true
		case "notPersistent":
			a.NotPersistent = true
		case "blob":
			a.Blob = true
		case "uuid":
			a.UUID = true
		case "indexed":
			if value == "lowercase" {
				a.Indexed = IndexLowerCase
			} else if value == "" {
				a.Indexed = IndexDefault
			} else {
				return a, fmt.Errorf("unknown index type %q", value)
			}
		case "relatedTo":
			if value == "" {
				return a, fmt.Errorf("relatedTo needs a relationship type name")
			}
			relType = value
		case "relationshipCount":
			if value == "" {
				return a, fmt.Errorf("relationshipCount needs a relationship type name")
			}
			countType = value
		case "direction":
			switch value {
			case "outgoing":
				direction = graph.Outgoing
			case "incoming":
				direction = graph.Incoming
			case "both":
				direction = graph.Both
			default:
				return a, fmt.Errorf("unknown direction %q", value)
			}
		case "multiple":
			multiple = true
		case "restrictType":
			restrict = true
		default:
			return a, fmt.Errorf("unknown annotation %q", key)
		}
	}

	if relType != "" {
		a.RelatedTo = &RelatedTo{
			Type:         relType,
			Direction:    direction,
			Multiple:     multiple,
			RestrictType: restrict,
		}
	}
	if countType != "" {
		a.RelationshipCount = &RelationshipCount{Type: countType, Direction: direction}
	}
	return a, nil
}
