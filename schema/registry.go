package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/joewhite86/frogr/model"
)

// Registry holds the descriptor cache for all registered model types.
// Registration happens once at startup, lookups are read-locked map hits.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[reflect.Type][]*FieldDescriptor
	byName      map[string]reflect.Type
	logger      *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		descriptors: make(map[reflect.Type][]*FieldDescriptor),
		byName:      make(map[string]reflect.Type),
		logger:      logger,
	}
}

// Register scans the passed prototype values, one per model type. Prototypes
// must be non-nil struct pointers, e.g. Register(&Person{}, &Likes{}).
// The struct type name becomes the model's type discriminator.
func (r *Registry) Register(prototypes ...model.Base) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, prototype := range prototypes {
		t := reflect.TypeOf(prototype)
		if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("schema: prototype must be a struct pointer, got %T", prototype)
		}
		structType := t.Elem()
		name := structType.Name()
		if existing, ok := r.byName[name]; ok && existing != structType {
			return fmt.Errorf("schema: type name %q already registered for %s", name, existing)
		}

		descriptors, err := r.scan(structType, model.IsRelationship(prototype))
		if err != nil {
			return fmt.Errorf("schema: %s: %w", name, err)
		}
		r.descriptors[structType] = descriptors
		r.byName[name] = structType
		r.logger.Debug("registered model",
			zap.String("type", name),
			zap.Int("fields", len(descriptors)))
	}
	return nil
}

// scan builds the descriptor list for one struct type. Promoted fields from
// the embedded base types are skipped, their bookkeeping is handled by the
// persistence layer directly. Shadowed promoted fields resolve to the
// outermost declaration, matching Go's own visibility rules.
func (r *Registry) scan(structType reflect.Type, isRelationship bool) ([]*FieldDescriptor, error) {
	var descriptors []*FieldDescriptor

	for _, field := range reflect.VisibleFields(structType) {
		if field.Anonymous || !field.IsExported() {
			continue
		}
		if fromBasePackage(structType, field) {
			continue
		}

		d, err := newFieldDescriptor(field)
		if err != nil {
			return nil, err
		}
		if d.annotations.NotPersistent && field.Tag.Get("frogr") == "-" {
			continue
		}
		r.validate(structType, d, isRelationship)
		descriptors = append(descriptors, d)
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].name < descriptors[j].name
	})
	return descriptors, nil
}

// validate logs suspicious annotation combinations. Registration proceeds,
// the flags that make no sense together are simply reported.
func (r *Registry) validate(structType reflect.Type, d *FieldDescriptor, isRelationship bool) {
	a := d.annotations
	log := func(msg string) {
		r.logger.Warn(msg,
			zap.String("type", structType.Name()),
			zap.String("field", d.name))
	}
	if a.Indexed != IndexNone && a.RelatedTo != nil {
		log("indexed has no effect on relationship fields")
	}
	if a.NullRemove && a.Required {
		log("nullRemove combined with required, nulls will be rejected before removal")
	}
	if a.RelatedTo != nil && !d.isModel && !d.isRel {
		log("relatedTo set on a non-model field")
	}
	if isRelationship && (a.RelatedTo != nil || a.RelationshipCount != nil) {
		log("relationship models cannot declare relationship fields")
	}
	if isRelationship && (a.Indexed != IndexNone || a.Unique) {
		log("relationship properties are not indexed")
	}
}

// fromBasePackage reports whether a promoted field originates in the
// embedded Entity or BaseRelationship. Their exported fields (ID, UUID,
// Created, From, To, ...) are managed explicitly by the persistence layer
// and never get descriptors.
func fromBasePackage(structType reflect.Type, field reflect.StructField) bool {
	if len(field.Index) < 2 {
		return false
	}
	owner := structType.Field(field.Index[0])
	return owner.Anonymous && owner.Type.PkgPath() == modelInterface.PkgPath()
}

// Contains reports whether a type name is registered.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// TypeOf resolves a type discriminator to its struct type.
func (r *Registry) TypeOf(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// NameOf returns the registered discriminator for a model value's type.
func (r *Registry) NameOf(m model.Base) string {
	return StructType(m).Name()
}

// NewInstance creates a fresh zero model of the named type.
func (r *Registry) NewInstance(name string) (model.Base, error) {
	t, ok := r.TypeOf(name)
	if !ok {
		return nil, fmt.Errorf("schema: type %q is not registered", name)
	}
	return reflect.New(t).Interface().(model.Base), nil
}

// Descriptors returns the cached descriptor list for a model value's type.
func (r *Registry) Descriptors(m model.Base) ([]*FieldDescriptor, error) {
	return r.DescriptorsOf(StructType(m))
}

// DescriptorsOf returns the cached descriptor list for a struct type.
func (r *Registry) DescriptorsOf(structType reflect.Type) ([]*FieldDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descriptors, ok := r.descriptors[structType]
	if !ok {
		return nil, fmt.Errorf("schema: type %s is not registered", structType.Name())
	}
	return descriptors, nil
}

// Descriptor resolves a possibly dotted field path on a model type, walking
// into related model types for each dot.
func (r *Registry) Descriptor(structType reflect.Type, path string) (*FieldDescriptor, error) {
	head, rest, nested := strings.Cut(path, ".")
	descriptors, err := r.DescriptorsOf(structType)
	if err != nil {
		return nil, err
	}
	for _, d := range descriptors {
		if d.name != head {
			continue
		}
		if !nested {
			return d, nil
		}
		if !d.isModel && !d.isRel {
			return nil, fmt.Errorf("schema: %s.%s is not a model field", structType.Name(), head)
		}
		return r.Descriptor(d.baseType.Elem(), rest)
	}
	return nil, fmt.Errorf("schema: no field %q on %s", head, structType.Name())
}

// SubTypesOf lists every registered struct type assignable to the passed
// interface type. Used to widen searches over a shared behavioral contract.
func (r *Registry) SubTypesOf(iface reflect.Type) []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var types []reflect.Type
	for _, t := range r.byName {
		if reflect.PtrTo(t).Implements(iface) {
			types = append(types, t)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Name() < types[j].Name() })
	return types
}

// Names lists all registered type discriminators sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StructType returns the struct type behind a model value.
func StructType(m model.Base) reflect.Type {
	t := reflect.TypeOf(m)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// StructValue returns the addressable struct value behind a model value.
func StructValue(m model.Base) reflect.Value {
	v := reflect.ValueOf(m)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v
}
