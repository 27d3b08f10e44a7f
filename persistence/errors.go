package persistence

import (
	"errors"
	"fmt"

	"github.com/joewhite86/frogr/model"
)

var (
	// ErrNotFound is returned when no record matches the requested identity.
	ErrNotFound = errors.New("model not found")

	// ErrNotPersisted is returned when an operation needs a stored
	// counterpart but the model carries neither id nor uuid.
	ErrNotPersisted = errors.New("model not persisted")
)

// DuplicateEntryError reports a unique constraint rejecting a field write.
type DuplicateEntryError struct {
	Model model.Base
	Field string
	Value any
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("duplicate entry: %s.%s = %v", typeName(e.Model), e.Field, e.Value)
}

// MissingRequiredError reports a required field left null or empty on
// create.
type MissingRequiredError struct {
	Model model.Base
	Field string
}

func (e *MissingRequiredError) Error() string {
	return fmt.Sprintf("missing required field %s.%s", typeName(e.Model), e.Field)
}

// RelatedNotPersistedError reports a relationship write whose endpoint has
// no resolvable identity.
type RelatedNotPersistedError struct {
	Model   model.Base
	Related model.Base
}

func (e *RelatedNotPersistedError) Error() string {
	return fmt.Sprintf("related model %s is not persisted, save it before connecting it to %s",
		typeName(e.Related), typeName(e.Model))
}

// EndpointMismatchError reports a relationship field value that does not
// carry the owning model on the endpoint the field's direction requires.
type EndpointMismatchError struct {
	Model        model.Base
	Relationship model.Base
	Expected     string
}

func (e *EndpointMismatchError) Error() string {
	return fmt.Sprintf("%s should have %s set as its %s endpoint",
		typeName(e.Relationship), typeName(e.Model), e.Expected)
}

// FieldNotFoundError reports a property removal naming an undeclared field.
type FieldNotFoundError struct {
	Model model.Base
	Field string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("no field %q declared on %s", e.Field, typeName(e.Model))
}

// ResolutionError reports a model whose backing record cannot be resolved,
// or an ambiguous result where a single record was expected.
type ResolutionError struct {
	Model  model.Base
	Detail string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %s: %s", typeName(e.Model), e.Detail)
}

func typeName(m model.Base) string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", m)
}
