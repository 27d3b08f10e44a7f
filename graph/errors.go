package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a node or relationship does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrMoreThanOne is returned when a single record was expected but
	// several matched.
	ErrMoreThanOne = errors.New("more than one record found")

	// ErrInvalidPropertyType is returned when a value cannot be stored as a
	// property.
	ErrInvalidPropertyType = errors.New("invalid property type")

	// ErrConstraintViolation is returned when a unique constraint rejects a
	// write.
	ErrConstraintViolation = errors.New("unique constraint violation")
)

// ConstraintError carries the label, property and value a unique constraint
// rejected. It wraps ErrConstraintViolation.
type ConstraintError struct {
	Label    string
	Property string
	Value    any
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("unique constraint violation: %s.%s = %v", e.Label, e.Property, e.Value)
}

func (e *ConstraintError) Unwrap() error { return ErrConstraintViolation }

// IsNotFound reports whether the error is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConstraintViolation reports whether the error is a unique constraint
// violation.
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}
