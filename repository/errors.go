package repository

import "errors"

var (
	// ErrRepositoryNotFound is returned when no repository can serve a type
	// name, because the name was never registered.
	ErrRepositoryNotFound = errors.New("no repository for type")

	// ErrWrongModelType is returned when a repository receives a model of a
	// different type than it serves.
	ErrWrongModelType = errors.New("wrong model type")

	// ErrAmbiguousResult is returned by single-result terminals that
	// matched more than one record.
	ErrAmbiguousResult = errors.New("more than one result")

	// ErrMissingReturns is returned by scalar terminals when the search
	// does not name exactly one return field.
	ErrMissingReturns = errors.New("exactly one return field required")
)
