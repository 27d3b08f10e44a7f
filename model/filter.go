package model

import "strings"

// Filter is a single search predicate on a property. Filters on one search
// combine with AND semantics.
type Filter interface {
	Property() string
	Value() any
}

type baseFilter struct {
	property string
	value    any
}

func (f baseFilter) Property() string { return f.property }
func (f baseFilter) Value() any       { return f.value }

// Equals matches properties equal to the value.
type Equals struct {
	baseFilter
	CaseInsensitive bool
}

func NewEquals(property string, value any) *Equals {
	return &Equals{baseFilter: baseFilter{property, value}}
}

// NotEquals matches properties different from the value.
type NotEquals struct{ baseFilter }

func NewNotEquals(property string, value any) *NotEquals {
	return &NotEquals{baseFilter{property, value}}
}

// LessThan matches numeric properties below the value.
type LessThan struct {
	baseFilter
	Including bool
}

func NewLessThan(property string, value int64) *LessThan {
	return &LessThan{baseFilter: baseFilter{property, value}}
}

// GreaterThan matches numeric properties above the value.
type GreaterThan struct {
	baseFilter
	Including bool
}

func NewGreaterThan(property string, value int64) *GreaterThan {
	return &GreaterThan{baseFilter: baseFilter{property, value}}
}

// Range matches numeric properties between from and to, inclusive.
type Range struct {
	baseFilter
	From int64
	To   int64
}

func NewRange(property string, from, to int64) *Range {
	return &Range{baseFilter: baseFilter{property, from}, From: from, To: to}
}

// StartsWith matches string properties with the value as prefix.
type StartsWith struct {
	baseFilter
	CaseInsensitive bool
}

func NewStartsWith(property, value string) *StartsWith {
	return &StartsWith{baseFilter: baseFilter{property, value}}
}

// EndsWith matches string properties with the value as suffix.
type EndsWith struct {
	baseFilter
	CaseInsensitive bool
}

func NewEndsWith(property, value string) *EndsWith {
	return &EndsWith{baseFilter: baseFilter{property, value}}
}

// Contains matches string properties containing the value.
type Contains struct {
	baseFilter
	CaseInsensitive bool
}

func NewContains(property, value string) *Contains {
	return &Contains{baseFilter: baseFilter{property, value}}
}

// StringFilter builds a filter from a string value, interpreting "*"
// affixes: "*x*" contains, "*x" ends with, "x*" starts with, plain equals.
func StringFilter(property, value string) Filter {
	switch {
	case strings.HasPrefix(value, "*") && strings.HasSuffix(value, "*") && len(value) > 1:
		return NewContains(property, value[1:len(value)-1])
	case strings.HasPrefix(value, "*"):
		return NewEndsWith(property, value[1:])
	case strings.HasSuffix(value, "*"):
		return NewStartsWith(property, value[:len(value)-1])
	default:
		return NewEquals(property, value)
	}
}
