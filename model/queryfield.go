package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultLimit bounds collection windows and search results when the caller
// gives none.
const DefaultLimit = 10

// MaxLimit is the parsed value of the literal "max" in a limit expression.
const MaxLimit = math.MaxInt32

// QueryField is a single node of a field selection tree. It carries an
// optional skip/limit window for to-many relationships and a set of
// sub-fields for recursive projection. Identity is defined by the field name
// alone; sub-fields and windows never take part in equality.
type QueryField struct {
	Name      string
	skip      int
	limit     int
	subFields FieldList
}

// NewQueryField parses a single field expression, e.g. "friends" or
// "friends(5;10)". Sub-field syntax is handled by ParseFields.
func NewQueryField(field string) (*QueryField, error) {
	qf := &QueryField{limit: DefaultLimit}
	if i := strings.IndexByte(field, '('); i >= 0 {
		if !strings.HasSuffix(field, ")") {
			return nil, &QueryParseError{Message: fmt.Sprintf("missing ) on field %q", field)}
		}
		qf.Name = field[:i]
		window := field[i+1 : len(field)-1]
		if j := strings.IndexByte(window, ';'); j >= 0 {
			skip, err := strconv.Atoi(window[:j])
			if err != nil {
				return nil, &QueryParseError{Message: fmt.Sprintf("cannot parse skip value %q", window[:j])}
			}
			qf.skip = skip
			window = window[j+1:]
		}
		limit, err := parseLimit(window)
		if err != nil {
			return nil, err
		}
		qf.limit = limit
	} else {
		qf.Name = field
	}
	return qf, nil
}

// MustQueryField is NewQueryField for statically known expressions.
func MustQueryField(field string) *QueryField {
	qf, err := NewQueryField(field)
	if err != nil {
		panic(err)
	}
	return qf
}

func parseLimit(s string) (int, error) {
	if s == "max" {
		return MaxLimit, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil {
		return 0, &QueryParseError{Message: fmt.Sprintf("cannot parse limit value %q", s)}
	}
	return limit, nil
}

func (q *QueryField) Skip() int  { return q.skip }
func (q *QueryField) Limit() int { return q.limit }

func (q *QueryField) SetSkip(skip int)   { q.skip = skip }
func (q *QueryField) SetLimit(limit int) { q.limit = limit }

// SubFields returns the recursive projection below this field.
func (q *QueryField) SubFields() FieldList {
	return q.subFields
}

// AddSubFields merges fields into the sub-field list.
func (q *QueryField) AddSubFields(fields ...*QueryField) {
	for _, f := range fields {
		q.subFields = q.subFields.Add(f)
	}
}

func (q *QueryField) String() string {
	out := q.Name
	if q.skip != 0 || (q.limit != DefaultLimit && q.limit != MaxLimit) {
		if q.skip != 0 {
			out += fmt.Sprintf("(%d;%d)", q.skip, q.limit)
		} else {
			out += fmt.Sprintf("(%d)", q.limit)
		}
	}
	if len(q.subFields) > 0 {
		out += ".{" + q.subFields.String() + "}"
	}
	return out
}
