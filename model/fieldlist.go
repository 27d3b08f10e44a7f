package model

import (
	"fmt"
	"strings"
)

// FieldList is a set of query fields keyed by field name. There is at most
// one entry per name; adding a name twice merges the incoming sub-fields
// into the existing node.
type FieldList []*QueryField

// AllFieldList selects every persistable, non-relationship field.
func AllFieldList() FieldList {
	return FieldList{MustQueryField(AllFields)}
}

// NewFieldList builds a list from already-parsed fields, merging by name.
func NewFieldList(fields ...*QueryField) FieldList {
	var list FieldList
	for _, f := range fields {
		list = list.Add(f)
	}
	return list
}

// ContainsField tests if a field with the passed name exists.
func (l FieldList) ContainsField(name string) bool {
	return l.Get(name) != nil
}

// Get returns the field with the passed name, or nil.
func (l FieldList) Get(name string) *QueryField {
	for _, f := range l {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// GetOrEmpty always returns a QueryField, a fresh one when the name is not
// in the list.
func (l FieldList) GetOrEmpty(name string) *QueryField {
	if f := l.Get(name); f != nil {
		return f
	}
	return &QueryField{Name: name, limit: DefaultLimit}
}

// Add merges a field into the list. When the name already exists, the
// incoming sub-fields are merged into the existing node and the window is
// adopted; no duplicate entry is created.
func (l FieldList) Add(field *QueryField) FieldList {
	if existing := l.Get(field.Name); existing != nil {
		existing.AddSubFields(field.subFields...)
		if field.skip != 0 {
			existing.skip = field.skip
		}
		if field.limit != DefaultLimit {
			existing.limit = field.limit
		}
		return l
	}
	return append(l, field)
}

// Remove drops the field with the passed name.
func (l FieldList) Remove(name string) FieldList {
	for i, f := range l {
		if f.Name == name {
			return append(l[:i:i], l[i+1:]...)
		}
	}
	return l
}

func (l FieldList) String() string {
	parts := make([]string, len(l))
	for i, f := range l {
		parts[i] = f.String()
	}
	return strings.Join(parts, ",")
}

// ParseFieldStrings parses each element with the full grammar and merges the
// results into one list.
func ParseFieldStrings(fields ...string) (FieldList, error) {
	var list FieldList
	for _, s := range fields {
		parsed, err := ParseFields(s)
		if err != nil {
			return nil, err
		}
		for _, f := range parsed {
			list = list.Add(f)
		}
	}
	return list, nil
}

// ParseFields parses a field selection expression.
//
// Fields are separated by ",", sub-fields live inside curly braces or follow
// a dot, and skip/limit windows are in round braces. For example:
// "name,friends(30).{name,age},age".
func ParseFields(input string) (FieldList, error) {
	var list FieldList

	var field strings.Builder
	brackets := 0
	inLimit := false
	for _, ch := range input {
		switch {
		case ch == '}':
			if brackets == 0 {
				return nil, &QueryParseError{Message: "missing {"}
			}
			brackets--
			field.WriteRune(ch)
		case ch == '{':
			brackets++
			field.WriteRune(ch)
		case brackets > 0 || ch != ',':
			if ch == '(' {
				inLimit = true
			} else if ch == ')' {
				inLimit = false
			} else if brackets == 0 && !inLimit && !isFieldRune(ch) {
				return nil, &QueryParseError{
					Message: fmt.Sprintf("cannot parse character %q (%s)", ch, input),
				}
			}
			if ch != ' ' {
				field.WriteRune(ch)
			}
		default:
			// brackets is 0 and ch is ',', end of field
			var err error
			list, err = parseInto(list, field.String())
			if err != nil {
				return nil, err
			}
			field.Reset()
		}
	}
	if brackets > 0 {
		return nil, &QueryParseError{Message: "missing }"}
	}
	if field.Len() > 0 {
		var err error
		list, err = parseInto(list, field.String())
		if err != nil {
			return nil, err
		}
	}

	return list, nil
}

func isFieldRune(ch rune) bool {
	return ch == '.' || ch == ' ' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// parseInto parses one field expression, merging sub-fields into an existing
// entry of the list when the name is already present.
func parseInto(list FieldList, expr string) (FieldList, error) {
	expr = strings.TrimSpace(expr)

	dot := strings.IndexByte(expr, '.')
	if dot < 0 {
		qf, err := NewQueryField(expr)
		if err != nil {
			return nil, err
		}
		return list.Add(qf), nil
	}

	name := expr[:dot]
	subExpr := expr[dot+1:]
	if strings.HasPrefix(subExpr, "{") {
		if !strings.HasSuffix(subExpr, "}") {
			return nil, &QueryParseError{Message: fmt.Sprintf("missing } on field %q", expr)}
		}
		subExpr = subExpr[1 : len(subExpr)-1]
	}
	subFields, err := ParseFields(subExpr)
	if err != nil {
		return nil, err
	}

	qf, err := NewQueryField(name)
	if err != nil {
		return nil, err
	}
	qf.AddSubFields(subFields...)
	return list.Add(qf), nil
}
