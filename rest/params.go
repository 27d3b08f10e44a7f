package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/joewhite86/frogr/model"
)

// ParameterName is the header and query parameter carrying a serialized
// search parameter set.
const ParameterName = "params"

// searchParameterJSON is the wire shape of a serialized parameter set.
// Filters use the same colon grammar as the flat `filter` query parameter.
type searchParameterJSON struct {
	Query   string          `json:"query"`
	Limit   *int            `json:"limit"`
	Page    *int            `json:"page"`
	Start   *int            `json:"start"`
	Count   bool            `json:"count"`
	IDs     []int64         `json:"ids"`
	UUIDs   []string        `json:"uuids"`
	Filters []string        `json:"filters"`
	OrderBy []model.OrderBy `json:"orderBy"`
	Fields  []string        `json:"fields"`
	Returns []string        `json:"returns"`
}

// ResolveSearchParameter extracts search parameters from a request. A
// `params` header wins over a `params` query parameter, which wins over
// flat query parameters (q, uuids, filter, order, fields, ...).
func ResolveSearchParameter(r *http.Request) (*model.SearchParameter, error) {
	if header := r.Header.Get(ParameterName); header != "" {
		return ResolveString(header)
	}
	query := r.URL.Query()
	if serialized := query.Get(ParameterName); serialized != "" {
		return ResolveString(serialized)
	}
	params := model.NewSearchParameter()
	for key, values := range query {
		for _, value := range values {
			if err := resolveParameter(params, key, value); err != nil {
				return nil, err
			}
		}
	}
	return params, nil
}

// ResolveString parses a serialized parameter set, either a json object
// or the compact `key:value;key:value` header form.
func ResolveString(serialized string) (*model.SearchParameter, error) {
	serialized = strings.TrimSpace(serialized)
	if strings.HasPrefix(serialized, "{") {
		return resolveJSON([]byte(serialized))
	}
	params := model.NewSearchParameter()
	for _, part := range strings.Split(serialized, ";") {
		key, value, found := strings.Cut(part, ":")
		if !found {
			return nil, fmt.Errorf("%q is not parsable", serialized)
		}
		if err := resolveParameter(params, key, value); err != nil {
			return nil, err
		}
	}
	return params, nil
}

func resolveJSON(data []byte) (*model.SearchParameter, error) {
	var wire searchParameterJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%s is not parsable: %w", data, err)
	}
	params := model.NewSearchParameter()
	if wire.Query != "" {
		params.Query(wire.Query)
	}
	if wire.Limit != nil {
		params.Limit(*wire.Limit)
	}
	if wire.Page != nil {
		params.Page(*wire.Page)
	}
	if wire.Start != nil {
		params.Start(*wire.Start)
	}
	params.Count(wire.Count)
	params.IDs(wire.IDs...)
	params.UUIDs(wire.UUIDs...)
	for _, filter := range wire.Filters {
		if err := resolveFilter(params, filter); err != nil {
			return nil, err
		}
	}
	for _, order := range wire.OrderBy {
		dir := order.Dir
		if dir == "" {
			dir = model.Ascending
		}
		params.OrderBy(order.Field, dir)
	}
	if len(wire.Fields) > 0 {
		fields, err := model.ParseFieldStrings(wire.Fields...)
		if err != nil {
			return nil, err
		}
		params.FieldList(fields)
	}
	params.Returns(wire.Returns...)
	return params, nil
}

func resolveParameter(params *model.SearchParameter, key, value string) error {
	switch key {
	case "q", "query":
		params.Query(value)
	case "uuids":
		params.UUIDs(strings.Split(value, ",")...)
	case "ids":
		for _, raw := range strings.Split(value, ",") {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("cannot parse id %q: %w", raw, err)
			}
			params.IDs(id)
		}
	case "count":
		params.Count(value == "" || value == "true" || value == "1")
	case "start":
		start, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("cannot parse start %q: %w", value, err)
		}
		params.Start(start)
	case "limit":
		limit, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("cannot parse limit %q: %w", value, err)
		}
		params.Limit(limit)
	case "page":
		page, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("cannot parse page %q: %w", value, err)
		}
		params.Page(page)
	case "order", "orderBy", "sort":
		resolveOrder(params, value)
	case "filter", "filters":
		for _, filter := range strings.Split(value, ",") {
			if err := resolveFilter(params, filter); err != nil {
				return err
			}
		}
	case "fields":
		fields, err := model.ParseFields(value)
		if err != nil {
			return err
		}
		params.FieldList(fields)
	case "returns", "return":
		params.Returns(strings.Split(value, ",")...)
	}
	return nil
}

// resolveOrder parses a comma-separated order list. A leading "-" flips to
// descending, a leading "+" or " " is stripped ("+" arrives as a space on
// URIs).
func resolveOrder(params *model.SearchParameter, value string) {
	for _, field := range strings.Split(value, ",") {
		dir := model.Ascending
		switch {
		case strings.HasPrefix(field, "-"):
			dir = model.Descending
			field = field[1:]
		case strings.HasPrefix(field, "+"), strings.HasPrefix(field, " "):
			field = field[1:]
		}
		params.OrderBy(field, dir)
	}
}

// resolveFilter parses one `field:value` expression. The value may carry
// an operator prefix: "!" not equals, "<"/">" with optional "=" for
// bounds, "(a-b)" for ranges, "=" for literal equality. Bare values go
// through the "*" affix handling of StringFilter.
func resolveFilter(params *model.SearchParameter, expression string) error {
	field, value, found := strings.Cut(expression, ":")
	if !found {
		return fmt.Errorf("cannot parse filter %q", expression)
	}
	switch {
	case strings.HasPrefix(value, "!"):
		params.Filter(model.NewNotEquals(field, guessType(value[1:])))
	case strings.HasPrefix(value, "<"):
		bound, including := cutBound(value[1:])
		n, err := strconv.ParseInt(bound, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse filter %q: %w", expression, err)
		}
		filter := model.NewLessThan(field, n)
		filter.Including = including
		params.Filter(filter)
	case strings.HasPrefix(value, ">"):
		bound, including := cutBound(value[1:])
		n, err := strconv.ParseInt(bound, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse filter %q: %w", expression, err)
		}
		filter := model.NewGreaterThan(field, n)
		filter.Including = including
		params.Filter(filter)
	case strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")") && strings.Contains(value, "-"):
		from, to, _ := strings.Cut(value[1:len(value)-1], "-")
		low, err := strconv.ParseInt(from, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse filter %q: %w", expression, err)
		}
		high, err := strconv.ParseInt(to, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse filter %q: %w", expression, err)
		}
		params.Filter(model.NewRange(field, low, high))
	case strings.HasPrefix(value, "="):
		params.Filter(model.NewEquals(field, guessType(value[1:])))
	default:
		if typed := guessType(value); typed != value {
			params.Filter(model.NewEquals(field, typed))
		} else {
			params.Filter(model.StringFilter(field, value))
		}
	}
	return nil
}

func cutBound(value string) (string, bool) {
	if strings.HasPrefix(value, "=") {
		return value[1:], true
	}
	return value, false
}

// guessType coerces a filter value to the most specific scalar type.
func guessType(value string) any {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	return value
}
