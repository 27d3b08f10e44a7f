package model

import "fmt"

// SortOrder gives the direction of an OrderBy entry.
type SortOrder string

const (
	Ascending  SortOrder = "ASC"
	Descending SortOrder = "DESC"
)

// OrderBy orders search results by a field.
type OrderBy struct {
	Field string    `json:"field"`
	Dir   SortOrder `json:"dir"`
}

// SearchParameter collects everything a search call can be parameterized
// with: filters, field projections, ordering, paging and raw id/uuid
// lookups. All with-style methods mutate and return the receiver for
// chaining.
type SearchParameter struct {
	query   string
	limit   *int
	page    *int
	start   *int
	count   bool
	ids     []int64
	uuids   []string
	filters []Filter
	orderBy []OrderBy
	fields  FieldList
	returns []string
}

// NewSearchParameter creates an empty parameter set.
func NewSearchParameter() *SearchParameter {
	return &SearchParameter{}
}

// Clone copies the parameter set. Filters and order entries are shared.
func (p *SearchParameter) Clone() *SearchParameter {
	clone := &SearchParameter{
		query:   p.query,
		count:   p.count,
		ids:     append([]int64(nil), p.ids...),
		uuids:   append([]string(nil), p.uuids...),
		filters: append([]Filter(nil), p.filters...),
		orderBy: append([]OrderBy(nil), p.orderBy...),
		returns: append([]string(nil), p.returns...),
		fields:  append(FieldList(nil), p.fields...),
	}
	if p.limit != nil {
		l := *p.limit
		clone.limit = &l
	}
	if p.page != nil {
		pg := *p.page
		clone.page = &pg
	}
	if p.start != nil {
		s := *p.start
		clone.start = &s
	}
	return clone
}

func (p *SearchParameter) Query(q string) *SearchParameter {
	p.query = q
	return p
}

func (p *SearchParameter) QueryString() string { return p.query }

func (p *SearchParameter) Count(count bool) *SearchParameter {
	p.count = count
	return p
}

func (p *SearchParameter) Counted() bool { return p.count }

// Fields adds field expressions to the projection. Panics on parse errors;
// use FieldList for already-parsed input.
func (p *SearchParameter) Fields(fields ...string) *SearchParameter {
	for _, f := range fields {
		parsed, err := ParseFields(f)
		if err != nil {
			panic(err)
		}
		for _, qf := range parsed {
			p.fields = p.fields.Add(qf)
		}
	}
	return p
}

func (p *SearchParameter) FieldList(fields FieldList) *SearchParameter {
	p.fields = fields
	return p
}

func (p *SearchParameter) GetFieldList() FieldList { return p.fields }

func (p *SearchParameter) Filter(filters ...Filter) *SearchParameter {
	p.filters = append(p.filters, filters...)
	return p
}

// FilterEquals is shorthand for a string filter with "*" affix handling.
func (p *SearchParameter) FilterEquals(property, value string) *SearchParameter {
	return p.Filter(StringFilter(property, value))
}

func (p *SearchParameter) Filters() []Filter { return p.filters }

func (p *SearchParameter) ContainsFilter(property string) bool {
	for _, f := range p.filters {
		if f.Property() == property {
			return true
		}
	}
	return false
}

func (p *SearchParameter) RemoveFilter(property string) *SearchParameter {
	kept := p.filters[:0]
	for _, f := range p.filters {
		if f.Property() != property {
			kept = append(kept, f)
		}
	}
	p.filters = kept
	return p
}

func (p *SearchParameter) Filtered() bool { return len(p.filters) > 0 }

func (p *SearchParameter) IDs(ids ...int64) *SearchParameter {
	p.ids = append(p.ids, ids...)
	return p
}

func (p *SearchParameter) GetIDs() []int64 { return p.ids }

func (p *SearchParameter) UUIDs(uuids ...string) *SearchParameter {
	p.uuids = append(p.uuids, uuids...)
	return p
}

func (p *SearchParameter) GetUUIDs() []string { return p.uuids }

// Limit sets the page size. Adjusts the page number when a start offset was
// given before.
func (p *SearchParameter) Limit(limit int) *SearchParameter {
	p.limit = &limit
	if p.start != nil && limit > 0 {
		page := *p.start/limit + 1
		p.page = &page
	}
	return p
}

func (p *SearchParameter) GetLimit() int {
	if p.limit == nil {
		return DefaultLimit
	}
	return *p.limit
}

// Page sets the one-based page number and recomputes the start offset.
func (p *SearchParameter) Page(page int) *SearchParameter {
	if page <= 0 {
		panic(fmt.Sprintf("page cannot be equal or less than 0: %d", page))
	}
	p.page = &page
	start := (page - 1) * p.GetLimit()
	p.start = &start
	return p
}

func (p *SearchParameter) GetPage() int {
	if p.page == nil {
		return 1
	}
	return *p.page
}

// Start sets the absolute result offset and recomputes the page number.
func (p *SearchParameter) Start(start int) *SearchParameter {
	p.start = &start
	if p.limit != nil && *p.limit > 0 {
		page := start / *p.limit + 1
		p.page = &page
	}
	return p
}

func (p *SearchParameter) GetStart() int {
	if p.start == nil {
		return 0
	}
	return *p.start
}

func (p *SearchParameter) OrderBy(field string, dir SortOrder) *SearchParameter {
	p.orderBy = append(p.orderBy, OrderBy{Field: field, Dir: dir})
	return p
}

func (p *SearchParameter) GetOrderBy() []OrderBy { return p.orderBy }

func (p *SearchParameter) Ordered() bool { return len(p.orderBy) > 0 }

// Returns names the properties a scalar search should yield instead of
// whole models.
func (p *SearchParameter) Returns(fields ...string) *SearchParameter {
	p.returns = append(p.returns, fields...)
	return p
}

func (p *SearchParameter) GetReturns() []string { return p.returns }
