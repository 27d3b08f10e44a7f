package graph

// Op enumerates the predicate operators a store must support.
type Op int

const (
	OpEquals Op = iota
	OpNotEquals
	OpLessThan
	OpGreaterThan
	OpRange
	OpStartsWith
	OpEndsWith
	OpContains
)

// String returns a short operator name, used in diagnostics.
func (o Op) String() string {
	switch o {
	case OpEquals:
		return "="
	case OpNotEquals:
		return "<>"
	case OpLessThan:
		return "<"
	case OpGreaterThan:
		return ">"
	case OpRange:
		return "range"
	case OpStartsWith:
		return "starts-with"
	case OpEndsWith:
		return "ends-with"
	case OpContains:
		return "contains"
	default:
		return "unknown"
	}
}

// Predicate matches a single property. Predicates on a query combine with
// AND semantics.
type Predicate struct {
	Property string
	Op       Op
	Value    any
	// To is the upper bound for OpRange.
	To any
	// Including turns OpLessThan/OpGreaterThan into <= / >=.
	Including bool
	// CaseInsensitive folds string comparisons. Callers that maintain a
	// lower-case shadow property usually rewrite the predicate onto the
	// shadow instead, which can use a dedicated index.
	CaseInsensitive bool
}

// Ordering sorts query results by a property.
type Ordering struct {
	Property   string
	Descending bool
}

// Query describes a node scan: a structural label, optional id restriction,
// predicates, ordering and a skip/limit window. A zero Limit means
// unbounded.
type Query struct {
	Label      string
	IDs        []int64
	Predicates []Predicate
	Order      []Ordering
	Skip       int
	Limit      int
}
