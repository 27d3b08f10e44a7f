package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/joewhite86/frogr/graph"
)

type tx struct {
	sqlTx  *sql.Tx
	logger *zap.Logger
}

var _ graph.Tx = (*tx)(nil)

func (t *tx) CreateNode(labels ...string) (graph.Node, error) {
	res, err := t.sqlTx.Exec("INSERT INTO nodes DEFAULT VALUES")
	if err != nil {
		return nil, fmt.Errorf("create node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create node: %w", err)
	}
	n := &node{tx: t, id: id}
	for _, label := range labels {
		if err := n.AddLabel(label); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (t *tx) NodeByID(id int64) (graph.Node, error) {
	var found int64
	err := t.sqlTx.QueryRow("SELECT id FROM nodes WHERE id = ?", id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node %d: %w", id, graph.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", id, err)
	}
	return &node{tx: t, id: id}, nil
}

func (t *tx) FindNode(label, property string, value any) (graph.Node, error) {
	nodes, err := t.findNodes(label, property, value, 1)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%s with %s = %v: %w", label, property, value, graph.ErrNotFound)
	}
	return nodes[0], nil
}

func (t *tx) FindNodes(label, property string, value any) ([]graph.Node, error) {
	return t.findNodes(label, property, value, 0)
}

func (t *tx) findNodes(label, property string, value any, limit int) ([]graph.Node, error) {
	column, arg, err := valueColumn(value)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT p.node_id FROM node_props p
		JOIN node_labels nl ON nl.node_id = p.node_id AND nl.label = ?
		WHERE p.name = ? AND p.%s = ?`, column)
	args := []any{label, property, arg}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := t.sqlTx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s by %s: %w", label, property, err)
	}
	defer rows.Close()

	var nodes []graph.Node
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		nodes = append(nodes, &node{tx: t, id: id})
	}
	return nodes, rows.Err()
}

func (t *tx) CreateRelationship(typeName string, from, to graph.Node) (graph.Relationship, error) {
	res, err := t.sqlTx.Exec("INSERT INTO edges (type, start_id, end_id) VALUES (?, ?, ?)",
		typeName, from.ID(), to.ID())
	if err != nil {
		return nil, fmt.Errorf("create relationship %s: %w", typeName, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create relationship %s: %w", typeName, err)
	}
	return &edge{tx: t, id: id, typeName: typeName, startID: from.ID(), endID: to.ID()}, nil
}

func (t *tx) RelationshipByID(id int64) (graph.Relationship, error) {
	e := &edge{tx: t, id: id}
	err := t.sqlTx.QueryRow("SELECT type, start_id, end_id FROM edges WHERE id = ?", id).
		Scan(&e.typeName, &e.startID, &e.endID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("relationship %d: %w", id, graph.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("relationship %d: %w", id, err)
	}
	return e, nil
}

func (t *tx) FindRelationship(typeName, property string, value any) (graph.Relationship, error) {
	column, arg, err := valueColumn(value)
	if err != nil {
		return nil, err
	}
	e := &edge{tx: t, typeName: typeName}
	query := fmt.Sprintf(`SELECT e.id, e.start_id, e.end_id FROM edges e
		JOIN edge_props p ON p.edge_id = e.id AND p.name = ? AND p.%s = ?
		WHERE e.type = ? LIMIT 1`, column)
	err = t.sqlTx.QueryRow(query, property, arg, typeName).Scan(&e.id, &e.startID, &e.endID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s with %s = %v: %w", typeName, property, value, graph.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s by %s: %w", typeName, property, err)
	}
	return e, nil
}

// EnsureIndex is satisfied by the generic property value index the schema
// always carries, per-label partial indexes are not worth the bookkeeping
// here. Kept so the engine can declare its indexing intent against any
// store.
func (t *tx) EnsureIndex(label, property string) error {
	t.logger.Debug("index ensured", zap.String("label", label), zap.String("property", property))
	return nil
}

func (t *tx) EnsureUnique(label, property string) error {
	if _, err := t.sqlTx.Exec(
		"INSERT OR IGNORE INTO unique_constraints (label, property) VALUES (?, ?)",
		label, property); err != nil {
		return fmt.Errorf("ensure unique %s.%s: %w", label, property, err)
	}

	// Existing duplicates invalidate the constraint.
	var count int64
	err := t.sqlTx.QueryRow(`SELECT COUNT(*) FROM (
			SELECT 1 FROM node_props p
			JOIN node_labels nl ON nl.node_id = p.node_id AND nl.label = ?
			WHERE p.name = ?
			GROUP BY p.kind, p.text_value, p.int_value, p.real_value
			HAVING COUNT(*) > 1)`, label, property).Scan(&count)
	if err != nil {
		return fmt.Errorf("ensure unique %s.%s: %w", label, property, err)
	}
	if count > 0 {
		if _, err := t.sqlTx.Exec(
			"DELETE FROM unique_constraints WHERE label = ? AND property = ?", label, property); err != nil {
			return err
		}
		return fmt.Errorf("ensure unique %s.%s: existing duplicate values: %w",
			label, property, graph.ErrConstraintViolation)
	}
	return nil
}

func (t *tx) QueryNodes(q graph.Query) ([]graph.Node, error) {
	query, args, err := buildQuery(q, false)
	if err != nil {
		return nil, err
	}
	rows, err := t.sqlTx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Label, err)
	}
	defer rows.Close()

	var nodes []graph.Node
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		nodes = append(nodes, &node{tx: t, id: id})
	}
	return nodes, rows.Err()
}

func (t *tx) QueryCount(q graph.Query) (int64, error) {
	query, args, err := buildQuery(q, true)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := t.sqlTx.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Label, err)
	}
	return count, nil
}

func (t *tx) QuerySum(q graph.Query, property string) (float64, error) {
	sub, args, err := buildQuery(q, false)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`SELECT COALESCE(SUM(COALESCE(p.real_value, p.int_value)), 0)
		FROM (%s) m JOIN node_props p ON p.node_id = m.id AND p.name = ?`, sub)
	args = append(args, property)

	var sum float64
	if err := t.sqlTx.QueryRow(query, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum %s.%s: %w", q.Label, property, err)
	}
	return sum, nil
}

func (t *tx) QueryProperty(q graph.Query, property string) ([]any, error) {
	nodes, err := t.QueryNodes(q)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, len(nodes))
	for _, n := range nodes {
		value, ok, err := n.Property(property)
		if err != nil {
			return nil, err
		}
		if ok {
			values = append(values, value)
		} else {
			values = append(values, nil)
		}
	}
	return values, nil
}

func (t *tx) Commit() error   { return t.sqlTx.Commit() }
func (t *tx) Rollback() error { return t.sqlTx.Rollback() }

// buildQuery compiles a predicate query to SQL. Each predicate becomes an
// EXISTS probe on the property table, orderings become left joins so absent
// properties sort together.
func buildQuery(q graph.Query, count bool) (string, []any, error) {
	var b strings.Builder
	var args []any

	if count {
		b.WriteString("SELECT COUNT(*) FROM nodes n")
	} else {
		b.WriteString("SELECT n.id FROM nodes n")
	}
	b.WriteString(" JOIN node_labels nl ON nl.node_id = n.id AND nl.label = ?")
	args = append(args, q.Label)

	if !count {
		for i, o := range q.Order {
			fmt.Fprintf(&b, " LEFT JOIN node_props ord%d ON ord%d.node_id = n.id AND ord%d.name = ?", i, i, i)
			args = append(args, o.Property)
		}
	}

	b.WriteString(" WHERE 1 = 1")
	if len(q.IDs) > 0 {
		b.WriteString(" AND n.id IN (")
		for i, id := range q.IDs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, id)
		}
		b.WriteString(")")
	}

	for _, p := range q.Predicates {
		cond, condArgs, err := predicateSQL(p)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&b, " AND EXISTS (SELECT 1 FROM node_props p WHERE p.node_id = n.id AND p.name = ? AND %s)", cond)
		args = append(args, p.Property)
		args = append(args, condArgs...)
	}

	if count {
		return b.String(), args, nil
	}

	if len(q.Order) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range q.Order {
			if i > 0 {
				b.WriteString(", ")
			}
			dir := "ASC"
			if o.Descending {
				dir = "DESC"
			}
			fmt.Fprintf(&b, "ord%d.int_value %s, ord%d.real_value %s, ord%d.text_value %s", i, dir, i, dir, i, dir)
		}
	} else {
		b.WriteString(" ORDER BY n.id")
	}

	if q.Limit > 0 {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, q.Limit, q.Skip)
	} else if q.Skip > 0 {
		b.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, q.Skip)
	}
	return b.String(), args, nil
}

// predicateSQL renders one predicate against the aliased property row p.
func predicateSQL(p graph.Predicate) (string, []any, error) {
	switch p.Op {
	case graph.OpEquals, graph.OpNotEquals:
		column, arg, err := valueColumn(p.Value)
		if err != nil {
			return "", nil, err
		}
		op := "="
		if p.Op == graph.OpNotEquals {
			op = "<>"
		}
		if p.CaseInsensitive && column == "text_value" {
			return fmt.Sprintf("lower(p.%s) %s lower(?)", column, op), []any{arg}, nil
		}
		return fmt.Sprintf("p.%s %s ?", column, op), []any{arg}, nil

	case graph.OpLessThan, graph.OpGreaterThan:
		column, arg, err := valueColumn(p.Value)
		if err != nil {
			return "", nil, err
		}
		op := "<"
		if p.Op == graph.OpGreaterThan {
			op = ">"
		}
		if p.Including {
			op += "="
		}
		return fmt.Sprintf("p.%s %s ?", column, op), []any{arg}, nil

	case graph.OpRange:
		column, from, err := valueColumn(p.Value)
		if err != nil {
			return "", nil, err
		}
		_, to, err := valueColumn(p.To)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("p.%s BETWEEN ? AND ?", column), []any{from, to}, nil

	case graph.OpStartsWith, graph.OpEndsWith, graph.OpContains:
		needle, ok := p.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s needs a string, got %T",
				graph.ErrInvalidPropertyType, p.Op, p.Value)
		}
		column := "p.text_value"
		if p.CaseInsensitive {
			column = "lower(p.text_value)"
			needle = strings.ToLower(needle)
		}
		switch p.Op {
		case graph.OpStartsWith:
			return fmt.Sprintf("substr(%s, 1, length(?)) = ?", column), []any{needle, needle}, nil
		case graph.OpEndsWith:
			return fmt.Sprintf("substr(%s, -length(?)) = ?", column), []any{needle, needle}, nil
		default:
			return fmt.Sprintf("instr(%s, ?) > 0", column), []any{needle}, nil
		}

	default:
		return "", nil, fmt.Errorf("unsupported operator %s", p.Op)
	}
}

// valueColumn picks the property column a comparison value lives in.
func valueColumn(value any) (string, any, error) {
	e, err := encodeValue(value)
	if err != nil {
		return "", nil, err
	}
	switch e.kind {
	case kindString:
		return "text_value", e.text.String, nil
	case kindInt, kindBool:
		return "int_value", e.num.Int64, nil
	case kindFloat:
		return "real_value", e.real.Float64, nil
	default:
		return "", nil, fmt.Errorf("%w: cannot compare %T", graph.ErrInvalidPropertyType, value)
	}
}
