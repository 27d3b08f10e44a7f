package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/joewhite86/frogr/graph"
)

type node struct {
	tx *tx
	id int64
}

var _ graph.Node = (*node)(nil)

func (n *node) ID() int64 { return n.id }

func (n *node) Property(name string) (any, bool, error) {
	return getProperty(n.tx, "node_props", "node_id", n.id, name)
}

func (n *node) SetProperty(name string, value any) error {
	if err := n.checkUnique(name, value); err != nil {
		return err
	}
	return setProperty(n.tx, "node_props", "node_id", n.id, name, value)
}

func (n *node) RemoveProperty(name string) error {
	return removeProperty(n.tx, "node_props", "node_id", n.id, name)
}

func (n *node) Properties() (map[string]any, error) {
	return allProperties(n.tx, "node_props", "node_id", n.id)
}

// checkUnique rejects the write when one of the node's labels carries a
// unique constraint on the property and another node already holds the
// value.
func (n *node) checkUnique(name string, value any) error {
	rows, err := n.tx.sqlTx.Query(`SELECT uc.label FROM unique_constraints uc
		JOIN node_labels nl ON nl.label = uc.label AND nl.node_id = ?
		WHERE uc.property = ?`, n.id, name)
	if err != nil {
		return fmt.Errorf("unique check %s: %w", name, err)
	}
	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			rows.Close()
			return err
		}
		labels = append(labels, label)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, label := range labels {
		column, arg, err := valueColumn(value)
		if err != nil {
			return err
		}
		var other int64
		err = n.tx.sqlTx.QueryRow(fmt.Sprintf(`SELECT p.node_id FROM node_props p
			JOIN node_labels nl ON nl.node_id = p.node_id AND nl.label = ?
			WHERE p.name = ? AND p.%s = ? AND p.node_id <> ? LIMIT 1`, column),
			label, name, arg, n.id).Scan(&other)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("unique check %s.%s: %w", label, name, err)
		}
		return &graph.ConstraintError{Label: label, Property: name, Value: value}
	}
	return nil
}

func (n *node) Labels() ([]string, error) {
	rows, err := n.tx.sqlTx.Query(
		"SELECT label FROM node_labels WHERE node_id = ? ORDER BY label", n.id)
	if err != nil {
		return nil, fmt.Errorf("labels of node %d: %w", n.id, err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

func (n *node) HasLabel(label string) (bool, error) {
	var one int64
	err := n.tx.sqlTx.QueryRow(
		"SELECT 1 FROM node_labels WHERE node_id = ? AND label = ?", n.id, label).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (n *node) AddLabel(label string) error {
	_, err := n.tx.sqlTx.Exec(
		"INSERT OR IGNORE INTO node_labels (node_id, label) VALUES (?, ?)", n.id, label)
	if err != nil {
		return fmt.Errorf("label node %d: %w", n.id, err)
	}
	return nil
}

func (n *node) Relationships(dir graph.Direction, types ...string) ([]graph.Relationship, error) {
	query := "SELECT id, type, start_id, end_id FROM edges WHERE " + directionSQL(dir)
	args := []any{n.id}
	if dir == graph.Both {
		args = append(args, n.id)
	}
	if len(types) > 0 {
		query += " AND type IN ("
		for i, typeName := range types {
			if i > 0 {
				query += ", "
			}
			query += "?"
			args = append(args, typeName)
		}
		query += ")"
	}
	query += " ORDER BY id"

	rows, err := n.tx.sqlTx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("relationships of node %d: %w", n.id, err)
	}
	defer rows.Close()

	var relationships []graph.Relationship
	for rows.Next() {
		e := &edge{tx: n.tx}
		if err := rows.Scan(&e.id, &e.typeName, &e.startID, &e.endID); err != nil {
			return nil, err
		}
		relationships = append(relationships, e)
	}
	return relationships, rows.Err()
}

func (n *node) SingleRelationship(dir graph.Direction, typeName string) (graph.Relationship, error) {
	relationships, err := n.Relationships(dir, typeName)
	if err != nil {
		return nil, err
	}
	switch len(relationships) {
	case 0:
		return nil, nil
	case 1:
		return relationships[0], nil
	default:
		return nil, fmt.Errorf("%s on node %d: %w", typeName, n.id, graph.ErrMoreThanOne)
	}
}

func (n *node) CountRelationships(dir graph.Direction, typeName string) (int64, error) {
	query := "SELECT COUNT(*) FROM edges WHERE " + directionSQL(dir) + " AND type = ?"
	args := []any{n.id}
	if dir == graph.Both {
		args = append(args, n.id)
	}
	args = append(args, typeName)

	var count int64
	if err := n.tx.sqlTx.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s on node %d: %w", typeName, n.id, err)
	}
	return count, nil
}

func (n *node) Delete() error {
	var incident int64
	if err := n.tx.sqlTx.QueryRow(
		"SELECT COUNT(*) FROM edges WHERE start_id = ? OR end_id = ?", n.id, n.id).Scan(&incident); err != nil {
		return err
	}
	if incident > 0 {
		return fmt.Errorf("delete node %d: %d relationships still attached", n.id, incident)
	}
	if _, err := n.tx.sqlTx.Exec("DELETE FROM nodes WHERE id = ?", n.id); err != nil {
		return fmt.Errorf("delete node %d: %w", n.id, err)
	}
	return nil
}

func directionSQL(dir graph.Direction) string {
	switch dir {
	case graph.Outgoing:
		return "start_id = ?"
	case graph.Incoming:
		return "end_id = ?"
	default:
		return "(start_id = ? OR end_id = ?)"
	}
}
