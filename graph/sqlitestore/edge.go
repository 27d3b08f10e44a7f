package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/joewhite86/frogr/graph"
)

type edge struct {
	tx       *tx
	id       int64
	typeName string
	startID  int64
	endID    int64
}

var _ graph.Relationship = (*edge)(nil)

func (e *edge) ID() int64        { return e.id }
func (e *edge) TypeName() string { return e.typeName }
func (e *edge) StartID() int64   { return e.startID }
func (e *edge) EndID() int64     { return e.endID }

func (e *edge) Start() (graph.Node, error) {
	return e.tx.NodeByID(e.startID)
}

func (e *edge) End() (graph.Node, error) {
	return e.tx.NodeByID(e.endID)
}

func (e *edge) Other(nodeID int64) (graph.Node, error) {
	switch nodeID {
	case e.startID:
		return e.End()
	case e.endID:
		return e.Start()
	default:
		return nil, fmt.Errorf("node %d is not an endpoint of relationship %d", nodeID, e.id)
	}
}

func (e *edge) Property(name string) (any, bool, error) {
	return getProperty(e.tx, "edge_props", "edge_id", e.id, name)
}

func (e *edge) SetProperty(name string, value any) error {
	return setProperty(e.tx, "edge_props", "edge_id", e.id, name, value)
}

func (e *edge) RemoveProperty(name string) error {
	return removeProperty(e.tx, "edge_props", "edge_id", e.id, name)
}

func (e *edge) Properties() (map[string]any, error) {
	return allProperties(e.tx, "edge_props", "edge_id", e.id)
}

func (e *edge) Delete() error {
	if _, err := e.tx.sqlTx.Exec("DELETE FROM edges WHERE id = ?", e.id); err != nil {
		return fmt.Errorf("delete relationship %d: %w", e.id, err)
	}
	return nil
}

// Shared property row access for nodes and edges. The two tables are
// identical but for the owner column.

func getProperty(t *tx, table, idColumn string, owner int64, name string) (any, bool, error) {
	var e encoded
	err := t.sqlTx.QueryRow(fmt.Sprintf(
		"SELECT kind, text_value, int_value, real_value, blob_value FROM %s WHERE %s = ? AND name = ?",
		table, idColumn), owner, name).
		Scan(&e.kind, &e.text, &e.num, &e.real, &e.blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("property %s: %w", name, err)
	}
	value, err := decodeValue(e)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func setProperty(t *tx, table, idColumn string, owner int64, name string, value any) error {
	e, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("property %s: %w", name, err)
	}
	_, err = t.sqlTx.Exec(fmt.Sprintf(`INSERT INTO %s (%s, name, kind, text_value, int_value, real_value, blob_value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (%s, name) DO UPDATE SET
			kind = excluded.kind,
			text_value = excluded.text_value,
			int_value = excluded.int_value,
			real_value = excluded.real_value,
			blob_value = excluded.blob_value`, table, idColumn, idColumn),
		owner, name, e.kind, e.text, e.num, e.real, e.blob)
	if err != nil {
		return fmt.Errorf("property %s: %w", name, err)
	}
	return nil
}

func removeProperty(t *tx, table, idColumn string, owner int64, name string) error {
	_, err := t.sqlTx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND name = ?", table, idColumn),
		owner, name)
	if err != nil {
		return fmt.Errorf("remove property %s: %w", name, err)
	}
	return nil
}

func allProperties(t *tx, table, idColumn string, owner int64) (map[string]any, error) {
	rows, err := t.sqlTx.Query(fmt.Sprintf(
		"SELECT name, kind, text_value, int_value, real_value, blob_value FROM %s WHERE %s = ?",
		table, idColumn), owner)
	if err != nil {
		return nil, fmt.Errorf("properties: %w", err)
	}
	defer rows.Close()

	properties := make(map[string]any)
	for rows.Next() {
		var name string
		var e encoded
		if err := rows.Scan(&name, &e.kind, &e.text, &e.num, &e.real, &e.blob); err != nil {
			return nil, err
		}
		value, err := decodeValue(e)
		if err != nil {
			return nil, err
		}
		properties[name] = value
	}
	return properties, rows.Err()
}
