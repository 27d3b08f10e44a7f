package model

import (
	"encoding/json"
	"strconv"
)

// Identity is the graph-assigned numeric identity of an entity or
// relationship. A zero Identity means the record was never stored; the
// numeric id only exists once the store assigned one.
type Identity struct {
	id       int64
	assigned bool
}

// NewIdentity creates an assigned identity from a store-provided id.
func NewIdentity(id int64) Identity {
	return Identity{id: id, assigned: true}
}

// Value returns the numeric id and whether it was assigned by the store.
func (i Identity) Value() (int64, bool) {
	return i.id, i.assigned
}

// Assigned reports whether the store assigned an id yet.
func (i Identity) Assigned() bool {
	return i.assigned
}

// Int64 returns the numeric id, or -1 when unassigned.
func (i Identity) Int64() int64 {
	if !i.assigned {
		return -1
	}
	return i.id
}

func (i Identity) String() string {
	if !i.assigned {
		return "-"
	}
	return strconv.FormatInt(i.id, 10)
}

// MarshalJSON writes the numeric id, or null when unassigned.
func (i Identity) MarshalJSON() ([]byte, error) {
	if !i.assigned {
		return []byte("null"), nil
	}
	return json.Marshal(i.id)
}

// UnmarshalJSON accepts a numeric id or null.
func (i *Identity) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*i = Identity{}
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*i = NewIdentity(id)
	return nil
}
