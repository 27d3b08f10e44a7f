package sqlitestore

import (
	"database/sql"
	"fmt"

	"github.com/joewhite86/frogr/graph"
)

// Property value kinds as stored in the kind column. The kind decides which
// value column is populated and how it decodes.
const (
	kindString = 0
	kindInt    = 1
	kindFloat  = 2
	kindBool   = 3
	kindBlob   = 4
)

// encoded is one property value split across the typed columns.
type encoded struct {
	kind int
	text sql.NullString
	num  sql.NullInt64
	real sql.NullFloat64
	blob []byte
}

// encodeValue maps a Go value onto the column set. Integer types widen to
// int64, float32 to float64. Anything else is rejected.
func encodeValue(value any) (encoded, error) {
	switch v := value.(type) {
	case string:
		return encoded{kind: kindString, text: sql.NullString{String: v, Valid: true}}, nil
	case bool:
		n := int64(0)
		if v {
			n = 1
		}
		return encoded{kind: kindBool, num: sql.NullInt64{Int64: n, Valid: true}}, nil
	case int:
		return encoded{kind: kindInt, num: sql.NullInt64{Int64: int64(v), Valid: true}}, nil
	case int32:
		return encoded{kind: kindInt, num: sql.NullInt64{Int64: int64(v), Valid: true}}, nil
	case int64:
		return encoded{kind: kindInt, num: sql.NullInt64{Int64: v, Valid: true}}, nil
	case float32:
		return encoded{kind: kindFloat, real: sql.NullFloat64{Float64: float64(v), Valid: true}}, nil
	case float64:
		return encoded{kind: kindFloat, real: sql.NullFloat64{Float64: v, Valid: true}}, nil
	case []byte:
		return encoded{kind: kindBlob, blob: v}, nil
	default:
		return encoded{}, fmt.Errorf("%w: %T", graph.ErrInvalidPropertyType, value)
	}
}

// decodeValue reverses encodeValue.
func decodeValue(e encoded) (any, error) {
	switch e.kind {
	case kindString:
		return e.text.String, nil
	case kindInt:
		return e.num.Int64, nil
	case kindFloat:
		return e.real.Float64, nil
	case kindBool:
		return e.num.Int64 != 0, nil
	case kindBlob:
		return e.blob, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", graph.ErrInvalidPropertyType, e.kind)
	}
}
