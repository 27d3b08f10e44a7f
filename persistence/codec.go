package persistence

import (
	"fmt"
	"reflect"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// encodeScalar turns a model field value into a storable property value.
// Returns null=true for absent values: nil pointers, empty strings, zero
// times and nil slices. Named string types (enums) encode as their string
// value, times as epoch milliseconds.
func encodeScalar(v reflect.Value) (value any, null bool, err error) {
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, true, nil
		}
		v = v.Elem()
	}
	if v.Type() == timeType {
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return nil, true, nil
		}
		return t.UnixMilli(), false, nil
	}
	switch v.Kind() {
	case reflect.String:
		if v.String() == "" {
			return nil, true, nil
		}
		return v.String(), false, nil
	case reflect.Bool:
		return v.Bool(), false, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), false, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(v.Uint()), false, nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), false, nil
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			if v.IsNil() {
				return nil, true, nil
			}
			return v.Bytes(), false, nil
		}
		return nil, false, fmt.Errorf("cannot store %s as a property", v.Type())
	default:
		return nil, false, fmt.Errorf("cannot store %s as a property", v.Type())
	}
}

// decodeScalar writes a stored property value back onto a model field,
// allocating pointers and converting through named types as needed.
func decodeScalar(field reflect.Value, stored any) error {
	for field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		field = field.Elem()
	}
	if field.Type() == timeType {
		millis, ok := stored.(int64)
		if !ok {
			return fmt.Errorf("cannot decode %T into %s", stored, field.Type())
		}
		field.Set(reflect.ValueOf(time.UnixMilli(millis)))
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		s, ok := stored.(string)
		if !ok {
			return fmt.Errorf("cannot decode %T into %s", stored, field.Type())
		}
		field.SetString(s)
	case reflect.Bool:
		b, ok := stored.(bool)
		if !ok {
			return fmt.Errorf("cannot decode %T into %s", stored, field.Type())
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := stored.(int64)
		if !ok {
			return fmt.Errorf("cannot decode %T into %s", stored, field.Type())
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		n, ok := stored.(int64)
		if !ok {
			return fmt.Errorf("cannot decode %T into %s", stored, field.Type())
		}
		field.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		f, ok := stored.(float64)
		if !ok {
			return fmt.Errorf("cannot decode %T into %s", stored, field.Type())
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.Uint8 {
			b, ok := stored.([]byte)
			if !ok {
				return fmt.Errorf("cannot decode %T into %s", stored, field.Type())
			}
			field.SetBytes(b)
			return nil
		}
		return fmt.Errorf("cannot decode into %s", field.Type())
	default:
		return fmt.Errorf("cannot decode into %s", field.Type())
	}
	return nil
}
