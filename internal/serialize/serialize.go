// Package serialize converts resource declarations to CloudFormation properties.
package serialize

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Properties serializes a Go struct to CloudFormation resource properties.
// It handles:
//   - json tag names (BucketName), falling back to the Go field name
//   - omitting nil/zero values for fields tagged omitempty or untagged
//   - always emitting fields tagged without omitempty, even when false or 0
//   - nested structs, slices and maps
//   - json.Marshaler values such as AttrRef and the intrinsic functions
func Properties(v any) (map[string]any, error) {
	val := reflect.ValueOf(v)
	for val.Kind() == reflect.Ptr || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return nil, nil
		}
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return nil, nil
	}

	result := make(map[string]any)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)

		if !field.IsExported() {
			continue
		}

		name, required := fieldName(field)
		if name == "-" {
			continue
		}

		if !required && isZeroValue(fieldVal) {
			continue
		}

		serialized, err := serializeValue(fieldVal)
		if err != nil {
			return nil, err
		}

		if serialized != nil {
			result[name] = serialized
		} else if required && fieldVal.Kind() != reflect.Ptr && fieldVal.Kind() != reflect.Interface {
			result[name] = zeroFor(fieldVal)
		}
	}

	return result, nil
}

// fieldName returns the property name for a struct field and whether the
// field must be emitted even when zero.
func fieldName(field reflect.StructField) (string, bool) {
	tag, ok := field.Tag.Lookup("json")
	if !ok || tag == "" {
		return field.Name, false
	}

	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = field.Name
	}

	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			return name, false
		}
	}
	return name, true
}

// isZeroValue returns true if the value is the zero value for its type.
func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.IsNil() || v.Len() == 0
	case reflect.Struct:
		if v.CanInterface() {
			if zeroer, ok := v.Interface().(interface{ IsZero() bool }); ok {
				return zeroer.IsZero()
			}
		}
		return v.IsZero()
	default:
		return v.IsZero()
	}
}

// zeroFor is the JSON-compatible zero emitted for a required field.
func zeroFor(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Bool:
		return false
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return 0
	case reflect.String:
		return ""
	case reflect.Slice:
		return []any{}
	case reflect.Map:
		return map[string]any{}
	default:
		return nil
	}
}

// serializeValue converts a reflect.Value to a JSON-compatible value.
func serializeValue(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}

	if v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		// Pointers that marshal themselves are handled below via the element.
		if v.Kind() == reflect.Interface {
			return serializeValue(v.Elem())
		}
	}

	if v.CanInterface() {
		if marshaler, ok := v.Interface().(json.Marshaler); ok {
			return viaJSON(marshaler)
		}
	}

	if v.Kind() == reflect.Ptr {
		return serializeValue(v.Elem())
	}

	switch v.Kind() {
	case reflect.Struct:
		return Properties(v.Interface())

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		result := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := serializeValue(v.Index(i))
			if err != nil {
				return nil, err
			}
			result[i] = elem
		}
		return result, nil

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		result := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			val, err := serializeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			result[iter.Key().String()] = val
		}
		return result, nil

	case reflect.String:
		return v.String(), nil

	case reflect.Bool:
		return v.Bool(), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), nil

	case reflect.Float32, reflect.Float64:
		return v.Float(), nil

	default:
		if !v.CanInterface() {
			return nil, nil
		}
		return viaJSON(v.Interface())
	}
}

// viaJSON round-trips a value through encoding/json to a generic value.
func viaJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}
